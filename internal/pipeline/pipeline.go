// Package pipeline runs the end-to-end funding discovery flow: agent calls
// through the retry orchestrator, JSON extraction, sanitation, schema
// validation, remote upsert, and telemetry. Stage counts are carried through
// so the telemetry row reconciles exactly with what was persisted.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"fundwatch/internal/agent"
	"fundwatch/internal/extract"
	"fundwatch/internal/journal"
	"fundwatch/internal/llm"
	"fundwatch/internal/orchestrator"
	"fundwatch/internal/sanitize"
	"fundwatch/internal/schema"
	"fundwatch/internal/supabase"
	"fundwatch/internal/telemetry"
)

// ReasonSchemaValidation marks events dropped by the strict validation stage,
// as opposed to the sanitizer's structural and relevance reasons.
const ReasonSchemaValidation = "schema_validation_error"

// Artifact file names written when an artifact directory is configured.
const (
	rawResultFile     = "last_result.txt"
	droppedEventsFile = "dropped_events.json"
)

// Sink is the remote storage surface the pipeline writes to.
type Sink interface {
	Upsert(ctx context.Context, table string, records any, conflictKey string) supabase.Result
	Insert(ctx context.Context, table string, record any) supabase.Result
}

// Options configures one Pipeline.
type Options struct {
	Models         []string
	EventsTable    string
	TelemetryTable string

	// ArtifactDir, when set, receives last_result.txt and
	// dropped_events.json for offline inspection.
	ArtifactDir string

	Orchestrator orchestrator.Config
}

// Summary is the outcome of a completed run.
type Summary struct {
	RunID  string
	Model  string
	Counts telemetry.Counts
	Upsert supabase.Result
}

// Pipeline wires the stages together. The journal is optional; a nil journal
// disables local persistence without changing run semantics.
type Pipeline struct {
	llm      llm.Client
	sink     Sink
	journal  *journal.Journal
	runner   *orchestrator.Runner
	recorder *telemetry.Recorder
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// New assembles a Pipeline.
func New(client llm.Client, sink Sink, j *journal.Journal, opts Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		llm:      client,
		sink:     sink,
		journal:  j,
		runner:   orchestrator.New(opts.Orchestrator, log),
		recorder: telemetry.NewRecorder(sink, opts.TelemetryTable, log),
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Run executes one full discovery run. A run that produces zero valid events
// is still a successful run; only agent-call failures surface as errors, and
// those are recorded in telemetry before returning.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.now()

	text, modelUsed, err := p.runner.Run(ctx, p.opts.Models, p.invoke)
	if err != nil {
		model := modelUsed
		if model == "" {
			model = strings.Join(p.opts.Models, ";")
		}
		rec := telemetry.BuildRecord(model, telemetry.Counts{}, p.now().Sub(start), telemetry.StatusError, err.Error())
		p.recorder.Record(ctx, rec)
		p.saveRun(ctx, rec)
		return Summary{RunID: rec.ID, Model: model}, err
	}

	p.log.Info("agent result received",
		zap.String("model", modelUsed),
		zap.Int("chars", len(text)))
	p.saveArtifact(ctx, "", journal.ArtifactRawResult, rawResultFile, text)

	items := p.parseEvents(text)
	counts := telemetry.Counts{Raw: len(items)}

	valid, rejected := sanitize.Sanitize(items)
	counts.SanitizedValid = len(valid)
	counts.SanitizedDropped = len(rejected)
	p.log.Info("sanitized events",
		zap.Int("valid", counts.SanitizedValid),
		zap.Int("dropped", counts.SanitizedDropped),
		zap.Int("raw", counts.Raw))

	records, validationDrops := p.validate(valid)
	counts.Validated = len(records)
	counts.ValidationDropped = len(validationDrops)
	if counts.ValidationDropped > 0 {
		p.log.Info("validation dropped additional events",
			zap.Int("count", counts.ValidationDropped))
	}

	rec := telemetry.BuildRecord(modelUsed, counts, p.now().Sub(start), telemetry.StatusOK, "")

	p.persistDropped(ctx, rec.ID, rejected, validationDrops)
	p.saveArtifact(ctx, rec.ID, journal.ArtifactRawResult, "", text)

	var upsert supabase.Result
	if len(records) > 0 {
		upsert = p.sink.Upsert(ctx, p.opts.EventsTable, records, schema.ConflictKey)
		if upsert.OK() {
			p.log.Info("upserted funding events",
				zap.Int("count", len(records)),
				zap.String("table", p.opts.EventsTable))
		} else {
			p.log.Error("funding event upsert failed",
				zap.String("table", p.opts.EventsTable),
				zap.String("error", upsert.Err))
		}
	} else {
		p.log.Info("no valid events after validation; skipping upsert")
	}

	p.recorder.Record(ctx, rec)
	p.saveRun(ctx, rec)

	return Summary{RunID: rec.ID, Model: modelUsed, Counts: counts, Upsert: upsert}, nil
}

// invoke is one agent attempt against a single model: the researcher finds
// article URLs, then the verifier extracts structured events from them.
func (p *Pipeline) invoke(ctx context.Context, model string) (string, error) {
	urls, err := p.llm.Generate(ctx, model, agent.ResearchRequest())
	if err != nil {
		return "", err
	}
	p.log.Debug("researcher output", zap.Int("chars", len(urls)))
	return p.llm.Generate(ctx, model, agent.VerifyRequest(urls))
}

// parseEvents pulls the events array out of the raw agent text. Unparseable
// output is a data problem, not a run failure: it logs and yields zero events.
func (p *Pipeline) parseEvents(text string) []map[string]any {
	payload, err := extract.Extract(text)
	if err != nil {
		p.log.Warn("failed to parse JSON from agent result", zap.Error(err))
		return nil
	}
	arr, _ := payload[extract.EventsKey].([]any)
	items := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			items = append(items, m)
			continue
		}
		// Non-object entries still count as raw input and get rejected
		// downstream for missing fields.
		items = append(items, map[string]any{"value": v})
	}
	return items
}

func (p *Pipeline) validate(events []sanitize.Event) ([]schema.Record, []map[string]any) {
	var records []schema.Record
	var dropped []map[string]any
	for _, e := range events {
		rec, violations := schema.Validate(e)
		if len(violations) == 0 {
			records = append(records, rec)
			continue
		}
		item := eventArtifact(e)
		item["__reason"] = ReasonSchemaValidation
		item["__errors"] = violations
		dropped = append(dropped, item)
	}
	return records, dropped
}

// eventArtifact renders the event's full wire form so the inspection file
// keeps every field of the dropped item, mirroring the sanitizer's
// Rejected.Artifact shape.
func eventArtifact(e sanitize.Event) map[string]any {
	b, err := json.Marshal(e)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// persistDropped writes all rejected events of the run into one artifact.
func (p *Pipeline) persistDropped(ctx context.Context, runID string, rejected []sanitize.Rejected, validationDrops []map[string]any) {
	if len(rejected) == 0 && len(validationDrops) == 0 {
		return
	}
	combined := make([]map[string]any, 0, len(rejected)+len(validationDrops))
	for _, r := range rejected {
		combined = append(combined, r.Artifact())
	}
	combined = append(combined, validationDrops...)

	body, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		p.log.Debug("failed to marshal dropped events", zap.Error(err))
		return
	}
	p.saveArtifact(ctx, runID, journal.ArtifactDroppedEvents, droppedEventsFile, string(body))
}

// saveArtifact persists a blob to the journal (when runID and journal are
// set) and to the artifact directory (when fileName and ArtifactDir are set).
// Both writes are best effort.
func (p *Pipeline) saveArtifact(ctx context.Context, runID, kind, fileName, body string) {
	if p.journal != nil && runID != "" {
		if err := p.journal.SaveArtifact(ctx, runID, kind, body); err != nil {
			p.log.Debug("failed to journal artifact", zap.String("kind", kind), zap.Error(err))
		}
	}
	if p.opts.ArtifactDir != "" && fileName != "" {
		path := filepath.Join(p.opts.ArtifactDir, fileName)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			p.log.Warn("failed to persist artifact file", zap.String("path", path), zap.Error(err))
		} else {
			p.log.Debug("wrote artifact", zap.String("path", path))
		}
	}
}

func (p *Pipeline) saveRun(ctx context.Context, rec telemetry.RunRecord) {
	if p.journal == nil {
		return
	}
	if err := p.journal.SaveRun(ctx, rec); err != nil {
		p.log.Debug("failed to journal run", zap.Error(err))
	}
}

// String renders a short human summary for CLI output.
func (s Summary) String() string {
	return fmt.Sprintf("run %s model=%s validated=%d dropped=%d",
		s.RunID, s.Model, s.Counts.Validated,
		s.Counts.SanitizedDropped+s.Counts.ValidationDropped)
}
