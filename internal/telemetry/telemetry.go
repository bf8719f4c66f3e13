// Package telemetry records one immutable outcome row per pipeline run,
// successful or failed. Recording is strictly best-effort: an observer must
// never abort the pipeline it is observing, so persistence failures come
// back as result values and are logged, not raised.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fundwatch/internal/supabase"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Counts carries the per-stage totals of one run.
type Counts struct {
	Raw               int
	SanitizedValid    int
	SanitizedDropped  int
	Validated         int
	ValidationDropped int
}

// RunRecord is one pipeline execution attempt. Immutable once built;
// written exactly once to the telemetry sink.
type RunRecord struct {
	ID                     string  `json:"id"`
	TS                     string  `json:"ts"`
	Model                  string  `json:"model"`
	RawCount               int     `json:"raw_count"`
	SanitizedValidCount    int     `json:"sanitized_valid_count"`
	SanitizedDroppedCount  int     `json:"sanitized_dropped_count"`
	ValidatedCount         int     `json:"validated_count"`
	ValidationDroppedCount int     `json:"validation_dropped_count"`
	DurationMS             int64   `json:"duration_ms"`
	Status                 string  `json:"status"`
	Error                  *string `json:"error"`
}

// BuildRecord constructs a RunRecord, stamping the current UTC time. Pure
// construction; errMsg is recorded only for non-empty values.
func BuildRecord(model string, counts Counts, duration time.Duration, status string, errMsg string) RunRecord {
	rec := RunRecord{
		ID:                     uuid.NewString(),
		TS:                     time.Now().UTC().Format(time.RFC3339),
		Model:                  model,
		RawCount:               counts.Raw,
		SanitizedValidCount:    counts.SanitizedValid,
		SanitizedDroppedCount:  counts.SanitizedDropped,
		ValidatedCount:         counts.Validated,
		ValidationDroppedCount: counts.ValidationDropped,
		DurationMS:             duration.Milliseconds(),
		Status:                 status,
	}
	if errMsg != "" {
		rec.Error = &errMsg
	}
	return rec
}

// Sink is the append-only storage surface telemetry writes to.
type Sink interface {
	Insert(ctx context.Context, table string, record any) supabase.Result
}

// Recorder persists RunRecords to the telemetry table.
type Recorder struct {
	sink  Sink
	table string
	log   *zap.Logger
}

// NewRecorder creates a Recorder writing to the given table.
func NewRecorder(sink Sink, table string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sink: sink, table: table, log: log}
}

// Record inserts the run record. Failures are returned as a Result value
// and logged at warn, never raised.
func (r *Recorder) Record(ctx context.Context, rec RunRecord) supabase.Result {
	res := r.sink.Insert(ctx, r.table, rec)
	if !res.OK() {
		r.log.Warn("telemetry insert failed",
			zap.String("table", r.table),
			zap.String("run_id", rec.ID),
			zap.String("error", res.Err))
		return res
	}
	r.log.Info("telemetry recorded",
		zap.String("table", r.table),
		zap.String("run_id", rec.ID),
		zap.String("status", rec.Status))
	return res
}
