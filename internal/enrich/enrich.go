// Package enrich fills in a company profile: official website, a short
// factual bio, and the sources consulted. One enrichment touches exactly one
// company row, keyed by slug.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"fundwatch/internal/agent"
	"fundwatch/internal/extract"
	"fundwatch/internal/llm"
	"fundwatch/internal/orchestrator"
	"fundwatch/internal/sanitize"
	"fundwatch/internal/seed"
	"fundwatch/internal/supabase"
)

// Bios are capped to keep profiles scannable; truncation lands on a word
// boundary with an ellipsis.
const maxBioLen = 800

// Profile is the parsed agent output for one company.
type Profile struct {
	Slug       string
	WebsiteURL string
	Bio        string
	Sources    []string
}

// Record is the upsert wire shape. Empty optional fields stay off the wire
// so they never overwrite existing values.
type Record struct {
	Slug           string   `json:"slug"`
	Website        string   `json:"website,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Sources        []string `json:"sources,omitempty"`
	LastEnrichedAt string   `json:"last_enriched_at,omitempty"`
	UpdatedAt      string   `json:"updated_at"`
}

// Enricher runs the profile agent and persists the result.
type Enricher struct {
	llm    llm.Client
	sink   seed.Sink
	runner *orchestrator.Runner
	models []string
	table  string
	log    *zap.Logger
	now    func() time.Time
}

// New creates an Enricher writing to the given companies table.
func New(client llm.Client, sink seed.Sink, models []string, cfg orchestrator.Config, table string, log *zap.Logger) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{
		llm:    client,
		sink:   sink,
		runner: orchestrator.New(cfg, log),
		models: models,
		table:  table,
		log:    log,
		now:    time.Now,
	}
}

// Run enriches one company by slug. Agent failures surface as errors; an
// agent answer with all-null fields still upserts the updated_at touch.
func (e *Enricher) Run(ctx context.Context, slug string) (Profile, supabase.Result, error) {
	if seed.Slugify(slug) != slug || slug == "" {
		return Profile{}, supabase.Result{}, fmt.Errorf("invalid slug %q", slug)
	}

	text, model, err := e.runner.Run(ctx, e.models, func(ctx context.Context, model string) (string, error) {
		return e.llm.Generate(ctx, model, agent.EnrichRequest(slug))
	})
	if err != nil {
		return Profile{}, supabase.Result{}, err
	}
	e.log.Info("enrichment result received",
		zap.String("slug", slug),
		zap.String("model", model),
		zap.Int("chars", len(text)))

	profile := ParseProfile(slug, text)
	res := e.upsert(ctx, profile)
	return profile, res, nil
}

// ParseProfile pulls the profile fields out of the raw agent text. Parse
// failures and field mismatches degrade to an empty profile for the slug.
func ParseProfile(slug, text string) Profile {
	p := Profile{Slug: slug}

	payload, err := extract.Extract(text)
	if err != nil {
		return p
	}
	if w := sanitize.StringField(payload["website_url"]); w != nil && strings.HasPrefix(strings.ToLower(*w), "http") {
		p.WebsiteURL = *w
	}
	if b := sanitize.StringField(payload["bio"]); b != nil {
		p.Bio = SanitizeBio(*b)
	}
	if arr, ok := payload["sources"].([]any); ok {
		seen := make(map[string]bool)
		for _, v := range arr {
			s := sanitize.StringField(v)
			if s == nil || !strings.HasPrefix(strings.ToLower(*s), "https") || seen[*s] {
				continue
			}
			seen[*s] = true
			p.Sources = append(p.Sources, *s)
		}
	}
	return p
}

var (
	brTagRe   = regexp.MustCompile(`(?i)<\s*br\s*/?\s*>`)
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
	wsRunRe   = regexp.MustCompile(`\s+`)
)

// StripHTML flattens markup into plain text.
func StripHTML(text string) string {
	text = brTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = wsRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SanitizeBio strips markup and enforces the length cap. The cut lands on a
// rune boundary and then backs up to the last word break when one exists.
func SanitizeBio(bio string) string {
	bio = StripHTML(bio)
	if len(bio) > maxBioLen {
		cut := bio[:maxBioLen]
		for len(cut) > 0 && !utf8.RuneStart(bio[len(cut)]) {
			cut = cut[:len(cut)-1]
		}
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		bio = strings.TrimSpace(cut) + "…"
	}
	return bio
}

func (e *Enricher) upsert(ctx context.Context, p Profile) supabase.Result {
	now := e.now().UTC().Format(time.RFC3339)
	rec := Record{
		Slug:      p.Slug,
		Website:   p.WebsiteURL,
		Sources:   p.Sources,
		UpdatedAt: now,
	}
	if p.Bio != "" {
		rec.Bio = p.Bio
		rec.LastEnrichedAt = now
	}

	res := e.sink.Upsert(ctx, e.table, rec, seed.ConflictKey)
	if res.OK() {
		e.log.Info("company profile upserted",
			zap.String("slug", p.Slug),
			zap.Bool("has_bio", p.Bio != ""),
			zap.Bool("has_website", p.WebsiteURL != ""))
	} else {
		e.log.Error("company profile upsert failed",
			zap.String("slug", p.Slug),
			zap.String("error", res.Err))
	}
	return res
}
