// Package schema is the strict gate before persistence. The sanitizer is
// deliberately lenient (salvage signal, null out what it cannot read); this
// package re-validates every field and refuses anything ambiguous. A record
// that passes here is safe to upsert as-is.
package schema

import (
	"fmt"
	"strings"
	"time"

	"fundwatch/internal/sanitize"
)

// Violation describes a single field-level schema failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Record is a funding event that passed strict validation; the only type
// handed to persistence. FundingDate, when set, is a verified calendar date
// re-serialized as YYYY-MM-DD.
type Record struct {
	StartupName     string  `json:"startup_name"`
	Geography       *string `json:"geography"`
	FundingStage    *string `json:"funding_stage"`
	AmountRaisedUSD *int64  `json:"amount_raised_usd"`
	LeadInvestor    *string `json:"lead_investor"`
	FundingDate     *string `json:"funding_date"`
	SubSector       *string `json:"sub_sector"`
	SourceURL       string  `json:"source_url"`
}

// ConflictKey is the natural uniqueness key for funding-event upserts.
const ConflictKey = "source_url"

// Validate checks a normalized event against the storage schema. All
// violations are collected, not fail-fast; the record is usable only when
// the returned slice is empty.
//
// Unlike the sanitizer, a malformed funding_date here is a hard violation:
// by the time data reaches this gate, silently nulling a field would hide
// corruption rather than tolerate noise.
func Validate(e sanitize.Event) (Record, []Violation) {
	var violations []Violation

	rec := Record{
		Geography:    trimOptional(e.Geography),
		FundingStage: trimOptional(e.FundingStage),
		LeadInvestor: trimOptional(e.LeadInvestor),
		SubSector:    trimOptional(e.SubSector),
	}

	name := strings.TrimSpace(e.StartupName)
	if name == "" {
		violations = append(violations, Violation{Field: "startup_name", Message: "startup_name is required"})
	}
	rec.StartupName = name

	src := strings.TrimSpace(e.SourceURL)
	if src == "" || !strings.HasPrefix(strings.ToLower(src), "https") {
		violations = append(violations, Violation{Field: "source_url", Message: "source_url must be an https URL"})
	}
	rec.SourceURL = src

	if e.AmountRaisedUSD != nil {
		if *e.AmountRaisedUSD < 0 {
			violations = append(violations, Violation{Field: "amount_raised_usd", Message: "must be a non-negative integer"})
		} else {
			rec.AmountRaisedUSD = e.AmountRaisedUSD
		}
	}

	if e.FundingDate != nil {
		t, err := time.Parse("2006-01-02", strings.TrimSpace(*e.FundingDate))
		if err != nil {
			violations = append(violations, Violation{Field: "funding_date", Message: "funding_date must be YYYY-MM-DD"})
		} else {
			s := t.Format("2006-01-02")
			rec.FundingDate = &s
		}
	}

	return rec, violations
}

// ValidateRaw validates an independently-sourced raw item, applying the same
// field coercions the sanitizer uses (amount digit-extraction, string
// trimming) before the strict checks. Date strings are passed through
// verbatim so malformed values surface as violations instead of being
// silently nulled.
func ValidateRaw(item map[string]any) (Record, []Violation) {
	ev := sanitize.Event{
		Geography:       sanitize.StringField(item["geography"]),
		FundingStage:    sanitize.StringField(item["funding_stage"]),
		AmountRaisedUSD: sanitize.ParseAmountUSD(item["amount_raised_usd"]),
		LeadInvestor:    sanitize.StringField(item["lead_investor"]),
		FundingDate:     sanitize.StringField(item["funding_date"]),
		SubSector:       sanitize.StringField(item["sub_sector"]),
	}
	if name := sanitize.StringField(item["startup_name"]); name != nil {
		ev.StartupName = *name
	}
	if src := sanitize.StringField(item["source_url"]); src != nil {
		ev.SourceURL = *src
	}
	return Validate(ev)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
