// Package sanitize normalizes raw extracted funding events and enforces the
// required-field and domain-relevance policy. It is the lenient tier of the
// two-tier cleanup: salvage as much signal as possible, record what is
// dropped and why. The strict gate before persistence lives in package
// schema.
package sanitize

import (
	"fmt"
	"strings"
	"time"
)

// Rejection reasons. Closed set; the artifact writer and tests depend on
// these exact strings.
const (
	ReasonMissingName = "missing_startup_name"
	ReasonInvalidURL  = "invalid_source_url"
	ReasonNonClimate  = "non_climate"
)

// Event is a normalized funding event. Optional fields are nil when the raw
// item carried no usable value. String fields are whitespace-trimmed and
// never empty; FundingDate is canonical YYYY-MM-DD.
type Event struct {
	StartupName     string  `json:"startup_name"`
	Geography       *string `json:"geography"`
	FundingStage    *string `json:"funding_stage"`
	AmountRaisedUSD *int64  `json:"amount_raised_usd"`
	LeadInvestor    *string `json:"lead_investor"`
	FundingDate     *string `json:"funding_date"`
	SubSector       *string `json:"sub_sector"`
	SourceURL       string  `json:"source_url"`
}

// Rejected pairs the original raw item with the reason it was dropped.
type Rejected struct {
	Item   map[string]any
	Reason string
}

// Artifact returns the inspection-file form: the original item plus the
// __reason tag.
func (r Rejected) Artifact() map[string]any {
	out := make(map[string]any, len(r.Item)+1)
	for k, v := range r.Item {
		out[k] = v
	}
	out["__reason"] = r.Reason
	return out
}

// Sanitize normalizes each raw item and splits the batch into accepted
// events and rejected items. Pure function: no I/O, no logging.
//
// Checks run in order per item: startup_name presence, source_url scheme,
// then domain relevance. A structurally broken item reports the structural
// reason even when it would also fail the relevance policy.
func Sanitize(items []map[string]any) ([]Event, []Rejected) {
	var valid []Event
	var dropped []Rejected

	for _, item := range items {
		ev := Event{
			Geography:       StringField(item["geography"]),
			FundingStage:    StringField(item["funding_stage"]),
			AmountRaisedUSD: ParseAmountUSD(item["amount_raised_usd"]),
			LeadInvestor:    StringField(item["lead_investor"]),
			FundingDate:     ParseFundingDate(item["funding_date"]),
			SubSector:       StringField(item["sub_sector"]),
		}

		name := StringField(item["startup_name"])
		if name == nil {
			dropped = append(dropped, Rejected{Item: item, Reason: ReasonMissingName})
			continue
		}
		ev.StartupName = *name

		src := StringField(item["source_url"])
		if src == nil || !strings.HasPrefix(strings.ToLower(*src), "https") {
			dropped = append(dropped, Rejected{Item: item, Reason: ReasonInvalidURL})
			continue
		}
		ev.SourceURL = *src

		if !isClimateRelevant(ev.StartupName, ev.SubSector) {
			dropped = append(dropped, Rejected{Item: item, Reason: ReasonNonClimate})
			continue
		}

		valid = append(valid, ev)
	}

	return valid, dropped
}

// StringField coerces a raw value to a trimmed string, nil when empty or
// absent.
func StringField(v any) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return nil
	}
	return &s
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; render integral values without
		// the trailing ".0" so "2024" stays "2024".
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ParseAmountUSD coerces a raw amount to a non-negative integer count of
// dollars. Numbers are truncated to integers; strings keep their digit run
// only ("$5,000,000" -> 5000000). No digits means nil.
func ParseAmountUSD(v any) *int64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		n := int64(val)
		if n < 0 {
			return nil
		}
		return &n
	case int:
		n := int64(val)
		if n < 0 {
			return nil
		}
		return &n
	case int64:
		if val < 0 {
			return nil
		}
		return &val
	default:
		return digitsToAmount(stringify(val))
	}
}

func digitsToAmount(s string) *int64 {
	var n int64
	seen := false
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		seen = true
		if n > (1<<62)/10 {
			// Absurd magnitude; treat as unparseable rather than overflow.
			return nil
		}
		n = n*10 + int64(r-'0')
	}
	if !seen {
		return nil
	}
	return &n
}

// ParseFundingDate accepts only an exact YYYY-MM-DD calendar date. A wrong
// layout or an out-of-range month or day is silently nil at this tier.
func ParseFundingDate(v any) *string {
	raw := StringField(v)
	if raw == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
