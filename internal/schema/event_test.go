package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"fundwatch/internal/sanitize"
)

func strp(s string) *string { return &s }
func intp(n int64) *int64   { return &n }

func TestValidate_CleanEvent(t *testing.T) {
	rec, violations := Validate(sanitize.Event{
		StartupName:     "Gridlytics",
		SourceURL:       "https://example.com/a",
		AmountRaisedUSD: intp(5000000),
		FundingDate:     strp("2025-06-01"),
		SubSector:       strp("Grid Optimization"),
	})
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
	want := Record{
		StartupName:     "Gridlytics",
		SourceURL:       "https://example.com/a",
		AmountRaisedUSD: intp(5000000),
		FundingDate:     strp("2025-06-01"),
		SubSector:       strp("Grid Optimization"),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		event     sanitize.Event
		wantField string
	}{
		{
			name:      "Missing name",
			event:     sanitize.Event{SourceURL: "https://example.com/a"},
			wantField: "startup_name",
		},
		{
			name:      "Whitespace name",
			event:     sanitize.Event{StartupName: "   ", SourceURL: "https://example.com/a"},
			wantField: "startup_name",
		},
		{
			name:      "Missing URL",
			event:     sanitize.Event{StartupName: "Foo"},
			wantField: "source_url",
		},
		{
			name:      "Insecure URL",
			event:     sanitize.Event{StartupName: "Foo", SourceURL: "http://example.com/a"},
			wantField: "source_url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, violations := Validate(tt.event)
			if len(violations) == 0 {
				t.Fatal("expected violations, got none")
			}
			found := false
			for _, v := range violations {
				if v.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("violations %v missing field %q", violations, tt.wantField)
			}
		})
	}
}

func TestValidate_StrictDate(t *testing.T) {
	// The sanitizer nulls a bad date; the validator must reject it.
	_, violations := Validate(sanitize.Event{
		StartupName: "Foo",
		SourceURL:   "https://example.com/a",
		FundingDate: strp("2025-13-40"),
	})
	if len(violations) != 1 || violations[0].Field != "funding_date" {
		t.Fatalf("violations = %v, want single funding_date violation", violations)
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	_, violations := Validate(sanitize.Event{
		FundingDate:     strp("not-a-date"),
		AmountRaisedUSD: intp(-1),
	})
	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"startup_name", "source_url", "funding_date", "amount_raised_usd"} {
		if !fields[f] {
			t.Errorf("expected violation for %q, got %v", f, violations)
		}
	}
}

func TestValidateRaw_DefensiveCoercion(t *testing.T) {
	rec, violations := ValidateRaw(map[string]any{
		"startup_name":      "  VoltCell  ",
		"source_url":        "https://example.com/v",
		"amount_raised_usd": "$12,500,000",
		"funding_date":      "2025-01-31",
		"geography":         "   ",
	})
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
	if rec.StartupName != "VoltCell" {
		t.Errorf("StartupName = %q, want trimmed value", rec.StartupName)
	}
	if rec.AmountRaisedUSD == nil || *rec.AmountRaisedUSD != 12500000 {
		t.Errorf("AmountRaisedUSD = %v, want 12500000", rec.AmountRaisedUSD)
	}
	if rec.Geography != nil {
		t.Errorf("blank geography should be nil, got %q", *rec.Geography)
	}
}

func TestValidateRaw_MalformedDateIsHardError(t *testing.T) {
	_, violations := ValidateRaw(map[string]any{
		"startup_name": "Foo",
		"source_url":   "https://example.com/a",
		"funding_date": "June 2025",
	})
	if len(violations) != 1 || violations[0].Field != "funding_date" {
		t.Fatalf("violations = %v, want single funding_date violation", violations)
	}
}
