package sanitize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strp(s string) *string { return &s }
func intp(n int64) *int64   { return &n }

func TestSanitize_ValidAndDropped(t *testing.T) {
	items := []map[string]any{
		{
			"startup_name":      " Aetherflux ",
			"source_url":        "https://example.com/article",
			"amount_raised_usd": "$50,000,000",
			"funding_date":      "2025-04-02",
			"geography":         "  US  ",
			"funding_stage":     nil,
			"lead_investor":     nil,
			"sub_sector":        nil,
		},
		{ // drop: missing startup_name
			"startup_name": "",
			"source_url":   "https://example.com/a",
		},
		{ // drop: non-https URL
			"startup_name": "Foo",
			"source_url":   "http://example.com/a",
		},
		{ // drop: missing URL
			"startup_name": "Bar",
			"source_url":   nil,
		},
		{
			"startup_name":      "Baz",
			"source_url":        "https://example.com/b",
			"amount_raised_usd": "5,000,000",
			"funding_date":      "2025-13-40", // invalid -> nil
			"funding_stage":     "Seed",
			"lead_investor":     "Alpha",
			"sub_sector":        "Energy Storage",
		},
	}

	valid, dropped := Sanitize(items)

	if len(valid) != 2 {
		t.Fatalf("valid = %d, want 2", len(valid))
	}
	if len(dropped) != 3 {
		t.Fatalf("dropped = %d, want 3", len(dropped))
	}

	want0 := Event{
		StartupName:     "Aetherflux",
		SourceURL:       "https://example.com/article",
		AmountRaisedUSD: intp(50000000),
		FundingDate:     strp("2025-04-02"),
		Geography:       strp("US"),
	}
	if diff := cmp.Diff(want0, valid[0]); diff != "" {
		t.Errorf("first event mismatch (-want +got):\n%s", diff)
	}

	want1 := Event{
		StartupName:     "Baz",
		SourceURL:       "https://example.com/b",
		AmountRaisedUSD: intp(5000000),
		FundingStage:    strp("Seed"),
		LeadInvestor:    strp("Alpha"),
		SubSector:       strp("Energy Storage"),
	}
	if diff := cmp.Diff(want1, valid[1]); diff != "" {
		t.Errorf("second event mismatch (-want +got):\n%s", diff)
	}

	reasons := map[string]int{}
	for _, d := range dropped {
		reasons[d.Reason]++
	}
	if reasons[ReasonMissingName] != 1 {
		t.Errorf("missing_startup_name count = %d, want 1", reasons[ReasonMissingName])
	}
	if reasons[ReasonInvalidURL] != 2 {
		t.Errorf("invalid_source_url count = %d, want 2", reasons[ReasonInvalidURL])
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	items := []map[string]any{{
		"startup_name":      "Gridlytics",
		"source_url":        "https://example.com/a",
		"amount_raised_usd": "$5,000,000",
		"funding_date":      "2025-06-01",
		"sub_sector":        "Grid Optimization",
	}}

	first, _ := Sanitize(items)
	if len(first) != 1 {
		t.Fatalf("first pass valid = %d, want 1", len(first))
	}

	// Feed the normalized output back through: nothing should change.
	renormalized := []map[string]any{{
		"startup_name":      first[0].StartupName,
		"source_url":        first[0].SourceURL,
		"amount_raised_usd": float64(*first[0].AmountRaisedUSD),
		"funding_date":      *first[0].FundingDate,
		"sub_sector":        *first[0].SubSector,
	}}
	second, _ := Sanitize(renormalized)
	if len(second) != 1 {
		t.Fatalf("second pass valid = %d, want 1", len(second))
	}
	if diff := cmp.Diff(first[0], second[0]); diff != "" {
		t.Errorf("renormalization changed the event (-first +second):\n%s", diff)
	}
}

func TestParseAmountUSD(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  *int64
	}{
		{"Currency string", "$1,234,567", intp(1234567)},
		{"Plain digits", "5000000", intp(5000000)},
		{"Millions prose", "approx 12 million", intp(12)},
		{"No digits", "N/A", nil},
		{"Nil", nil, nil},
		{"Float", float64(7500000), intp(7500000)},
		{"Negative number", float64(-5), nil},
		{"Empty string", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmountUSD(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseAmountUSD(%v) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseFundingDate(t *testing.T) {
	tests := []struct {
		input any
		want  *string
	}{
		{"2025-06-01", strp("2025-06-01")},
		{"2025-13-40", nil}, // month and day out of range
		{"2025-02-30", nil}, // day out of range for February
		{"June 1, 2025", nil},
		{"2025-6-1", nil}, // not zero-padded
		{nil, nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := ParseFundingDate(tt.input)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseFundingDate(%v) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestRelevance_Policy(t *testing.T) {
	tests := []struct {
		name      string
		startup   string
		subSector *string
		want      bool
	}{
		{"Energy storage accepted", "VoltCell", strp("Energy Storage"), true},
		{"Grid accepted", "Gridlytics", strp("Grid Optimization"), true},
		{"Fintech rejected", "PayFast", strp("Fintech Payments"), false},
		{"Crypto rejected", "ChainCo", strp("Blockchain Infrastructure"), false},
		{"Denylisted brand with plausible sector", "Robinhood", strp("Energy Trading Platform"), false},
		{"Unmatched sector rejected", "Foodly", strp("Restaurant Delivery"), false},
		{"Absent sector accepted by default", "Mystery Co", nil, true},
		{"EV token matches", "ChargeUp", strp("EV charging"), true},
		{"EV does not match inside words", "Evershop", strp("everyday retail devices"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isClimateRelevant(tt.startup, tt.subSector); got != tt.want {
				t.Errorf("isClimateRelevant(%q, %v) = %v, want %v", tt.startup, tt.subSector, got, tt.want)
			}
		})
	}
}

func TestRelevance_StructuralReasonWins(t *testing.T) {
	// Relevance-failing item that is also structurally invalid must report
	// the structural reason.
	items := []map[string]any{{
		"startup_name": "PayFast",
		"source_url":   "http://example.com/a", // insecure
		"sub_sector":   "Fintech",
	}}
	_, dropped := Sanitize(items)
	if len(dropped) != 1 {
		t.Fatalf("dropped = %d, want 1", len(dropped))
	}
	if dropped[0].Reason != ReasonInvalidURL {
		t.Errorf("reason = %q, want %q", dropped[0].Reason, ReasonInvalidURL)
	}
}

func TestRejected_Artifact(t *testing.T) {
	r := Rejected{
		Item:   map[string]any{"startup_name": "X"},
		Reason: ReasonNonClimate,
	}
	art := r.Artifact()
	if art["__reason"] != ReasonNonClimate {
		t.Errorf("__reason = %v, want %q", art["__reason"], ReasonNonClimate)
	}
	if art["startup_name"] != "X" {
		t.Errorf("original fields must be preserved, got %#v", art)
	}
	if _, tagged := r.Item["__reason"]; tagged {
		t.Error("Artifact must not mutate the original item")
	}
}
