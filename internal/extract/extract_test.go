package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestExtract_Strategies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		// first startup_name inside the events array, or "" when the
		// result is expected to carry an empty events list
		wantFirst string
	}{
		{
			name:      "Direct object",
			input:     `{"events": [{"startup_name": "A"}]}`,
			wantFirst: "A",
		},
		{
			name:      "Direct array wraps to events",
			input:     `[{"startup_name": "A"}]`,
			wantFirst: "A",
		},
		{
			name:      "Tagged fence",
			input:     "Here is the result:\n```json\n{\"events\": [{\"startup_name\": \"B\"}]}\n```\n",
			wantFirst: "B",
		},
		{
			name:      "Untagged fence",
			input:     "```\n{\"events\": [{\"startup_name\": \"B\"}]}\n```",
			wantFirst: "B",
		},
		{
			name:      "Prose around object",
			input:     "Noise {\"events\":[{\"startup_name\":\"C\"}]} after",
			wantFirst: "C",
		},
		{
			name:      "Broken fragment before keyed object",
			input:     "{ not json } text {\"events\": [{\"startup_name\": \"D\"}]} trailing",
			wantFirst: "D",
		},
		{
			name:      "Brace inside string value",
			input:     `Result: {"events": [{"startup_name": "E{corp}"}]} done`,
			wantFirst: "E{corp}",
		},
		{
			name:      "Empty events",
			input:     `{"events": []}`,
			wantFirst: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			events, ok := got[EventsKey].([]any)
			if !ok {
				t.Fatalf("Extract() result has no events array: %#v", got)
			}
			if tt.wantFirst == "" {
				if len(events) != 0 {
					t.Errorf("expected empty events, got %d", len(events))
				}
				return
			}
			first, ok := events[0].(map[string]any)
			if !ok {
				t.Fatalf("first event is not an object: %#v", events[0])
			}
			if name := first["startup_name"]; name != tt.wantFirst {
				t.Errorf("startup_name = %v, want %q", name, tt.wantFirst)
			}
		})
	}
}

func TestExtract_FencePreferredOverGreedy(t *testing.T) {
	// The fenced block is well-formed; the surrounding braces are not.
	input := "{ invalid outer\n```json\n{\"events\": [{\"startup_name\": \"F\"}]}\n```\nmore }"
	got, err := Extract(input)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	events := got[EventsKey].([]any)
	if events[0].(map[string]any)["startup_name"] != "F" {
		t.Errorf("fenced block should win, got %#v", got)
	}
}

func TestExtract_Failures(t *testing.T) {
	inputs := []string{
		"",
		"no json here at all",
		"{ broken : json",
		`"just a string"`,
		"42",
		"null",
	}
	for _, input := range inputs {
		if _, err := Extract(input); !errors.Is(err, ErrExtractionFailed) {
			t.Errorf("Extract(%q) error = %v, want ErrExtractionFailed", input, err)
		}
	}
}

func TestExtract_ScalarThenObject(t *testing.T) {
	// A scalar in an early strategy must not end extraction; the keyed
	// object later in the text should still be found.
	input := "```json\n\"not an object\"\n```\nbut later {\"events\": []} appears"
	got, err := Extract(input)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if _, ok := got[EventsKey]; !ok {
		t.Errorf("expected events key, got %#v", got)
	}
}

func TestBalancedSpan_DeepNesting(t *testing.T) {
	depth := 200
	input := strings.Repeat(`{"a":`, depth) + "1" + strings.Repeat("}", depth)
	span, ok := balancedSpan(input, 0)
	if !ok {
		t.Fatal("balancedSpan failed on deeply nested input")
	}
	if span != input {
		t.Errorf("span length = %d, want %d", len(span), len(input))
	}
}

func TestBalancedSpan_Unterminated(t *testing.T) {
	if _, ok := balancedSpan(`{"a": {"b": 1}`, 0); ok {
		t.Error("unterminated object should not produce a span")
	}
}
