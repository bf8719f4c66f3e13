package agent

import (
	"strings"
	"testing"
)

func TestResearchRequest(t *testing.T) {
	req := ResearchRequest()
	if !req.GoogleSearch {
		t.Error("researcher must run with search grounding")
	}
	if !strings.Contains(req.Prompt, "One URL per line") {
		t.Error("researcher prompt missing output contract")
	}
	if !strings.Contains(req.System, "Researcher") {
		t.Errorf("unexpected system persona: %q", req.System)
	}
}

func TestVerifyRequest_EmbedsURLList(t *testing.T) {
	urls := "https://example.com/a\nhttps://example.com/b\n"
	req := VerifyRequest(urls)

	if !strings.HasSuffix(req.Prompt, "https://example.com/b") {
		t.Errorf("researcher output not appended verbatim:\n%s", req.Prompt)
	}
	for _, field := range []string{"startup_name", "geography", "funding_stage", "amount_raised_usd", "lead_investor", "funding_date", "sub_sector", "source_url"} {
		if !strings.Contains(req.Prompt, field) {
			t.Errorf("verifier prompt missing field %q", field)
		}
	}
	if !strings.Contains(req.Prompt, `{"events": []}`) {
		t.Error("verifier prompt missing empty-result instruction")
	}
}

func TestEnrichRequest_SlugInterpolation(t *testing.T) {
	req := EnrichRequest("aetherflux")
	if n := strings.Count(req.Prompt, "aetherflux"); n != 2 {
		t.Errorf("slug interpolated %d times, want 2", n)
	}
	if !req.GoogleSearch {
		t.Error("enricher must run with search grounding")
	}
}
