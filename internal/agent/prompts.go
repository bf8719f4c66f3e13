// Package agent defines the two pipeline personas and their task prompts.
// The researcher discovers recent funding article URLs with search grounding;
// the verifier turns those articles into strict JSON funding events. Prompts
// are plain data so the orchestration layer decides which model runs them.
package agent

import (
	"fmt"
	"strings"

	"fundwatch/internal/llm"
)

const researcherSystem = `You are an Expert Climate Tech Investment Researcher, a meticulous financial analyst tracking VC activity in the Energy and Grid sector. Your goal is to find and report on the latest funding rounds in the Energy and Grid climate tech sector.`

const researcherPrompt = `Search the web for recent (since Jan 2025) funding news specifically for 'Energy and Grid' climate-tech startups. Focus on terms like: seed, Series A/B, venture capital, round, raised, investment. Prioritize credible outlets such as: TechCrunch, Crunchbase News, VentureBeat, Bloomberg, Reuters, Canary Media, Utility Dive, PV Magazine, PR Newswire. Return only high-quality article URLs that clearly discuss funding events.

TOOL USAGE:
- You MUST use web search to find real, recent URLs.
- Run at least 5 distinct queries (vary keywords like 'seed', 'Series A', 'raised', 'funding round', 'energy grid', 'power grid', 'transmission').
- Do NOT hallucinate or fabricate URLs. If a source is paywalled, pick an alternative credible source.

STRICT OUTPUT RULES:
- Output only full https URLs, no titles or notes.
- One URL per line. No numbering, bullets, or extra text.
- Exclude PDFs, CSVs, sitemaps, SEC filings, podcasts, and social posts.
- Avoid duplicates.
- Return between 8 and 12 URLs when available. If fewer than 8 exist after thorough searching, return as many valid URLs as you found.`

const verifierSystem = `You are a Data Verification and Structuring Specialist, a detail-oriented data analyst turning unstructured text into structured records. Your goal is to verify funding details from URLs and return database-ready JSON.`

const verifierPromptHeader = `For each URL listed below, extract: startup_name, geography, funding_stage, amount_raised_usd, lead_investor, funding_date (YYYY-MM-DD), sub_sector, source_url. If a non-required field is not found, set it to null.

TOOL USAGE:
- Read each article before extracting. If any fields remain unknown, you MAY use web search to cross-check and fill missing details from credible sources.
- Do NOT hallucinate values. Prefer leaving a field null to making up data.

INCLUSION RULES (VERY IMPORTANT):
- ONLY include climate-tech funding events specifically in the Energy/Grid domain (e.g., energy storage, batteries, EV charging, grid modernization, renewables, transmission, smart metering, hydrogen, CCUS).
- EXCLUDE non-climate sectors such as fintech, stock trading/brokerage, payments, crypto, and neobanks (e.g., Robinhood, Coinbase).
- Only include an event if BOTH conditions are met: (1) startup_name is present and non-empty, and (2) source_url is a valid https URL to the article.
- If startup_name is missing/empty OR source_url is missing/invalid, OMIT that event entirely (do not output partial records).
- Normalization: amount_raised_usd must be an integer number of USD (extract digits; no symbols), or null. funding_date must be YYYY-MM-DD or null. Trim whitespace from strings.

CRITICAL OUTPUT RULES:
- Respond with STRICT JSON only, double-quoted keys/strings.
- Do NOT use code fences. Output ONLY a JSON object.
- Do NOT include any prose or explanation before or after the JSON.
- If no valid events can be extracted, return {"events": []}.

The JSON object must have this exact shape:
{
  "events": [
    {
      "startup_name": string,
      "geography": string | null,
      "funding_stage": string | null,
      "amount_raised_usd": integer | null,
      "lead_investor": string | null,
      "funding_date": "YYYY-MM-DD" | null,
      "sub_sector": string | null,
      "source_url": string
    }
  ]
}

URLS TO VERIFY:
`

const enricherSystem = `You are a Company Profile Enricher for a climate funding intelligence platform. You identify a company's official website and extract a concise, factual, brand-safe bio from its About/Overview pages. You prioritize official sources and avoid speculation.`

// ResearchRequest builds the URL-discovery call.
func ResearchRequest() llm.Request {
	return llm.Request{
		System:       researcherSystem,
		Prompt:       researcherPrompt,
		GoogleSearch: true,
	}
}

// VerifyRequest builds the extraction call from the researcher's URL list.
// The raw researcher output is passed through untouched; the verifier is
// instructed to skip anything that is not a usable https URL.
func VerifyRequest(researcherOutput string) llm.Request {
	return llm.Request{
		System:       verifierSystem,
		Prompt:       verifierPromptHeader + strings.TrimSpace(researcherOutput),
		GoogleSearch: true,
	}
}

// EnrichRequest builds the single-company profile enrichment call.
func EnrichRequest(slug string) llm.Request {
	prompt := fmt.Sprintf(`Identify the official website for the company with slug '%s'.
Use web search, then read the company's About/Overview page(s) to extract a concise, factual bio.
Focus on climate/energy relevance. Avoid speculation or promotional fluff. If unsure, return nulls.

OUTPUT STRICTLY AS JSON matching this schema (and nothing else):
{
  "slug": "%s",
  "website_url": string | null,
  "bio": string | null,
  "sources": string[]
}
Rules:
- Prefer the official website; if unavailable return website_url=null.
- Bio must be 1-3 sentences, factual, and brand-safe.
- sources must be fully-qualified https URLs, no duplicates.
- If you cannot find credible info, leave fields null.`, slug, slug)

	return llm.Request{
		System:       enricherSystem,
		Prompt:       prompt,
		GoogleSearch: true,
	}
}
