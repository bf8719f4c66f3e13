package orchestrator

import "strings"

// Class buckets an upstream failure for retry handling. The upstream service
// exposes no typed error codes, only human-readable messages, so
// classification is string-pattern-based by necessity. Keeping the keyword
// tables here, in one place, makes the heuristic independently testable.
type Class int

const (
	// ClassUnknown errors are retried up to the budget, then propagated.
	ClassUnknown Class = iota
	// ClassTransient errors are retried, then the next fallback model is
	// tried.
	ClassTransient
	// ClassNonRetryable errors abort the whole orchestration immediately.
	ClassNonRetryable
)

// nonRetryableIndicators mark requests that can never succeed as sent:
// credentials, permissions, malformed requests, unknown models.
var nonRetryableIndicators = []string{
	"invalid api key",
	"api key not valid",
	"permission denied",
	"forbidden",
	"unauthorized",
	"unauthenticated",
	"model not found",
	"unsupported model",
	"invalid model",
	"bad request",
	"invalid argument",
	"malformed",
}

// transientIndicators cover quota pressure and temporary upstream outages.
var transientIndicators = []string{
	"429",
	"rate limit",
	"resource_exhausted",
	"resouce_exhausted", // common upstream typo
	"quota",
	"retryinfo",
	"too many requests",
	"timeout",
	"deadline exceeded",
	"temporarily unavailable",
	"service unavailable",
	"unavailable",
	"overloaded",
	"none or empty",
}

// Classify maps an upstream error message onto a retry class. Non-retryable
// indicators win over transient ones; anything unmatched is ClassUnknown.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, s := range nonRetryableIndicators {
		if strings.Contains(msg, s) {
			return ClassNonRetryable
		}
	}
	for _, s := range transientIndicators {
		if strings.Contains(msg, s) {
			return ClassTransient
		}
	}
	return ClassUnknown
}
