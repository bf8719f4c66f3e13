// Package orchestrator drives one upstream agent invocation with bounded
// retries, exponential backoff, and ordered fallback across model
// identifiers. Hosted generation services fail often under load; the runner
// trades result consistency for availability by falling through the model
// list, while non-retryable classification keeps a doomed request from
// burning the whole retry budget.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrAllModelsExhausted reports that every fallback model failed via the
// transient path.
var ErrAllModelsExhausted = errors.New("all fallback models exhausted")

type exhaustedError struct {
	last error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("all fallback models exhausted, last error: %v", e.last)
}

func (e *exhaustedError) Is(target error) bool { return target == ErrAllModelsExhausted }

func (e *exhaustedError) Unwrap() error { return e.last }

// InvokeFunc performs one synchronous agent call against a model identifier
// and returns its free-form text output.
type InvokeFunc func(ctx context.Context, model string) (string, error)

// Config bounds the retry behavior. Values are read once at construction,
// never ambiently inside the loop.
type Config struct {
	// MaxRetries is the number of retries per model after the first attempt.
	MaxRetries int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
}

// DefaultConfig mirrors the envs the pipeline historically ran with.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  30 * time.Second,
	}
}

// Runner executes agent calls with resilience. One Runner serves one
// pipeline run; retries and fallback attempts are strictly serialized.
type Runner struct {
	cfg Config
	log *zap.Logger

	// Injection points for tests.
	sleep  func(time.Duration)
	jitter func() float64
}

// New creates a Runner. A nil logger is replaced with a no-op logger.
func New(cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		log:    log,
		sleep:  time.Sleep,
		jitter: rand.Float64,
	}
}

// Run tries each model in order until one invocation succeeds. It returns
// the raw output text and the model that produced it.
//
// Failure handling per model:
//   - non-retryable: propagate immediately, no further models
//   - transient: backoff and retry; once the per-model budget is spent,
//     advance to the next model with a fresh attempt counter
//   - unknown: retry up to the budget, then propagate rather than advance
func (r *Runner) Run(ctx context.Context, models []string, invoke InvokeFunc) (string, string, error) {
	if len(models) == 0 {
		return "", "", errors.New("no model candidates configured")
	}

	var lastErr error
	for _, model := range models {
		for attempt := 0; ; attempt++ {
			out, err := invoke(ctx, model)
			if err == nil {
				return out, model, nil
			}
			lastErr = err

			class := Classify(err)
			if class == ClassNonRetryable {
				r.log.Error("non-retryable upstream error",
					zap.String("model", model),
					zap.Error(err))
				return "", model, fmt.Errorf("model %s: %w", model, err)
			}

			if attempt >= r.cfg.MaxRetries {
				if class == ClassTransient {
					r.log.Warn("model exhausted on transient errors, advancing to next candidate",
						zap.String("model", model),
						zap.Int("attempts", attempt+1),
						zap.Error(err))
					break
				}
				// Unknown error out of budget: surface it instead of
				// masking it behind a different model's output.
				return "", model, fmt.Errorf("model %s: %w", model, err)
			}

			wait := r.backoff(err, attempt)
			r.log.Warn("retrying upstream call",
				zap.String("model", model),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", r.cfg.MaxRetries),
				zap.Duration("wait", wait),
				zap.Error(err))
			r.sleep(wait)
		}
	}

	return "", "", &exhaustedError{last: lastErr}
}

var retryDelayRe = regexp.MustCompile(`(?i)"retryDelay"\s*:\s*"(\d+)s"`)

// backoff computes the wait before the next attempt: a server-suggested
// retryDelay extracted from the error text when present, else exponential
// from the base delay, scaled by uniform jitter in [0.5, 1.5) and floored
// to whole seconds.
func (r *Runner) backoff(err error, attempt int) time.Duration {
	base := r.cfg.BaseDelay * (1 << attempt)
	if m := retryDelayRe.FindStringSubmatch(err.Error()); m != nil {
		if secs, perr := strconv.Atoi(m[1]); perr == nil {
			base = time.Duration(secs) * time.Second
		}
	}
	scaled := float64(base) * (0.5 + r.jitter())
	return time.Duration(int(time.Duration(scaled).Seconds())) * time.Second
}
