// Package supabase is the persistence boundary: a thin PostgREST client for
// the hosted Postgres the dashboard reads from. Writes go through
// upsert-by-natural-key so concurrent pipeline runs converge instead of
// duplicating rows.
//
// Every method returns a Result value; storage failures are never allowed to
// escape as errors, because a storage hiccup must not be conflated with a
// pipeline-logic failure.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds connection settings for the hosted store.
type Config struct {
	// URL is the project base URL, e.g. https://xyz.supabase.co.
	URL string
	// ServiceRoleKey authenticates writes. Server-side only.
	ServiceRoleKey string
	Timeout        time.Duration
}

// Result is the outcome of one storage call. Err is empty on success.
type Result struct {
	Data json.RawMessage
	Err  string
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == "" }

// Client talks to the PostgREST endpoint of a Supabase project.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a storage client. A nil logger is replaced with a no-op
// logger.
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		key:        cfg.ServiceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Upsert writes records into table, resolving conflicts on conflictKey.
// Idempotent under repeated delivery of the same records.
func (c *Client) Upsert(ctx context.Context, table string, records any, conflictKey string) Result {
	url := fmt.Sprintf("%s/rest/v1/%s?on_conflict=%s", c.baseURL, table, conflictKey)
	return c.post(ctx, url, records, "resolution=merge-duplicates,return=representation")
}

// Insert appends a single record to table. No conflict key; append-only
// tables (telemetry) use this path.
func (c *Client) Insert(ctx context.Context, table string, record any) Result {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	return c.post(ctx, url, record, "return=representation")
}

func (c *Client) post(ctx context.Context, url string, payload any, prefer string) Result {
	if c.baseURL == "" || c.key == "" {
		return Result{Err: "supabase not configured (missing URL or service role key)"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Prefer", prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("storage request failed", zap.String("url", url), zap.Error(err))
		return Result{Err: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("storage request rejected",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return Result{Err: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	return Result{Data: respBody}
}
