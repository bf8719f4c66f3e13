package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		URL:            srv.URL,
		ServiceRoleKey: "test-key",
		Timeout:        2 * time.Second,
	}, zap.NewNop())
}

func TestUpsert_SendsConflictKeyAndHeaders(t *testing.T) {
	var gotPath, gotQuery, gotPrefer, gotAuth string
	var gotBody []map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotPrefer = r.Header.Get("Prefer")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"source_url":"https://example.com/a"}]`))
	})

	records := []map[string]any{{"startup_name": "A", "source_url": "https://example.com/a"}}
	res := c.Upsert(context.Background(), "funding_events", records, "source_url")

	require.True(t, res.OK(), "unexpected error: %s", res.Err)
	assert.Equal(t, "/rest/v1/funding_events", gotPath)
	assert.Equal(t, "on_conflict=source_url", gotQuery)
	assert.Contains(t, gotPrefer, "resolution=merge-duplicates")
	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotBody, 1)
	assert.Equal(t, "A", gotBody[0]["startup_name"])
}

func TestInsert_AppendOnly(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{}]`))
	})

	res := c.Insert(context.Background(), "pipeline_runs", map[string]any{"status": "ok"})
	require.True(t, res.OK())
	assert.Empty(t, gotQuery, "insert must not carry a conflict key")
}

func TestPost_ErrorsBecomeResultValues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied for table"}`, http.StatusForbidden)
	})

	res := c.Upsert(context.Background(), "funding_events", []map[string]any{{}}, "source_url")
	assert.False(t, res.OK())
	assert.Contains(t, res.Err, "403")
	assert.Contains(t, res.Err, "permission denied")
}

func TestPost_MissingConfig(t *testing.T) {
	c := New(Config{}, nil)
	res := c.Insert(context.Background(), "pipeline_runs", map[string]any{})
	assert.False(t, res.OK())
	assert.Contains(t, res.Err, "not configured")
}
