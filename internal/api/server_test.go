package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// newTestServer starts an httptest server over a fresh database.
func newTestServer(t *testing.T, authToken string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "memory.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := NewServer(st, logger, authToken, time.Hour)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// doRequest sends a request with optional bearer token and X-User-ID header.
func doRequest(t *testing.T, method, url string, body io.Reader, token, user string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	ts := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "", "")
	var out map[string]string
	decodeBody(t, resp, &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
}

func TestAuth_RejectsMissingAndWrongToken(t *testing.T) {
	ts := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/graph", nil, "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/graph", nil, "wrong", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/graph", nil, "secret", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEntities_CreateAndReadGraph(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/entities", jsonBody(t, map[string]any{
		"entities": []models.EntityInput{
			{Name: "Go", EntityType: "language", Observations: []string{"compiled"}},
		},
	}), "", "alice")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/graph", nil, "", "alice")
	var kg models.KnowledgeGraph
	decodeBody(t, resp, &kg)

	require.Len(t, kg.Entities, 1)
	assert.Equal(t, "Go", kg.Entities[0].Name)
	assert.Equal(t, []string{"compiled"}, kg.Entities[0].Observations)
}

func TestEntities_EmptyBatchRejected(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/entities", jsonBody(t, map[string]any{
		"entities": []models.EntityInput{},
	}), "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTenantHeader_IsolatesGraphs(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/entities", jsonBody(t, map[string]any{
		"entities": []models.EntityInput{{Name: "Secret"}},
	}), "", "alice")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// No header falls back to the default tenant, which sees nothing.
	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/graph", nil, "", "")
	var kg models.KnowledgeGraph
	decodeBody(t, resp, &kg)
	assert.Empty(t, kg.Entities)
}

func TestSearch_RequiresQuery(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/search", jsonBody(t, map[string]any{
		"query": "",
	}), "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch_ReturnsMatches(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/entities", jsonBody(t, map[string]any{
		"entities": []models.EntityInput{
			{Name: "Go", Observations: []string{"compiled"}},
			{Name: "Haskell", Observations: []string{"functional"}},
		},
	}), "", "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/search", jsonBody(t, map[string]any{
		"query": "go",
	}), "", "")
	var out struct {
		Entities []models.Entity `json:"entities"`
	}
	decodeBody(t, resp, &out)

	require.Len(t, out.Entities, 1)
	assert.Equal(t, "Go", out.Entities[0].Name)
}

func TestSummary_Endpoints(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/summary", nil, "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, ts.URL+"/v1/summary", jsonBody(t, map[string]any{
		"summary": "short",
	}), "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, ts.URL+"/v1/summary", jsonBody(t, map[string]any{
		"summary": "The user is learning about knowledge graphs.",
	}), "", "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/summary", nil, "", "")
	var summary models.Summary
	decodeBody(t, resp, &summary)
	assert.Equal(t, "The user is learning about knowledge graphs.", summary.Summary)
	assert.False(t, summary.IsStale)
}

func TestMessages_RoundTrip(t *testing.T) {
	ts := newTestServer(t, "")

	ttl := int64(3600)
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/messages", jsonBody(t, map[string]any{
		"role":        "user",
		"content":     "hello there",
		"ttl_seconds": ttl,
	}), "", "alice")
	var msg models.ConversationMessage
	decodeBody(t, resp, &msg)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Hour, msg.ExpiresAt.Sub(msg.CreatedAt))

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/messages?limit=5", nil, "", "alice")
	var out struct {
		Messages []models.ConversationMessage `json:"messages"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "hello there", out.Messages[0].Content)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/v1/messages", nil, "", "alice")
	var cleared map[string]int64
	decodeBody(t, resp, &cleared)
	assert.Equal(t, int64(1), cleared["removed"])
}

func TestMessages_NegativeTTLFallsBackToDefault(t *testing.T) {
	ts := newTestServer(t, "") // server default TTL is one hour

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/messages", jsonBody(t, map[string]any{
		"role":        "user",
		"content":     "still alive",
		"ttl_seconds": -5,
	}), "", "alice")
	var msg models.ConversationMessage
	decodeBody(t, resp, &msg)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Hour, msg.ExpiresAt.Sub(msg.CreatedAt))

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/messages", nil, "", "alice")
	var out struct {
		Messages []models.ConversationMessage `json:"messages"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.Messages, 1)
}

func TestMessages_InvalidRoleRejected(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/messages", jsonBody(t, map[string]any{
		"role":    "system",
		"content": "nope",
	}), "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetHistory_BadLimitRejected(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/messages?limit=abc", nil, "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats_Endpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/entities", jsonBody(t, map[string]any{
		"entities": []models.EntityInput{{Name: "Go", Observations: []string{"compiled"}}},
	}), "", "alice")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/stats", nil, "", "alice")
	var stats models.GraphStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, 1, stats.EntityCount)
	assert.Equal(t, 1, stats.ObservationCount)
}
