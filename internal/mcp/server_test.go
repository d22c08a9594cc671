package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "memory.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewServer(st, logger, time.Hour)
}

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(toolName string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	return req
}

// textContent extracts the first TextContent string from a CallToolResult.
func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content item")
	tc, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func TestCreateEntities_ThenReadGraph(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateEntities(ctx, makeReq("create_entities", map[string]any{
		"entities": []map[string]any{
			{"name": "Go", "entityType": "language", "observations": []string{"compiled"}},
		},
		"user_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	result, err = srv.handleReadGraph(ctx, makeReq("read_graph", map[string]any{
		"user_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var kg models.KnowledgeGraph
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &kg))
	require.Len(t, kg.Entities, 1)
	assert.Equal(t, "Go", kg.Entities[0].Name)
	assert.Equal(t, "language", kg.Entities[0].EntityType)
}

func TestCreateEntities_EmptyBatchIsError(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleCreateEntities(context.Background(), makeReq("create_entities", map[string]any{
		"entities": []map[string]any{},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestToolCalls_DefaultTenant(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	// No user_id falls back to the default tenant.
	result, err := srv.handleCreateEntities(ctx, makeReq("create_entities", map[string]any{
		"entities": []map[string]any{{"name": "Widget"}},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	result, err = srv.handleReadGraph(ctx, makeReq("read_graph", map[string]any{
		"user_id": DefaultUserID,
	}))
	require.NoError(t, err)

	var kg models.KnowledgeGraph
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &kg))
	assert.Len(t, kg.Entities, 1)
}

func TestSearchNodes_RequiresQuery(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleSearchNodes(context.Background(), makeReq("search_nodes", map[string]any{
		"query": "   ",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSaveSummary_TooShortSurfacesError(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleSaveSummary(context.Background(), makeReq("save_summary", map[string]any{
		"summary": "short",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetSummary_NoneSavedReturnsNull(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleGetSummary(context.Background(), makeReq("get_summary", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.Nil(t, out["summary"])
}

func TestAddMessage_InvalidRole(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleAddMessage(context.Background(), makeReq("add_message", map[string]any{
		"role":    "system",
		"content": "nope",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMessages_AddListClear(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleAddMessage(ctx, makeReq("add_message", map[string]any{
		"role":    "user",
		"content": "hello",
		"user_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	result, err = srv.handleGetHistory(ctx, makeReq("get_history", map[string]any{
		"user_id": "alice",
	}))
	require.NoError(t, err)

	var out struct {
		Messages []models.ConversationMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "hello", out.Messages[0].Content)

	result, err = srv.handleClearHistory(ctx, makeReq("clear_history", map[string]any{
		"user_id": "alice",
	}))
	require.NoError(t, err)

	var cleared map[string]int64
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &cleared))
	assert.Equal(t, int64(1), cleared["removed"])
}

func TestNilStore_ToolCallsReturnErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(nil, logger, time.Hour)

	result, err := srv.handleReadGraph(context.Background(), makeReq("read_graph", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
