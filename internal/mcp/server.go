// Package mcp implements the Model Context Protocol server for iris-memory.
// It exposes the knowledge-graph and conversation-log operations as tools an
// agent orchestrator can call over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/irislabs/iris-memory/internal/conversation"
	"github.com/irislabs/iris-memory/internal/graph"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// DefaultUserID is the tenant used when a tool call omits user_id.
const DefaultUserID = "default"

// Server wraps an MCPServer with iris-memory dependencies.
type Server struct {
	mcp        *mcpserver.MCPServer
	store      *store.Store
	logger     *slog.Logger
	defaultTTL time.Duration
}

// NewServer creates a new MCP server over the given store. If st is nil,
// tool calls return an error response instead of panicking.
func NewServer(st *store.Store, logger *slog.Logger, defaultTTL time.Duration) *Server {
	if defaultTTL <= 0 {
		defaultTTL = conversation.DefaultTTL
	}
	s := &Server{
		store:      st,
		logger:     logger,
		defaultTTL: defaultTTL,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"iris-memory",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildCreateEntitiesTool(), s.handleCreateEntities)
	mcpSrv.AddTool(buildDeleteEntitiesTool(), s.handleDeleteEntities)
	mcpSrv.AddTool(buildAddObservationsTool(), s.handleAddObservations)
	mcpSrv.AddTool(buildDeleteObservationsTool(), s.handleDeleteObservations)
	mcpSrv.AddTool(buildCreateRelationsTool(), s.handleCreateRelations)
	mcpSrv.AddTool(buildDeleteRelationsTool(), s.handleDeleteRelations)
	mcpSrv.AddTool(buildReadGraphTool(), s.handleReadGraph)
	mcpSrv.AddTool(buildOpenNodesTool(), s.handleOpenNodes)
	mcpSrv.AddTool(buildSearchNodesTool(), s.handleSearchNodes)
	mcpSrv.AddTool(buildGetSummaryTool(), s.handleGetSummary)
	mcpSrv.AddTool(buildSaveSummaryTool(), s.handleSaveSummary)
	mcpSrv.AddTool(buildGetUserEditsTool(), s.handleGetUserEdits)
	mcpSrv.AddTool(buildAddMessageTool(), s.handleAddMessage)
	mcpSrv.AddTool(buildGetHistoryTool(), s.handleGetHistory)
	mcpSrv.AddTool(buildClearHistoryTool(), s.handleClearHistory)
	mcpSrv.AddTool(buildCleanupExpiredTool(), s.handleCleanupExpired)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// --- helpers ---

// graphManager builds a tenant-scoped graph manager from the request's user_id.
func (s *Server) graphManager(req mcpgo.CallToolRequest) *graph.Manager {
	return graph.NewManager(s.store, requestUserID(req), s.logger)
}

// conversationManager builds a tenant-scoped conversation manager.
func (s *Server) conversationManager(req mcpgo.CallToolRequest) *conversation.Manager {
	return conversation.NewManager(s.store, requestUserID(req), s.logger)
}

func requestUserID(req mcpgo.CallToolRequest) string {
	id := strings.TrimSpace(req.GetString("user_id", DefaultUserID))
	if id == "" {
		return DefaultUserID
	}
	return id
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// userIDProperty is the tenant selector every tool accepts.
func userIDProperty() mcpgo.ToolOption {
	return mcpgo.WithString("user_id",
		mcpgo.Description("Tenant id scoping the operation (default: \"default\")"),
	)
}

// --- tool definitions ---

func buildCreateEntitiesTool() mcpgo.Tool {
	return mcpgo.NewTool("create_entities",
		mcpgo.WithDescription("Create entities in the knowledge graph with optional observations. Existing names (any casing) are reused; duplicate observations are skipped. Returns only what was actually added."),
		mcpgo.WithArray("entities",
			mcpgo.Required(),
			mcpgo.Description("Entities to create"),
			mcpgo.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":         map[string]any{"type": "string"},
					"entityType":   map[string]any{"type": "string"},
					"observations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"name"},
			}),
		),
		mcpgo.WithBoolean("isUserEdit",
			mcpgo.Description("Tag inserted observations as user-requested edits (default: false)"),
		),
		userIDProperty(),
	)
}

func buildDeleteEntitiesTool() mcpgo.Tool {
	return mcpgo.NewTool("delete_entities",
		mcpgo.WithDescription("Delete entities by name (case-insensitive). Cascades to their observations and to relations touching them on either side."),
		mcpgo.WithArray("names",
			mcpgo.Required(),
			mcpgo.Description("Entity names to delete"),
			mcpgo.Items(map[string]any{"type": "string"}),
		),
		userIDProperty(),
	)
}

func buildAddObservationsTool() mcpgo.Tool {
	return mcpgo.NewTool("add_observations",
		mcpgo.WithDescription("Add observations to existing entities. Unknown entities are reported per item without aborting the batch; duplicates are skipped."),
		mcpgo.WithArray("observations",
			mcpgo.Required(),
			mcpgo.Description("Observations to add, grouped by entity"),
			mcpgo.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"entityName": map[string]any{"type": "string"},
					"contents":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"entityName", "contents"},
			}),
		),
		mcpgo.WithBoolean("isUserEdit",
			mcpgo.Description("Tag inserted observations as user-requested edits (default: false)"),
		),
		userIDProperty(),
	)
}

func buildDeleteObservationsTool() mcpgo.Tool {
	return mcpgo.NewTool("delete_observations",
		mcpgo.WithDescription("Delete specific observations from entities (case-insensitive exact text match). Reports only rows actually removed."),
		mcpgo.WithArray("deletions",
			mcpgo.Required(),
			mcpgo.Description("Observations to delete, grouped by entity"),
			mcpgo.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"entityName":   map[string]any{"type": "string"},
					"observations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"entityName", "observations"},
			}),
		),
		userIDProperty(),
	)
}

func relationItems() mcpgo.PropertyOption {
	return mcpgo.Items(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"from":         map[string]any{"type": "string"},
			"to":           map[string]any{"type": "string"},
			"relationType": map[string]any{"type": "string"},
		},
		"required": []string{"from", "to", "relationType"},
	})
}

func buildCreateRelationsTool() mcpgo.Tool {
	return mcpgo.NewTool("create_relations",
		mcpgo.WithDescription("Create directed typed relations between entities, addressed by name. Duplicate triples (case-insensitive) are silently skipped."),
		mcpgo.WithArray("relations",
			mcpgo.Required(),
			mcpgo.Description("Relations to create"),
			relationItems(),
		),
		userIDProperty(),
	)
}

func buildDeleteRelationsTool() mcpgo.Tool {
	return mcpgo.NewTool("delete_relations",
		mcpgo.WithDescription("Delete relations by exact case-insensitive (from, to, relationType) triple. Returns only those actually removed."),
		mcpgo.WithArray("relations",
			mcpgo.Required(),
			mcpgo.Description("Relations to delete"),
			relationItems(),
		),
		userIDProperty(),
	)
}

func buildReadGraphTool() mcpgo.Tool {
	return mcpgo.NewTool("read_graph",
		mcpgo.WithDescription("Read the tenant's entire knowledge graph: every entity with its observations, and every relation."),
		userIDProperty(),
	)
}

func buildOpenNodesTool() mcpgo.Tool {
	return mcpgo.NewTool("open_nodes",
		mcpgo.WithDescription("Open specific entities by name (case-insensitive) with their observations and the relations touching any of them."),
		mcpgo.WithArray("names",
			mcpgo.Required(),
			mcpgo.Description("Entity names to open"),
			mcpgo.Items(map[string]any{"type": "string"}),
		),
		userIDProperty(),
	)
}

func buildSearchNodesTool() mcpgo.Tool {
	return mcpgo.NewTool("search_nodes",
		mcpgo.WithDescription("Score every entity against a free-text query (name, type, and observation substring matching) and return the top matches."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("The query to search for"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results (default: 10)"),
		),
		userIDProperty(),
	)
}

func buildGetSummaryTool() mcpgo.Tool {
	return mcpgo.NewTool("get_summary",
		mcpgo.WithDescription("Get the cached prose summary of the tenant's graph, with a staleness flag computed against live entity/observation counts."),
		userIDProperty(),
	)
}

func buildSaveSummaryTool() mcpgo.Tool {
	return mcpgo.NewTool("save_summary",
		mcpgo.WithDescription("Cache a prose summary of the tenant's graph. Texts under 10 characters are rejected."),
		mcpgo.WithString("summary",
			mcpgo.Required(),
			mcpgo.Description("The summary text to cache"),
		),
		userIDProperty(),
	)
}

func buildGetUserEditsTool() mcpgo.Tool {
	return mcpgo.NewTool("get_user_edits",
		mcpgo.WithDescription("List all observations flagged as user-requested edits, newest first, with their owning entity names."),
		userIDProperty(),
	)
}

func buildAddMessageTool() mcpgo.Tool {
	return mcpgo.NewTool("add_message",
		mcpgo.WithDescription("Append one conversation message with a TTL (default 48 hours)."),
		mcpgo.WithString("role",
			mcpgo.Required(),
			mcpgo.Description("Message author: user or assistant"),
		),
		mcpgo.WithString("content",
			mcpgo.Required(),
			mcpgo.Description("Message text"),
		),
		mcpgo.WithNumber("ttl_seconds",
			mcpgo.Description("Seconds until the message expires (default: 172800)"),
		),
		userIDProperty(),
	)
}

func buildGetHistoryTool() mcpgo.Tool {
	return mcpgo.NewTool("get_history",
		mcpgo.WithDescription("Get the most recent non-expired conversation messages, oldest first."),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of messages (default: 20)"),
		),
		userIDProperty(),
	)
}

func buildClearHistoryTool() mcpgo.Tool {
	return mcpgo.NewTool("clear_history",
		mcpgo.WithDescription("Delete all of the tenant's conversation messages regardless of expiry."),
		userIDProperty(),
	)
}

func buildCleanupExpiredTool() mcpgo.Tool {
	return mcpgo.NewTool("cleanup_expired",
		mcpgo.WithDescription("Purge expired conversation messages across all tenants. Maintenance operation; run periodically."),
		userIDProperty(),
	)
}

// --- tool handlers ---

func (s *Server) handleCreateEntities(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Entities   []models.EntityInput `json:"entities"`
		IsUserEdit bool                 `json:"isUserEdit"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}
	if len(args.Entities) == 0 {
		return mcpgo.NewToolResultError("entities is required and must not be empty"), nil
	}

	created, err := s.graphManager(req).CreateEntities(ctx, args.Entities, args.IsUserEdit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("create_entities failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"entities": created})
}

func (s *Server) handleDeleteEntities(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Names []string `json:"names"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}

	deleted, err := s.graphManager(req).DeleteEntities(ctx, args.Names)
	if err != nil {
		return mcpgo.NewToolResultErrorf("delete_entities failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"deleted": deleted})
}

func (s *Server) handleAddObservations(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Observations []models.ObservationInput `json:"observations"`
		IsUserEdit   bool                      `json:"isUserEdit"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}
	if len(args.Observations) == 0 {
		return mcpgo.NewToolResultError("observations is required and must not be empty"), nil
	}

	results, err := s.graphManager(req).AddObservations(ctx, args.Observations, args.IsUserEdit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("add_observations failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"results": results})
}

func (s *Server) handleDeleteObservations(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Deletions []models.ObservationDeletion `json:"deletions"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}

	results, err := s.graphManager(req).DeleteObservations(ctx, args.Deletions)
	if err != nil {
		return mcpgo.NewToolResultErrorf("delete_observations failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"results": results})
}

func (s *Server) handleCreateRelations(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Relations []models.Relation `json:"relations"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}
	if len(args.Relations) == 0 {
		return mcpgo.NewToolResultError("relations is required and must not be empty"), nil
	}

	created, err := s.graphManager(req).CreateRelations(ctx, args.Relations)
	if err != nil {
		return mcpgo.NewToolResultErrorf("create_relations failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"relations": created})
}

func (s *Server) handleDeleteRelations(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Relations []models.Relation `json:"relations"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}

	deleted, err := s.graphManager(req).DeleteRelations(ctx, args.Relations)
	if err != nil {
		return mcpgo.NewToolResultErrorf("delete_relations failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"deleted": deleted})
}

func (s *Server) handleReadGraph(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	kg, err := s.graphManager(req).ReadGraph(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("read_graph failed: %s", err.Error()), nil
	}

	return toolResultJSON(kg)
}

func (s *Server) handleOpenNodes(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	var args struct {
		Names []string `json:"names"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcpgo.NewToolResultErrorf("invalid arguments: %s", err.Error()), nil
	}

	kg, err := s.graphManager(req).OpenNodes(ctx, args.Names)
	if err != nil {
		return mcpgo.NewToolResultErrorf("open_nodes failed: %s", err.Error()), nil
	}

	return toolResultJSON(kg)
}

func (s *Server) handleSearchNodes(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}
	limit := req.GetInt("limit", graph.DefaultSearchLimit)

	results, err := s.graphManager(req).SearchNodes(ctx, query, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("search_nodes failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"entities": results})
}

func (s *Server) handleGetSummary(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	summary, err := s.graphManager(req).GetSummary(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get_summary failed: %s", err.Error()), nil
	}
	if summary == nil {
		return toolResultJSON(map[string]any{"summary": nil})
	}

	return toolResultJSON(summary)
}

func (s *Server) handleSaveSummary(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	summary := req.GetString("summary", "")

	err := s.graphManager(req).SaveSummary(ctx, summary)
	if errors.Is(err, graph.ErrSummaryTooShort) {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcpgo.NewToolResultErrorf("save_summary failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"saved": true})
}

func (s *Server) handleGetUserEdits(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	edits, err := s.graphManager(req).GetUserEdits(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get_user_edits failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"edits": edits})
}

func (s *Server) handleAddMessage(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	role := models.Role(req.GetString("role", ""))
	if !role.IsValid() {
		return mcpgo.NewToolResultError("role must be user or assistant"), nil
	}
	content := req.GetString("content", "")
	if content == "" {
		return mcpgo.NewToolResultError("content is required and must not be empty"), nil
	}

	ttl := s.defaultTTL
	if ttlSeconds := req.GetInt("ttl_seconds", -1); ttlSeconds >= 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}

	msg, err := s.conversationManager(req).AddMessage(ctx, role, content, ttl)
	if err != nil {
		return mcpgo.NewToolResultErrorf("add_message failed: %s", err.Error()), nil
	}

	return toolResultJSON(msg)
}

func (s *Server) handleGetHistory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	limit := req.GetInt("limit", conversation.DefaultHistoryLimit)

	messages, err := s.conversationManager(req).GetHistory(ctx, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get_history failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"messages": messages})
}

func (s *Server) handleClearHistory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	removed, err := s.conversationManager(req).ClearHistory(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("clear_history failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"removed": removed})
}

func (s *Server) handleCleanupExpired(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.store == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	removed, err := s.conversationManager(req).CleanupExpired(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("cleanup_expired failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"removed": removed})
}
