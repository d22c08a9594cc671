// Package api exposes the memory store's operations over HTTP/JSON. The
// tenant is selected with the X-User-ID header; requests without one operate
// on the "default" tenant.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/irislabs/iris-memory/internal/conversation"
	"github.com/irislabs/iris-memory/internal/graph"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// DefaultUserID is the tenant used when a request carries no X-User-ID header.
const DefaultUserID = "default"

// maxBodyBytes caps request bodies; batch payloads are small.
const maxBodyBytes = 1 << 20 // 1 MB

// Server is an HTTP API server that exposes the memory store operations.
type Server struct {
	store      *store.Store
	logger     *slog.Logger
	authToken  string // empty = no auth required
	defaultTTL time.Duration
}

// NewServer creates a new Server with the given dependencies.
func NewServer(st *store.Store, logger *slog.Logger, authToken string, defaultTTL time.Duration) *Server {
	if defaultTTL <= 0 {
		defaultTTL = conversation.DefaultTTL
	}
	return &Server{
		store:      st,
		logger:     logger,
		authToken:  authToken,
		defaultTTL: defaultTTL,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check — no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Entity and observation operations.
	mux.HandleFunc("POST /v1/entities", s.auth(s.handleCreateEntities))
	mux.HandleFunc("POST /v1/entities/delete", s.auth(s.handleDeleteEntities))
	mux.HandleFunc("POST /v1/observations", s.auth(s.handleAddObservations))
	mux.HandleFunc("POST /v1/observations/delete", s.auth(s.handleDeleteObservations))

	// Relation operations.
	mux.HandleFunc("POST /v1/relations", s.auth(s.handleCreateRelations))
	mux.HandleFunc("POST /v1/relations/delete", s.auth(s.handleDeleteRelations))

	// Query engine.
	mux.HandleFunc("GET /v1/graph", s.auth(s.handleReadGraph))
	mux.HandleFunc("POST /v1/graph/open", s.auth(s.handleOpenNodes))
	mux.HandleFunc("POST /v1/search", s.auth(s.handleSearch))

	// Summary cache.
	mux.HandleFunc("GET /v1/summary", s.auth(s.handleGetSummary))
	mux.HandleFunc("PUT /v1/summary", s.auth(s.handleSaveSummary))
	mux.HandleFunc("GET /v1/user-edits", s.auth(s.handleGetUserEdits))

	// Conversation log.
	mux.HandleFunc("POST /v1/messages", s.auth(s.handleAddMessage))
	mux.HandleFunc("GET /v1/messages", s.auth(s.handleGetHistory))
	mux.HandleFunc("DELETE /v1/messages", s.auth(s.handleClearHistory))
	mux.HandleFunc("POST /v1/maintenance/cleanup", s.auth(s.handleCleanup))

	mux.HandleFunc("GET /v1/stats", s.auth(s.handleStats))

	// Operation counters for scraping and debugging.
	mux.Handle("GET /debug/vars", expvar.Handler())

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// userID extracts the tenant from the request.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return DefaultUserID
}

// graphManager builds a tenant-scoped graph manager for the request.
func (s *Server) graphManager(r *http.Request) *graph.Manager {
	return graph.NewManager(s.store, userID(r), s.logger)
}

// conversationManager builds a tenant-scoped conversation manager for the request.
func (s *Server) conversationManager(r *http.Request) *conversation.Manager {
	return conversation.NewManager(s.store, userID(r), s.logger)
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createEntitiesRequest is the body accepted by POST /v1/entities.
type createEntitiesRequest struct {
	Entities   []models.EntityInput `json:"entities"`
	IsUserEdit bool                 `json:"isUserEdit"`
}

func (s *Server) handleCreateEntities(w http.ResponseWriter, r *http.Request) {
	var req createEntitiesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Entities) == 0 {
		s.writeError(w, http.StatusBadRequest, "entities is required")
		return
	}

	created, err := s.graphManager(r).CreateEntities(r.Context(), req.Entities, req.IsUserEdit)
	if err != nil {
		s.logger.Error("api: create entities", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create entities")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"entities": created})
}

// deleteEntitiesRequest is the body accepted by POST /v1/entities/delete.
type deleteEntitiesRequest struct {
	Names []string `json:"names"`
}

func (s *Server) handleDeleteEntities(w http.ResponseWriter, r *http.Request) {
	var req deleteEntitiesRequest
	if !s.decode(w, r, &req) {
		return
	}

	deleted, err := s.graphManager(r).DeleteEntities(r.Context(), req.Names)
	if err != nil {
		s.logger.Error("api: delete entities", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete entities")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// addObservationsRequest is the body accepted by POST /v1/observations.
type addObservationsRequest struct {
	Observations []models.ObservationInput `json:"observations"`
	IsUserEdit   bool                      `json:"isUserEdit"`
}

func (s *Server) handleAddObservations(w http.ResponseWriter, r *http.Request) {
	var req addObservationsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Observations) == 0 {
		s.writeError(w, http.StatusBadRequest, "observations is required")
		return
	}

	results, err := s.graphManager(r).AddObservations(r.Context(), req.Observations, req.IsUserEdit)
	if err != nil {
		s.logger.Error("api: add observations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to add observations")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// deleteObservationsRequest is the body accepted by POST /v1/observations/delete.
type deleteObservationsRequest struct {
	Deletions []models.ObservationDeletion `json:"deletions"`
}

func (s *Server) handleDeleteObservations(w http.ResponseWriter, r *http.Request) {
	var req deleteObservationsRequest
	if !s.decode(w, r, &req) {
		return
	}

	results, err := s.graphManager(r).DeleteObservations(r.Context(), req.Deletions)
	if err != nil {
		s.logger.Error("api: delete observations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete observations")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// relationsRequest is the body accepted by the relation endpoints.
type relationsRequest struct {
	Relations []models.Relation `json:"relations"`
}

func (s *Server) handleCreateRelations(w http.ResponseWriter, r *http.Request) {
	var req relationsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Relations) == 0 {
		s.writeError(w, http.StatusBadRequest, "relations is required")
		return
	}

	created, err := s.graphManager(r).CreateRelations(r.Context(), req.Relations)
	if err != nil {
		s.logger.Error("api: create relations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create relations")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"relations": created})
}

func (s *Server) handleDeleteRelations(w http.ResponseWriter, r *http.Request) {
	var req relationsRequest
	if !s.decode(w, r, &req) {
		return
	}

	deleted, err := s.graphManager(r).DeleteRelations(r.Context(), req.Relations)
	if err != nil {
		s.logger.Error("api: delete relations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete relations")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleReadGraph(w http.ResponseWriter, r *http.Request) {
	kg, err := s.graphManager(r).ReadGraph(r.Context())
	if err != nil {
		s.logger.Error("api: read graph", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read graph")
		return
	}

	s.writeJSON(w, http.StatusOK, kg)
}

// openNodesRequest is the body accepted by POST /v1/graph/open.
type openNodesRequest struct {
	Names []string `json:"names"`
}

func (s *Server) handleOpenNodes(w http.ResponseWriter, r *http.Request) {
	var req openNodesRequest
	if !s.decode(w, r, &req) {
		return
	}

	kg, err := s.graphManager(r).OpenNodes(r.Context(), req.Names)
	if err != nil {
		s.logger.Error("api: open nodes", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to open nodes")
		return
	}

	s.writeJSON(w, http.StatusOK, kg)
}

// searchRequest is the body accepted by POST /v1/search.
type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.graphManager(r).SearchNodes(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("api: search", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to search")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"entities": results})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.graphManager(r).GetSummary(r.Context())
	if err != nil {
		s.logger.Error("api: get summary", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get summary")
		return
	}
	if summary == nil {
		s.writeError(w, http.StatusNotFound, "no summary saved")
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

// saveSummaryRequest is the body accepted by PUT /v1/summary.
type saveSummaryRequest struct {
	Summary string `json:"summary"`
}

func (s *Server) handleSaveSummary(w http.ResponseWriter, r *http.Request) {
	var req saveSummaryRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.graphManager(r).SaveSummary(r.Context(), req.Summary)
	if errors.Is(err, graph.ErrSummaryTooShort) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("api: save summary", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save summary")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) handleGetUserEdits(w http.ResponseWriter, r *http.Request) {
	edits, err := s.graphManager(r).GetUserEdits(r.Context())
	if err != nil {
		s.logger.Error("api: get user edits", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get user edits")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"edits": edits})
}

// addMessageRequest is the body accepted by POST /v1/messages.
type addMessageRequest struct {
	Role       models.Role `json:"role"`
	Content    string      `json:"content"`
	TTLSeconds *int64      `json:"ttl_seconds,omitempty"`
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req addMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Role.IsValid() {
		s.writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	// Zero is a valid TTL (expires immediately); negatives fall back to the
	// default, same as the MCP and CLI surfaces.
	ttl := s.defaultTTL
	if req.TTLSeconds != nil && *req.TTLSeconds >= 0 {
		ttl = time.Duration(*req.TTLSeconds) * time.Second
	}

	msg, err := s.conversationManager(r).AddMessage(r.Context(), req.Role, req.Content, ttl)
	if err != nil {
		s.logger.Error("api: add message", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to add message")
		return
	}

	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	messages, err := s.conversationManager(r).GetHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("api: get history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, err := s.conversationManager(r).ClearHistory(r.Context())
	if err != nil {
		s.logger.Error("api: clear history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.conversationManager(r).CleanupExpired(r.Context())
	if err != nil {
		s.logger.Error("api: cleanup", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clean up expired messages")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.graphManager(r).Stats(r.Context())
	if err != nil {
		s.logger.Error("api: stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("api: failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
