// Package graph implements the tenant-scoped knowledge-graph manager:
// entities with attached observations, directed typed relations between
// them, graph queries with scored free-text search, and the cached prose
// summary with staleness detection.
//
// Identity is case-insensitive throughout: entity names, observation texts
// within an entity, and relation triples all match via lower-casing, while
// the casing of the first write is what gets stored and returned.
package graph

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/irislabs/iris-memory/internal/store"
)

// Manager performs all knowledge-graph operations for a single tenant.
// It holds no state beyond its dependencies; construct one per call site
// with whatever lifetime the caller needs.
type Manager struct {
	store  *store.Store
	userID string
	logger *slog.Logger
}

// NewManager creates a manager scoped to the given tenant.
func NewManager(st *store.Store, userID string, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		userID: userID,
		logger: logger,
	}
}

// UserID returns the tenant this manager is scoped to.
func (m *Manager) UserID() string {
	return m.userID
}

// findEntity resolves an entity by case-insensitive name within the tenant.
// It returns the row id and the stored (original-casing) name, or
// store.ErrNotFound.
func (m *Manager) findEntity(tx *sql.Tx, name string) (id, storedName string, err error) {
	row := tx.QueryRow(
		`SELECT id, name FROM memory_entities WHERE user_id = ? AND LOWER(name) = LOWER(?)`,
		m.userID, name,
	)
	if err := row.Scan(&id, &storedName); err != nil {
		if err == sql.ErrNoRows {
			return "", "", store.ErrNotFound
		}
		return "", "", fmt.Errorf("graph: looking up entity %q: %w", name, err)
	}
	return id, storedName, nil
}

// observationExists reports whether the entity already has the observation,
// compared case-insensitively.
func (m *Manager) observationExists(tx *sql.Tx, entityID, text string) (bool, error) {
	var one int
	row := tx.QueryRow(
		`SELECT 1 FROM memory_observations WHERE entity_id = ? AND LOWER(observation) = LOWER(?) LIMIT 1`,
		entityID, text,
	)
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("graph: checking observation: %w", err)
	}
	return true, nil
}
