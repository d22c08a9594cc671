package graph

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/irislabs/iris-memory/internal/metrics"
	"github.com/irislabs/iris-memory/internal/models"
)

// DefaultSearchLimit is used when SearchNodes is called with a non-positive limit.
const DefaultSearchLimit = 10

// Substring match weights. The full query matching the name outweighs
// everything else; per-word hits accumulate on top.
const (
	scoreQueryInName = 10
	scoreQueryInType = 5
	scoreQueryInObs  = 8
	scoreWordInName  = 3
	scoreWordInObs   = 2
)

// Score rates an entity against a free-text query. All comparisons are
// lower-cased substring checks; observations are scored against their
// single-space-joined concatenation. A zero score means no match anywhere.
func Score(query string, entity models.Entity) int {
	queryLower := strings.ToLower(query)
	nameLower := strings.ToLower(entity.Name)
	typeLower := strings.ToLower(entity.EntityType)
	obsLower := strings.ToLower(strings.Join(entity.Observations, " "))

	score := 0
	if strings.Contains(nameLower, queryLower) {
		score += scoreQueryInName
	}
	if strings.Contains(typeLower, queryLower) {
		score += scoreQueryInType
	}
	if strings.Contains(obsLower, queryLower) {
		score += scoreQueryInObs
	}

	for _, word := range strings.Fields(queryLower) {
		if strings.Contains(nameLower, word) {
			score += scoreWordInName
		}
		if strings.Contains(obsLower, word) {
			score += scoreWordInObs
		}
	}

	return score
}

// SearchNodes scores every entity of the tenant against the query and
// returns the top limit matches by descending score. Entities scoring zero
// are excluded. Ties break on entity name ascending so result order is
// stable across storage engines.
func (m *Manager) SearchNodes(ctx context.Context, query string, limit int) ([]models.Entity, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var entities []models.Entity
	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		loaded, err := m.loadEntities(tx)
		if err != nil {
			return err
		}
		entities = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	type scored struct {
		entity models.Entity
		score  int
	}
	matches := make([]scored, 0, len(entities))
	for _, entity := range entities {
		if s := Score(query, entity); s > 0 {
			matches = append(matches, scored{entity: entity, score: s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].entity.Name < matches[j].entity.Name
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]models.Entity, 0, len(matches))
	for _, sc := range matches {
		results = append(results, sc.entity)
	}

	metrics.Inc(metrics.SearchesTotal)
	m.logger.Debug("graph: search", "user_id", m.userID, "query", query, "results", len(results))
	return results, nil
}
