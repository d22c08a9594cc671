package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/irislabs/iris-memory/internal/metrics"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// CreateRelations inserts the given directed relations. A relation whose
// (from, to, relationType) triple already exists for the tenant — compared
// case-insensitively — is silently skipped. Only relations actually inserted
// are returned.
//
// Endpoints are stored as entity names, not ids, so a relation may reference
// a name in any casing (or one not yet created); the query engine resolves
// spelling variants when reading the graph back.
func (m *Manager) CreateRelations(ctx context.Context, inputs []models.Relation) ([]models.Relation, error) {
	created := make([]models.Relation, 0, len(inputs))
	nowMs := store.ToMillis(store.NowMillis())

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, rel := range inputs {
			if rel.From == "" || rel.To == "" || rel.RelationType == "" {
				return fmt.Errorf("graph: relation input missing from, to, or relationType")
			}

			var one int
			row := tx.QueryRow(
				`SELECT 1 FROM memory_relations
				 WHERE user_id = ? AND LOWER(from_entity_id) = LOWER(?)
				   AND LOWER(to_entity_id) = LOWER(?) AND LOWER(relation_type) = LOWER(?)
				 LIMIT 1`,
				m.userID, rel.From, rel.To, rel.RelationType,
			)
			switch err := row.Scan(&one); err {
			case nil:
				continue // duplicate triple
			case sql.ErrNoRows:
			default:
				return fmt.Errorf("graph: checking relation: %w", err)
			}

			if _, err := tx.Exec(
				`INSERT INTO memory_relations (id, user_id, from_entity_id, to_entity_id, relation_type, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), m.userID, rel.From, rel.To, rel.RelationType, nowMs,
			); err != nil {
				return fmt.Errorf("graph: inserting relation: %w", err)
			}

			metrics.Inc(metrics.RelationsCreated)
			created = append(created, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("graph: created relations", "user_id", m.userID, "count", len(created))
	return created, nil
}

// DeleteRelations removes exact (case-insensitive) triple matches and
// returns only the relations that actually removed a row.
func (m *Manager) DeleteRelations(ctx context.Context, inputs []models.Relation) ([]models.Relation, error) {
	deleted := make([]models.Relation, 0, len(inputs))

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, rel := range inputs {
			res, err := tx.Exec(
				`DELETE FROM memory_relations
				 WHERE user_id = ? AND LOWER(from_entity_id) = LOWER(?)
				   AND LOWER(to_entity_id) = LOWER(?) AND LOWER(relation_type) = LOWER(?)`,
				m.userID, rel.From, rel.To, rel.RelationType,
			)
			if err != nil {
				return fmt.Errorf("graph: deleting relation: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("graph: rows affected: %w", err)
			}
			if affected > 0 {
				metrics.Inc(metrics.RelationsDeleted)
				deleted = append(deleted, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}
