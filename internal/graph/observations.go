package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/irislabs/iris-memory/internal/metrics"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// AddObservations attaches new observations to existing entities. An unknown
// entity name is reported as a per-item error without aborting the batch.
// Duplicate observations (case-insensitive within the entity) are skipped;
// each result lists only the contents actually inserted. Entities that
// received at least a lookup get their updated_at bumped.
func (m *Manager) AddObservations(ctx context.Context, inputs []models.ObservationInput, isUserEdit bool) ([]models.ObservationResult, error) {
	results := make([]models.ObservationResult, 0, len(inputs))
	nowMs := store.ToMillis(store.NowMillis())

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, in := range inputs {
			if in.EntityName == "" {
				return fmt.Errorf("graph: observation input missing entity name")
			}

			entityID, _, err := m.findEntity(tx, in.EntityName)
			if errors.Is(err, store.ErrNotFound) {
				results = append(results, models.ObservationResult{
					EntityName: in.EntityName,
					Added:      []string{},
					Error:      "entity not found",
				})
				continue
			}
			if err != nil {
				return err
			}

			added, err := m.insertObservations(tx, entityID, in.Contents, nowMs, isUserEdit)
			if err != nil {
				return err
			}

			if _, err := tx.Exec(
				`UPDATE memory_entities SET updated_at = ? WHERE id = ?`,
				nowMs, entityID,
			); err != nil {
				return fmt.Errorf("graph: bumping entity %q: %w", in.EntityName, err)
			}

			results = append(results, models.ObservationResult{
				EntityName: in.EntityName,
				Added:      added,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// DeleteObservations removes the listed observations from their entities,
// matching the text case-insensitively. An unknown entity yields an empty
// Deleted list for that item rather than an error. Only observations that
// actually removed a row are reported as deleted.
func (m *Manager) DeleteObservations(ctx context.Context, inputs []models.ObservationDeletion) ([]models.DeletionResult, error) {
	results := make([]models.DeletionResult, 0, len(inputs))

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, in := range inputs {
			entityID, _, err := m.findEntity(tx, in.EntityName)
			if errors.Is(err, store.ErrNotFound) {
				results = append(results, models.DeletionResult{
					EntityName: in.EntityName,
					Deleted:    []string{},
				})
				continue
			}
			if err != nil {
				return err
			}

			deleted := make([]string, 0, len(in.Observations))
			for _, text := range in.Observations {
				res, err := tx.Exec(
					`DELETE FROM memory_observations WHERE entity_id = ? AND LOWER(observation) = LOWER(?)`,
					entityID, text,
				)
				if err != nil {
					return fmt.Errorf("graph: deleting observation: %w", err)
				}
				affected, err := res.RowsAffected()
				if err != nil {
					return fmt.Errorf("graph: rows affected: %w", err)
				}
				if affected > 0 {
					metrics.Inc(metrics.ObservationsDeleted)
					deleted = append(deleted, text)
				}
			}

			results = append(results, models.DeletionResult{
				EntityName: in.EntityName,
				Deleted:    deleted,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}
