package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/irislabs/iris-memory/internal/metrics"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// CreateEntities creates the given entities and attaches their observations.
// An entity whose name already exists (any casing) is reused rather than
// duplicated, and observations that already exist on the entity (any casing)
// are skipped. The returned entities carry only the observations actually
// inserted by this call.
//
// isUserEdit tags every inserted observation as a user-requested edit, which
// GetUserEdits and the summary's user-edit count report on later.
func (m *Manager) CreateEntities(ctx context.Context, inputs []models.EntityInput, isUserEdit bool) ([]models.Entity, error) {
	created := make([]models.Entity, 0, len(inputs))
	now := store.NowMillis()
	nowMs := store.ToMillis(now)

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, in := range inputs {
			if in.Name == "" {
				return fmt.Errorf("graph: entity input missing name")
			}

			entityType := in.EntityType
			if entityType == "" {
				entityType = models.DefaultEntityType
			}

			entityID, _, err := m.findEntity(tx, in.Name)
			switch {
			case errors.Is(err, store.ErrNotFound):
				entityID = uuid.NewString()
				if _, err := tx.Exec(
					`INSERT INTO memory_entities (id, user_id, name, entity_type, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					entityID, m.userID, in.Name, entityType, nowMs, nowMs,
				); err != nil {
					return fmt.Errorf("graph: inserting entity %q: %w", in.Name, err)
				}
				metrics.Inc(metrics.EntitiesCreated)
			case err != nil:
				return err
			}

			added, err := m.insertObservations(tx, entityID, in.Observations, nowMs, isUserEdit)
			if err != nil {
				return err
			}

			created = append(created, models.Entity{
				Name:         in.Name,
				EntityType:   entityType,
				Observations: added,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("graph: created entities", "user_id", m.userID, "count", len(created))
	return created, nil
}

// DeleteEntities deletes the named entities. For each entity found
// (case-insensitive), every relation touching it by name on either side is
// removed, then the entity row itself, which cascades to its observations.
// The returned names preserve the stored casing, not the caller's.
func (m *Manager) DeleteEntities(ctx context.Context, names []string) ([]string, error) {
	deleted := make([]string, 0, len(names))

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			entityID, storedName, err := m.findEntity(tx, name)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			// Relations reference entity names, so they are not covered by
			// the foreign-key cascade and must be cleared by name match.
			if _, err := tx.Exec(
				`DELETE FROM memory_relations
				 WHERE user_id = ? AND (LOWER(from_entity_id) = LOWER(?) OR LOWER(to_entity_id) = LOWER(?))`,
				m.userID, name, name,
			); err != nil {
				return fmt.Errorf("graph: deleting relations of %q: %w", name, err)
			}

			if _, err := tx.Exec(`DELETE FROM memory_entities WHERE id = ?`, entityID); err != nil {
				return fmt.Errorf("graph: deleting entity %q: %w", name, err)
			}

			metrics.Inc(metrics.EntitiesDeleted)
			deleted = append(deleted, storedName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("graph: deleted entities", "user_id", m.userID, "count", len(deleted))
	return deleted, nil
}

// insertObservations inserts the non-duplicate observations onto the entity
// and returns the subset actually inserted, in input order.
func (m *Manager) insertObservations(tx *sql.Tx, entityID string, contents []string, nowMs int64, isUserEdit bool) ([]string, error) {
	added := make([]string, 0, len(contents))

	for _, text := range contents {
		exists, err := m.observationExists(tx, entityID, text)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		userEdit := 0
		if isUserEdit {
			userEdit = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO memory_observations (id, entity_id, observation, created_at, updated_at, is_user_edit)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), entityID, text, nowMs, nowMs, userEdit,
		); err != nil {
			return nil, fmt.Errorf("graph: inserting observation: %w", err)
		}

		metrics.Inc(metrics.ObservationsAdded)
		added = append(added, text)
	}

	return added, nil
}
