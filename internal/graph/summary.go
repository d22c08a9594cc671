package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/irislabs/iris-memory/internal/metrics"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// MinSummaryLength is the minimum character count SaveSummary accepts.
const MinSummaryLength = 10

// ErrSummaryTooShort is returned by SaveSummary for texts under
// MinSummaryLength characters. Nothing is written in that case.
var ErrSummaryTooShort = fmt.Errorf("graph: summary shorter than %d characters", MinSummaryLength)

// GetSummary returns the cached prose summary for the tenant, or nil if none
// was ever saved. IsStale is computed against the live entity and observation
// counts; UserEditCount reports how many observations are currently flagged
// as user edits.
func (m *Manager) GetSummary(ctx context.Context) (*models.Summary, error) {
	var summary *models.Summary

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		var (
			text        string
			generatedMs int64
			entityCount int
			obsCount    int
		)
		row := tx.QueryRow(
			`SELECT summary, generated_at, entity_count, observation_count FROM memory_summaries WHERE user_id = ?`,
			m.userID,
		)
		if err := row.Scan(&text, &generatedMs, &entityCount, &obsCount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("graph: loading summary: %w", err)
		}

		liveEntities, liveObservations, err := m.liveCounts(tx)
		if err != nil {
			return err
		}

		var userEdits int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM memory_observations mo
			 JOIN memory_entities me ON mo.entity_id = me.id
			 WHERE me.user_id = ? AND mo.is_user_edit = 1`,
			m.userID,
		).Scan(&userEdits); err != nil {
			return fmt.Errorf("graph: counting user edits: %w", err)
		}

		summary = &models.Summary{
			Summary:          text,
			GeneratedAt:      store.FromMillis(generatedMs),
			EntityCount:      entityCount,
			ObservationCount: obsCount,
			IsStale:          liveEntities != entityCount || liveObservations != obsCount,
			UserEditCount:    userEdits,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// SaveSummary upserts the tenant's single summary row, recording the live
// entity and observation counts alongside the text so staleness can be
// detected later. The row is replaced wholesale, never partially updated.
func (m *Manager) SaveSummary(ctx context.Context, text string) error {
	if utf8.RuneCountInString(text) < MinSummaryLength {
		return ErrSummaryTooShort
	}

	nowMs := store.ToMillis(store.NowMillis())

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		entityCount, obsCount, err := m.liveCounts(tx)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(
			`INSERT INTO memory_summaries (id, user_id, summary, generated_at, entity_count, observation_count)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
			   summary = excluded.summary,
			   generated_at = excluded.generated_at,
			   entity_count = excluded.entity_count,
			   observation_count = excluded.observation_count`,
			uuid.NewString(), m.userID, text, nowMs, entityCount, obsCount,
		); err != nil {
			return fmt.Errorf("graph: upserting summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.Inc(metrics.SummariesSaved)
	m.logger.Debug("graph: saved summary", "user_id", m.userID, "length", len(text))
	return nil
}

// GetUserEdits returns every observation flagged as a user edit, newest
// first, with its owning entity's name and creation time.
func (m *Manager) GetUserEdits(ctx context.Context) ([]models.UserEdit, error) {
	edits := []models.UserEdit{}

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT me.name, mo.observation, mo.created_at
			 FROM memory_observations mo
			 JOIN memory_entities me ON mo.entity_id = me.id
			 WHERE me.user_id = ? AND mo.is_user_edit = 1
			 ORDER BY mo.created_at DESC`,
			m.userID,
		)
		if err != nil {
			return fmt.Errorf("graph: querying user edits: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				edit      models.UserEdit
				createdMs int64
			)
			if err := rows.Scan(&edit.EntityName, &edit.Observation, &createdMs); err != nil {
				return fmt.Errorf("graph: scanning user edit: %w", err)
			}
			edit.CreatedAt = store.FromMillis(createdMs)
			edits = append(edits, edit)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return edits, nil
}

// liveCounts returns the tenant's current entity count and total observation
// count (joined across all its entities).
func (m *Manager) liveCounts(tx *sql.Tx) (entities, observations int, err error) {
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM memory_entities WHERE user_id = ?`, m.userID,
	).Scan(&entities); err != nil {
		return 0, 0, fmt.Errorf("graph: counting entities: %w", err)
	}

	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM memory_observations mo
		 JOIN memory_entities me ON mo.entity_id = me.id
		 WHERE me.user_id = ?`,
		m.userID,
	).Scan(&observations); err != nil {
		return 0, 0, fmt.Errorf("graph: counting observations: %w", err)
	}

	return entities, observations, nil
}
