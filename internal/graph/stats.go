package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// Stats returns summary counts for the tenant's stored data. Live messages
// are conversation rows whose expiry is still in the future.
func (m *Manager) Stats(ctx context.Context) (*models.GraphStats, error) {
	stats := &models.GraphStats{}
	nowMs := store.ToMillis(store.NowMillis())

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		stats.EntityCount, stats.ObservationCount, err = m.liveCounts(tx)
		if err != nil {
			return err
		}

		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM memory_relations WHERE user_id = ?`, m.userID,
		).Scan(&stats.RelationCount); err != nil {
			return fmt.Errorf("graph: counting relations: %w", err)
		}

		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM memory_observations mo
			 JOIN memory_entities me ON mo.entity_id = me.id
			 WHERE me.user_id = ? AND mo.is_user_edit = 1`,
			m.userID,
		).Scan(&stats.UserEditCount); err != nil {
			return fmt.Errorf("graph: counting user edits: %w", err)
		}

		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM conversations WHERE user_id = ? AND expires_at > ?`,
			m.userID, nowMs,
		).Scan(&stats.LiveMessageCount); err != nil {
			return fmt.Errorf("graph: counting live messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
