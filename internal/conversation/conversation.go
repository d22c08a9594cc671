// Package conversation implements the short-lived rolling conversation log:
// append-only per-tenant messages with per-message TTL expiry and purge.
// Expiry is caller-driven — there is no internal timer; CleanupExpired is
// expected to be run periodically by the surrounding system.
package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/irislabs/iris-memory/internal/metrics"
	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

const (
	// DefaultTTL is how long a message stays live when the caller does not
	// choose a TTL explicitly.
	DefaultTTL = 48 * time.Hour

	// DefaultHistoryLimit caps GetHistory when called with a non-positive limit.
	DefaultHistoryLimit = 20
)

// Manager performs all conversation-log operations for a single tenant.
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

// AddMessage appends one message with expires_at = now + ttl and returns the
// stored record. A zero TTL is honored as written: the message expires
// immediately and will never surface in GetHistory.
func (m *Manager) AddMessage(ctx context.Context, role models.Role, content string, ttl time.Duration) (*models.ConversationMessage, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("conversation: invalid role %q", role)
	}

	now := store.NowMillis()
	msg := &models.ConversationMessage{
		ID:        uuid.NewString(),
		UserID:    m.userID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO conversations (id, user_id, role, content, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.UserID, string(msg.Role), msg.Content,
			store.ToMillis(msg.CreatedAt), store.ToMillis(msg.ExpiresAt),
		); err != nil {
			return fmt.Errorf("conversation: inserting message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Inc(metrics.MessagesAdded)
	return msg, nil
}

// GetHistory returns up to limit of the most recent non-expired messages,
// in chronological order (oldest of the selected window first).
func (m *Manager) GetHistory(ctx context.Context, limit int) ([]models.ConversationMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	nowMs := store.ToMillis(store.NowMillis())

	messages := []models.ConversationMessage{}
	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT id, user_id, role, content, created_at, expires_at
			 FROM conversations
			 WHERE user_id = ? AND expires_at > ?
			 ORDER BY created_at DESC
			 LIMIT ?`,
			m.userID, nowMs, limit,
		)
		if err != nil {
			return fmt.Errorf("conversation: querying history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				msg                  models.ConversationMessage
				role                 string
				createdMs, expiresMs int64
			)
			if err := rows.Scan(&msg.ID, &msg.UserID, &role, &msg.Content, &createdMs, &expiresMs); err != nil {
				return fmt.Errorf("conversation: scanning message: %w", err)
			}
			msg.Role = models.Role(role)
			msg.CreatedAt = store.FromMillis(createdMs)
			msg.ExpiresAt = store.FromMillis(expiresMs)
			messages = append(messages, msg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	// The query selects newest-first to bound the window; callers read
	// transcripts oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// CleanupExpired purges every expired message across all tenants and returns
// the number of rows removed. This is the maintenance half of the TTL
// contract; expired rows occupy storage until it runs.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	nowMs := store.ToMillis(store.NowMillis())

	var removed int64
	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM conversations WHERE expires_at < ?`, nowMs)
		if err != nil {
			return fmt.Errorf("conversation: purging expired messages: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("conversation: rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.MessagesExpired.Add(removed)
	if removed > 0 {
		m.logger.Info("conversation: purged expired messages", "count", removed)
	}
	return removed, nil
}

// ClearHistory deletes all of the tenant's messages regardless of expiry and
// returns the number removed.
func (m *Manager) ClearHistory(ctx context.Context) (int64, error) {
	var removed int64
	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM conversations WHERE user_id = ?`, m.userID)
		if err != nil {
			return fmt.Errorf("conversation: clearing history: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("conversation: rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Debug("conversation: cleared history", "user_id", m.userID, "count", removed)
	return removed, nil
}
