package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "memory.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpen_CreatesSchemaAndParentDirs(t *testing.T) {
	st := openTestStore(t)

	// All five tables must exist after Open.
	err := st.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, table := range []string{
			"memory_entities", "memory_observations", "memory_relations",
			"memory_summaries", "conversations",
		} {
			var one int
			if err := tx.QueryRow(
				`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
			).Scan(&one); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "memory.db")

	st, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Reopening an existing file must not fail or lose data shape.
	st, err = Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO memory_entities (id, user_id, name, entity_type, created_at, updated_at)
			 VALUES ('e1', 'alice', 'Go', 'concept', 0, 0)`,
		); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	err = st.WithTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT COUNT(*) FROM memory_entities`).Scan(&count)
	})
	require.NoError(t, err)
	assert.Zero(t, count, "failed transaction must leave no rows")
}

func TestForeignKeyCascade(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO memory_entities (id, user_id, name, entity_type, created_at, updated_at)
			 VALUES ('e1', 'alice', 'Go', 'concept', 0, 0)`,
		); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT INTO memory_observations (id, entity_id, observation, created_at, updated_at)
			 VALUES ('o1', 'e1', 'compiled', 0, 0)`,
		)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM memory_entities WHERE id = 'e1'`)
		return err
	}))

	var count int
	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT COUNT(*) FROM memory_observations`).Scan(&count)
	}))
	assert.Zero(t, count, "deleting the entity must cascade to its observations")
}

func TestMillisRoundTrip(t *testing.T) {
	now := NowMillis()
	assert.Equal(t, now, FromMillis(ToMillis(now)))
	assert.Equal(t, time.UTC, now.Location())
}
