// Package store owns the physical persistence layer: the SQLite schema, its
// idempotent initialization, durability pragmas, and the per-call transaction
// scope every manager operation runs inside.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// schema is the authoritative table shape. It must stay compatible with any
// pre-existing memory.db file, so columns keep their historical names —
// including memory_relations.from_entity_id/to_entity_id, which hold entity
// names, not surrogate ids.
const schema = `
CREATE TABLE IF NOT EXISTS memory_entities (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT 'concept',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mem_ent_user ON memory_entities(user_id);

CREATE TABLE IF NOT EXISTS memory_observations (
    id           TEXT PRIMARY KEY,
    entity_id    TEXT NOT NULL,
    observation  TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    is_user_edit INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (entity_id) REFERENCES memory_entities(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_mem_obs_ent ON memory_observations(entity_id);
CREATE INDEX IF NOT EXISTS idx_mem_obs_user_edit ON memory_observations(is_user_edit);

CREATE TABLE IF NOT EXISTS memory_relations (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    from_entity_id TEXT NOT NULL,
    to_entity_id   TEXT NOT NULL,
    relation_type  TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mem_rel_user ON memory_relations(user_id);

CREATE TABLE IF NOT EXISTS memory_summaries (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL UNIQUE,
    summary           TEXT NOT NULL,
    generated_at      INTEGER NOT NULL,
    entity_count      INTEGER NOT NULL DEFAULT 0,
    observation_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conv_user ON conversations(user_id);
CREATE INDEX IF NOT EXISTS idx_conv_expires ON conversations(expires_at);
`

// Store wraps the SQLite database handle. Managers never touch the handle
// directly; they run their statements inside WithTx.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path, applies the durability
// pragmas, and ensures the schema exists. The parent directory is created if
// missing. Any failure here is fatal for the caller: without a working store
// no manager operation can run.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating directory %s: %w", dir, err)
		}
	}

	// Pragmas go on the DSN so every pooled connection gets them. WAL gives
	// multiple readers alongside a single writer; foreign key enforcement is
	// required for the observation cascade on entity delete.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing schema: %w", err)
	}

	logger.Debug("store: opened database", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// WithTx runs fn inside a single transaction. The transaction commits only
// when fn returns nil; any error rolls back every statement fn executed, so
// a failed call never leaves partial state behind. This is the atomicity
// unit of the whole system: one top-level manager call, one commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing transaction: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NowMillis returns the current UTC time truncated to millisecond precision,
// the resolution timestamps are persisted at.
func NowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ToMillis converts a time to the epoch-millisecond integer stored on disk.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts a stored epoch-millisecond integer back to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
