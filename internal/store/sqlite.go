package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS webhook_replay_keys (
    key         TEXT PRIMARY KEY,
    state       TEXT NOT NULL,
    owner       TEXT NOT NULL DEFAULT '',
    reserved_at INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_webhook_replay_keys_expires_at ON webhook_replay_keys (expires_at);
`

// SQLiteStore is a durable replay store for single-node deployments.
type SQLiteStore struct {
	db   *sql.DB
	opts ReplayOptions
	Now  func() time.Time
}

// OpenSQLite opens (or creates) the database at path. ":memory:" keeps
// everything in process.
func OpenSQLite(path string, replay ReplayOptions) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// from splitting per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create replay schema: %w", err)
	}
	if err := addOwnerColumn(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, opts: replay, Now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Reserve(ctx context.Context, key, owner string) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_replay_keys (key, state, owner, reserved_at, expires_at)
		VALUES (?, 'pending', ?, ?, ?)
		ON CONFLICT(key) DO UPDATE
			SET state = 'pending', owner = excluded.owner,
				reserved_at = excluded.reserved_at, expires_at = excluded.expires_at
			WHERE webhook_replay_keys.expires_at <= ?`,
		key, owner, toMillis(now), toMillis(now.Add(s.opts.lease())), toMillis(now),
	)
	if err != nil {
		return false, fmt.Errorf("reserving replay key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserving replay key: %w", err)
	}
	return n == 1, nil
}

// Commit succeeds while the key is free, expired or still owned by owner.
func (s *SQLiteStore) Commit(ctx context.Context, key, owner string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_replay_keys (key, state, owner, reserved_at, expires_at)
		VALUES (?, 'committed', ?, ?, ?)
		ON CONFLICT(key) DO UPDATE
			SET state = 'committed', owner = excluded.owner, expires_at = excluded.expires_at
			WHERE webhook_replay_keys.owner = excluded.owner
				OR webhook_replay_keys.expires_at <= ?`,
		key, owner, toMillis(now), toMillis(now.Add(s.opts.retention())), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("committing replay key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("committing replay key: %w", err)
	}
	if n == 0 {
		return ErrReservationLost
	}
	return nil
}

func (s *SQLiteStore) Release(ctx context.Context, key, owner string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM webhook_replay_keys WHERE key = ? AND state = 'pending' AND owner = ?", key, owner)
	if err != nil {
		return fmt.Errorf("releasing replay key: %w", err)
	}
	return nil
}

// PurgeExpired removes keys whose lease or retention has passed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM webhook_replay_keys WHERE expires_at <= ?", toMillis(s.now()))
	if err != nil {
		return 0, fmt.Errorf("purging replay keys: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// addOwnerColumn upgrades databases created before reservations carried an
// owner token.
func addOwnerColumn(db *sql.DB) error {
	rows, err := db.Query("SELECT name FROM pragma_table_info('webhook_replay_keys')")
	if err != nil {
		return fmt.Errorf("inspect replay schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect replay schema: %w", err)
		}
		if name == "owner" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect replay schema: %w", err)
	}
	rows.Close()
	if _, err := db.Exec("ALTER TABLE webhook_replay_keys ADD COLUMN owner TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("add replay owner column: %w", err)
	}
	return nil
}
