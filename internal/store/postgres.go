package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// PostgresStore keeps replay keys in a shared table so every instance
// behind a load balancer sees the same reservations.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts ReplayOptions
	Now  func() time.Time
}

func NewPostgres(ctx context.Context, databaseURL string, replay ReplayOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{pool: pool, opts: replay, Now: time.Now}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// RunMigrations executes all embedded .up.sql migration files in order.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := upMigrations()
	if err != nil {
		return err
	}

	for _, name := range migrations {
		version := path.Base(name)

		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sql, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		_, err = s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)",
			version,
		)
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", version, err)
		}
	}

	return nil
}

func (s *PostgresStore) Reserve(ctx context.Context, key, owner string) (bool, error) {
	now := s.now()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_replay_keys (key, state, owner, reserved_at, expires_at)
		VALUES ($1, 'pending', $4, $2, $3)
		ON CONFLICT (key) DO UPDATE
			SET state = 'pending', owner = EXCLUDED.owner,
				reserved_at = EXCLUDED.reserved_at, expires_at = EXCLUDED.expires_at
			WHERE webhook_replay_keys.expires_at <= $2`,
		key, now, now.Add(s.opts.lease()), owner,
	)
	if err != nil {
		return false, fmt.Errorf("reserving replay key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Commit succeeds while the key is free, expired or still owned by owner.
func (s *PostgresStore) Commit(ctx context.Context, key, owner string) error {
	now := s.now()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_replay_keys (key, state, owner, reserved_at, expires_at)
		VALUES ($1, 'committed', $4, $2, $3)
		ON CONFLICT (key) DO UPDATE
			SET state = 'committed', owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE webhook_replay_keys.owner = EXCLUDED.owner
				OR webhook_replay_keys.expires_at <= $2`,
		key, now, now.Add(s.opts.retention()), owner,
	)
	if err != nil {
		return fmt.Errorf("committing replay key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationLost
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, key, owner string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM webhook_replay_keys WHERE key = $1 AND state = 'pending' AND owner = $2",
		key, owner,
	)
	if err != nil {
		return fmt.Errorf("releasing replay key: %w", err)
	}
	return nil
}

// PurgeExpired removes keys whose lease or retention has passed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM webhook_replay_keys WHERE expires_at <= $1", s.now())
	if err != nil {
		return 0, fmt.Errorf("purging replay keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func upMigrations() ([]string, error) {
	var migrations []string
	err := fs.WalkDir(migrationFiles, "migrations", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".up.sql") {
			migrations = append(migrations, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Strings(migrations)
	return migrations, nil
}
