// Package postgres implements the repository interfaces on PostgreSQL (and
// CockroachDB, which speaks the same wire protocol) through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/cliplet/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a pgx connection pool and implements repository.Store.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and runs migrations.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_auth_providers (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		provider    TEXT NOT NULL CHECK (provider IN ('GITHUB', 'GOOGLE')),
		provider_id TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, provider)
	)`,
	`CREATE TABLE IF NOT EXISTS clips (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL CHECK (type IN ('text', 'image', 'video', 'audio', 'document', 'file')),
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clips_user_created ON clips (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS texts (
		id      TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		content TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS images (
		id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		storage_key   TEXT NOT NULL,
		size          BIGINT NOT NULL,
		mime_type     TEXT NOT NULL,
		original_name TEXT NOT NULL,
		width         INTEGER,
		height        INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		storage_key   TEXT NOT NULL,
		size          BIGINT NOT NULL,
		mime_type     TEXT NOT NULL,
		original_name TEXT NOT NULL,
		width         INTEGER,
		height        INTEGER,
		duration      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS audios (
		id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		storage_key   TEXT NOT NULL,
		size          BIGINT NOT NULL,
		mime_type     TEXT NOT NULL,
		original_name TEXT NOT NULL,
		duration      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		storage_key   TEXT NOT NULL,
		size          BIGINT NOT NULL,
		mime_type     TEXT NOT NULL,
		original_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		storage_key   TEXT NOT NULL,
		size          BIGINT NOT NULL,
		original_name TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_storage_key ON images (storage_key)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_storage_key ON videos (storage_key)`,
	`CREATE INDEX IF NOT EXISTS idx_audios_storage_key ON audios (storage_key)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_storage_key ON documents (storage_key)`,
	`CREATE INDEX IF NOT EXISTS idx_files_storage_key ON files (storage_key)`,
}

func (db *DB) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
