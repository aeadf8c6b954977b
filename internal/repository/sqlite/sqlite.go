// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: a single file next to the binary, no server
// to run. It is the default backend for local use and the backend every
// repository test runs against (":memory:").
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain and cross-compiles like any other Go program.
//
// TIMESTAMPS:
// Every timestamp is written in UTC. The driver stores DATETIME values as
// text, so keeping a single zone is what makes ORDER BY created_at correct.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sakif/cliplet/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/cliplet.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// ONE CONNECTION:
// Each connection to ":memory:" gets its own empty database, and SQLite
// serialises writers anyway, so the pool is capped at one connection.
// PRAGMAs are per connection too; with a single connection they stick.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Clip deletion relies on
	// ON DELETE CASCADE to remove the satellite row, so this is required.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS user_auth_providers (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider    TEXT NOT NULL CHECK (provider IN ('GITHUB', 'GOOGLE')),
			provider_id TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, provider)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS clips (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL CHECK (type IN ('text', 'image', 'video', 'audio', 'document', 'file')),
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_clips_user_created ON clips(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating clips table: %w", err)
	}

	// Satellite tables: primary key = clip id, removed with the clip.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS texts (
			id      TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
			content TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS images (
			id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
			storage_key   TEXT NOT NULL,
			size          INTEGER NOT NULL,
			mime_type     TEXT NOT NULL,
			original_name TEXT NOT NULL,
			width         INTEGER,
			height        INTEGER
		);

		CREATE TABLE IF NOT EXISTS videos (
			id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
			storage_key   TEXT NOT NULL,
			size          INTEGER NOT NULL,
			mime_type     TEXT NOT NULL,
			original_name TEXT NOT NULL,
			width         INTEGER,
			height        INTEGER,
			duration      INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS audios (
			id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
			storage_key   TEXT NOT NULL,
			size          INTEGER NOT NULL,
			mime_type     TEXT NOT NULL,
			original_name TEXT NOT NULL,
			duration      INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS documents (
			id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
			storage_key   TEXT NOT NULL,
			size          INTEGER NOT NULL,
			mime_type     TEXT NOT NULL,
			original_name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS files (
			id            TEXT PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
			storage_key   TEXT NOT NULL,
			size          INTEGER NOT NULL,
			original_name TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating satellite tables: %w", err)
	}

	for _, table := range []string{"images", "videos", "audios", "documents", "files"} {
		if _, err := db.conn.Exec(fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%[1]s_storage_key ON %[1]s(storage_key)`, table,
		)); err != nil {
			return fmt.Errorf("indexing %s.storage_key: %w", table, err)
		}
	}

	return nil
}
