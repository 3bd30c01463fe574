package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/Tomlord1122/todo-store/internal/config"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS todos (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at);
`

// SQLite is a single-file substrate for local development and tests.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database file at cfg.Path.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig) (*SQLite, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			closeQuietly(db)
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLite{db: db, path: cfg.Path}, nil
}

func (s *SQLite) GetDB() *sql.DB {
	return s.db
}

// Migrate creates the todos table if it does not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Health() map[string]string {
	stats := poolHealth(s.db)
	stats["backend"] = config.BackendSQLite
	stats["path"] = s.path
	return stats
}

func (s *SQLite) Close() error {
	log.Info().Str("path", s.path).Msg("Closing sqlite database")
	return s.db.Close()
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("error closing db")
	}
}
