package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS favorites (
	position INTEGER NOT NULL,
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	address  TEXT NOT NULL DEFAULT '',
	lat      REAL NOT NULL,
	lng      REAL NOT NULL,
	tag      TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_favorites_name ON favorites(name COLLATE NOCASE);
`

// DB wraps the local SQLite database.
type DB struct {
	SQL *sql.DB
}

// New opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func New(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &DB{SQL: db}, nil
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.SQL.Close()
}
