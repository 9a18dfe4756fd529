// Package sqlite implements repository.Engine on top of SQLite.
//
// Each collection gets its own table holding the document body as JSON
// text. Equality filters are evaluated with SQLite's built-in JSON1
// functions (json_extract), which modernc.org/sqlite compiles in.
//
// modernc.org/sqlite is a pure Go translation of SQLite: no CGo and no C
// toolchain, so the binary cross-compiles like any other Go program.
package sqlite

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sakif/videotube/internal/repository"
)

// DB wraps a sql.DB connection pool and implements repository.Engine.
type DB struct {
	conn        *sql.DB
	collections map[string]bool
}

var (
	collectionName = regexp.MustCompile(`^[a-z][a-z_]*$`)
	fieldName      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// New opens (or creates) the database at dbPath and makes sure a table
// exists for every collection, plus the given unique indexes.
//
// dbPath examples:
//   - "data/videotube.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string, collections []string, unique ...repository.UniqueIndex) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so all queries see the same data.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, collections: make(map[string]bool, len(collections))}

	if err := db.migrate(collections, unique); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates one table per collection and the unique indexes over
// their bodies. CREATE ... IF NOT EXISTS keeps it safe to run on every
// start.
func (db *DB) migrate(collections []string, unique []repository.UniqueIndex) error {
	for _, c := range collections {
		if !collectionName.MatchString(c) {
			return fmt.Errorf("invalid collection name %q", c)
		}

		// Timestamps are fixed-width UTC text so ORDER BY created_at is
		// chronological.
		_, err := db.conn.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				id         TEXT PRIMARY KEY,
				body       TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at, id);
		`, c))
		if err != nil {
			return fmt.Errorf("creating %s table: %w", c, err)
		}
		db.collections[c] = true
	}

	for _, idx := range unique {
		if err := db.createUniqueIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

// createUniqueIndex indexes the JSON fields with absent values folded to
// "", since SQLite treats NULLs in a unique index as distinct.
func (db *DB) createUniqueIndex(idx repository.UniqueIndex) error {
	if !db.collections[idx.Collection] {
		return fmt.Errorf("unique index on unknown collection %q", idx.Collection)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("unique index on %s has no fields", idx.Collection)
	}

	exprs := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		if !fieldName.MatchString(f) {
			return fmt.Errorf("invalid index field %q", f)
		}
		exprs[i] = fmt.Sprintf(`coalesce(json_extract(body, '$.%s'), '')`, f)
	}

	name := "uq_" + idx.Collection + "_" + strings.ToLower(strings.Join(idx.Fields, "_"))
	_, err := db.conn.Exec(fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(%s)`,
		name, idx.Collection, strings.Join(exprs, ", ")))
	if err != nil {
		return fmt.Errorf("creating index %s: %w", name, err)
	}
	return nil
}

func (db *DB) table(collection string) (string, error) {
	if !db.collections[collection] {
		return "", fmt.Errorf("sqlite: unknown collection %q", collection)
	}
	return collection, nil
}
