// Package storage is the citation graph store: researchers, papers,
// authorships and citation edges in SQLite.
//
// Every Add method is add-or-get. It inserts the row, and on a uniqueness
// violation rolls the insert back and returns the row already stored under
// the same natural key. Repeated and racing calls are therefore safe.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned by readers when no row matches.
var ErrNotFound = errors.New("not found in store")

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS researchers (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			h_index INTEGER,
			institution TEXT
		);

		CREATE TABLE IF NOT EXISTS papers (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			year INTEGER,
			venue TEXT,
			citation_count INTEGER,
			doi TEXT,
			citations_fetched INTEGER NOT NULL DEFAULT 0,
			references_fetched INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS authorships (
			id INTEGER PRIMARY KEY,
			researcher_id INTEGER NOT NULL REFERENCES researchers(id),
			paper_id INTEGER NOT NULL REFERENCES papers(id),
			author_order INTEGER NOT NULL,
			UNIQUE (researcher_id, paper_id)
		);

		-- Paper ids here are external ids so edges can be written before
		-- both endpoints are known locally.
		CREATE TABLE IF NOT EXISTS citations (
			id INTEGER PRIMARY KEY,
			citing_paper_id TEXT NOT NULL,
			cited_paper_id TEXT NOT NULL,
			context TEXT NOT NULL,
			intent TEXT,
			llm_purpose TEXT,
			sentiment TEXT,
			UNIQUE (citing_paper_id, cited_paper_id, context)
		);

		CREATE INDEX IF NOT EXISTS idx_authorships_paper ON authorships(paper_id);
		CREATE INDEX IF NOT EXISTS idx_citations_cited ON citations(cited_paper_id);
		CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi) WHERE doi IS NOT NULL AND doi != '';
	`

	_, err := db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a group of writes committed together. Inside InTx only the Tx
// methods may be used; the DB has a single connection and would block.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn in a transaction, committing if fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// addOrGet runs insert inside a savepoint. On a uniqueness violation the
// savepoint is rolled back and inserted reports false; any other error is
// returned. The caller then reads the row by its natural key.
func (t *Tx) addOrGet(ctx context.Context, insert func(q querier) error) (inserted bool, err error) {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT add_or_get"); err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}

	if err := insert(t.tx); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO add_or_get"); rbErr != nil {
			return false, fmt.Errorf("rolling back savepoint: %w", rbErr)
		}
		if _, relErr := t.tx.ExecContext(ctx, "RELEASE add_or_get"); relErr != nil {
			return false, fmt.Errorf("releasing savepoint: %w", relErr)
		}
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE add_or_get"); err != nil {
		return false, fmt.Errorf("releasing savepoint: %w", err)
	}
	return true, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// inTx is a helper for DB methods that wrap a single Tx method.
func inTx[T any](ctx context.Context, d *DB, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := d.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func notFound(err error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, key, ErrNotFound)
	}
	return fmt.Errorf("reading %s %s: %w", what, key, err)
}
