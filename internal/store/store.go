// Package store provides the SQLite ledger the executor queries.
//
// The compiler core itself is strictly read-only; the write path here
// exists for the seeding CLI and for tests. The executor opens the store in
// read-only mode, where the connection refuses writes at the database level
// in addition to the executor's own statement guard.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

//go:embed schema.sql
var schemaSQL string

// driverName is the sqlite3 driver variant every store handle opens with.
// It registers fold() on each connection, the Unicode case-folding function
// the compiled statements use for case-insensitive substring matches. SQL
// and Go fold identically, so a pattern folded at plan compilation matches
// a column folded at execution for non-ASCII text too.
const driverName = "sqlite3_fold"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", caseFold, true)
		},
	})
}

func caseFold(s string) string {
	return cases.Fold().String(s)
}

// Store wraps the SQLite ledger database.
type Store struct {
	db       *sql.DB
	readOnly bool
}

// Open creates or opens the ledger database at path, applying pragmas and
// the schema. Idempotent: safe to call against an existing database.
func Open(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing ledger database for querying only.
// PRAGMA query_only makes the connection reject any write statement, so
// even a defective plan cannot modify data through this handle.
func OpenReadOnly(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set query_only: %w", err)
	}

	return &Store{db: db, readOnly: true}, nil
}

// open configures a connection the way every mode needs it.
func open(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection also
	// keeps session pragmas (query_only) attached to every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReadOnly reports whether this handle was opened in read-only mode.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// QueryContext executes a query and returns the rows. This is the
// query-execution interface the executor consumes; callers close the rows.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}
