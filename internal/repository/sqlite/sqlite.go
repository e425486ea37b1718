// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// builds without a C toolchain. The same query code runs against the pool
// (*sql.DB) and against a transaction (*sql.Tx) through the querier
// interface below; WithTx just swaps which one is used.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/careercoach/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// compile-time checks
var (
	_ repository.Store = (*DB)(nil)
	_ repository.Tx    = (*queries)(nil)
)

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every repository method. It is embedded in DB (running on
// the pool) and instantiated per transaction in WithTx.
type queries struct {
	q querier
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	queries
	conn *sql.DB
}

// New opens a SQLite database at dbPath and configures it for use.
//
// dbPath examples:
//   - "data/careercoach.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database, lost on close
//
// The pool is limited to one connection: SQLite serialises writers anyway,
// and a single connection keeps ":memory:" databases shared across calls.
// Call Migrate before first use.
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

	// WAL lets readers proceed while a write transaction is open.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}
	// Wait for a lock instead of failing immediately with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	return &DB{queries: queries{q: conn}, conn: conn}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithTx runs fn inside a single transaction.
//
// The timeout in opts wraps ctx before BeginTx, so the deadline covers the
// statements fn runs and any outside call fn makes with the same context
// (the insight generator, for example). When the deadline fires,
// database/sql rolls the transaction back on its own; the explicit ctx.Err
// check below makes sure a fn that ignored its context cannot commit late.
func (db *DB) WithTx(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op (returns sql.ErrTxDone).
	defer tx.Rollback()

	if err := fn(ctx, &queries{q: tx}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sqlite: transaction aborted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// Migrate creates the schema. Every statement is idempotent, so it is safe
// to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			external_id  TEXT UNIQUE,
			email        TEXT NOT NULL UNIQUE,
			name         TEXT NOT NULL DEFAULT '',
			industry     TEXT,
			experience   INTEGER NOT NULL DEFAULT 0,
			bio          TEXT NOT NULL DEFAULT '',
			skills       TEXT NOT NULL DEFAULT '[]',
			is_onboarded INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_industry ON users(industry);
	`)
	if err != nil {
		return fmt.Errorf("sqlite: creating users table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS industry_insights (
			id               TEXT PRIMARY KEY,
			industry         TEXT NOT NULL UNIQUE,
			average_salary   REAL NOT NULL DEFAULT 0,
			in_demand_skills TEXT NOT NULL DEFAULT '[]',
			industry_growth  REAL NOT NULL DEFAULT 0,
			demand_level     TEXT NOT NULL DEFAULT '',
			market_outlook   TEXT NOT NULL DEFAULT '',
			key_trends       TEXT NOT NULL DEFAULT '[]',
			last_updated     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			next_update      DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("sqlite: creating industry_insights table: %w", err)
	}

	return nil
}
