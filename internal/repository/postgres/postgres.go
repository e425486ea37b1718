// Package postgres implements the repository interfaces on PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/careercoach/internal/repository"
)

var (
	_ repository.Store = (*DB)(nil)
	_ repository.Tx    = (*queries)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

// DB wraps a pgx pool.
type DB struct {
	queries
	pool *pgxpool.Pool
}

// Options tunes the pool. Zero values fall back to pgx defaults.
type Options struct {
	MaxConns int32
	MinConns int32
}

// New connects to dsn and verifies the connection.
func New(ctx context.Context, dsn string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	return &DB{queries: queries{q: pool}, pool: pool}, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// WithTx runs fn in a read-committed transaction bounded by opts.Timeout.
func (db *DB) WithTx(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	// Rollback uses a fresh context so it still reaches the server after
	// ctx has expired.
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(ctx, &queries{q: tx}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("postgres: transaction aborted: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transaction: %w", err)
	}
	return nil
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	external_id  TEXT,
	email        TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	industry     TEXT,
	experience   INTEGER NOT NULL DEFAULT 0,
	bio          TEXT NOT NULL DEFAULT '',
	skills       TEXT[] NOT NULL DEFAULT '{}',
	is_onboarded BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT users_external_id_key UNIQUE (external_id),
	CONSTRAINT users_email_key UNIQUE (email)
);
CREATE INDEX IF NOT EXISTS idx_users_industry ON users(industry);

CREATE TABLE IF NOT EXISTS industry_insights (
	id               TEXT PRIMARY KEY,
	industry         TEXT NOT NULL,
	average_salary   DOUBLE PRECISION NOT NULL DEFAULT 0,
	in_demand_skills TEXT[] NOT NULL DEFAULT '{}',
	industry_growth  DOUBLE PRECISION NOT NULL DEFAULT 0,
	demand_level     TEXT NOT NULL DEFAULT '',
	market_outlook   TEXT NOT NULL DEFAULT '',
	key_trends       TEXT[] NOT NULL DEFAULT '{}',
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now(),
	next_update      TIMESTAMPTZ NOT NULL,
	CONSTRAINT industry_insights_industry_key UNIQUE (industry)
);
`
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
