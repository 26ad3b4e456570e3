package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func OpenDB(dsn string) (*sql.DB, error) {
	return OpenDBWithOptions(dsn, PoolOptions{})
}

func OpenDBWithOptions(dsn string, opts PoolOptions) (*sql.DB, error) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = opts.MaxOpenConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS duty_schedules (
	jurisdiction TEXT NOT NULL,
	hts8 TEXT NOT NULL,
	brief_description TEXT NOT NULL DEFAULT '',
	mfn_text_rate TEXT NOT NULL DEFAULT '',
	mfn_ad_val_rate DOUBLE PRECISION,
	mfn_specific_rate DOUBLE PRECISION,
	mfn_other_rate DOUBLE PRECISION,
	col2_ad_val_rate DOUBLE PRECISION,
	col2_specific_rate DOUBLE PRECISION,
	col2_other_rate DOUBLE PRECISION,
	programs JSONB NOT NULL DEFAULT '[]'::jsonb,
	PRIMARY KEY (jurisdiction, hts8)
);

CREATE INDEX IF NOT EXISTS idx_duty_schedules_description
	ON duty_schedules (jurisdiction, lower(brief_description) text_pattern_ops);

CREATE TABLE IF NOT EXISTS schedule_imports (
	id TEXT PRIMARY KEY,
	jurisdiction TEXT NOT NULL,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedule_imports_created_at ON schedule_imports(created_at DESC);
`

// EnsureSchema creates the schedule and import tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
