package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the engine's tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026041501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	year INTEGER NOT NULL,
	quarter INTEGER NOT NULL,
	unit TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	approved_by TEXT NOT NULL DEFAULT '',
	decided_at TIMESTAMPTZ,
	reject_reason TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_period ON analyses(year, quarter);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);

CREATE TABLE IF NOT EXISTS reported_activities (
	id TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	kra_id TEXT NOT NULL,
	initiative_id TEXT NOT NULL,
	raw_value TEXT NOT NULL,
	value DOUBLE PRECISION,
	denominator DOUBLE PRECISION,
	target DOUBLE PRECISION,
	achievement DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	committed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_analysis ON reported_activities(analysis_id);

CREATE TABLE IF NOT EXISTS contributions (
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	kra_id TEXT NOT NULL,
	initiative_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	quarter INTEGER NOT NULL,
	unit TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	kind TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (analysis_id, kra_id, initiative_id)
);

CREATE INDEX IF NOT EXISTS idx_contributions_indicator ON contributions(kra_id, initiative_id, year, quarter);

CREATE TABLE IF NOT EXISTS aggregates (
	kra_id TEXT NOT NULL,
	initiative_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	quarter INTEGER NOT NULL,
	kind TEXT NOT NULL,
	total_reported DOUBLE PRECISION NOT NULL DEFAULT 0,
	target_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	achievement_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	submission_count INTEGER NOT NULL DEFAULT 0,
	units JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kra_id, initiative_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS target_overrides (
	kra_id TEXT NOT NULL,
	initiative_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	quarter INTEGER NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	target_value DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kra_id, initiative_id, year, quarter)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
