package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE session_status AS ENUM ('running', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS stt_sessions (
		id UUID PRIMARY KEY,
		engine TEXT NOT NULL,
		language TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		remote_addr TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status session_status NOT NULL DEFAULT 'running',
		stop_reason TEXT NOT NULL DEFAULT '',
		bytes_processed BIGINT NOT NULL DEFAULT 0,
		partial_count BIGINT NOT NULL DEFAULT 0,
		final_count BIGINT NOT NULL DEFAULT 0,
		dispatch_attempts BIGINT NOT NULL DEFAULT 0,
		dispatch_successes BIGINT NOT NULL DEFAULT 0,
		dispatch_failures BIGINT NOT NULL DEFAULT 0,
		avg_dispatch_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stt_sessions_started ON stt_sessions (started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_stt_sessions_running ON stt_sessions (status) WHERE status = 'running'`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
