package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vozlab/escriba/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.SessionRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO stt_sessions (id, engine, language, sample_rate, remote_addr, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'running')`,
		input.SessionID, input.Engine, input.Language, input.SampleRate, input.RemoteAddr, input.StartedAt)
	return err
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE stt_sessions
		 SET status = 'completed',
		     ended_at = $2,
		     stop_reason = $3,
		     bytes_processed = $4,
		     partial_count = $5,
		     final_count = $6,
		     dispatch_attempts = $7,
		     dispatch_successes = $8,
		     dispatch_failures = $9,
		     avg_dispatch_latency_ms = $10
		 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.StopReason,
		input.BytesProcessed, input.Partials, input.Finals,
		input.DispatchAttempts, input.DispatchSuccesses, input.DispatchFailures,
		input.AvgDispatchLatencyMs)
	return err
}

func (r *PostgresRepository) ListRecentSessions(ctx context.Context, limit int) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, engine, language, sample_rate, remote_addr, started_at, ended_at, status,
		        stop_reason, bytes_processed, partial_count, final_count,
		        dispatch_attempts, dispatch_successes, dispatch_failures, avg_dispatch_latency_ms
		 FROM stt_sessions ORDER BY started_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Session
	for rows.Next() {
		var s repository.Session
		var endedAt *time.Time
		if err := rows.Scan(&s.ID, &s.Engine, &s.Language, &s.SampleRate, &s.RemoteAddr,
			&s.StartedAt, &endedAt, &s.Status, &s.StopReason,
			&s.BytesProcessed, &s.Partials, &s.Finals,
			&s.DispatchAttempts, &s.DispatchSuccesses, &s.DispatchFailures,
			&s.AvgDispatchLatencyMs); err != nil {
			return nil, err
		}
		s.EndedAt = endedAt
		list = append(list, s)
	}
	return list, rows.Err()
}
