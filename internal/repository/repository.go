package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	SessionID  string
	Engine     string
	Language   string
	SampleRate int
	RemoteAddr string
	StartedAt  time.Time
}

type CompleteSessionInput struct {
	SessionID            string
	EndedAt              time.Time
	StopReason           string
	BytesProcessed       int64
	Partials             int64
	Finals               int64
	DispatchAttempts     int64
	DispatchSuccesses    int64
	DispatchFailures     int64
	AvgDispatchLatencyMs float64
}

// SessionRepository records session lifecycle and counters for later
// operational analysis. Transcript text never reaches this layer.
type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) error
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	ListRecentSessions(ctx context.Context, limit int) ([]Session, error)
}
