package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is one lifecycle row as stored and as served by the sessions
// listing endpoint. Counters only; transcript text is never persisted.
type Session struct {
	ID                   string        `json:"id"`
	Engine               string        `json:"engine"`
	Language             string        `json:"language"`
	SampleRate           int           `json:"sample_rate"`
	RemoteAddr           string        `json:"remote_addr"`
	StartedAt            time.Time     `json:"started_at"`
	EndedAt              *time.Time    `json:"ended_at"`
	Status               SessionStatus `json:"status"`
	StopReason           string        `json:"stop_reason"`
	BytesProcessed       int64         `json:"bytes_processed"`
	Partials             int64         `json:"partial_count"`
	Finals               int64         `json:"final_count"`
	DispatchAttempts     int64         `json:"dispatch_attempts"`
	DispatchSuccesses    int64         `json:"dispatch_successes"`
	DispatchFailures     int64         `json:"dispatch_failures"`
	AvgDispatchLatencyMs float64       `json:"avg_dispatch_latency_ms"`
}
