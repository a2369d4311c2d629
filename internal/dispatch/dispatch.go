package dispatch

import (
	"context"

	"github.com/vozlab/escriba/internal/protocol"
)

// Orchestrator decides whether a final transcript is worth forwarding and
// delivers it to the downstream text service. One instance per session.
// Dispatch never returns an error: every failure mode is reported as data
// inside the outcome.
type Orchestrator interface {
	ShouldDispatch(text string, confidence *float64) bool
	Dispatch(ctx context.Context, text string, confidence *float64) protocol.DispatchOutcome
	Stats() Stats
}

// Factory opens an orchestrator bound to one session.
type Factory func(sessionID string) Orchestrator

type Stats struct {
	SessionID        string
	DownstreamURL    string
	TotalAttempts    int64
	Successes        int64
	Failures         int64
	SuccessRatePct   float64
	AverageLatencyMs float64
}
