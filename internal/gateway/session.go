package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/dispatch"
	"github.com/vozlab/escriba/internal/engine"
	"github.com/vozlab/escriba/internal/protocol"
	"github.com/vozlab/escriba/internal/repository"
)

const (
	stopReasonClientDisconnect = "client disconnect"
	stopReasonIdleTimeout      = "idle timeout"
	stopReasonProcessingError  = "processing error"
)

// Session drives one WebSocket client through the INIT, ACTIVE, CLOSING
// and TERMINATED states. A single goroutine owns the whole
// read-process-emit sequence, which is what guarantees message ordering:
// session_started precedes everything, and a final (with its dispatch
// outcome already resolved) precedes any later partial.
type Session struct {
	id      string
	manager *Manager
	conn    Conn
	engine  *engine.Engine
	orch    dispatch.Orchestrator

	mu    sync.Mutex
	state State

	lastPartialEmit time.Time
}

func newSession(m *Manager, id string, conn Conn) *Session {
	return &Session{id: id, manager: m, conn: conn, state: StateInit}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) run() {
	cfg := s.manager.cfg
	slog.Info("client connected", "session_id", s.id, "remote_addr", s.conn.RemoteAddr())

	recSession, err := s.manager.recognizer.NewSession(context.Background(), s.id)
	if err != nil {
		slog.Error("failed to open recognizer session", "error", err, "session_id", s.id)
		s.sendBestEffort(protocol.NewError(s.id, protocol.ErrCodeSessionInit, "failed to initialize transcription session", nil))
		_ = s.conn.Close()
		s.setState(StateTerminated)
		return
	}
	s.engine = engine.New(s.id, cfg.SampleRate, recSession)
	s.orch = s.manager.dispatch(s.id)

	if !s.manager.register(s) {
		slog.Info("session refused, server is shutting down", "session_id", s.id)
		_ = s.engine.Close()
		_ = s.conn.Close()
		s.setState(StateTerminated)
		return
	}
	s.recordStart()

	hello := protocol.NewSessionStarted(s.id, cfg.Language, cfg.SampleRate, cfg.Channels, config.ServiceVersion)
	if err := s.conn.WriteMessage(hello); err != nil {
		slog.Warn("failed to send session_started", "error", err, "session_id", s.id)
		s.teardown(ErrClientGone)
		return
	}
	s.setState(StateActive)
	slog.Info("session started",
		"session_id", s.id,
		"language", cfg.Language,
		"sample_rate", cfg.SampleRate,
		"engine", s.manager.recognizer.Backend(),
	)

	for {
		frame, err := s.conn.ReadFrame(cfg.SessionIdleTimeout)
		if err != nil {
			s.teardown(err)
			return
		}
		if len(frame) == 0 {
			slog.Warn("empty audio frame received", "session_id", s.id)
			continue
		}

		result, err := s.engine.ProcessAudio(frame)
		if err != nil {
			s.teardown(fmt.Errorf("audio processing failed: %w", err))
			return
		}
		if result.Final {
			if err := s.emitFinal(result); err != nil {
				slog.Warn("failed to send final message", "error", err, "session_id", s.id)
				s.teardown(ErrClientGone)
				return
			}
			continue
		}
		if result.Text != "" {
			if err := s.maybeEmitPartial(result); err != nil {
				slog.Warn("failed to send partial message", "error", err, "session_id", s.id)
				s.teardown(ErrClientGone)
				return
			}
		}
	}
}

// emitFinal dispatches downstream first, then reports the utterance and
// its delivery outcome to the client in one message.
func (s *Session) emitFinal(result engine.Result) error {
	outcome := s.orch.Dispatch(context.Background(), result.Text, result.Confidence)
	slog.Info("final transcript",
		"session_id", s.id,
		"chars", len(result.Text),
		"confidence", confValue(result.Confidence),
		"request_sent", outcome.RequestSent,
	)
	slog.Debug("final transcript text", "session_id", s.id, "text", result.Text)
	return s.conn.WriteMessage(protocol.NewFinal(s.id, result.Text, result.Confidence, &outcome))
}

// maybeEmitPartial applies the emission throttle. Suppressed partials are
// dropped entirely; the recognizer state already contains the audio.
func (s *Session) maybeEmitPartial(result engine.Result) error {
	now := time.Now()
	if s.manager.cfg.PartialInterval > 0 && now.Sub(s.lastPartialEmit) < s.manager.cfg.PartialInterval {
		return nil
	}
	if err := s.conn.WriteMessage(protocol.NewPartial(s.id, result.Text, result.Confidence)); err != nil {
		return err
	}
	s.lastPartialEmit = now
	return nil
}

// teardown is the CLOSING path for every session that got past INIT.
// Order matters: best-effort error message first (only when the cause is
// a caught processing failure), then the engine flush with its tail
// dispatch, then statistics, then release.
func (s *Session) teardown(cause error) {
	s.setState(StateClosing)

	reason := s.manager.takeStopReason(s.id)
	external := reason != ""
	switch {
	case external:
	case errors.Is(cause, ErrClientGone):
		reason = stopReasonClientDisconnect
	case errors.Is(cause, ErrIdleTimeout):
		reason = stopReasonIdleTimeout
	default:
		reason = stopReasonProcessingError
	}
	slog.Info("session closing", "session_id", s.id, "reason", reason)

	if !external && reason == stopReasonProcessingError {
		captureProcessingError(s.id, cause)
		s.sendBestEffort(protocol.NewError(s.id, protocol.ErrCodeProcessing, cause.Error(), nil))
	} else if !external && reason == stopReasonIdleTimeout {
		s.sendBestEffort(protocol.NewError(s.id, protocol.ErrCodeIdleTimeout, "session closed after inactivity", nil))
	}

	s.flushTail()
	_ = s.engine.Close()

	engStats := s.engine.Stats()
	dispStats := s.orch.Stats()
	slog.Info("session statistics",
		"session_id", s.id,
		"bytes_processed", engStats.BytesProcessed,
		"mb_processed", engStats.MBProcessed,
		"partials", engStats.Partials,
		"finals", engStats.Finals,
		"dispatch_attempts", dispStats.TotalAttempts,
		"dispatch_successes", dispStats.Successes,
		"dispatch_failures", dispStats.Failures,
		"dispatch_success_rate_pct", dispStats.SuccessRatePct,
		"avg_dispatch_latency_ms", dispStats.AverageLatencyMs,
	)
	s.recordCompletion(reason, engStats, dispStats)

	s.manager.deregister(s.id)
	_ = s.conn.Close()
	s.setState(StateTerminated)
	slog.Info("session terminated", "session_id", s.id, "reason", reason)
}

// flushTail drains whatever audio the recognizer still buffers. A tail
// utterance goes downstream when it passes the gate, but no message is
// written: the peer is already gone or going.
func (s *Session) flushTail() {
	result, err := s.engine.Finalize()
	if err != nil {
		slog.Error("failed to flush recognizer", "error", err, "session_id", s.id)
		return
	}
	if result == nil {
		return
	}
	slog.Info("flushed tail utterance", "session_id", s.id, "chars", len(result.Text), "confidence", confValue(result.Confidence))
	if s.orch.ShouldDispatch(result.Text, result.Confidence) {
		outcome := s.orch.Dispatch(context.Background(), result.Text, result.Confidence)
		slog.Info("tail utterance dispatched", "session_id", s.id, "request_sent", outcome.RequestSent)
	}
}

func (s *Session) sendBestEffort(msg protocol.Message) {
	if err := s.conn.WriteMessage(msg); err != nil {
		slog.Debug("best-effort message not delivered", "error", err, "session_id", s.id)
	}
}

func (s *Session) recordStart() {
	err := s.manager.repo.CreateSession(context.Background(), repository.CreateSessionInput{
		SessionID:  s.id,
		Engine:     s.manager.recognizer.Backend(),
		Language:   s.manager.cfg.Language,
		SampleRate: s.manager.cfg.SampleRate,
		RemoteAddr: s.conn.RemoteAddr(),
		StartedAt:  time.Now(),
	})
	if err != nil {
		slog.Error("failed to record session start", "error", err, "session_id", s.id)
	}
}

func (s *Session) recordCompletion(reason string, engStats engine.Stats, dispStats dispatch.Stats) {
	err := s.manager.repo.CompleteSession(context.Background(), repository.CompleteSessionInput{
		SessionID:            s.id,
		EndedAt:              time.Now(),
		StopReason:           reason,
		BytesProcessed:       engStats.BytesProcessed,
		Partials:             engStats.Partials,
		Finals:               engStats.Finals,
		DispatchAttempts:     dispStats.TotalAttempts,
		DispatchSuccesses:    dispStats.Successes,
		DispatchFailures:     dispStats.Failures,
		AvgDispatchLatencyMs: dispStats.AverageLatencyMs,
	})
	if err != nil {
		slog.Error("failed to record session completion", "error", err, "session_id", s.id)
	}
}

func captureProcessingError(sessionID string, cause error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", sessionID)
		sentry.CaptureException(cause)
	})
}

func confValue(c *float64) any {
	if c == nil {
		return "unknown"
	}
	return *c
}
