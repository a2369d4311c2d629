package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/dispatch"
	"github.com/vozlab/escriba/internal/protocol"
)

const (
	minTextRunes   = 3
	minConfidence  = 0.3
	maxBodyExcerpt = 200
	sourceName     = "escriba-stt"

	filteredReason = "transcript filtered (too short or low confidence)"
)

// transcriptPayload is the downstream POST body contract.
type transcriptPayload struct {
	Text     string             `json:"text"`
	Metadata transcriptMetadata `json:"metadata"`
}

type transcriptMetadata struct {
	SessionID      string   `json:"session_id"`
	Confidence     *float64 `json:"confidence"`
	Source         string   `json:"source"`
	ServiceVersion string   `json:"service_version"`
}

// HTTPOrchestrator forwards transcripts over HTTP POST. It is owned by a
// single session goroutine, like the engine it sits next to.
type HTTPOrchestrator struct {
	sessionID      string
	downstreamURL  string
	timeoutSeconds int
	client         *http.Client

	totalAttempts  int64
	successes      int64
	failures       int64
	latencyTotalMs float64
}

// NewFactory builds per-session orchestrators that share one HTTP client,
// so connections to the downstream service are pooled across sessions.
func NewFactory(cfg *config.Config) dispatch.Factory {
	client := &http.Client{Timeout: cfg.DownstreamTimeout()}
	return func(sessionID string) dispatch.Orchestrator {
		return &HTTPOrchestrator{
			sessionID:      sessionID,
			downstreamURL:  cfg.DownstreamURL,
			timeoutSeconds: cfg.DownstreamTimeoutSeconds,
			client:         client,
		}
	}
}

// ShouldDispatch applies the forwarding gate: text must be non-blank and
// at least three runes long, and a known confidence must be at least 0.3.
// Unknown confidence passes.
func (o *HTTPOrchestrator) ShouldDispatch(text string, confidence *float64) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if utf8.RuneCountInString(trimmed) < minTextRunes {
		return false
	}
	if confidence != nil && *confidence < minConfidence {
		return false
	}
	return true
}

// Dispatch delivers one transcript and classifies whatever happened into a
// DispatchOutcome. Filtered transcripts count as attempts but are neither
// successes nor failures.
func (o *HTTPOrchestrator) Dispatch(ctx context.Context, text string, confidence *float64) (outcome protocol.DispatchOutcome) {
	o.totalAttempts++

	defer func() {
		if r := recover(); r != nil {
			o.failures++
			msg := fmt.Sprintf("unexpected dispatch failure: %v", r)
			slog.Error("transcript dispatch panicked", "session_id", o.sessionID, "cause", msg)
			outcome = protocol.DispatchOutcome{TargetURL: o.downstreamURL, RequestSent: false, Error: &msg}
		}
	}()

	if !o.ShouldDispatch(text, confidence) {
		slog.Debug("transcript dispatch skipped by gate", "session_id", o.sessionID, "chars", utf8.RuneCountInString(strings.TrimSpace(text)))
		msg := filteredReason
		return protocol.DispatchOutcome{TargetURL: o.downstreamURL, RequestSent: false, Error: &msg}
	}

	payload := transcriptPayload{
		Text: text,
		Metadata: transcriptMetadata{
			SessionID:      o.sessionID,
			Confidence:     confidence,
			Source:         sourceName,
			ServiceVersion: config.ServiceVersion,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		o.failures++
		msg := fmt.Sprintf("unexpected dispatch failure: %v", err)
		return protocol.DispatchOutcome{TargetURL: o.downstreamURL, RequestSent: false, Error: &msg}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.downstreamURL, bytes.NewReader(body))
	if err != nil {
		o.failures++
		msg := fmt.Sprintf("unexpected dispatch failure: %v", err)
		return protocol.DispatchOutcome{TargetURL: o.downstreamURL, RequestSent: false, Error: &msg}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Escriba-STT/"+config.ServiceVersion)
	req.Header.Set("X-Session-ID", o.sessionID)

	start := time.Now()
	resp, err := o.client.Do(req)
	durationMs := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		o.failures++
		if isTimeout(err) {
			msg := fmt.Sprintf("downstream request timed out (>%ds)", o.timeoutSeconds)
			slog.Error("transcript dispatch timed out", "session_id", o.sessionID, "downstream_url", o.downstreamURL, "timeout_seconds", o.timeoutSeconds)
			return protocol.DispatchOutcome{TargetURL: o.downstreamURL, RequestSent: true, DurationMs: &durationMs, Error: &msg}
		}
		msg := fmt.Sprintf("downstream request failed: %v", err)
		slog.Error("transcript dispatch failed", "session_id", o.sessionID, "downstream_url", o.downstreamURL, "error", err)
		return protocol.DispatchOutcome{TargetURL: o.downstreamURL, RequestSent: false, DurationMs: &durationMs, Error: &msg}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	status := resp.StatusCode

	if isHTTPSuccessStatus(status) {
		o.successes++
		o.latencyTotalMs += durationMs
		slog.Info("transcript dispatched",
			"session_id", o.sessionID,
			"status", status,
			"duration_ms", math.Round(durationMs*10)/10,
		)
		return protocol.DispatchOutcome{
			TargetURL:      o.downstreamURL,
			RequestSent:    true,
			ResponseStatus: &status,
			ResponseBody:   parseResponseBody(raw),
			DurationMs:     &durationMs,
		}
	}

	o.failures++
	msg := fmt.Sprintf("downstream returned HTTP %d", status)
	slog.Warn("transcript dispatch rejected downstream",
		"session_id", o.sessionID,
		"status", status,
		"duration_ms", math.Round(durationMs*10)/10,
	)
	return protocol.DispatchOutcome{
		TargetURL:      o.downstreamURL,
		RequestSent:    true,
		ResponseStatus: &status,
		ResponseBody:   map[string]any{"error": excerpt(string(raw), maxBodyExcerpt)},
		DurationMs:     &durationMs,
		Error:          &msg,
	}
}

func (o *HTTPOrchestrator) Stats() dispatch.Stats {
	var successRate, avgLatency float64
	if o.totalAttempts > 0 {
		successRate = float64(o.successes) / float64(o.totalAttempts) * 100
	}
	if o.successes > 0 {
		avgLatency = o.latencyTotalMs / float64(o.successes)
	}
	return dispatch.Stats{
		SessionID:        o.sessionID,
		DownstreamURL:    o.downstreamURL,
		TotalAttempts:    o.totalAttempts,
		Successes:        o.successes,
		Failures:         o.failures,
		SuccessRatePct:   math.Round(successRate*10) / 10,
		AverageLatencyMs: math.Round(avgLatency*10) / 10,
	}
}

// parseResponseBody keeps whatever JSON object the downstream answered
// with; anything else is preserved as a truncated raw excerpt.
func parseResponseBody(raw []byte) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"raw": excerpt(string(raw), maxBodyExcerpt)}
	}
	return decoded
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
