// Package protocol defines the server-to-client message contract of the
// transcription WebSocket. The set of message shapes is closed: every
// payload sent to a client is one of SessionStarted, Partial, Final or
// Error, discriminated by the leading "type" field.
package protocol

import "time"

const (
	TypeSessionStarted = "session_started"
	TypePartial        = "partial"
	TypeFinal          = "final"
	TypeError          = "error"
)

const (
	ErrCodeSessionInit = "SESSION_INIT_FAILED"
	ErrCodeProcessing  = "PROCESSING_ERROR"
	ErrCodeIdleTimeout = "SESSION_IDLE_TIMEOUT"
)

// Timestamps are ISO-8601 in UTC with microsecond precision.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Message is implemented only by the types in this package.
type Message interface {
	messageType() string
}

type SessionStarted struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Version    string `json:"version"`
}

type Partial struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id"`
	Timestamp  string   `json:"timestamp"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Final struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"session_id"`
	Timestamp  string           `json:"timestamp"`
	Text       string           `json:"text"`
	Confidence *float64         `json:"confidence,omitempty"`
	Dispatch   *DispatchOutcome `json:"dispatch,omitempty"`
}

type Error struct {
	Type         string         `json:"type"`
	SessionID    string         `json:"session_id"`
	Timestamp    string         `json:"timestamp"`
	ErrorCode    string         `json:"error_code"`
	ErrorMessage string         `json:"error_message"`
	Details      map[string]any `json:"details,omitempty"`
}

// DispatchOutcome reports one downstream delivery attempt. All fields are
// always present on the wire; absent values are explicit nulls so clients
// can distinguish "no response" from "not measured".
type DispatchOutcome struct {
	TargetURL      string         `json:"target_url"`
	RequestSent    bool           `json:"request_sent"`
	ResponseStatus *int           `json:"response_status"`
	ResponseBody   map[string]any `json:"response_body"`
	DurationMs     *float64       `json:"duration_ms"`
	Error          *string        `json:"error"`
}

func (SessionStarted) messageType() string { return TypeSessionStarted }
func (Partial) messageType() string        { return TypePartial }
func (Final) messageType() string          { return TypeFinal }
func (Error) messageType() string          { return TypeError }

func NewSessionStarted(sessionID, language string, sampleRate, channels int, version string) SessionStarted {
	return SessionStarted{
		Type:       TypeSessionStarted,
		SessionID:  sessionID,
		Timestamp:  Timestamp(),
		Language:   language,
		SampleRate: sampleRate,
		Channels:   channels,
		Version:    version,
	}
}

func NewPartial(sessionID, text string, confidence *float64) Partial {
	return Partial{
		Type:       TypePartial,
		SessionID:  sessionID,
		Timestamp:  Timestamp(),
		Text:       text,
		Confidence: confidence,
	}
}

func NewFinal(sessionID, text string, confidence *float64, dispatch *DispatchOutcome) Final {
	return Final{
		Type:       TypeFinal,
		SessionID:  sessionID,
		Timestamp:  Timestamp(),
		Text:       text,
		Confidence: confidence,
		Dispatch:   dispatch,
	}
}

func NewError(sessionID, code, message string, details map[string]any) Error {
	return Error{
		Type:         TypeError,
		SessionID:    sessionID,
		Timestamp:    Timestamp(),
		ErrorCode:    code,
		ErrorMessage: message,
		Details:      details,
	}
}

func Timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

// ParseTimestamp is the inverse of Timestamp, used by clients and tests.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}
