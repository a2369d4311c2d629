package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMessagesEmitDiscriminatorFirst(t *testing.T) {
	conf := 0.9
	messages := []Message{
		NewSessionStarted("s1", "pt-br", 16000, 1, "1.0.0"),
		NewPartial("s1", "ola", nil),
		NewFinal("s1", "ola mundo", &conf, nil),
		NewError("s1", ErrCodeProcessing, "boom", nil),
	}
	for _, msg := range messages {
		raw, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal %T: %v", msg, err)
		}
		if !strings.HasPrefix(string(raw), `{"type":"`) {
			t.Fatalf("%T does not lead with the type discriminator: %s", msg, raw)
		}
	}
}

func TestTimestampFormat(t *testing.T) {
	msg := NewPartial("s1", "ola", nil)
	parsed, err := ParseTimestamp(msg.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q does not parse: %v", msg.Timestamp, err)
	}
	if !strings.HasSuffix(msg.Timestamp, "Z") {
		t.Fatalf("timestamp %q is not UTC-suffixed", msg.Timestamp)
	}
	if d := time.Since(parsed); d < -time.Minute || d > time.Minute {
		t.Fatalf("timestamp %q is not current (delta %s)", msg.Timestamp, d)
	}
}

func TestPartialOmitsUnknownConfidence(t *testing.T) {
	raw, err := json.Marshal(NewPartial("s1", "ola", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "confidence") {
		t.Fatalf("partial with unknown confidence must omit the field: %s", raw)
	}
}

func TestFinalCarriesDispatchOutcome(t *testing.T) {
	status := 200
	duration := 12.5
	conf := 0.82
	msg := NewFinal("s1", "ola mundo", &conf, &DispatchOutcome{
		TargetURL:      "http://localhost:9000/traduzir",
		RequestSent:    true,
		ResponseStatus: &status,
		ResponseBody:   map[string]any{"ok": true},
		DurationMs:     &duration,
	})
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	dispatch, ok := decoded["dispatch"].(map[string]any)
	if !ok {
		t.Fatalf("final message lacks dispatch object: %s", raw)
	}
	if dispatch["target_url"] != "http://localhost:9000/traduzir" {
		t.Fatalf("unexpected target_url: %v", dispatch["target_url"])
	}
	if dispatch["request_sent"] != true {
		t.Fatalf("unexpected request_sent: %v", dispatch["request_sent"])
	}
	if dispatch["response_status"] != float64(200) {
		t.Fatalf("unexpected response_status: %v", dispatch["response_status"])
	}
	// error was not set and must still be present as an explicit null.
	if v, present := dispatch["error"]; !present || v != nil {
		t.Fatalf("outcome error must be an explicit null, got %v (present=%v)", v, present)
	}
}

func TestFinalWithoutDispatchOmitsField(t *testing.T) {
	raw, err := json.Marshal(NewFinal("s1", "ola mundo", nil, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "dispatch") {
		t.Fatalf("final without an attempt must omit dispatch: %s", raw)
	}
}

func TestErrorMessageShape(t *testing.T) {
	raw, err := json.Marshal(NewError("s1", ErrCodeProcessing, "recognizer failed", map[string]any{"stage": "accept"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Type         string         `json:"type"`
		SessionID    string         `json:"session_id"`
		ErrorCode    string         `json:"error_code"`
		ErrorMessage string         `json:"error_message"`
		Details      map[string]any `json:"details"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeError || decoded.ErrorCode != ErrCodeProcessing {
		t.Fatalf("unexpected error envelope: %+v", decoded)
	}
	if decoded.Details["stage"] != "accept" {
		t.Fatalf("details not preserved: %+v", decoded.Details)
	}
}
