package gateway

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vozlab/escriba/internal/protocol"
)

func TestManager_StopAllDrainsSessions(t *testing.T) {
	rec := &scriptedRecognizer{}
	orch := newFakeOrchestrator()
	repo := &fakeRepository{}
	m := newTestManager(&fakeRecognizerFactory{session: rec}, orch, repo, 0)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, conn := range conns {
		go m.HandleConnection(conn)
	}
	waitUntil(t, 2*time.Second, func() bool { return m.ActiveSessions() == 2 }, "sessions did not activate")

	m.StopAll("server shutdown")

	waitUntil(t, 2*time.Second, func() bool { return m.ActiveSessions() == 0 }, "sessions did not drain")
	waitUntil(t, 2*time.Second, func() bool { return len(repo.completions()) == 2 }, "completions not recorded")

	for _, completion := range repo.completions() {
		if completion.StopReason != "server shutdown" {
			t.Fatalf("unexpected stop reason: %q", completion.StopReason)
		}
	}
	for _, conn := range conns {
		for _, msg := range conn.messages() {
			if _, ok := msg.(protocol.Error); ok {
				t.Fatal("server shutdown must close sessions silently")
			}
		}
	}
}

func TestManager_RefusesConnectionsAfterStopAll(t *testing.T) {
	rec := &scriptedRecognizer{}
	repo := &fakeRepository{}
	m := newTestManager(&fakeRecognizerFactory{session: rec}, newFakeOrchestrator(), repo, 0)

	m.StopAll("server shutdown")

	conn := newFakeConn()
	conn.queueFrame(make([]byte, 320))
	m.HandleConnection(conn)

	if n := len(conn.messages()); n != 0 {
		t.Fatalf("refused sessions must not send any message, got %d", n)
	}
	if !conn.closed {
		t.Fatal("refused connection must be closed")
	}
	if !rec.closed {
		t.Fatal("refused session must release its recognizer")
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.created) != 0 {
		t.Fatalf("refused sessions must not be recorded, got %d rows", len(repo.created))
	}
	if m.ActiveSessions() != 0 {
		t.Fatalf("refused sessions must not register, got %d", m.ActiveSessions())
	}
}

func TestManager_StopAllWithoutSessions(t *testing.T) {
	m := newTestManager(&fakeRecognizerFactory{session: &scriptedRecognizer{}}, newFakeOrchestrator(), &fakeRepository{}, 0)
	m.StopAll("server shutdown") // must not block or panic
}

func TestManager_HandleConnectionAssignsUniqueIDs(t *testing.T) {
	rec := &scriptedRecognizer{}
	repo := &fakeRepository{}
	m := newTestManager(&fakeRecognizerFactory{session: rec}, newFakeOrchestrator(), repo, 0)

	for i := 0; i < 2; i++ {
		conn := newFakeConn()
		conn.queueReadError(ErrClientGone)
		m.HandleConnection(conn)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.created) != 2 {
		t.Fatalf("expected 2 session records, got %d", len(repo.created))
	}
	if repo.created[0].SessionID == repo.created[1].SessionID {
		t.Fatal("session ids must be unique")
	}
	for _, created := range repo.created {
		if _, err := uuid.Parse(created.SessionID); err != nil {
			t.Fatalf("session id %q is not a UUID: %v", created.SessionID, err)
		}
		if created.Engine != "scripted" || created.Language != "pt-br" {
			t.Fatalf("unexpected session record: %+v", created)
		}
	}
}

func TestManager_TakeStopReasonConsumes(t *testing.T) {
	m := newTestManager(&fakeRecognizerFactory{session: &scriptedRecognizer{}}, newFakeOrchestrator(), &fakeRepository{}, 0)
	m.stopReasons["abc"] = "server shutdown"

	if got := m.takeStopReason("abc"); got != "server shutdown" {
		t.Fatalf("unexpected reason: %q", got)
	}
	if got := m.takeStopReason("abc"); got != "" {
		t.Fatalf("reason must be consumed, got %q", got)
	}
}
