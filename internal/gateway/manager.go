package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/dispatch"
	"github.com/vozlab/escriba/internal/recognizer"
	"github.com/vozlab/escriba/internal/repository"
)

const shutdownDrainTimeout = 10 * time.Second

// Manager tracks live sessions so the health endpoint can count them and
// shutdown can drain them. Session IDs are assigned here.
type Manager struct {
	cfg        *config.Config
	recognizer recognizer.Factory
	dispatch   dispatch.Factory
	repo       repository.SessionRepository

	mu          sync.Mutex
	sessions    map[string]*Session
	stopReasons map[string]string
	stopping    bool
	wg          sync.WaitGroup
}

func NewManager(cfg *config.Config, rec recognizer.Factory, df dispatch.Factory, repo repository.SessionRepository) *Manager {
	return &Manager{
		cfg:         cfg,
		recognizer:  rec,
		dispatch:    df,
		repo:        repo,
		sessions:    make(map[string]*Session),
		stopReasons: make(map[string]string),
	}
}

// HandleConnection owns conn for the lifetime of one session and blocks
// until the session terminates. Callers run it on the connection's
// handler goroutine.
func (m *Manager) HandleConnection(conn Conn) {
	s := newSession(m, uuid.NewString(), conn)
	s.run()
}

func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StopAll closes every live connection with the given reason and waits
// for the teardown flushes to finish, bounded by the drain timeout.
// Connections arriving afterwards are refused by register.
func (m *Manager) StopAll(reason string) {
	m.mu.Lock()
	m.stopping = true
	closing := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		m.stopReasons[id] = reason
		closing = append(closing, s)
	}
	m.mu.Unlock()
	if len(closing) == 0 {
		return
	}

	slog.Info("stopping all sessions", "count", len(closing), "reason", reason)
	for _, s := range closing {
		_ = s.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownDrainTimeout):
		slog.Warn("session drain timed out", "remaining", m.ActiveSessions())
	}
}

// register adds the session to the registry. It refuses sessions once
// StopAll has started, so the drain wait never races a late wg.Add.
func (m *Manager) register(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false
	}
	m.sessions[s.id] = s
	m.wg.Add(1)
	return true
}

func (m *Manager) deregister(id string) {
	m.mu.Lock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.wg.Done()
	}
	m.mu.Unlock()
}

// takeStopReason consumes an externally recorded stop reason, if any.
// Sessions whose connection was closed by StopAll find their reason here
// instead of deriving one from the read error.
func (m *Manager) takeStopReason(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason := m.stopReasons[sessionID]
	delete(m.stopReasons, sessionID)
	return reason
}
