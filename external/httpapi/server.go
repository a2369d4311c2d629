// Package httpapi exposes the service over HTTP: service info, health,
// recent session stats and the websocket endpoint that feeds the
// transcription gateway.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/gateway"
	"github.com/vozlab/escriba/internal/recognizer"
	"github.com/vozlab/escriba/internal/repository"
)

const (
	defaultSessionsLimit = 20
	maxSessionsLimit     = 100
)

type Server struct {
	cfg      *config.Config
	manager  *gateway.Manager
	rec      recognizer.Factory
	repo     repository.SessionRepository
	upgrader *websocket.Upgrader
}

func NewServer(cfg *config.Config, manager *gateway.Manager, rec recognizer.Factory, repo repository.SessionRepository) *Server {
	return &Server{
		cfg:      cfg,
		manager:  manager,
		rec:      rec,
		repo:     repo,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/sessions", s.handleSessions)
	r.Get("/stt", s.handleSTT)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":            "escriba-stt",
		"version":            config.ServiceVersion,
		"status":             "online",
		"websocket_endpoint": "/stt",
		"engine":             s.rec.Backend(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	engineReady := s.rec.Ready()
	status := "healthy"
	code := http.StatusOK
	if !engineReady {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"components": map[string]any{
			"engine": map[string]any{
				"backend": s.rec.Backend(),
				"ready":   engineReady,
			},
			"downstream": map[string]any{
				"url":             s.cfg.DownstreamURL,
				"timeout_seconds": s.cfg.DownstreamTimeoutSeconds,
			},
			"sessions": map[string]any{
				"active": s.manager.ActiveSessions(),
			},
		},
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxSessionsLimit)
	}

	sessions, err := s.repo.ListRecentSessions(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list recent sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
