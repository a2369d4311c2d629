package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samber/do/v2"

	configloader "github.com/vozlab/escriba/external/config"
	dispatchimpl "github.com/vozlab/escriba/external/dispatch"
	"github.com/vozlab/escriba/external/httpapi"
	recognizerimpl "github.com/vozlab/escriba/external/recognizer"
	repositoryimpl "github.com/vozlab/escriba/external/repository"
	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/gateway"
	"github.com/vozlab/escriba/internal/recognizer"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "engine", cfg.Engine)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			slog.Warn("sentry init failed", "error", err)
		} else {
			slog.Info("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	// The acoustic model loads before the listener opens.
	slog.Info("startup: initializing speech recognizer")
	rec, err := do.Invoke[recognizer.Factory](injector)
	if err != nil {
		slog.Error("failed to initialize recognizer backend", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: recognizer ready", "backend", rec.Backend())

	manager, err := do.Invoke[*gateway.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}

	runServer(cfg, rec, manager, server)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	recognizerimpl.RegisterDI(injector)
	dispatchimpl.RegisterDI(injector)
	gateway.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, rec recognizer.Factory, manager *gateway.Manager, server *httpapi.Server) {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("startup: listening", "addr", cfg.HTTPAddr, "websocket_endpoint", "/stt")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Sessions drain before the listener closes.
	manager.StopAll("server shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	if err := rec.Close(); err != nil {
		slog.Error("recognizer close failed", "error", err)
	}
	slog.Info("shutdown complete")
}
