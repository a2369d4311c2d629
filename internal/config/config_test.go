package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Env:                      "development",
		HTTPAddr:                 ":9100",
		AllowedOrigins:           []string{"*"},
		Engine:                   EngineVosk,
		VoskModelPath:            t.TempDir(),
		SampleRate:               16000,
		Channels:                 1,
		Language:                 "pt-br",
		PartialInterval:          500 * time.Millisecond,
		ChunkBytes:               8192,
		SessionIdleTimeout:       5 * time.Minute,
		DownstreamURL:            "http://localhost:9000/traduzir",
		DownstreamTimeoutSeconds: 10,
		LogLevel:                 "info",
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_ModelPathMissing(t *testing.T) {
	cfg := validConfig(t)
	cfg.VoskModelPath = filepath.Join(t.TempDir(), "no-such-model")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for nonexistent model path")
	}
}

func TestValidate_ModelPathNotDirectory(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "model")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	cfg.VoskModelPath = file
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for model path that is a file")
	}
}

func TestValidate_ModelPathRequiredForVosk(t *testing.T) {
	cfg := validConfig(t)
	cfg.VoskModelPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when VOSK_MODEL_PATH is empty")
	}
}

func TestValidate_UnknownEngine(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine = "whisper"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestValidate_GoogleEngineRequiresCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine = EngineGoogle
	cfg.VoskModelPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when google engine has no project id")
	}

	cfg.GoogleCloudProjectID = "project-id"
	cfg.GoogleCloudCredentialsJSON = `{"type":"service_account"}`
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error with google credentials, got %v", err)
	}
}

func TestValidate_SampleRate(t *testing.T) {
	cfg := validConfig(t)
	cfg.SampleRate = 22050
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported sample rate")
	}
	for _, rate := range []int{8000, 16000, 32000, 44100, 48000} {
		cfg.SampleRate = rate
		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected rate %d to be accepted, got %v", rate, err)
		}
	}
}

func TestValidate_Channels(t *testing.T) {
	cfg := validConfig(t)
	cfg.Channels = 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for stereo input")
	}
}

func TestValidate_NegativePartialInterval(t *testing.T) {
	cfg := validConfig(t)
	cfg.PartialInterval = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative partial interval")
	}
	cfg.PartialInterval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected zero interval (no throttle) to be accepted, got %v", err)
	}
}

func TestValidate_DownstreamURL(t *testing.T) {
	cfg := validConfig(t)
	for _, bad := range []string{"", "localhost:9000", "ftp://example.com/x", "://nope"} {
		cfg.DownstreamURL = bad
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for downstream URL %q", bad)
		}
	}
}

func TestValidate_DownstreamTimeout(t *testing.T) {
	cfg := validConfig(t)
	cfg.DownstreamTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive downstream timeout")
	}
}

func TestValidate_ChunkBytes(t *testing.T) {
	cfg := validConfig(t)
	cfg.ChunkBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive chunk size")
	}
}

func TestValidate_SessionIdleTimeout(t *testing.T) {
	cfg := validConfig(t)
	cfg.SessionIdleTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive idle timeout")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestDownstreamTimeout(t *testing.T) {
	cfg := &Config{DownstreamTimeoutSeconds: 10}
	if got := cfg.DownstreamTimeout(); got != 10*time.Second {
		t.Fatalf("expected 10s, got %s", got)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode")
	}
	cfg.Env = "production"
	if cfg.IsDevelopment() {
		t.Fatal("expected non-development mode")
	}
}
