package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// ServiceVersion is reported in session_started messages, dispatch
// metadata and the health endpoint.
const ServiceVersion = "1.0.0"

const (
	EngineVosk   = "vosk"
	EngineGoogle = "google"
)

var allowedSampleRates = []int{8000, 16000, 32000, 44100, 48000}

type Config struct {
	Env                        string
	HTTPAddr                   string
	AllowedOrigins             []string
	Engine                     string
	VoskModelPath              string
	SampleRate                 int
	Channels                   int
	Language                   string
	PartialInterval            time.Duration
	ChunkBytes                 int
	SessionIdleTimeout         time.Duration
	DownstreamURL              string
	DownstreamTimeoutSeconds   int
	LogLevel                   string
	DatabaseURL                string
	SentryDSN                  string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.Engine {
	case EngineVosk:
		if c.VoskModelPath == "" {
			return fmt.Errorf("VOSK_MODEL_PATH is required when STT_ENGINE=%s", EngineVosk)
		}
		info, err := os.Stat(c.VoskModelPath)
		if err != nil {
			return fmt.Errorf("VOSK_MODEL_PATH does not exist: %s", c.VoskModelPath)
		}
		if !info.IsDir() {
			return fmt.Errorf("VOSK_MODEL_PATH is not a directory: %s", c.VoskModelPath)
		}
	case EngineGoogle:
		if c.GoogleCloudProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when STT_ENGINE=%s", EngineGoogle)
		}
		if c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when STT_ENGINE=%s", EngineGoogle)
		}
	default:
		return fmt.Errorf("STT_ENGINE must be %q or %q, got %q", EngineVosk, EngineGoogle, c.Engine)
	}
	if !isAllowedSampleRate(c.SampleRate) {
		return fmt.Errorf("STT_SAMPLE_RATE must be one of %v, got %d", allowedSampleRates, c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("STT_CHANNELS must be 1 (mono PCM), got %d", c.Channels)
	}
	if c.PartialInterval < 0 {
		return fmt.Errorf("STT_PARTIAL_INTERVAL must not be negative, got %s", c.PartialInterval)
	}
	if c.ChunkBytes <= 0 {
		return fmt.Errorf("STT_CHUNK_BYTES must be positive, got %d", c.ChunkBytes)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("STT_SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	parsed, err := url.Parse(c.DownstreamURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("DOWNSTREAM_URL must be an absolute http(s) URL, got %q", c.DownstreamURL)
	}
	if c.DownstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("DOWNSTREAM_TIMEOUT_SECONDS must be positive, got %d", c.DownstreamTimeoutSeconds)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must contain at least one entry")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "STT_LANGUAGE", value: c.Language},
		{name: "DOWNSTREAM_URL", value: c.DownstreamURL},
	}
}

func isAllowedSampleRate(rate int) bool {
	for _, allowed := range allowedSampleRates {
		if rate == allowed {
			return true
		}
	}
	return false
}

func (c *Config) DownstreamTimeout() time.Duration {
	return time.Duration(c.DownstreamTimeoutSeconds) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
