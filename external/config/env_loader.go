package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	internalconfig "github.com/vozlab/escriba/internal/config"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	HTTPAddr                   string        `env:"HTTP_ADDR" envDefault:":9100"`
	AllowedOrigins             []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	Engine                     string        `env:"STT_ENGINE" envDefault:"vosk"`
	VoskModelPath              string        `env:"VOSK_MODEL_PATH"`
	SampleRate                 int           `env:"STT_SAMPLE_RATE" envDefault:"16000"`
	Channels                   int           `env:"STT_CHANNELS" envDefault:"1"`
	Language                   string        `env:"STT_LANGUAGE" envDefault:"pt-br"`
	PartialInterval            time.Duration `env:"STT_PARTIAL_INTERVAL" envDefault:"500ms"`
	ChunkBytes                 int           `env:"STT_CHUNK_BYTES" envDefault:"8192"`
	SessionIdleTimeout         time.Duration `env:"STT_SESSION_IDLE_TIMEOUT" envDefault:"5m"`
	DownstreamURL              string        `env:"DOWNSTREAM_URL" envDefault:"http://localhost:9000/traduzir"`
	DownstreamTimeoutSeconds   int           `env:"DOWNSTREAM_TIMEOUT_SECONDS" envDefault:"10"`
	LogLevel                   string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL                string        `env:"DATABASE_URL"`
	SentryDSN                  string        `env:"SENTRY_DSN"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"us-central1"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
}

func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		AllowedOrigins:             raw.AllowedOrigins,
		Engine:                     raw.Engine,
		VoskModelPath:              raw.VoskModelPath,
		SampleRate:                 raw.SampleRate,
		Channels:                   raw.Channels,
		Language:                   raw.Language,
		PartialInterval:            raw.PartialInterval,
		ChunkBytes:                 raw.ChunkBytes,
		SessionIdleTimeout:         raw.SessionIdleTimeout,
		DownstreamURL:              raw.DownstreamURL,
		DownstreamTimeoutSeconds:   raw.DownstreamTimeoutSeconds,
		LogLevel:                   raw.LogLevel,
		DatabaseURL:                raw.DatabaseURL,
		SentryDSN:                  raw.SentryDSN,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
