package recognizer

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/recognizer"
)

// RegisterDI wires the backend selected by STT_ENGINE. The factory is
// constructed eagerly at boot, so a missing model or bad credentials
// stop the process before it accepts connections.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (recognizer.Factory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		switch cfg.Engine {
		case config.EngineGoogle:
			return NewGoogleFactory(context.Background(), GoogleConfig{
				ProjectID:       cfg.GoogleCloudProjectID,
				CredentialsJSON: cfg.GoogleCloudCredentialsJSON,
				Location:        cfg.GoogleCloudSpeechLocation,
				Model:           cfg.GoogleCloudSpeechModel,
				Language:        cfg.Language,
				SampleRate:      cfg.SampleRate,
				Channels:        cfg.Channels,
			})
		default:
			return NewVoskFactory(cfg.VoskModelPath, cfg.SampleRate)
		}
	})
}
