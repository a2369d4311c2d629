//go:build vosk

package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/vozlab/escriba/internal/recognizer"
)

// VoskAvailable reports whether the native vosk backend was compiled in.
func VoskAvailable() bool { return true }

// VoskFactory owns the acoustic model for the whole process. The model
// is loaded once at construction and shared read-only by the per-session
// recognizers, so model load failures surface at startup instead of on
// the first connection.
type VoskFactory struct {
	model      *vosk.VoskModel
	modelPath  string
	sampleRate int
}

func NewVoskFactory(modelPath string, sampleRate int) (recognizer.Factory, error) {
	slog.Info("loading vosk acoustic model", "model_path", modelPath)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vosk model from %s: %w", modelPath, err)
	}
	slog.Info("vosk acoustic model loaded", "model_path", modelPath, "sample_rate", sampleRate)
	return &VoskFactory{
		model:      model,
		modelPath:  modelPath,
		sampleRate: sampleRate,
	}, nil
}

func (f *VoskFactory) NewSession(_ context.Context, sessionID string) (recognizer.Session, error) {
	rec, err := vosk.NewRecognizer(f.model, float64(f.sampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	rec.SetWords(1)
	slog.Debug("vosk recognizer created", "session_id", sessionID)
	return &voskSession{rec: rec}, nil
}

func (f *VoskFactory) Backend() string { return "vosk" }

func (f *VoskFactory) Ready() bool { return f.model != nil }

func (f *VoskFactory) Close() error {
	if f.model != nil {
		f.model.Free()
		f.model = nil
	}
	return nil
}

// voskSession wraps a native recognizer bound to the shared model.
// Callers feed it from a single goroutine.
type voskSession struct {
	rec *vosk.VoskRecognizer
}

func (s *voskSession) AcceptWaveform(pcm []byte) (bool, error) {
	state := s.rec.AcceptWaveform(pcm)
	if state < 0 {
		return false, errors.New("recognizer rejected waveform")
	}
	return state > 0, nil
}

func (s *voskSession) Result() (recognizer.Hypothesis, error) {
	return parseVoskResult(s.rec.Result())
}

func (s *voskSession) PartialResult() (string, error) {
	return parseVoskPartial(s.rec.PartialResult())
}

func (s *voskSession) FinalResult() (recognizer.Hypothesis, error) {
	return parseVoskResult(s.rec.FinalResult())
}

func (s *voskSession) Close() error {
	if s.rec != nil {
		s.rec.Free()
		s.rec = nil
	}
	return nil
}
