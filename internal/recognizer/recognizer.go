package recognizer

import "context"

// Word is one recognized token with timing in seconds and a confidence
// in [0, 1]. Backends that cannot produce word detail leave Words empty.
type Word struct {
	Text  string
	Start float64
	End   float64
	Conf  float64
}

// Hypothesis is a stabilized recognition result.
type Hypothesis struct {
	Text  string
	Words []Word
}

// Session is one decoding stream over a shared acoustic model. Sessions
// are not safe for concurrent use; each gateway session owns exactly one.
type Session interface {
	// AcceptWaveform feeds raw PCM and reports whether the recognizer
	// crossed an utterance boundary on this frame.
	AcceptWaveform(pcm []byte) (bool, error)
	// Result returns the stabilized hypothesis after a boundary.
	Result() (Hypothesis, error)
	// PartialResult returns the current unstabilized text.
	PartialResult() (string, error)
	// FinalResult flushes buffered audio and returns the closing hypothesis.
	FinalResult() (Hypothesis, error)
	Close() error
}

// Factory owns the process-wide model and opens per-session decoders.
type Factory interface {
	NewSession(ctx context.Context, sessionID string) (Session, error)
	// Backend names the implementation for logs and health reporting.
	Backend() string
	// Ready reports whether the shared model is loaded and usable.
	Ready() bool
	Close() error
}
