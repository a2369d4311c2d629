package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/vozlab/escriba/internal/recognizer"
)

// Result is the outcome of feeding one audio frame. A final result is a
// stabilized utterance; a non-final result carries the current partial
// text, which may be empty. Confidence is only known for finals, and only
// when the recognizer produced word detail.
type Result struct {
	Final      bool
	Text       string
	Confidence *float64
}

type Stats struct {
	SessionID      string
	SampleRate     int
	BytesProcessed int64
	MBProcessed    float64
	Partials       int64
	Finals         int64
}

// Engine wraps one recognizer session with transcription bookkeeping.
// It is owned by a single session goroutine and is not safe for
// concurrent use.
type Engine struct {
	sessionID  string
	sampleRate int
	rec        recognizer.Session

	bytesProcessed int64
	partials       int64
	finals         int64
	finalized      bool
}

func New(sessionID string, sampleRate int, rec recognizer.Session) *Engine {
	return &Engine{sessionID: sessionID, sampleRate: sampleRate, rec: rec}
}

// ProcessAudio feeds one frame. Silence between utterances produces an
// empty non-final result; callers treat that as "nothing to report".
func (e *Engine) ProcessAudio(frame []byte) (Result, error) {
	e.bytesProcessed += int64(len(frame))

	boundary, err := e.rec.AcceptWaveform(frame)
	if err != nil {
		return Result{}, fmt.Errorf("accept waveform: %w", err)
	}
	if boundary {
		hyp, err := e.rec.Result()
		if err != nil {
			return Result{}, fmt.Errorf("read result: %w", err)
		}
		text := strings.TrimSpace(hyp.Text)
		if text == "" {
			return Result{}, nil
		}
		e.finals++
		return Result{Final: true, Text: text, Confidence: weightedConfidence(hyp.Words)}, nil
	}

	partial, err := e.rec.PartialResult()
	if err != nil {
		return Result{}, fmt.Errorf("read partial: %w", err)
	}
	text := strings.TrimSpace(partial)
	if text != "" {
		e.partials++
	}
	return Result{Text: text}, nil
}

// Finalize flushes buffered audio and returns the closing utterance, or
// nil when nothing intelligible remained. Safe to call more than once;
// only the first call reaches the recognizer.
func (e *Engine) Finalize() (*Result, error) {
	if e.finalized {
		return nil, nil
	}
	e.finalized = true

	hyp, err := e.rec.FinalResult()
	if err != nil {
		return nil, fmt.Errorf("flush recognizer: %w", err)
	}
	text := strings.TrimSpace(hyp.Text)
	if text == "" {
		return nil, nil
	}
	e.finals++
	return &Result{Final: true, Text: text, Confidence: weightedConfidence(hyp.Words)}, nil
}

func (e *Engine) Stats() Stats {
	return Stats{
		SessionID:      e.sessionID,
		SampleRate:     e.sampleRate,
		BytesProcessed: e.bytesProcessed,
		MBProcessed:    math.Round(float64(e.bytesProcessed)/(1024*1024)*100) / 100,
		Partials:       e.partials,
		Finals:         e.finals,
	}
}

func (e *Engine) Close() error {
	return e.rec.Close()
}

// weightedConfidence averages word confidences weighted by word duration.
// Words with a non-positive duration are excluded from both sums; when
// every duration is degenerate the plain arithmetic mean over all words
// is used instead. Returns nil when there is no word detail.
func weightedConfidence(words []recognizer.Word) *float64 {
	if len(words) == 0 {
		return nil
	}
	var weighted, duration float64
	for _, w := range words {
		d := w.End - w.Start
		if d <= 0 {
			continue
		}
		weighted += w.Conf * d
		duration += d
	}
	if duration > 0 {
		mean := weighted / duration
		return &mean
	}
	var sum float64
	for _, w := range words {
		sum += w.Conf
	}
	mean := sum / float64(len(words))
	return &mean
}
