package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/vozlab/escriba/internal/recognizer"
)

type fakeSession struct {
	boundary   bool
	acceptErr  error
	result     recognizer.Hypothesis
	resultErr  error
	partial    string
	partialErr error
	finalHyp   recognizer.Hypothesis
	finalErr   error
	finalCalls int
	closed     bool
}

func (f *fakeSession) AcceptWaveform(pcm []byte) (bool, error) { return f.boundary, f.acceptErr }
func (f *fakeSession) Result() (recognizer.Hypothesis, error)  { return f.result, f.resultErr }
func (f *fakeSession) PartialResult() (string, error)          { return f.partial, f.partialErr }
func (f *fakeSession) FinalResult() (recognizer.Hypothesis, error) {
	f.finalCalls++
	return f.finalHyp, f.finalErr
}
func (f *fakeSession) Close() error { f.closed = true; return nil }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestProcessAudio_PartialFlow(t *testing.T) {
	rec := &fakeSession{partial: "ola mun"}
	eng := New("s1", 16000, rec)

	res, err := eng.ProcessAudio(make([]byte, 640))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final || res.Text != "ola mun" || res.Confidence != nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec.partial = ""
	if _, err := eng.ProcessAudio(make([]byte, 640)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := eng.Stats()
	if stats.Partials != 1 {
		t.Fatalf("empty partials must not be counted, got %d", stats.Partials)
	}
	if stats.BytesProcessed != 1280 {
		t.Fatalf("expected 1280 bytes processed, got %d", stats.BytesProcessed)
	}
}

func TestProcessAudio_FinalWithWeightedConfidence(t *testing.T) {
	rec := &fakeSession{
		boundary: true,
		result: recognizer.Hypothesis{
			Text: " ola mundo ",
			Words: []recognizer.Word{
				{Text: "ola", Start: 0, End: 1, Conf: 0.9},
				{Text: "mundo", Start: 1, End: 3, Conf: 0.5},
			},
		},
	}
	eng := New("s1", 16000, rec)

	res, err := eng.ProcessAudio(make([]byte, 640))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Final || res.Text != "ola mundo" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Confidence == nil {
		t.Fatal("expected confidence for final with word detail")
	}
	// (0.9*1 + 0.5*2) / 3
	if want := 1.9 / 3.0; !almostEqual(*res.Confidence, want) {
		t.Fatalf("expected confidence %.6f, got %.6f", want, *res.Confidence)
	}
	if eng.Stats().Finals != 1 {
		t.Fatalf("expected one final, got %d", eng.Stats().Finals)
	}
}

func TestProcessAudio_SilentBoundaryIsQuiet(t *testing.T) {
	rec := &fakeSession{boundary: true, result: recognizer.Hypothesis{Text: "  "}}
	eng := New("s1", 16000, rec)

	res, err := eng.ProcessAudio(make([]byte, 640))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Final || res.Text != "" {
		t.Fatalf("silent boundary must yield an empty non-final result, got %+v", res)
	}
	if eng.Stats().Finals != 0 {
		t.Fatal("silent boundary must not count as a final")
	}
}

func TestProcessAudio_NoWordDetailMeansUnknownConfidence(t *testing.T) {
	rec := &fakeSession{boundary: true, result: recognizer.Hypothesis{Text: "ola"}}
	eng := New("s1", 16000, rec)

	res, err := eng.ProcessAudio(make([]byte, 640))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confidence != nil {
		t.Fatalf("expected unknown confidence, got %v", *res.Confidence)
	}
}

func TestProcessAudio_AcceptError(t *testing.T) {
	cause := errors.New("decoder blew up")
	eng := New("s1", 16000, &fakeSession{acceptErr: cause})

	if _, err := eng.ProcessAudio(make([]byte, 640)); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped recognizer error, got %v", err)
	}
}

func TestWeightedConfidence(t *testing.T) {
	// Zero-duration word is excluded from both sums.
	conf := weightedConfidence([]recognizer.Word{
		{Start: 5, End: 5, Conf: 0.2},
		{Start: 0, End: 2, Conf: 0.8},
	})
	if conf == nil || !almostEqual(*conf, 0.8) {
		t.Fatalf("expected 0.8, got %v", conf)
	}

	// All durations degenerate: arithmetic mean over every word.
	conf = weightedConfidence([]recognizer.Word{
		{Start: 1, End: 1, Conf: 0.2},
		{Start: 3, End: 2, Conf: 0.8},
	})
	if conf == nil || !almostEqual(*conf, 0.5) {
		t.Fatalf("expected fallback mean 0.5, got %v", conf)
	}

	if weightedConfidence(nil) != nil {
		t.Fatal("expected nil confidence without word detail")
	}
}

func TestFinalize(t *testing.T) {
	rec := &fakeSession{finalHyp: recognizer.Hypothesis{
		Text:  "ate logo",
		Words: []recognizer.Word{{Start: 0, End: 1, Conf: 0.7}},
	}}
	eng := New("s1", 16000, rec)

	res, err := eng.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || !res.Final || res.Text != "ate logo" {
		t.Fatalf("unexpected flush result: %+v", res)
	}
	if res.Confidence == nil || !almostEqual(*res.Confidence, 0.7) {
		t.Fatalf("unexpected flush confidence: %v", res.Confidence)
	}
	if eng.Stats().Finals != 1 {
		t.Fatalf("flush final must be counted, got %d", eng.Stats().Finals)
	}

	// Second call must not reach the recognizer again.
	res, err = eng.Finalize()
	if err != nil || res != nil {
		t.Fatalf("expected idempotent finalize, got %+v, %v", res, err)
	}
	if rec.finalCalls != 1 {
		t.Fatalf("expected exactly one FinalResult call, got %d", rec.finalCalls)
	}
}

func TestFinalize_EmptyFlush(t *testing.T) {
	eng := New("s1", 16000, &fakeSession{})

	res, err := eng.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result for empty flush, got %+v", res)
	}
	if eng.Stats().Finals != 0 {
		t.Fatal("empty flush must not count as a final")
	}
}

func TestStats_MBRounding(t *testing.T) {
	rec := &fakeSession{}
	eng := New("s1", 16000, rec)
	if _, err := eng.ProcessAudio(make([]byte, 1572864)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := eng.Stats().MBProcessed; !almostEqual(got, 1.5) {
		t.Fatalf("expected 1.5 MB, got %v", got)
	}
}
