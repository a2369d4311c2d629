package recognizer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vozlab/escriba/internal/recognizer"
)

// ErrVoskUnavailable is returned by NewVoskFactory when the binary was
// built without the vosk build tag.
var ErrVoskUnavailable = errors.New("vosk backend not compiled in (rebuild with -tags vosk)")

// voskResult mirrors the JSON the native recognizer emits at utterance
// boundaries and on the closing flush.
type voskResult struct {
	Text   string     `json:"text"`
	Result []voskWord `json:"result"`
}

type voskWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

type voskPartial struct {
	Partial string `json:"partial"`
}

func parseVoskResult(raw string) (recognizer.Hypothesis, error) {
	var decoded voskResult
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return recognizer.Hypothesis{}, fmt.Errorf("malformed recognizer result: %w", err)
	}
	hyp := recognizer.Hypothesis{Text: decoded.Text}
	if len(decoded.Result) == 0 {
		return hyp, nil
	}
	hyp.Words = make([]recognizer.Word, 0, len(decoded.Result))
	for _, w := range decoded.Result {
		hyp.Words = append(hyp.Words, recognizer.Word{
			Text:  w.Word,
			Start: w.Start,
			End:   w.End,
			Conf:  w.Conf,
		})
	}
	return hyp, nil
}

func parseVoskPartial(raw string) (string, error) {
	var decoded voskPartial
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", fmt.Errorf("malformed recognizer partial: %w", err)
	}
	return decoded.Partial, nil
}
