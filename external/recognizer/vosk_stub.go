//go:build !vosk

package recognizer

import (
	"github.com/vozlab/escriba/internal/recognizer"
)

// VoskAvailable reports whether the native vosk backend was compiled in.
func VoskAvailable() bool { return false }

func NewVoskFactory(_ string, _ int) (recognizer.Factory, error) {
	return nil, ErrVoskUnavailable
}
