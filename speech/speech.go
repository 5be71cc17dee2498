// Package speech adapts a speech recognition engine into a single-shot capture
// adapter: start, stop, one final transcript, a listening flag and a support flag.
package speech

import (
	"context"
	"errors"

	"github.com/mrsingh-rishi/voice-expense/types"
)

const DefaultLanguage = "en-US"

// ErrUnsupported is returned when no recognition engine is available.
var ErrUnsupported = errors.New("speech recognition is not supported")

// Options configures one recognition session.
type Options struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// SingleUtterance returns options for one final-only utterance in a fixed locale.
func SingleUtterance(language string) Options {
	if language == "" {
		language = DefaultLanguage
	}
	return Options{Language: language, MaxAlternatives: 1}
}

// Handler receives session events. It may be called from any goroutine.
type Handler func(types.RecognitionEvent)

// Session is one recognition attempt.
type Session interface {
	// Start begins capture. Engines emit EventStart once audio capture is live.
	Start(ctx context.Context) error
	// Stop requests early termination; the session still emits EventEnd.
	Stop()
}

// Engine creates recognition sessions.
type Engine interface {
	NewSession(opts Options, handler Handler) (Session, error)
}
