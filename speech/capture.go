package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/types"
)

// Capture is the capture adapter. At most one session is active; starting a new one
// supersedes the previous session and its late events are ignored. A stopped session
// may still deliver its final result, but can never report listening again.
type Capture struct {
	engine Engine
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	state      model.TranscriptSession
	session    Session
	generation uint64
	// draining is the generation of a stopped session whose final result is still due.
	draining  uint64
	listeners []func(model.TranscriptSession)
}

// NewCapture creates a Capture. A nil engine yields an unsupported adapter.
func NewCapture(engine Engine, language string, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		engine: engine,
		opts:   SingleUtterance(language),
		logger: logger,
	}
}

// IsSupported reports whether a recognition engine is available.
func (c *Capture) IsSupported() bool {
	return c.engine != nil
}

// State returns the current session snapshot.
func (c *Capture) State() model.TranscriptSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers fn to be called with every state change.
func (c *Capture) OnChange(fn func(model.TranscriptSession)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// StartListening starts a fresh single-utterance session.
func (c *Capture) StartListening(ctx context.Context) error {
	if c.engine == nil {
		c.logger.WarnContext(ctx, "Speech recognition is not supported")
		return ErrUnsupported
	}

	c.mu.Lock()
	previous := c.session
	c.session = nil
	c.generation++
	c.draining = 0
	generation := c.generation
	c.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}

	session, err := c.engine.NewSession(c.opts, func(ev types.RecognitionEvent) {
		c.handle(generation, ev)
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to create speech session", "error", err)
		return fmt.Errorf("failed to create speech session: %w", err)
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		session.Stop()
		return nil
	}
	c.session = session
	c.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to start speech session", "error", err)
		c.handle(generation, types.RecognitionEvent{Kind: types.EventEnd})
		return fmt.Errorf("failed to start speech session: %w", err)
	}
	return nil
}

// StopListening requests the active session to end.
func (c *Capture) StopListening() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	if session != nil {
		c.draining = c.generation
	}
	c.generation++
	changed := c.state.Listening
	c.state.Listening = false
	snapshot, listeners := c.state, c.listeners
	c.mu.Unlock()

	if changed {
		notify(listeners, snapshot)
	}
	if session != nil {
		session.Stop()
	}
}

// ResetTranscript clears the transcript without touching the listening flag.
func (c *Capture) ResetTranscript() {
	c.mu.Lock()
	changed := c.state.Transcript != ""
	c.state.Transcript = ""
	snapshot, listeners := c.state, c.listeners
	c.mu.Unlock()

	if changed {
		notify(listeners, snapshot)
	}
}

func (c *Capture) handle(generation uint64, ev types.RecognitionEvent) {
	c.mu.Lock()
	if generation != c.generation {
		c.drain(generation, ev)
		return
	}
	before := c.state
	switch ev.Kind {
	case types.EventStart:
		c.state = model.TranscriptSession{Listening: true}
	case types.EventResult:
		c.state.Transcript = ev.Top()
		c.state.Listening = false
	case types.EventError:
		c.logger.Error("Speech recognition error", "error", ev.Err)
		c.state.Listening = false
	case types.EventEnd:
		c.state.Listening = false
		c.session = nil
	}
	snapshot, listeners := c.state, c.listeners
	c.mu.Unlock()

	if snapshot != before {
		notify(listeners, snapshot)
	}
}

// drain handles an event from a session that is no longer current and releases c.mu.
// Only the final result of a stopped session is kept; listening stays false.
func (c *Capture) drain(generation uint64, ev types.RecognitionEvent) {
	if generation == 0 || generation != c.draining {
		c.mu.Unlock()
		return
	}
	switch ev.Kind {
	case types.EventResult:
		before := c.state
		c.state = model.TranscriptSession{Transcript: ev.Top()}
		snapshot, listeners := c.state, c.listeners
		c.mu.Unlock()
		if snapshot != before {
			notify(listeners, snapshot)
		}
		return
	case types.EventError:
		c.logger.Error("Speech recognition error", "error", ev.Err)
	case types.EventEnd:
		c.draining = 0
	}
	c.mu.Unlock()
}

func notify(listeners []func(model.TranscriptSession), state model.TranscriptSession) {
	for _, fn := range listeners {
		fn(state)
	}
}
