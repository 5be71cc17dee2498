package speech_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/stt"
	"github.com/mrsingh-rishi/voice-expense/types"
)

type changes struct {
	mu     sync.Mutex
	states []model.TranscriptSession
}

func (c *changes) record(s model.TranscriptSession) {
	c.mu.Lock()
	c.states = append(c.states, s)
	c.mu.Unlock()
}

func TestCapture_Unsupported(t *testing.T) {
	capture := speech.NewCapture(nil, "en-US", nil)
	assert.False(t, capture.IsSupported())
	err := capture.StartListening(context.Background())
	assert.ErrorIs(t, err, speech.ErrUnsupported)
	assert.False(t, capture.State().Listening)
}

func TestCapture_SingleShotResult(t *testing.T) {
	engine := stt.NewScriptedEngine(stt.Utterance{Text: "I spent 300 rs yesterday on sandwich"})
	capture := speech.NewCapture(engine, "", nil)
	rec := &changes{}
	capture.OnChange(rec.record)

	require.NoError(t, capture.StartListening(context.Background()))

	assert.Equal(t, model.TranscriptSession{Transcript: "I spent 300 rs yesterday on sandwich"}, capture.State())
	assert.Equal(t, []model.TranscriptSession{
		{Listening: true},
		{Listening: false, Transcript: "I spent 300 rs yesterday on sandwich"},
	}, rec.states)

	opts := engine.LastOptions()
	assert.Equal(t, "en-US", opts.Language)
	assert.False(t, opts.Continuous)
	assert.False(t, opts.InterimResults)
	assert.Equal(t, 1, opts.MaxAlternatives)
}

func TestCapture_NewSessionClearsPreviousTranscript(t *testing.T) {
	engine := stt.NewScriptedEngine(
		stt.Utterance{Text: "first"},
		stt.Utterance{Text: "second", Hold: true},
	)
	capture := speech.NewCapture(engine, "en-US", nil)

	require.NoError(t, capture.StartListening(context.Background()))
	assert.Equal(t, "first", capture.State().Transcript)

	require.NoError(t, capture.StartListening(context.Background()))
	assert.Equal(t, model.TranscriptSession{Listening: true}, capture.State())

	capture.StopListening()
	assert.Equal(t, model.TranscriptSession{Transcript: "second"}, capture.State())
	assert.Equal(t, 2, engine.Sessions())
}

func TestCapture_ErrorEndsListening(t *testing.T) {
	engine := stt.NewScriptedEngine(stt.Utterance{Err: errors.New("not-allowed")})
	capture := speech.NewCapture(engine, "en-US", nil)

	require.NoError(t, capture.StartListening(context.Background()))
	assert.Equal(t, model.TranscriptSession{}, capture.State())
}

func TestCapture_ResetTranscriptKeepsListening(t *testing.T) {
	engine := stt.NewScriptedEngine(stt.Utterance{Text: "bus 20"}, stt.Utterance{Hold: true})
	capture := speech.NewCapture(engine, "en-US", nil)

	require.NoError(t, capture.StartListening(context.Background()))
	capture.ResetTranscript()
	assert.Equal(t, model.TranscriptSession{}, capture.State())

	require.NoError(t, capture.StartListening(context.Background()))
	capture.ResetTranscript()
	assert.True(t, capture.State().Listening)
	capture.StopListening()
	assert.False(t, capture.State().Listening)
}

func TestCapture_StopWithoutSession(t *testing.T) {
	capture := speech.NewCapture(stt.NewScriptedEngine(), "en-US", nil)
	rec := &changes{}
	capture.OnChange(rec.record)
	capture.StopListening()
	assert.Empty(t, rec.states)
}

// gatedEngine hands out sessions whose Start blocks until released, like a slow handshake
// that finishes even after Stop.
type gatedEngine struct {
	mu       sync.Mutex
	sessions []*gatedSession
}

type gatedSession struct {
	handler speech.Handler
	started chan struct{}
	release chan struct{}
}

func (e *gatedEngine) NewSession(_ speech.Options, handler speech.Handler) (speech.Session, error) {
	s := &gatedSession{handler: handler, started: make(chan struct{}), release: make(chan struct{})}
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

func (e *gatedEngine) session(i int) *gatedSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[i]
}

func (s *gatedSession) Start(context.Context) error {
	close(s.started)
	<-s.release
	s.handler(types.RecognitionEvent{Kind: types.EventStart})
	return nil
}

func (s *gatedSession) Stop() {}

func (s *gatedSession) say(text string) {
	s.handler(types.RecognitionEvent{Kind: types.EventResult, Alternatives: []types.Alternative{{Transcript: text}}})
}

func startGated(t *testing.T, capture *speech.Capture) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- capture.StartListening(context.Background()) }()
	return done
}

func TestCapture_StopDuringStartStaysStopped(t *testing.T) {
	engine := &gatedEngine{}
	capture := speech.NewCapture(engine, "en-US", nil)

	done := startGated(t, capture)
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.sessions) == 1
	}, time.Second, time.Millisecond)
	first := engine.session(0)
	<-first.started

	capture.StopListening()
	close(first.release)
	require.NoError(t, <-done)
	assert.Equal(t, model.TranscriptSession{}, capture.State())

	// The stopped session may still flush its final result.
	first.say("bus ticket 20")
	assert.Equal(t, model.TranscriptSession{Transcript: "bus ticket 20"}, capture.State())

	first.handler(types.RecognitionEvent{Kind: types.EventEnd})
	first.handler(types.RecognitionEvent{Kind: types.EventStart})
	first.say("ignored")
	assert.Equal(t, model.TranscriptSession{Transcript: "bus ticket 20"}, capture.State())
}

func TestCapture_NewSessionDropsStoppedResult(t *testing.T) {
	engine := &gatedEngine{}
	capture := speech.NewCapture(engine, "en-US", nil)

	done := startGated(t, capture)
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.sessions) == 1
	}, time.Second, time.Millisecond)
	first := engine.session(0)
	close(first.release)
	require.NoError(t, <-done)
	capture.StopListening()

	done = startGated(t, capture)
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.sessions) == 2
	}, time.Second, time.Millisecond)
	second := engine.session(1)
	close(second.release)
	require.NoError(t, <-done)

	first.say("stale")
	assert.Equal(t, model.TranscriptSession{Listening: true}, capture.State())
	second.say("fresh")
	assert.Equal(t, model.TranscriptSession{Transcript: "fresh"}, capture.State())
}
