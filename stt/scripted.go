// Package stt provides speech engines: Deepgram streaming, OpenAI Whisper clips and a
// scripted engine that replays queued utterances.
package stt

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrsingh-rishi/voice-expense/queue"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/types"
)

// Utterance is one scripted recognition outcome.
type Utterance struct {
	Text string
	Err  error
	// Hold keeps the session listening until Stop, then delivers Text.
	Hold bool
}

// ScriptedEngine replays queued utterances, one per session, synchronously inside Start.
// An empty queue yields a session that ends without a result.
type ScriptedEngine struct {
	script *queue.Queue[Utterance]

	mu       sync.Mutex
	sessions int
	last     speech.Options
}

// NewScriptedEngine creates an engine with the given script.
func NewScriptedEngine(utterances ...Utterance) *ScriptedEngine {
	return &ScriptedEngine{script: queue.New(utterances...)}
}

// Say queues a successful utterance.
func (e *ScriptedEngine) Say(text string) {
	e.script.Enqueue(Utterance{Text: text})
}

// Queue adds an arbitrary utterance.
func (e *ScriptedEngine) Queue(u Utterance) {
	e.script.Enqueue(u)
}

// Sessions returns how many sessions were created.
func (e *ScriptedEngine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions
}

// LastOptions returns the options of the most recent session.
func (e *ScriptedEngine) LastOptions() speech.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *ScriptedEngine) NewSession(opts speech.Options, handler speech.Handler) (speech.Session, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	e.mu.Lock()
	e.sessions++
	e.last = opts
	e.mu.Unlock()
	return &scriptedSession{engine: e, handler: handler}, nil
}

type scriptedSession struct {
	engine  *ScriptedEngine
	handler speech.Handler

	mu      sync.Mutex
	held    *Utterance
	started bool
	ended   bool
}

func (s *scriptedSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	s.handler(types.RecognitionEvent{Kind: types.EventStart})

	utterance, ok := s.engine.script.Dequeue()
	if ok && utterance.Hold {
		s.mu.Lock()
		s.held = &utterance
		s.mu.Unlock()
		return nil
	}
	if ok {
		s.deliver(utterance)
	}
	s.end()
	return nil
}

func (s *scriptedSession) Stop() {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.mu.Unlock()

	if held != nil {
		s.deliver(*held)
	}
	s.end()
}

func (s *scriptedSession) deliver(u Utterance) {
	if u.Err != nil {
		s.handler(types.RecognitionEvent{Kind: types.EventError, Err: u.Err})
		return
	}
	if u.Text == "" {
		return
	}
	s.handler(types.RecognitionEvent{
		Kind:         types.EventResult,
		Alternatives: []types.Alternative{{Transcript: u.Text, Confidence: 1}},
	})
}

func (s *scriptedSession) end() {
	s.mu.Lock()
	if !s.started || s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()
	s.handler(types.RecognitionEvent{Kind: types.EventEnd})
}
