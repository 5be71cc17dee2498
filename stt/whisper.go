package stt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/types"
)

// ClipSource opens the audio clip a Whisper session transcribes. name carries the file
// extension OpenAI uses to detect the format.
type ClipSource func(ctx context.Context) (clip io.ReadCloser, name string, err error)

// FileClip returns a ClipSource reading path.
func FileClip(path string) ClipSource {
	return func(context.Context) (io.ReadCloser, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open clip: %w", err)
		}
		return f, filepath.Base(path), nil
	}
}

// WhisperEngine transcribes recorded clips through the OpenAI audio API.
type WhisperEngine struct {
	Client *openai.Client
	Model  string
	Source ClipSource
	Logger *slog.Logger
}

// NewWhisperEngine creates an engine. model defaults to whisper-1.
func NewWhisperEngine(client *openai.Client, model string, source ClipSource, logger *slog.Logger) (*WhisperEngine, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client is required")
	}
	if source == nil {
		return nil, fmt.Errorf("clip source is required")
	}
	if model == "" {
		model = openai.Whisper1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WhisperEngine{Client: client, Model: model, Source: source, Logger: logger}, nil
}

func (e *WhisperEngine) NewSession(opts speech.Options, handler speech.Handler) (speech.Session, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	return &whisperSession{engine: e, opts: opts, handler: handler}, nil
}

type whisperSession struct {
	engine  *WhisperEngine
	opts    speech.Options
	handler speech.Handler

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (s *whisperSession) Start(ctx context.Context) error {
	clip, name, err := s.engine.Source(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.handler(types.RecognitionEvent{Kind: types.EventStart})
	go func() {
		defer cancel()
		defer clip.Close()
		defer s.handler(types.RecognitionEvent{Kind: types.EventEnd})

		resp, err := s.engine.Client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    s.engine.Model,
			FilePath: name,
			Reader:   clip,
			Language: isoLanguage(s.opts.Language),
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			s.engine.Logger.Error("Whisper transcription failed", "error", err)
			s.handler(types.RecognitionEvent{Kind: types.EventError, Err: err})
			return
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return
		}
		s.handler(types.RecognitionEvent{
			Kind:         types.EventResult,
			Alternatives: []types.Alternative{{Transcript: text, Confidence: 1}},
		})
	}()
	return nil
}

func (s *whisperSession) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// isoLanguage reduces a locale tag such as en-US to the ISO-639-1 code Whisper expects.
func isoLanguage(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		return strings.ToLower(locale[:i])
	}
	return strings.ToLower(locale)
}
