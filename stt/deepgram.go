package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/timer"
	"github.com/mrsingh-rishi/voice-expense/types"
	"github.com/mrsingh-rishi/voice-expense/workers"
)

const (
	DeepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramModel    = "nova-2"
	closeGrace       = 3 * time.Second
)

// TranscriptionMessage is a Deepgram streaming result.
type TranscriptionMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// DeepgramEngine recognizes speech by streaming audio to Deepgram over a websocket.
// Audio is read from Audio for as long as a session is active.
type DeepgramEngine struct {
	APIKey     string
	Endpoint   string
	Model      string
	Encoding   string // empty lets Deepgram detect containerized audio
	SampleRate int
	Audio      <-chan model.AudioChunk
	Dialer     *gws.Dialer
	// Scheduler runs the close grace period.
	Scheduler timer.Scheduler
	Logger    *slog.Logger
}

// NewDeepgramEngine creates an engine reading audio from audio.
func NewDeepgramEngine(apiKey string, audio <-chan model.AudioChunk, logger *slog.Logger) (*DeepgramEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	if audio == nil {
		return nil, fmt.Errorf("audio channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeepgramEngine{
		APIKey:   apiKey,
		Endpoint: DeepgramEndpoint,
		Model:    deepgramModel,
		Audio:    audio,
		Dialer:    gws.DefaultDialer,
		Scheduler: timer.Real(),
		Logger:    logger,
	}, nil
}

// PhoneCall configures the engine for Twilio's 8kHz mu-law media stream.
func (e *DeepgramEngine) PhoneCall() *DeepgramEngine {
	e.Model = "nova-2-phonecall"
	e.Encoding = "mulaw"
	e.SampleRate = 8000
	return e
}

func (e *DeepgramEngine) NewSession(opts speech.Options, handler speech.Handler) (speech.Session, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	return &deepgramSession{engine: e, opts: opts, handler: handler, stopped: make(chan struct{})}, nil
}

func (e *DeepgramEngine) listenURL(opts speech.Options) (string, error) {
	u, err := url.Parse(e.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram endpoint %q: %w", e.Endpoint, err)
	}
	q := u.Query()
	q.Set("model", e.Model)
	q.Set("language", opts.Language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	if e.Encoding != "" {
		q.Set("encoding", e.Encoding)
		q.Set("sample_rate", strconv.Itoa(e.SampleRate))
		q.Set("channels", "1")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramSession struct {
	engine  *DeepgramEngine
	opts    speech.Options
	handler speech.Handler

	mu         sync.Mutex
	writeMu    sync.Mutex
	conn       *gws.Conn
	cancel     context.CancelFunc
	dialCancel context.CancelFunc
	closing    bool
	stopped    chan struct{}
	worker     *workers.TranscriptionWorker
}

func (s *deepgramSession) Start(ctx context.Context) error {
	e := s.engine
	endpoint, err := e.listenURL(s.opts)
	if err != nil {
		return err
	}
	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", e.APIKey)},
	}

	dialCtx, dialCancel := context.WithCancel(ctx)
	defer dialCancel()
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.handler(types.RecognitionEvent{Kind: types.EventEnd})
		return nil
	}
	s.dialCancel = dialCancel
	s.mu.Unlock()

	conn, _, err := e.Dialer.DialContext(dialCtx, endpoint, header)
	if err != nil {
		if s.isClosing() {
			e.Logger.DebugContext(ctx, "Deepgram session stopped while connecting")
			s.handler(types.RecognitionEvent{Kind: types.EventEnd})
			return nil
		}
		e.Logger.ErrorContext(ctx, "❌ Deepgram dial error", "error", err)
		return fmt.Errorf("deepgram dial: %w", err)
	}
	e.Logger.DebugContext(ctx, "✅ Connected to Deepgram")

	results := make(chan types.TranscriptionResult)
	worker, err := workers.NewTranscriptionWorker(results, s.handler, s.opts, s.Stop, e.Logger)
	if err != nil {
		conn.Close()
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.dialCancel = nil
	if s.closing {
		s.mu.Unlock()
		cancel()
		conn.Close()
		e.Logger.DebugContext(ctx, "Deepgram session stopped while connecting")
		s.handler(types.RecognitionEvent{Kind: types.EventEnd})
		return nil
	}
	s.conn = conn
	s.cancel = cancel
	s.worker = worker
	s.mu.Unlock()

	s.handler(types.RecognitionEvent{Kind: types.EventStart})
	worker.Start()
	go s.sendAudio(sessionCtx)
	go s.readResults(sessionCtx, results)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-sessionCtx.Done():
		}
	}()
	return nil
}

// Stop asks Deepgram to flush and close the stream; the connection is forced shut after a grace period.
// Stopping before the connection is up aborts the dial.
func (s *deepgramSession) Stop() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	close(s.stopped)
	conn, cancel, dialCancel := s.conn, s.cancel, s.dialCancel
	s.mu.Unlock()

	if conn == nil {
		if dialCancel != nil {
			dialCancel()
		}
		return
	}

	s.writeMu.Lock()
	err := conn.WriteJSON(map[string]string{"type": "CloseStream"})
	s.writeMu.Unlock()
	if err != nil {
		s.engine.Logger.Debug("Deepgram close stream failed", "error", err)
		cancel()
		conn.Close()
		return
	}
	s.engine.Scheduler.AfterFunc(closeGrace, func() {
		cancel()
		conn.Close()
	})
}

func (s *deepgramSession) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// sendAudio forwards audio until the session stops, leaving later chunks to the next session.
func (s *deepgramSession) sendAudio(ctx context.Context) {
	for {
		select {
		case <-s.stopped:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case audio, ok := <-s.engine.Audio:
			if !ok {
				s.Stop()
				return
			}
			if len(audio) == 0 {
				continue
			}
			if s.isClosing() {
				return
			}
			s.writeMu.Lock()
			err := s.conn.WriteMessage(gws.BinaryMessage, audio)
			s.writeMu.Unlock()
			if err != nil {
				s.engine.Logger.Error("❌ Deepgram write error", "error", err)
				return
			}
		}
	}
}

func (s *deepgramSession) readResults(ctx context.Context, results chan<- types.TranscriptionResult) {
	defer close(results)
	defer s.conn.Close()
	defer s.cancel()
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing && !gws.IsCloseError(err, gws.CloseNormalClosure) {
				s.send(ctx, results, types.TranscriptionResult{Err: fmt.Errorf("deepgram read: %w", err)})
			}
			return
		}

		var transcription TranscriptionMessage
		if err := json.Unmarshal(message, &transcription); err != nil {
			s.engine.Logger.Debug("Error parsing Deepgram response", "error", err)
			continue
		}
		if len(transcription.Channel.Alternatives) == 0 {
			continue
		}
		alt := transcription.Channel.Alternatives[0]
		if !s.send(ctx, results, types.TranscriptionResult{
			Transcription: alt.Transcript,
			Confidence:    alt.Confidence,
			Final:         transcription.IsFinal,
		}) {
			return
		}
	}
}

func (s *deepgramSession) send(ctx context.Context, results chan<- types.TranscriptionResult, r types.TranscriptionResult) bool {
	select {
	case results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
