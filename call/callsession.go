// Package call runs voice expense entry over a Twilio media stream. Caller audio feeds a
// floating microphone presenter and its feedback is spoken back on the line.
package call

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/shopspring/decimal"

	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/output"
	"github.com/mrsingh-rishi/voice-expense/presenter"
	"github.com/mrsingh-rishi/voice-expense/refresh"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/store"
	"github.com/mrsingh-rishi/voice-expense/timer"
	"github.com/mrsingh-rishi/voice-expense/workers"
)

const (
	Greeting        = "Hi! Tell me about an expense, for example: I spent 300 rupees on a sandwich."
	audioBufferSize = 64
)

// ParamKey is the stream parameter identifying the pending call.
const ParamKey = "key"

type twilioEvent struct {
	Event string `json:"event"` // "start", "media", "stop"
	Media struct {
		Payload string `json:"payload"` // base64 audio
	} `json:"media"`
	Start struct {
		CallSid          string            `json:"callSid"`
		StreamSid        string            `json:"streamSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
}

// Conn is the Twilio media websocket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	output.JSONConn
}

// Target is the user session a call records expenses into.
type Target struct {
	UserID  string
	Store   *store.Store
	Refresh *refresh.Notifier
}

// Options wire a call to its collaborators.
type Options struct {
	// Resolve maps the stream's custom parameters to a user session.
	Resolve func(ctx context.Context, params map[string]string) (Target, error)
	// NewEngine builds the recognition engine reading caller audio.
	NewEngine func(audio <-chan model.AudioChunk) (speech.Engine, error)
	// NewSpeaker builds the synthesizer writing to the outbound audio channel.
	NewSpeaker func(out chan<- string) (workers.Speaker, error)
	Language   string
	Dismiss    time.Duration
	Scheduler  timer.Scheduler
	Logger     *slog.Logger
}

type Call struct {
	streamSid string
	ws        Conn
	writeMu   sync.Mutex
	opts      Options
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	AudioChannel   chan model.AudioChunk
	OutputChannel  chan string
	PhraseChannel  chan string
	OutputWorker   *output.TwilioOutput
	FeedbackWorker *workers.FeedbackWorker
	Capture        *speech.Capture
	Mic            *presenter.FloatingMic

	idle      chan struct{}
	listening bool
	spokenMu  sync.Mutex
	spoken    presenter.FeedbackView
	closeOnce sync.Once
}

func NewCall(ctx context.Context, ws Conn, opts Options) (*Call, error) {
	if ws == nil {
		return nil, errors.New("websocket connection is required")
	}
	if opts.Resolve == nil || opts.NewEngine == nil {
		return nil, errors.New("resolver and engine factory are required")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timer.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Call{
		ws:            ws,
		opts:          opts,
		logger:        opts.Logger,
		ctx:           ctx,
		cancel:        cancel,
		AudioChannel:  make(chan model.AudioChunk, audioBufferSize),
		OutputChannel: make(chan string, audioBufferSize),
		PhraseChannel: make(chan string, 8),
		idle:          make(chan struct{}, 1),
	}, nil
}

// Run reads the media stream until it stops, then releases everything.
func (c *Call) Run() error {
	defer c.CleanupResources()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("WebSocket closed normally")
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		var ev twilioEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.logger.Warn("JSON unmarshal error", "error", err)
			continue
		}

		switch ev.Event {
		case "connected":
		case "start":
			c.logger.Info("📞 Stream started", "callSid", ev.Start.CallSid, "streamSid", ev.Start.StreamSid)
			if err := c.begin(ev.Start.StreamSid, ev.Start.CustomParameters); err != nil {
				c.logger.Error("❌ Failed to start call session", "error", err)
				return err
			}
		case "media":
			chunk, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				c.logger.Warn("Base64 decode error", "error", err)
				continue
			}
			select {
			case c.AudioChannel <- chunk:
			default:
				c.logger.Debug("Audio channel is full, dropping chunk")
			}
		case "mark":
		case "stop":
			c.logger.Info("Stream stopped")
			return nil
		default:
			c.logger.Debug("Unknown event", "event", ev.Event)
		}
	}
}

func (c *Call) begin(streamSid string, params map[string]string) error {
	if c.Mic != nil {
		return errors.New("stream already started")
	}
	c.streamSid = streamSid

	target, err := c.opts.Resolve(c.ctx, params)
	if err != nil {
		return err
	}
	engine, err := c.opts.NewEngine(c.AudioChannel)
	if err != nil {
		return err
	}

	c.OutputWorker, err = output.NewTwilioOutput(streamSid, c.ws, &c.writeMu, c.OutputChannel, c.logger)
	if err != nil {
		return err
	}
	c.OutputWorker.Start()

	if c.opts.NewSpeaker != nil {
		speaker, err := c.opts.NewSpeaker(c.OutputChannel)
		if err != nil {
			return err
		}
		c.FeedbackWorker, err = workers.NewFeedbackWorker(speaker, c.PhraseChannel, c.OutputChannel, c.logger)
		if err != nil {
			return err
		}
		c.FeedbackWorker.Start()
	}

	c.Capture = speech.NewCapture(engine, c.opts.Language, c.logger)
	c.Capture.OnChange(c.onCapture)
	c.Mic = presenter.NewFloatingMic(c.ctx, presenter.Deps{
		Capture:   c.Capture,
		Store:     target.Store,
		Refresh:   target.Refresh,
		Scheduler: c.opts.Scheduler,
		UserID:    target.UserID,
		Dismiss:   c.opts.Dismiss,
		Logger:    c.logger,
	})
	c.Mic.OnChange(c.onView)

	c.say(Greeting)
	go c.listen()
	return nil
}

// listen keeps one recognition session open for as long as the call lasts.
func (c *Call) listen() {
	for {
		if err := c.Mic.Toggle(c.ctx); err != nil {
			if c.ctx.Err() == nil {
				c.logger.Error("❌ Failed to start listening", "error", err)
			}
			return
		}
		select {
		case <-c.idle:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Call) onCapture(state model.TranscriptSession) {
	c.spokenMu.Lock()
	ended := c.listening && !state.Listening
	c.listening = state.Listening
	c.spokenMu.Unlock()
	if ended {
		select {
		case c.idle <- struct{}{}:
		default:
		}
	}
}

// onView speaks feedback the caller has not heard yet.
func (c *Call) onView() {
	view := c.Mic.View().Feedback

	c.spokenMu.Lock()
	var phrases []string
	if view.Success != nil && view.Success != c.spoken.Success {
		phrases = append(phrases, Announcement(view.Success))
	}
	if view.Failure != "" && view.Failure != c.spoken.Failure {
		phrases = append(phrases, view.Failure)
	}
	if view.Quota != nil && c.spoken.Quota == nil {
		phrases = append(phrases, view.Quota.Message)
	}
	c.spoken = view
	c.spokenMu.Unlock()

	for _, p := range phrases {
		c.say(p)
	}
}

func (c *Call) say(phrase string) {
	if c.FeedbackWorker == nil || phrase == "" {
		return
	}
	select {
	case c.PhraseChannel <- phrase:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("Feedback queue is full, dropping phrase", "phrase", phrase)
	}
}

// Announcement is the spoken form of a success popup.
func Announcement(s *presenter.SuccessView) string {
	if s.Expense == nil {
		return s.Message
	}
	amount := s.Expense.Amount
	if d, err := decimal.NewFromString(amount); err == nil && !d.Equal(d.Truncate(0)) {
		amount = d.StringFixed(2)
	}
	if s.Expense.Category == "" {
		return fmt.Sprintf("Added %s for %s.", s.Expense.Name, amount)
	}
	return fmt.Sprintf("Added %s for %s in %s.", s.Expense.Name, amount, s.Expense.Category)
}

// CleanupResources gracefully releases all resources associated with the Call instance.
func (c *Call) CleanupResources() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.Mic != nil {
			c.Mic.Close()
		}
		if c.FeedbackWorker != nil {
			c.FeedbackWorker.Stop()
		}
		if c.OutputWorker != nil {
			c.OutputWorker.Stop()
		}
		if c.ws != nil {
			c.ws.Close()
		}
	})
}
