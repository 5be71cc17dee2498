package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mrsingh-rishi/voice-expense/appcontext"
	"github.com/mrsingh-rishi/voice-expense/auth"
	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/output"
	"github.com/mrsingh-rishi/voice-expense/presenter"
	"github.com/mrsingh-rishi/voice-expense/refresh"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/store"
)

const (
	VariantFloating = "floating"
	VariantPanel    = "panel"

	audioBufferSize = 64
)

var (
	errUnknownVariant = errors.New("variant must be floating or panel")
	errUnknownAction  = errors.New("unknown action")
)

// Command is an action from a browser client, over REST or the UI websocket.
type Command struct {
	Action  string `json:"action"`
	Variant string `json:"variant,omitempty"`
	Text    string `json:"text,omitempty"`
	Preview bool   `json:"preview,omitempty"`
}

const (
	ActionStart            = "start"
	ActionStop             = "stop"
	ActionToggle           = "toggle"
	ActionText             = "text"
	ActionConfirm          = "confirm"
	ActionCancel           = "cancel"
	ActionCheckRateLimit   = "checkRateLimit"
	ActionDismissRateLimit = "dismissRateLimit"
)

// Session is everything one authenticated user's browser tabs share.
type Session struct {
	ID     string
	UserID string
	Token  *auth.SessionToken
	Store  *store.Store
	Hub    *output.Hub
	Audio  chan model.AudioChunk

	Refresh  *refresh.Notifier
	Floating *presenter.FloatingMic
	Panel    *presenter.Panel
	Page     *presenter.Page

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func (s *Server) newSession(userID string) (*Session, error) {
	logger := s.logger.With("user", userID)
	ctx, cancel := context.WithCancel(appcontext.WithLogger(context.Background(), logger))
	sess := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Token:  &auth.SessionToken{},
		Hub:    output.NewHub(),
		Audio:  make(chan model.AudioChunk, audioBufferSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	sess.Store = store.New(s.api, sess.Token, logger)

	signal := &refresh.Signal{}
	signal.Subscribe(func(seq uint64) {
		sess.Hub.Broadcast(output.Frame{Type: output.FrameRefresh, Seq: seq})
	})
	sess.Refresh = refresh.NewNotifier(signal, refresh.RefetchFunc(func(context.Context) error {
		sess.Hub.Broadcast(output.Frame{Type: output.FrameRefetch, Seq: signal.Seq()})
		return nil
	}), s.cfg.Feedback.Settle, s.scheduler)

	var engine speech.Engine
	if s.newEngine != nil {
		e, err := s.newEngine(sess.Audio)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create speech engine: %w", err)
		}
		engine = e
	}

	deps := func() presenter.Deps {
		return presenter.Deps{
			Capture:   speech.NewCapture(engine, s.cfg.Speech.Language, logger),
			Store:     sess.Store,
			Refresh:   sess.Refresh,
			Scheduler: s.scheduler,
			UserID:    userID,
			Dismiss:   s.cfg.Feedback.Dismiss,
			Logger:    logger,
		}
	}
	sess.Floating = presenter.NewFloatingMic(ctx, deps())
	sess.Panel = presenter.NewPanel(ctx, deps())
	sess.Page = presenter.NewPage(sess.Panel)

	sess.Floating.OnChange(func() {
		sess.Hub.Broadcast(output.Frame{Type: output.FrameMic, View: sess.Floating.View()})
	})
	sess.Panel.OnChange(func() {
		sess.Hub.Broadcast(output.Frame{Type: output.FramePage, View: sess.Page.View()})
	})
	return sess, nil
}

// Execute runs cmd and returns the value to report back to the client.
func (sess *Session) Execute(ctx context.Context, cmd Command) (interface{}, error) {
	variant := cmd.Variant
	if variant == "" {
		variant = VariantFloating
	}
	if variant != VariantFloating && variant != VariantPanel {
		return nil, errUnknownVariant
	}

	switch cmd.Action {
	case ActionStart:
		// Capture outlives the request.
		if variant == VariantPanel {
			sess.Floating.Stop()
			return nil, sess.Panel.Listen(sess.ctx)
		}
		sess.Panel.Stop()
		return nil, sess.Floating.Listen(sess.ctx)
	case ActionToggle:
		// Both variants read the same audio stream, so only one may listen.
		if variant == VariantPanel {
			sess.Floating.Stop()
			return nil, sess.Panel.Toggle(sess.ctx)
		}
		sess.Panel.Stop()
		return nil, sess.Floating.Toggle(sess.ctx)
	case ActionStop:
		sess.Floating.Stop()
		sess.Panel.Stop()
		return nil, nil
	case ActionText:
		if variant == VariantFloating {
			return sess.Floating.SubmitText(ctx, cmd.Text)
		}
		if cmd.Preview {
			return sess.Panel.Preview(ctx, cmd.Text)
		}
		return sess.Panel.SubmitText(ctx, cmd.Text)
	case ActionConfirm:
		return sess.Panel.Confirm(ctx)
	case ActionCancel:
		sess.Panel.Cancel()
		return nil, nil
	case ActionCheckRateLimit:
		if err := sess.Floating.CheckRateLimit(ctx); err != nil {
			return nil, err
		}
		return sess.Store.State().RateLimit.Info, nil
	case ActionDismissRateLimit:
		sess.Floating.DismissRateLimit()
		return nil, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownAction, cmd.Action)
}

// Close stops capture, timers and pending refetches.
func (sess *Session) Close() {
	sess.Floating.Close()
	sess.Panel.Close()
	sess.Refresh.Close()
	sess.cancel()
}

// sessions keeps one Session per user.
type sessions struct {
	mu     sync.Mutex
	byUser map[string]*Session
	create func(userID string) (*Session, error)
}

// get returns the user's session, creating it on first use. A non-empty token
// replaces the session credential.
func (m *sessions) get(userID, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byUser[userID]
	if !ok {
		var err error
		sess, err = m.create(userID)
		if err != nil {
			return nil, err
		}
		m.byUser[userID] = sess
	}
	if token != "" {
		sess.Token.Set(token)
	}
	return sess, nil
}

func (m *sessions) lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byUser[userID]
	return sess, ok
}

func (m *sessions) closeAll() {
	m.mu.Lock()
	all := m.byUser
	m.byUser = map[string]*Session{}
	m.mu.Unlock()
	for _, sess := range all {
		sess.Close()
	}
}
