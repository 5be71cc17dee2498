// Package presenter holds the headless voice expense widgets. Each presenter owns a
// capture adapter, reacts to the shared store and exposes a serialisable View.
package presenter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrsingh-rishi/voice-expense/apiclient"
	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/refresh"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/store"
	"github.com/mrsingh-rishi/voice-expense/timer"
)

// ErrHidden is returned by actions on a presenter that is not shown.
var ErrHidden = errors.New("voice expense entry is unavailable")

// Deps are the collaborators a presenter needs.
type Deps struct {
	Capture   *speech.Capture
	Store     *store.Store
	Refresh   *refresh.Notifier
	Scheduler timer.Scheduler
	UserID    string
	Dismiss   time.Duration
	Logger    *slog.Logger
}

// base is shared by FloatingMic and Panel.
type base struct {
	capture *speech.Capture
	store   *store.Store
	refresh *refresh.Notifier
	userID  string
	origin  string
	logger  *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	feedback    *feedback
	unsubscribe func()

	mu        sync.Mutex
	listeners []func()
	closed    bool
}

func (b *base) init(ctx context.Context, deps Deps) {
	if deps.Scheduler == nil {
		deps.Scheduler = timer.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	b.capture = deps.Capture
	b.store = deps.Store
	b.refresh = deps.Refresh
	b.userID = deps.UserID
	b.logger = deps.Logger
	b.origin = uuid.NewString()
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	b.feedback = newFeedback(b.origin, deps.Store, deps.Scheduler, deps.Dismiss, deps.Logger, b.changed)
	b.unsubscribe = deps.Store.Subscribe(b.onStore)
}

func (b *base) onStore(state store.State, a store.Action) {
	b.feedback.handle(state, a)
	switch a.(type) {
	case store.VoicePending, store.RateLimitPending:
		b.changed()
	}
}

// OnChange registers fn to run whenever the view may have changed.
func (b *base) OnChange(fn func()) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *base) changed() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	listeners := b.listeners
	b.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (b *base) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Visible reports whether the widget is shown at all.
func (b *base) Visible() bool {
	return b.capture != nil && b.capture.IsSupported() && b.userID != ""
}

// Toggle starts listening, or stops the active session.
func (b *base) Toggle(ctx context.Context) error {
	if !b.Visible() {
		return ErrHidden
	}
	if b.capture.State().Listening {
		b.capture.StopListening()
		return nil
	}
	return b.capture.StartListening(ctx)
}

// Listen starts a fresh listening session, replacing any active one.
func (b *base) Listen(ctx context.Context) error {
	if !b.Visible() {
		return ErrHidden
	}
	return b.capture.StartListening(ctx)
}

// Stop ends the active listening session.
func (b *base) Stop() {
	if b.capture != nil {
		b.capture.StopListening()
	}
}

// CheckRateLimit refreshes the quota notice.
func (b *base) CheckRateLimit(ctx context.Context) error {
	if b.userID == "" {
		return model.ErrMissingUserID
	}
	_, err := b.store.CheckRateLimit(ctx, b.userID)
	return err
}

// DismissRateLimit hides the quota notice.
func (b *base) DismissRateLimit() {
	b.store.ClearRateLimit()
}

// Wait blocks until background submissions have finished.
func (b *base) Wait() {
	b.wg.Wait()
}

// Close stops listening, cancels pending timers and in-flight work.
func (b *base) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.unsubscribe()
	b.feedback.close()
	b.cancel()
	b.Stop()
}

func (b *base) submit(ctx context.Context, text string, preview bool) (*model.VoiceExpenseResponse, error) {
	if !b.Visible() {
		return nil, ErrHidden
	}
	req, err := model.NewVoiceExpenseRequest(text, b.userID)
	if err != nil {
		return nil, err
	}

	call := b.store.Process
	if preview {
		call = b.store.Test
	}
	resp, err := call(store.WithOrigin(ctx, b.origin), req)
	if err != nil {
		var rlErr *apiclient.RateLimitError
		if errors.As(err, &rlErr) {
			// Failure is already stored and logged.
			_, _ = b.store.CheckRateLimit(ctx, b.userID)
		}
		return nil, err
	}
	if !preview && resp.Success && b.refresh != nil {
		b.refresh.NotifyCreated(ctx)
	}
	return resp, nil
}

// submitAsync runs submit on its own goroutine, bound to the presenter lifetime.
func (b *base) submitAsync(text string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := b.submit(b.ctx, text, false); err != nil {
			b.logger.Warn("Voice expense submission failed", "error", err)
		}
	}()
}

// listening is the capture part of every view.
type listening struct {
	Visible    bool   `json:"visible"`
	Listening  bool   `json:"listening"`
	Transcript string `json:"transcript,omitempty"`
	Loading    bool   `json:"loading"`
}

func (b *base) listeningView() listening {
	v := listening{Visible: b.Visible(), Loading: b.store.State().VoiceExpense.Loading}
	if b.capture != nil {
		state := b.capture.State()
		v.Listening = state.Listening
		v.Transcript = state.Transcript
	}
	return v
}
