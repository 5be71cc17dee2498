// Package store holds the voice expense and rate limit state containers. State changes
// only through pure reducers; network calls go through the API interface.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mrsingh-rishi/voice-expense/apiclient"
	"github.com/mrsingh-rishi/voice-expense/auth"
	"github.com/mrsingh-rishi/voice-expense/model"
)

//go:generate mockgen -destination=mock_api_test.go -package=store_test github.com/mrsingh-rishi/voice-expense/store API

const (
	MsgAuthRequired    = "Authentication required"
	MsgProcessFailed   = "Failed to process voice expense"
	MsgTestFailed      = "Failed to test voice expense"
	MsgRateLimitFailed = "Failed to check rate limit"
	RateLimitPrefix    = "Rate limit exceeded: "
)

// API is the backend the store talks to.
type API interface {
	ProcessVoiceExpense(ctx context.Context, token string, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error)
	TestVoiceExpense(ctx context.Context, token string, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error)
	CheckRateLimit(ctx context.Context, token string, userID string) (*model.RateLimitInfo, error)
}

// Listener observes every dispatched action with the state it produced. Listeners run
// on the dispatching goroutine after the store lock is released.
type Listener func(State, Action)

// Store is a session-scoped state container. Overlapping requests are not sequenced:
// whichever completes last writes the state.
type Store struct {
	api    API
	tokens auth.TokenSource
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

type originKey struct{}

// WithOrigin tags the voice actions of requests made with ctx, so subscribers can tell
// their own submissions apart.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext returns the origin set by WithOrigin, or "".
func OriginFromContext(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// New creates an empty store.
func New(api API, tokens auth.TokenSource, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:       api,
		tokens:    tokens,
		logger:    logger,
		listeners: map[int]Listener{},
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn and returns a function removing it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Dispatch reduces a into the state and notifies listeners.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	state := s.state
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state, a)
	}
}

// Process submits text for parsing and saving.
func (s *Store) Process(ctx context.Context, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	return s.submit(ctx, OpProcess, req)
}

// Test submits text for a parse preview without saving.
func (s *Store) Test(ctx context.Context, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	return s.submit(ctx, OpTest, req)
}

func (s *Store) submit(ctx context.Context, op Operation, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	req, err := model.NewVoiceExpenseRequest(req.VoiceText, req.UserID)
	if err != nil {
		return nil, err
	}

	origin := OriginFromContext(ctx)
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "No authentication token available", "op", op, "error", err)
		s.Dispatch(VoiceRejected{Op: op, Origin: origin, Error: MsgAuthRequired})
		return nil, err
	}

	s.Dispatch(VoicePending{Op: op, Origin: origin})

	call := s.api.ProcessVoiceExpense
	failed := MsgProcessFailed
	if op == OpTest {
		call = s.api.TestVoiceExpense
		failed = MsgTestFailed
	}

	resp, err := call(ctx, token, req)
	if err != nil {
		var rlErr *apiclient.RateLimitError
		if errors.As(err, &rlErr) {
			s.logger.WarnContext(ctx, "Voice expense rate limited", "op", op, "message", rlErr.Message)
			s.Dispatch(VoiceRejected{Op: op, Origin: origin, Error: RateLimitPrefix + rlErr.Message, RateLimited: true})
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Voice expense request failed", "op", op, "error", err)
		s.Dispatch(VoiceRejected{Op: op, Origin: origin, Error: failed})
		return nil, err
	}

	s.Dispatch(VoiceFulfilled{Op: op, Origin: origin, Response: resp})
	return resp, nil
}

// CheckRateLimit refreshes the quota snapshot for userID.
func (s *Store) CheckRateLimit(ctx context.Context, userID string) (*model.RateLimitInfo, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "No authentication token available", "op", "rate-limit", "error", err)
		s.Dispatch(RateLimitRejected{Error: MsgAuthRequired})
		return nil, err
	}

	s.Dispatch(RateLimitPending{})
	info, err := s.api.CheckRateLimit(ctx, token, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Rate limit check failed", "error", err)
		s.Dispatch(RateLimitRejected{Error: MsgRateLimitFailed})
		return nil, err
	}
	s.Dispatch(RateLimitFulfilled{Info: info})
	return info, nil
}

func (s *Store) ClearResponse()  { s.Dispatch(ClearResponse{}) }
func (s *Store) ClearError()     { s.Dispatch(ClearError{}) }
func (s *Store) ClearRateLimit() { s.Dispatch(ClearRateLimit{}) }
