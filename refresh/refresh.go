// Package refresh tells expense views that a new expense exists.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/mrsingh-rishi/voice-expense/appcontext"
	"github.com/mrsingh-rishi/voice-expense/timer"
)

// DefaultDelay lets the backend settle before the refetch.
const DefaultDelay = time.Second

// Signal is a monotonically increasing counter raised whenever an expense is created.
type Signal struct {
	mu        sync.Mutex
	seq       uint64
	listeners map[int]func(uint64)
	nextID    int
}

// Raise bumps the counter and notifies subscribers outside the lock.
func (s *Signal) Raise() uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	listeners := make([]func(uint64), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(seq)
	}
	return seq
}

func (s *Signal) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Subscribe registers fn and returns a function removing it.
func (s *Signal) Subscribe(fn func(seq uint64)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = map[int]func(uint64){}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Refetcher reloads the expense list.
type Refetcher interface {
	Refetch(ctx context.Context) error
}

// RefetchFunc adapts a function to Refetcher.
type RefetchFunc func(ctx context.Context) error

func (f RefetchFunc) Refetch(ctx context.Context) error {
	return f(ctx)
}

// Notifier raises the signal and requests one refetch after Delay. A creation inside the
// delay window replaces the pending refetch.
type Notifier struct {
	Signal    *Signal
	Refetcher Refetcher
	Delay     time.Duration
	Scheduler timer.Scheduler

	mu      sync.Mutex
	pending timer.Timer
	closed  bool
}

// NewNotifier builds a Notifier; delay <= 0 means DefaultDelay.
func NewNotifier(signal *Signal, refetcher Refetcher, delay time.Duration, scheduler timer.Scheduler) *Notifier {
	if signal == nil {
		signal = &Signal{}
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if scheduler == nil {
		scheduler = timer.Real()
	}
	return &Notifier{Signal: signal, Refetcher: refetcher, Delay: delay, Scheduler: scheduler}
}

// NotifyCreated is called after an expense was saved.
func (n *Notifier) NotifyCreated(ctx context.Context) {
	n.Signal.Raise()
	if n.Refetcher == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if n.pending != nil {
		n.pending.Stop()
	}
	n.pending = n.Scheduler.AfterFunc(n.Delay, func() {
		n.mu.Lock()
		n.pending = nil
		n.mu.Unlock()
		if err := n.Refetcher.Refetch(ctx); err != nil {
			appcontext.LoggerFromContext(ctx).ErrorContext(ctx, "Expense refetch failed", "error", err)
		}
	})
}

// Close cancels any pending refetch.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.pending != nil {
		n.pending.Stop()
		n.pending = nil
	}
}
