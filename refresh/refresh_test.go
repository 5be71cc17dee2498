package refresh_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mrsingh-rishi/voice-expense/refresh"
	"github.com/mrsingh-rishi/voice-expense/timer/timertest"
)

func TestSignal(t *testing.T) {
	var s refresh.Signal
	var seen []uint64
	unsubscribe := s.Subscribe(func(seq uint64) { seen = append(seen, seq) })

	assert.Equal(t, uint64(1), s.Raise())
	assert.Equal(t, uint64(2), s.Raise())
	unsubscribe()
	s.Raise()

	assert.Equal(t, []uint64{1, 2}, seen)
	assert.Equal(t, uint64(3), s.Seq())
}

func TestNotifier_DelayedRefetch(t *testing.T) {
	clock := timertest.New(time.Unix(0, 0))
	calls := 0
	n := refresh.NewNotifier(nil, refresh.RefetchFunc(func(context.Context) error {
		calls++
		return nil
	}), 0, clock)

	n.NotifyCreated(context.Background())
	assert.Equal(t, uint64(1), n.Signal.Seq())

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, calls)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestNotifier_Coalesces(t *testing.T) {
	clock := timertest.New(time.Unix(0, 0))
	calls := 0
	n := refresh.NewNotifier(nil, refresh.RefetchFunc(func(context.Context) error {
		calls++
		return errors.New("dashboard offline")
	}), 500*time.Millisecond, clock)

	n.NotifyCreated(context.Background())
	clock.Advance(300 * time.Millisecond)
	n.NotifyCreated(context.Background())
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 0, calls)
	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(2), n.Signal.Seq())
}

func TestNotifier_Close(t *testing.T) {
	clock := timertest.New(time.Unix(0, 0))
	calls := 0
	n := refresh.NewNotifier(nil, refresh.RefetchFunc(func(context.Context) error {
		calls++
		return nil
	}), time.Second, clock)

	n.NotifyCreated(context.Background())
	n.Close()
	n.NotifyCreated(context.Background())
	clock.Advance(2 * time.Second)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, uint64(2), n.Signal.Seq())
}
