package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-expense/auth"
	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/presenter"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/store"
	"github.com/mrsingh-rishi/voice-expense/stt"
	"github.com/mrsingh-rishi/voice-expense/workers"
)

type fakeConn struct {
	in chan []byte

	mu      sync.Mutex
	written []interface{}
	closed  bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.in
	if !ok {
		return 0, nil, errors.New("connection reset")
	}
	return 1, msg, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) send(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	c.in <- data
}

type fakeAPI struct {
	mu        sync.Mutex
	processed []model.VoiceExpenseRequest
}

func (f *fakeAPI) ProcessVoiceExpense(_ context.Context, _ string, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, req)
	return &model.VoiceExpenseResponse{
		Success: true,
		Message: "Expense added",
		Expense: &model.ParsedExpense{Name: "Sandwich", Amount: 300, CategoryName: "Food"},
	}, nil
}

func (f *fakeAPI) TestVoiceExpense(context.Context, string, model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) CheckRateLimit(context.Context, string, string) (*model.RateLimitInfo, error) {
	return nil, errors.New("not used")
}

type phraseSpeaker struct {
	mu      sync.Mutex
	phrases []string
	out     chan<- string
}

func (s *phraseSpeaker) GenerateSpeech(_ context.Context, text string) error {
	s.mu.Lock()
	s.phrases = append(s.phrases, text)
	s.mu.Unlock()
	s.out <- "audio"
	return nil
}

func (s *phraseSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.phrases...)
}

func TestCall_RecordsSpokenExpense(t *testing.T) {
	api := &fakeAPI{}
	st := store.New(api, auth.StaticToken("tok"), nil)
	engine := stt.NewScriptedEngine(
		stt.Utterance{Text: "I spent 300 rs yesterday on sandwich"},
		stt.Utterance{Hold: true},
	)
	speaker := &phraseSpeaker{}
	var gotParams map[string]string

	conn := &fakeConn{in: make(chan []byte, 4)}
	c, err := NewCall(context.Background(), conn, Options{
		Resolve: func(_ context.Context, params map[string]string) (Target, error) {
			gotParams = params
			return Target{UserID: "user-1", Store: st}, nil
		},
		NewEngine: func(<-chan model.AudioChunk) (speech.Engine, error) { return engine, nil },
		NewSpeaker: func(out chan<- string) (workers.Speaker, error) {
			speaker.out = out
			return speaker, nil
		},
		Language: "en-US",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run() }()

	conn.send(t, map[string]interface{}{"event": "connected"})
	conn.send(t, map[string]interface{}{
		"event": "start",
		"start": map[string]interface{}{
			"callSid":          "CA1",
			"streamSid":        "MZ1",
			"customParameters": map[string]string{ParamKey: "k-1"},
		},
	})
	conn.send(t, map[string]interface{}{"event": "media", "media": map[string]string{"payload": "AAEC"}})

	require.Eventually(t, func() bool {
		return len(speaker.spoken()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{Greeting, "Added Sandwich for 300 in Food."}, speaker.spoken())
	assert.Equal(t, map[string]string{ParamKey: "k-1"}, gotParams)

	api.mu.Lock()
	assert.Equal(t, []model.VoiceExpenseRequest{{VoiceText: "I spent 300 rs yesterday on sandwich", UserID: "user-1"}}, api.processed)
	api.mu.Unlock()

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.written) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	conn.send(t, map[string]interface{}{"event": "stop"})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not stop")
	}
	conn.mu.Lock()
	assert.True(t, conn.closed)
	conn.mu.Unlock()
}

func TestCall_ResolveFailure(t *testing.T) {
	conn := &fakeConn{in: make(chan []byte, 1)}
	c, err := NewCall(context.Background(), conn, Options{
		Resolve: func(context.Context, map[string]string) (Target, error) {
			return Target{}, errors.New("unknown call")
		},
		NewEngine: func(<-chan model.AudioChunk) (speech.Engine, error) { return stt.NewScriptedEngine(), nil },
	})
	require.NoError(t, err)

	conn.send(t, map[string]interface{}{"event": "start", "start": map[string]string{"streamSid": "MZ1"}})
	assert.EqualError(t, c.Run(), "unknown call")
}

func TestNewCall_Validation(t *testing.T) {
	_, err := NewCall(context.Background(), nil, Options{})
	assert.Error(t, err)
	_, err = NewCall(context.Background(), &fakeConn{}, Options{})
	assert.Error(t, err)
}

func TestAnnouncement(t *testing.T) {
	assert.Equal(t, "Added Sandwich for 300 in Food.", Announcement(&presenter.SuccessView{
		Expense: &presenter.ExpenseView{Name: "Sandwich", Amount: "300", Category: "Food"},
	}))
	assert.Equal(t, "Added Coffee for 40.50.", Announcement(&presenter.SuccessView{
		Expense: &presenter.ExpenseView{Name: "Coffee", Amount: "40.5"},
	}))
	assert.Equal(t, "Expense saved", Announcement(&presenter.SuccessView{Message: "Expense saved"}))
}
