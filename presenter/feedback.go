package presenter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/store"
	"github.com/mrsingh-rishi/voice-expense/timer"
)

// DefaultDismiss is how long transient feedback stays on screen.
const DefaultDismiss = 3 * time.Second

// ExpenseView is a parsed expense formatted for display.
type ExpenseView struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// SuccessView is the transient success popup.
type SuccessView struct {
	Message        string       `json:"message"`
	Expense        *ExpenseView `json:"expense,omitempty"`
	ParsedText     string       `json:"parsedText,omitempty"`
	HighConfidence bool         `json:"highConfidence"`
}

// QuotaView is the persistent quota exceeded notice.
type QuotaView struct {
	Message   string     `json:"message"`
	Remaining *int       `json:"remaining,omitempty"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}

// FeedbackView is everything the feedback area renders.
type FeedbackView struct {
	Success *SuccessView `json:"success,omitempty"`
	Failure string       `json:"failure,omitempty"`
	Quota   *QuotaView   `json:"quota,omitempty"`
}

func newExpenseView(e *model.ParsedExpense) *ExpenseView {
	if e == nil {
		return nil
	}
	return &ExpenseView{
		Name:        e.Name,
		Amount:      decimal.NewFromFloat(e.Amount).String(),
		Category:    e.CategoryName,
		Date:        e.Date,
		Description: e.Description,
	}
}

// feedback turns store actions into timed popups. Success and failure popups clear
// themselves, and the matching store field, after dismiss. They only follow submissions
// tagged with origin or untagged ones. The quota notice is per user, so every presenter
// shows it until dismissed.
type feedback struct {
	origin    string
	store     *store.Store
	scheduler timer.Scheduler
	dismiss   time.Duration
	logger    *slog.Logger
	changed   func()

	mu           sync.Mutex
	view         FeedbackView
	successTimer timer.Timer
	failureTimer timer.Timer
	closed       bool
}

func newFeedback(origin string, s *store.Store, scheduler timer.Scheduler, dismiss time.Duration, logger *slog.Logger, changed func()) *feedback {
	if dismiss <= 0 {
		dismiss = DefaultDismiss
	}
	return &feedback{origin: origin, store: s, scheduler: scheduler, dismiss: dismiss, logger: logger, changed: changed}
}

func (f *feedback) owns(origin string) bool {
	return origin == "" || origin == f.origin
}

func (f *feedback) View() FeedbackView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *feedback) handle(_ store.State, a store.Action) {
	switch a := a.(type) {
	case store.VoiceFulfilled:
		if a.Response == nil || !f.owns(a.Origin) {
			return
		}
		if !a.Response.Success {
			f.showFailure(a.Response.Message, f.store.ClearResponse)
			return
		}
		f.showSuccess(&SuccessView{
			Message:        a.Response.Message,
			Expense:        newExpenseView(a.Response.Expense),
			ParsedText:     a.Response.ParsedText,
			HighConfidence: a.Response.HighConfidence(),
		})
	case store.VoiceRejected:
		if a.RateLimited {
			f.setQuota(&QuotaView{Message: a.Error}, false)
			return
		}
		if f.owns(a.Origin) {
			f.showFailure(a.Error, f.store.ClearError)
		}
	case store.RateLimitFulfilled:
		if a.Info == nil {
			return
		}
		remaining := a.Info.RemainingTokens
		resetAt := a.Info.ResetAt(f.scheduler.Now())
		f.setQuota(&QuotaView{Message: a.Info.Message, Remaining: &remaining, ResetAt: &resetAt}, true)
	case store.ClearRateLimit:
		f.setQuota(nil, true)
	}
}

func (f *feedback) showSuccess(view *SuccessView) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.successTimer != nil {
		f.successTimer.Stop()
	}
	f.view.Success = view
	var t timer.Timer
	t = f.scheduler.AfterFunc(f.dismiss, func() {
		f.mu.Lock()
		if f.successTimer != t {
			f.mu.Unlock()
			return
		}
		f.successTimer = nil
		f.view.Success = nil
		f.mu.Unlock()
		f.store.ClearResponse()
		f.changed()
	})
	f.successTimer = t
	f.mu.Unlock()
	f.changed()
}

func (f *feedback) showFailure(message string, clear func()) {
	if message == "" {
		message = "Something went wrong"
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.failureTimer != nil {
		f.failureTimer.Stop()
	}
	f.view.Failure = message
	var t timer.Timer
	t = f.scheduler.AfterFunc(f.dismiss, func() {
		f.mu.Lock()
		if f.failureTimer != t {
			f.mu.Unlock()
			return
		}
		f.failureTimer = nil
		f.view.Failure = ""
		f.mu.Unlock()
		clear()
		f.changed()
	})
	f.failureTimer = t
	f.mu.Unlock()
	f.changed()
}

// setQuota replaces the notice. An early message never overwrites a snapshot already shown.
func (f *feedback) setQuota(view *QuotaView, replace bool) {
	f.mu.Lock()
	if f.closed || (!replace && f.view.Quota != nil && f.view.Quota.ResetAt != nil) {
		f.mu.Unlock()
		return
	}
	if view != nil && view.Message == "" && f.view.Quota != nil {
		view.Message = f.view.Quota.Message
	}
	f.view.Quota = view
	f.mu.Unlock()
	f.changed()
}

func (f *feedback) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, t := range []timer.Timer{f.successTimer, f.failureTimer} {
		if t != nil {
			t.Stop()
		}
	}
	f.successTimer = nil
	f.failureTimer = nil
}
