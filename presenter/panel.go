package presenter

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mrsingh-rishi/voice-expense/model"
)

// ErrNothingToConfirm is returned by Confirm when no transcript is awaiting approval.
var ErrNothingToConfirm = errors.New("no transcript awaiting confirmation")

// PanelView is the larger entry panel.
type PanelView struct {
	listening
	// Confirmation holds the transcript awaiting Confirm or Cancel.
	Confirmation string       `json:"confirmation,omitempty"`
	Feedback     FeedbackView `json:"feedback"`
}

// Panel asks for explicit approval before a spoken transcript is saved.
type Panel struct {
	base

	panelMu      sync.Mutex
	confirmation string
}

// NewPanel wires a panel to deps.
func NewPanel(ctx context.Context, deps Deps) *Panel {
	p := &Panel{}
	p.init(ctx, deps)
	if deps.Capture != nil {
		deps.Capture.OnChange(p.onCapture)
	}
	return p
}

func (p *Panel) onCapture(state model.TranscriptSession) {
	if p.isClosed() {
		return
	}
	text := strings.TrimSpace(state.Transcript)

	p.panelMu.Lock()
	if state.Listening {
		p.confirmation = ""
	}
	opened := !state.Listening && text != ""
	if opened {
		p.confirmation = text
	}
	p.panelMu.Unlock()

	if opened {
		p.capture.ResetTranscript()
	}
	p.changed()
}

// Confirm submits the transcript awaiting approval.
func (p *Panel) Confirm(ctx context.Context) (*model.VoiceExpenseResponse, error) {
	p.panelMu.Lock()
	text := p.confirmation
	p.confirmation = ""
	p.panelMu.Unlock()

	if text == "" {
		return nil, ErrNothingToConfirm
	}
	p.changed()
	return p.submit(ctx, text, false)
}

// Cancel discards the transcript awaiting approval.
func (p *Panel) Cancel() {
	p.panelMu.Lock()
	had := p.confirmation != ""
	p.confirmation = ""
	p.panelMu.Unlock()
	if had {
		p.changed()
	}
}

// Preview parses text without saving. Empty text previews the pending confirmation.
func (p *Panel) Preview(ctx context.Context, text string) (*model.VoiceExpenseResponse, error) {
	if strings.TrimSpace(text) == "" {
		p.panelMu.Lock()
		text = p.confirmation
		p.panelMu.Unlock()
	}
	return p.submit(ctx, text, true)
}

// SubmitText saves typed text. Typing and sending is the approval.
func (p *Panel) SubmitText(ctx context.Context, text string) (*model.VoiceExpenseResponse, error) {
	return p.submit(ctx, text, false)
}

func (p *Panel) View() PanelView {
	p.panelMu.Lock()
	confirmation := p.confirmation
	p.panelMu.Unlock()
	return PanelView{listening: p.listeningView(), Confirmation: confirmation, Feedback: p.feedback.View()}
}
