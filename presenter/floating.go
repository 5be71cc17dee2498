package presenter

import (
	"context"
	"strings"

	"github.com/mrsingh-rishi/voice-expense/model"
)

// MicView is the floating microphone button with its popups.
type MicView struct {
	listening
	Feedback FeedbackView `json:"feedback"`
}

// FloatingMic submits a transcript as soon as listening has stopped.
type FloatingMic struct {
	base
}

// NewFloatingMic wires a floating microphone to deps. ctx scopes background submissions.
func NewFloatingMic(ctx context.Context, deps Deps) *FloatingMic {
	f := &FloatingMic{}
	f.init(ctx, deps)
	if deps.Capture != nil {
		deps.Capture.OnChange(f.onCapture)
	}
	return f
}

func (f *FloatingMic) onCapture(state model.TranscriptSession) {
	if f.isClosed() {
		return
	}
	text := strings.TrimSpace(state.Transcript)
	if !state.Listening && text != "" {
		f.submitAsync(text)
		f.capture.ResetTranscript()
	}
	f.changed()
}

// SubmitText processes typed text right away.
func (f *FloatingMic) SubmitText(ctx context.Context, text string) (*model.VoiceExpenseResponse, error) {
	return f.submit(ctx, text, false)
}

func (f *FloatingMic) View() MicView {
	return MicView{listening: f.listeningView(), Feedback: f.feedback.View()}
}
