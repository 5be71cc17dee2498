package types

// EventKind identifies a recognition session event.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventResult EventKind = "result"
	EventError  EventKind = "error"
	EventEnd    EventKind = "end"
)

// Alternative is one candidate transcription of an utterance.
type Alternative struct {
	Transcript string
	Confidence float64
}

// RecognitionEvent is emitted by a speech session. Alternatives are ordered best first.
type RecognitionEvent struct {
	Kind         EventKind
	Alternatives []Alternative
	Err          error
}

// Top returns the best alternative's text, or "" when there is none.
func (e RecognitionEvent) Top() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0].Transcript
}

// TranscriptionResult is one streamed transcription frame from a streaming engine.
type TranscriptionResult struct {
	Transcription string
	Confidence    float64
	Final         bool
	Err           error
}
