package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/types"
)

// TranscriptionWorker turns a stream of transcription frames into recognition events.
// It emits EventResult for final frames, EventError for failed frames and exactly one
// EventEnd when the input closes or the worker is stopped.
type TranscriptionWorker struct {
	ctx     context.Context
	cancel  context.CancelFunc
	input   <-chan types.TranscriptionResult
	handler speech.Handler
	opts    speech.Options
	onFinal func()
	logger  *slog.Logger
	done    chan struct{}
}

// NewTranscriptionWorker creates a worker. onFinal is called after the first final result
// of a non-continuous session so the caller can close the stream.
func NewTranscriptionWorker(input <-chan types.TranscriptionResult, handler speech.Handler, opts speech.Options, onFinal func(), logger *slog.Logger) (*TranscriptionWorker, error) {
	if input == nil {
		return nil, fmt.Errorf("transcription input channel is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if onFinal == nil {
		onFinal = func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TranscriptionWorker{
		ctx:     ctx,
		cancel:  cancel,
		input:   input,
		handler: handler,
		opts:    opts,
		onFinal: onFinal,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

func (tw *TranscriptionWorker) Start() {
	go func() {
		defer close(tw.done)
		defer tw.handler(types.RecognitionEvent{Kind: types.EventEnd})
		finished := false
		for {
			select {
			case <-tw.ctx.Done():
				return
			case transcription, ok := <-tw.input:
				if !ok {
					return
				}
				if transcription.Err != nil {
					tw.handler(types.RecognitionEvent{Kind: types.EventError, Err: transcription.Err})
					continue
				}
				if !transcription.Final {
					tw.logger.Debug("Got partial transcription", "text", transcription.Transcription, "confidence", transcription.Confidence)
					if !tw.opts.InterimResults {
						continue
					}
				}
				if transcription.Transcription == "" || finished {
					continue
				}
				tw.logger.Debug("Got final transcription", "text", transcription.Transcription, "confidence", transcription.Confidence)
				tw.handler(types.RecognitionEvent{
					Kind: types.EventResult,
					Alternatives: []types.Alternative{{
						Transcript: transcription.Transcription,
						Confidence: transcription.Confidence,
					}},
				})
				if transcription.Final && !tw.opts.Continuous {
					finished = true
					tw.onFinal()
				}
			}
		}
	}()
}

// Stop ends the worker; EventEnd is still emitted.
func (tw *TranscriptionWorker) Stop() {
	tw.cancel()
}

// Done is closed after EventEnd has been emitted.
func (tw *TranscriptionWorker) Done() <-chan struct{} {
	return tw.done
}
