package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrsingh-rishi/voice-expense/output"
)

// Speaker renders text as audio into an output channel.
type Speaker interface {
	GenerateSpeech(ctx context.Context, text string) error
}

// FeedbackWorker speaks phrases in the order they arrive, each followed by an
// end-of-utterance marker on the output device channel.
type FeedbackWorker struct {
	ctx                 context.Context
	cancel              context.CancelFunc
	PhraseChannel       <-chan string
	OutputDeviceChannel chan<- string
	Speaker             Speaker
	logger              *slog.Logger
	done                chan struct{}
}

func NewFeedbackWorker(speaker Speaker, phraseChannel <-chan string, outputDeviceChannel chan<- string, logger *slog.Logger) (*FeedbackWorker, error) {
	if speaker == nil {
		return nil, fmt.Errorf("speaker is required")
	}
	if phraseChannel == nil {
		return nil, fmt.Errorf("phrase channel is required")
	}
	if outputDeviceChannel == nil {
		return nil, fmt.Errorf("output device channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FeedbackWorker{
		ctx:                 ctx,
		cancel:              cancel,
		PhraseChannel:       phraseChannel,
		OutputDeviceChannel: outputDeviceChannel,
		Speaker:             speaker,
		logger:              logger,
		done:                make(chan struct{}),
	}, nil
}

func (w *FeedbackWorker) Start() {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.ctx.Done():
				return
			case phrase, ok := <-w.PhraseChannel:
				if !ok {
					return
				}
				if err := w.Speaker.GenerateSpeech(w.ctx, phrase); err != nil {
					w.logger.Error("❌ Failed to speak feedback", "error", err)
					continue
				}
				select {
				case w.OutputDeviceChannel <- output.EndOfUtterance:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}()
}

// Stop signals Start() to exit.
func (w *FeedbackWorker) Stop() {
	w.cancel()
}

// Done is closed once the worker goroutine has exited.
func (w *FeedbackWorker) Done() <-chan struct{} {
	return w.done
}
