package voiceexpense

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-expense/presenter"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/stt"
)

// TranscribeCmd transcribes a recorded clip with Whisper and lets the floating mic
// submit the result.
// Usage: voiceexpense transcribe --file note.m4a
type TranscribeCmd struct {
	File string `long:"file" description:"audio clip to transcribe" required:"yes"`
	User string `short:"u" long:"user" description:"user id, overrides VOICE_EXPENSE_USER_ID"`
}

func (t *TranscribeCmd) Execute(_ []string) error {
	ctx, cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.Speech.OpenAIAPIKey == "" {
		return errors.New("OPEN_AI_API_KEY is required for transcription")
	}
	user, err := userID(cfg, t.User)
	if err != nil {
		return err
	}
	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := stt.NewWhisperEngine(openai.NewClient(cfg.Speech.OpenAIAPIKey), cfg.Speech.WhisperModel, stt.FileClip(t.File), logger)
	if err != nil {
		return err
	}
	mic := presenter.NewFloatingMic(ctx, presenter.Deps{
		Capture: speech.NewCapture(engine, cfg.Speech.Language, logger),
		Store:   st,
		UserID:  user,
		Dismiss: cfg.Feedback.Dismiss,
		Logger:  logger,
	})
	defer mic.Close()

	changed := make(chan struct{}, 1)
	mic.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	if err := mic.Listen(ctx); err != nil {
		return fmt.Errorf("failed to start transcription: %w", err)
	}
	for mic.View().Listening {
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	mic.Wait()
	return printJSON(mic.View())
}
