package voiceexpense

import (
	"fmt"

	"github.com/mrsingh-rishi/voice-expense/presenter"
	"github.com/mrsingh-rishi/voice-expense/refresh"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/stt"
)

// SayCmd speaks text into the floating mic through the scripted engine and prints
// the resulting view.
// Usage: voiceexpense say --user u1 "I spent 300 rs yesterday on sandwich"
type SayCmd struct {
	User    string `short:"u" long:"user" description:"user id, overrides VOICE_EXPENSE_USER_ID"`
	Preview bool   `long:"preview" description:"parse without saving"`
	Args    struct {
		Text string `positional-arg-name:"text" required:"yes"`
	} `positional-args:"yes"`
}

func (s *SayCmd) Execute(_ []string) error {
	ctx, cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	user, err := userID(cfg, s.User)
	if err != nil {
		return err
	}
	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	signal := &refresh.Signal{}
	signal.Subscribe(func(seq uint64) {
		logger.InfoContext(ctx, "Expense list refresh requested", "seq", seq)
	})
	deps := presenter.Deps{
		Store:   st,
		Refresh: refresh.NewNotifier(signal, nil, cfg.Feedback.Settle, nil),
		UserID:  user,
		Dismiss: cfg.Feedback.Dismiss,
		Logger:  logger,
	}

	if s.Preview {
		deps.Capture = speech.NewCapture(stt.NewScriptedEngine(), cfg.Speech.Language, logger)
		panel := presenter.NewPanel(ctx, deps)
		defer panel.Close()
		if _, err := panel.Preview(ctx, s.Args.Text); err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		return printJSON(panel.View())
	}

	engine := stt.NewScriptedEngine(stt.Utterance{Text: s.Args.Text})
	deps.Capture = speech.NewCapture(engine, cfg.Speech.Language, logger)
	mic := presenter.NewFloatingMic(ctx, deps)
	defer mic.Close()

	if err := mic.Listen(ctx); err != nil {
		return err
	}
	mic.Wait()
	return printJSON(mic.View())
}
