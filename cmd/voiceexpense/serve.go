package voiceexpense

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	twilio "github.com/twilio/twilio-go"

	"github.com/mrsingh-rishi/voice-expense/config"
	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/server"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/stt"
	"github.com/mrsingh-rishi/voice-expense/tts"
	"github.com/mrsingh-rishi/voice-expense/workers"
)

// ServeCmd starts the fiber gateway.
// Usage: voiceexpense serve --port 3000
type ServeCmd struct {
	Port string `short:"p" long:"port" description:"listen port, overrides PORT"`
}

func (s *ServeCmd) Execute(_ []string) error {
	ctx, cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}

	opts := server.Options{
		Config:         cfg,
		API:            client,
		NewEngine:      browserEngine(cfg, logger),
		NewPhoneEngine: phoneEngine(cfg, logger),
		NewSpeaker:     speaker(cfg, logger),
		Logger:         logger,
	}
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		opts.Calls = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.Twilio.AccountSID,
			Password: cfg.Twilio.AuthToken,
		}).Api
	} else {
		logger.WarnContext(ctx, "Twilio credentials missing, phone entry disabled")
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if s.Port != "" {
		port = s.Port
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.InfoContext(ctx, "Shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.ErrorContext(ctx, "Shutdown failed", "error", err)
		}
	}()

	return srv.Listen(":" + port)
}

// browserEngine streams browser audio to Deepgram. Without a key speech capture is
// reported unsupported and only typed text works.
func browserEngine(cfg *config.Config, logger *slog.Logger) server.EngineFactory {
	if cfg.Speech.DeepgramAPIKey == "" {
		logger.Warn("DEEPGRAM_API_KEY not set, speech capture unsupported")
		return nil
	}
	return func(audio <-chan model.AudioChunk) (speech.Engine, error) {
		engine, err := stt.NewDeepgramEngine(cfg.Speech.DeepgramAPIKey, audio, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func phoneEngine(cfg *config.Config, logger *slog.Logger) server.EngineFactory {
	if cfg.Speech.DeepgramAPIKey == "" {
		return nil
	}
	return func(audio <-chan model.AudioChunk) (speech.Engine, error) {
		engine, err := stt.NewDeepgramEngine(cfg.Speech.DeepgramAPIKey, audio, logger)
		if err != nil {
			return nil, err
		}
		return engine.PhoneCall(), nil
	}
}

func speaker(cfg *config.Config, logger *slog.Logger) func(out chan<- string) (workers.Speaker, error) {
	if cfg.Speech.ElevenLabsAPIKey == "" {
		return nil
	}
	return func(out chan<- string) (workers.Speaker, error) {
		client, err := tts.NewElevenLabsClient(cfg.Speech.ElevenLabsAPIKey, cfg.Speech.VoiceID, cfg.Speech.VoiceModelID, out, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create speaker: %w", err)
		}
		return client, nil
	}
}
