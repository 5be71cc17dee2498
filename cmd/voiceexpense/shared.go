package voiceexpense

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/mrsingh-rishi/voice-expense/apiclient"
	"github.com/mrsingh-rishi/voice-expense/appcontext"
	"github.com/mrsingh-rishi/voice-expense/auth"
	"github.com/mrsingh-rishi/voice-expense/config"
	"github.com/mrsingh-rishi/voice-expense/store"
)

var (
	configMu   sync.Mutex
	configPath string
)

func setConfigPath(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configPath = path
}

func getConfigPath() string {
	configMu.Lock()
	defer configMu.Unlock()
	return configPath
}

// bootstrap loads configuration and returns a context carrying the configured logger.
func bootstrap() (context.Context, *config.Config, *slog.Logger, error) {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()
	cfg, err := config.Load(ctx, getConfigPath(), bootLogger)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return appcontext.WithLogger(ctx, logger), cfg, logger, nil
}

func newAPIClient(cfg *config.Config) (*apiclient.Client, error) {
	return apiclient.NewClient(&http.Client{Timeout: cfg.API.Timeout}, cfg.API.BaseURL)
}

// newStore builds a store authenticated with the configured static token.
func newStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return store.New(client, auth.StaticToken(cfg.API.Token), logger), nil
}

func userID(cfg *config.Config, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.API.UserID != "" {
		return cfg.API.UserID, nil
	}
	if cfg.API.Token != "" {
		if id, err := auth.UserID(cfg.API.Token, cfg.API.JWTSecret); err == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("user id is required: pass --user or set VOICE_EXPENSE_USER_ID")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
