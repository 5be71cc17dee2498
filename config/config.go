package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPIBaseURL      = "http://localhost:8080"
	defaultPort            = "3000"
	defaultLanguage        = "en-US"
	defaultFeedbackSeconds = 3
	defaultSettleMillis    = 1000
	defaultTimeoutSeconds  = 30
	defaultVoiceID         = "JBFqnCBsd6RMkjVDRZzb"
	defaultVoiceModelID    = "eleven_multilingual_v2"
	defaultWhisperModel    = "whisper-1"

	envAPIBaseURL       = "VOICE_EXPENSE_API_BASE_URL"
	envToken            = "VOICE_EXPENSE_TOKEN"
	envUserID           = "VOICE_EXPENSE_USER_ID"
	envDeepgramAPIKey   = "DEEPGRAM_API_KEY"
	envOpenAIAPIKey     = "OPEN_AI_API_KEY"
	envElevenLabsAPIKey = "ELEVEN_LABS_API_KEY"
	envTwilioSID        = "TWILIO_ACCOUNT_SID"
	envTwilioAuthToken  = "TWILIO_AUTH_TOKEN"
	envTwilioFrom       = "TWILIO_FROM_NUMBER"
	envBaseURL          = "BASE_URL"
	envBaseWSURL        = "BASE_WS_URL"
	envPort             = "PORT"
	envLogLevel         = "LOG_LEVEL"
	envLanguage         = "SPEECH_LANGUAGE"
	envJWTSecret        = "JWT_SECRET"
	envSettleMillis     = "REFRESH_SETTLE_MS"
)

// Config holds the application configuration.
type Config struct {
	API      API      `yaml:"api"`
	Speech   Speech   `yaml:"speech"`
	Feedback Feedback `yaml:"feedback"`
	Twilio   Twilio   `yaml:"twilio"`
	Server   Server   `yaml:"server"`
	LogLevel string   `yaml:"logLevel"`
}

// API configures the backend expense parser client.
type API struct {
	BaseURL string        `yaml:"baseURL"`
	Token   string        `yaml:"token"`
	UserID  string        `yaml:"userID"`
	Timeout time.Duration `yaml:"timeout"`
	// JWTSecret, when set, makes the gateway verify bearer tokens instead of only decoding them.
	JWTSecret string `yaml:"jwtSecret"`
}

// Speech configures recognition and synthesis engines.
type Speech struct {
	Language         string `yaml:"language"`
	DeepgramAPIKey   string `yaml:"deepgramAPIKey"`
	OpenAIAPIKey     string `yaml:"openAIAPIKey"`
	WhisperModel     string `yaml:"whisperModel"`
	ElevenLabsAPIKey string `yaml:"elevenLabsAPIKey"`
	VoiceID          string `yaml:"voiceID"`
	VoiceModelID     string `yaml:"voiceModelID"`
}

// Feedback configures presenter timings.
type Feedback struct {
	Dismiss time.Duration `yaml:"dismiss"`
	Settle  time.Duration `yaml:"settle"`
}

// Twilio configures the phone-call entry point.
type Twilio struct {
	AccountSID string `yaml:"accountSID"`
	AuthToken  string `yaml:"authToken"`
	FromNumber string `yaml:"fromNumber"`
}

// Server configures the gateway.
type Server struct {
	Port      string `yaml:"port"`
	BaseURL   string `yaml:"baseURL"`
	BaseWSURL string `yaml:"baseWSURL"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL: defaultAPIBaseURL,
			Timeout: defaultTimeoutSeconds * time.Second,
		},
		Speech: Speech{
			Language:     defaultLanguage,
			WhisperModel: defaultWhisperModel,
			VoiceID:      defaultVoiceID,
			VoiceModelID: defaultVoiceModelID,
		},
		Feedback: Feedback{
			Dismiss: defaultFeedbackSeconds * time.Second,
			Settle:  defaultSettleMillis * time.Millisecond,
		},
		Server:   Server{Port: defaultPort},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env file and
// finally the process environment, each layer overriding the previous one.
func Load(ctx context.Context, path string, logger *slog.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		logger.DebugContext(ctx, "Loaded config file", "path", path)
	}

	if err := godotenv.Load(); err != nil {
		logger.DebugContext(ctx, "No .env file found, falling back to environment variables")
	}

	applyEnv(ctx, cfg, logger)
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api base URL is required")
	}
	if c.Feedback.Dismiss <= 0 {
		return fmt.Errorf("feedback dismiss delay must be positive")
	}
	if c.Feedback.Settle < 0 {
		return fmt.Errorf("refresh settle delay must not be negative")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func applyEnv(ctx context.Context, cfg *Config, logger *slog.Logger) {
	setString(&cfg.API.BaseURL, envAPIBaseURL)
	setString(&cfg.API.Token, envToken)
	setString(&cfg.API.UserID, envUserID)
	setString(&cfg.API.JWTSecret, envJWTSecret)
	setString(&cfg.Speech.DeepgramAPIKey, envDeepgramAPIKey)
	setString(&cfg.Speech.OpenAIAPIKey, envOpenAIAPIKey)
	setString(&cfg.Speech.ElevenLabsAPIKey, envElevenLabsAPIKey)
	setString(&cfg.Speech.Language, envLanguage)
	setString(&cfg.Twilio.AccountSID, envTwilioSID)
	setString(&cfg.Twilio.AuthToken, envTwilioAuthToken)
	setString(&cfg.Twilio.FromNumber, envTwilioFrom)
	setString(&cfg.Server.BaseURL, envBaseURL)
	setString(&cfg.Server.BaseWSURL, envBaseWSURL)
	setString(&cfg.Server.Port, envPort)
	setString(&cfg.LogLevel, envLogLevel)

	if v := os.Getenv(envSettleMillis); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			logger.WarnContext(ctx, "Invalid value for "+envSettleMillis+", using default",
				"value", v, "default", cfg.Feedback.Settle, "error", err)
		} else {
			cfg.Feedback.Settle = time.Duration(ms) * time.Millisecond
		}
	}
}

func setString(target *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*target = v
	}
}
