// Package tts speaks feedback back to phone callers.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	// OutputFormat matches Twilio's media stream encoding.
	OutputFormat = "ulaw_8000"
)

type ElevenLabsClient struct {
	APIKey              string
	VoiceID             string
	ModelID             string
	BaseURL             string
	HTTPClient          *http.Client
	OutputDeviceChannel chan<- string
	Logger              *slog.Logger
}

func NewElevenLabsClient(apiKey string, voiceID string, modelID string, outputDeviceChannel chan<- string, logger *slog.Logger) (*ElevenLabsClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs API key is required")
	}
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required")
	}
	if outputDeviceChannel == nil {
		return nil, fmt.Errorf("output device channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ElevenLabsClient{
		APIKey:              apiKey,
		VoiceID:             voiceID,
		ModelID:             modelID,
		BaseURL:             DefaultBaseURL,
		HTTPClient:          http.DefaultClient,
		OutputDeviceChannel: outputDeviceChannel,
		Logger:              logger,
	}, nil
}

// GenerateSpeech streams text as base64 audio chunks into the output device channel.
func (client *ElevenLabsClient) GenerateSpeech(ctx context.Context, text string) error {
	base, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s/stream/with-timestamps", client.BaseURL, url.PathEscape(client.VoiceID)))
	if err != nil {
		return fmt.Errorf("❌ build url: %w", err)
	}
	q := base.Query()
	q.Set("output_format", OutputFormat)
	base.RawQuery = q.Encode()

	payload := map[string]interface{}{
		"text":     text,
		"model_id": client.ModelID,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("❌ marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("❌ build request: %w", err)
	}
	req.Header.Set("xi-api-key", client.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("❌ HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("❌ bad status: %s", resp.Status)
	}

	// The stream is a sequence of JSON objects, one per audio chunk.
	dec := json.NewDecoder(resp.Body)
	for {
		var chunk struct {
			AudioBase64 string `json:"audio_base64"`
		}
		if err := dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode JSON chunk: %w", err)
		}
		if chunk.AudioBase64 == "" {
			continue
		}
		select {
		case client.OutputDeviceChannel <- chunk.AudioBase64:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	client.Logger.DebugContext(ctx, "🔊 Speech generated", "chars", len(text))
	return nil
}
