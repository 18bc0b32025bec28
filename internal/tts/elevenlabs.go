// Package tts talks to the ElevenLabs text-to-speech REST API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://api.elevenlabs.io/v1"
	DefaultVoice    = "21m00Tcm4TlvDq8ikWAM" // Rachel
	DefaultModel    = "eleven_monolingual_v1"
)

type Config struct {
	BaseURL    string
	VoiceID    string
	ModelID    string
	Stability  float64
	Similarity float64
}

// APIError is returned for any non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ElevenLabs API error: %d", e.StatusCode)
}

var ErrNoKey = errors.New("ElevenLabs API key not set")

type ElevenLabs struct {
	cfg    Config
	client *http.Client
}

// New builds a client. A nil httpClient gets a 30s timeout client.
func New(cfg Config, httpClient *http.Client) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEndpoint
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoice
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ElevenLabs{cfg: cfg, client: httpClient}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize renders text to mpeg audio with the configured voice.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, apiKey string) ([]byte, error) {
	if apiKey == "" {
		return nil, ErrNoKey
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: e.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.cfg.BaseURL, e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// CheckKey lists the voices of the account, which only succeeds with a
// valid key.
func (e *ElevenLabs) CheckKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return ErrNoKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
