package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultSystemPrompt = "You are a friendly voice assistant running on a small device. " +
	"Listen to the user's recording and answer in one or two short spoken sentences. " +
	"Plain text only, no markdown."

// GeminiConfig holds the Gemini responder parameters.
type GeminiConfig struct {
	APIKey       string        `yaml:"api_key" json:"-"`
	Model        string        `yaml:"model" json:"model"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultGeminiConfig returns a GeminiConfig with sensible defaults.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:        "gemini-2.0-flash",
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
		SystemPrompt: defaultSystemPrompt,
		Timeout:      30 * time.Second,
	}
}

// Gemini answers utterances by sending the audio directly to the Gemini
// API; the model does its own transcription.
// Note: Gemini uses a different API format than OpenAI, so we implement it directly.
type Gemini struct {
	config GeminiConfig
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini responder.
func NewGemini(cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "server.gemini"),
	}, nil
}

// Respond submits the utterance audio and returns the reply text.
func (g *Gemini) Respond(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", ErrEmptyUtterance
	}
	start := time.Now()

	wav := encodeWAV(pcm, sampleRate, 1)
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": g.config.SystemPrompt},
					{
						"inline_data": map[string]string{
							"mime_type": "audio/wav",
							"data":      base64.StdEncoding.EncodeToString(wav),
						},
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.7,
			"maxOutputTokens": 256,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("server: marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, g.config.Model, g.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("server: build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("server: gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server: gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("server: decode gemini response: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("server: gemini error: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrEmptyReply
	}

	g.logger.Info("gemini reply",
		"model", g.config.Model,
		"audio_bytes", len(pcm),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ Responder = (*Gemini)(nil)
