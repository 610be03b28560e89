package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/texttospeech/v1"
)

// TTSConfig holds the Cloud Text-to-Speech parameters.
type TTSConfig struct {
	APIKey       string `yaml:"api_key" json:"-"`
	LanguageCode string `yaml:"language_code" json:"language_code"`
	Voice        string `yaml:"voice" json:"voice"`
	SampleRate   int    `yaml:"sample_rate" json:"sample_rate"`
}

// DefaultTTSConfig returns a TTSConfig with sensible defaults matching the
// device's playback format.
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		LanguageCode: "en-US",
		Voice:        "en-US-Standard-C",
		SampleRate:   16000,
	}
}

// CloudTTS synthesizes reply audio with Google Cloud Text-to-Speech.
type CloudTTS struct {
	config  TTSConfig
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewCloudTTS creates a synthesizer. The service client is constructed once
// and reused across replies.
func NewCloudTTS(ctx context.Context, cfg TTSConfig, logger *slog.Logger) (*CloudTTS, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := texttospeech.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("server: create tts service: %w", err)
	}

	return &CloudTTS{
		config:  cfg,
		service: service,
		logger:  logger.With("component", "server.tts"),
	}, nil
}

// Synthesize returns the text as raw PCM16 at the configured sample rate.
func (t *CloudTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyReply
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: t.config.LanguageCode,
			Name:         t.config.Voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(t.config.SampleRate),
		},
	}

	resp, err := t.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("server: tts synthesize failed: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("server: decode tts audio: %w", err)
	}

	// LINEAR16 responses arrive in a WAV container; the device wants bare
	// samples.
	pcm, err := stripWAV(raw)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("synthesized reply",
		"chars", len(text),
		"pcm_bytes", len(pcm),
	)
	return pcm, nil
}

var _ Synthesizer = (*CloudTTS)(nil)
