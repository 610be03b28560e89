// Aria server: accepts satellite WebSocket sessions, answers each utterance
// with Gemini and Cloud Text-to-Speech, and broadcasts session activity to
// dashboard observers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelvoice/aria/internal/config"
	"github.com/kestrelvoice/aria/internal/log"
	"github.com/kestrelvoice/aria/pkg/hub"
	"github.com/kestrelvoice/aria/pkg/server"
)

func main() {
	var (
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides ARIA_LISTEN_ADDR)")
		model      = flag.String("model", "", "Gemini model name")
		voice      = flag.String("voice", "", "Cloud TTS voice name")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	responder := buildResponder(*model, logger)
	synth := buildSynthesizer(ctx, *voice, logger)

	cfg := server.DefaultConfig()
	cfg.ListenAddr = config.ListenAddr()
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	h := hub.New(logger)
	srv, err := server.New(cfg, responder, synth, h, logger)
	if err != nil {
		logger.Error("server setup failed", "error", err)
		os.Exit(1)
	}
	h.RegisterRoutes(srv.App())

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	if err := srv.Listen(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildResponder wires Gemini when a key is present and falls back to the
// mock so the pipeline can be exercised end to end without credentials.
func buildResponder(model string, logger *slog.Logger) server.Responder {
	key := config.GeminiAPIKey()
	if key == "" {
		logger.Warn("GEMINI_API_KEY not set, using mock responder")
		return &server.MockResponder{Reply: "I heard you, but no language model is configured."}
	}

	cfg := server.DefaultGeminiConfig()
	cfg.APIKey = key
	if model != "" {
		cfg.Model = model
	}
	g, err := server.NewGemini(cfg, logger)
	if err != nil {
		logger.Error("gemini setup failed", "error", err)
		os.Exit(1)
	}
	return g
}

func buildSynthesizer(ctx context.Context, voice string, logger *slog.Logger) server.Synthesizer {
	key := config.TTSAPIKey()
	if key == "" {
		logger.Warn("TTS_API_KEY not set, using mock synthesizer")
		return &server.MockSynthesizer{}
	}

	cfg := server.DefaultTTSConfig()
	cfg.APIKey = key
	if voice != "" {
		cfg.Voice = voice
	}
	t, err := server.NewCloudTTS(ctx, cfg, logger)
	if err != nil {
		logger.Error("tts setup failed", "error", err)
		os.Exit(1)
	}
	return t
}
