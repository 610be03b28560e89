// Aria satellite: wake-word listening, utterance capture and reply playback
// for one microphone/speaker pair.
//
// Audio plumbing is pipe-based so the binary runs anywhere: feed 16kHz mono
// PCM16 on stdin (e.g. from arecord) and pipe stdout to a player (aplay).
// Logs go to stderr.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelvoice/aria/internal/config"
	"github.com/kestrelvoice/aria/internal/log"
	"github.com/kestrelvoice/aria/pkg/actuator"
	"github.com/kestrelvoice/aria/pkg/assistant"
	"github.com/kestrelvoice/aria/pkg/audioio"
	"github.com/kestrelvoice/aria/pkg/transport"
	"github.com/kestrelvoice/aria/pkg/vad"
	"github.com/kestrelvoice/aria/pkg/wake"
)

func main() {
	var (
		serverURL     = flag.String("server", "", "server WebSocket URL (overrides ARIA_SERVER_URL)")
		deviceName    = flag.String("device", "", "device name announced to the server (overrides ARIA_DEVICE_NAME)")
		wakeThreshold = flag.Float64("wake-threshold", 0.15, "normalized RMS that counts as a wake burst")
		silenceFrames = flag.Int("silence-frames", 0, "consecutive silent frames that end an utterance (0 = default)")
		debug         = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	url := *serverURL
	if url == "" {
		url = config.ServerURLRequired()
	}

	cfg := assistant.DefaultConfig()
	cfg.DeviceName = config.DeviceName()
	if *deviceName != "" {
		cfg.DeviceName = *deviceName
	}
	if *silenceFrames > 0 {
		cfg.Gate.SilenceFrames = *silenceFrames
	}

	source := audioio.NewReaderSource(cfg.Audio, os.Stdin, logger)
	sink := audioio.NewWriterSink(cfg.Audio, os.Stdout, logger)

	wsCfg := transport.DefaultConfig()
	wsCfg.URL = url
	wsCfg.Logger = logger
	client, err := transport.NewWSClient(wsCfg)
	if err != nil {
		logger.Error("transport setup failed", "error", err)
		os.Exit(1)
	}

	// No GPIO on a dev host; cues go to the log.
	cues := actuator.NewCues(logPin{logger}, nil, logger)

	a, err := assistant.New(cfg,
		source,
		sink,
		vad.NewEnergyClassifier(),
		wake.NewEnergyDetector(*wakeThreshold, 2, 0),
		client,
		assistant.WithNotifier(cues),
		assistant.WithCues(assistant.CueSet{
			Wake:     beep(cfg.Audio.SampleRate, 880, 120*time.Millisecond),
			Ack:      beep(cfg.Audio.SampleRate, 660, 80*time.Millisecond),
			Farewell: beep(cfg.Audio.SampleRate, 440, 160*time.Millisecond),
		}),
		assistant.WithLogger(logger),
	)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		logger.Error("server connection failed", "url", url, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("satellite running",
		"device", cfg.DeviceName,
		"server", url,
		"wake_model", "energy_burst",
	)

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pipeline stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("satellite stopped")
}

// beep synthesizes a short PCM16 sine cue with a linear fade-out.
func beep(sampleRate int, freq float64, dur time.Duration) []byte {
	n := int(float64(sampleRate) * dur.Seconds())
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		fade := 1 - float64(i)/float64(n)
		s := int16(8000 * fade * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// logPin stands in for the status LED on hosts without GPIO.
type logPin struct {
	logger *slog.Logger
}

func (p logPin) Set(high bool) error {
	p.logger.Debug("led", "on", high)
	return nil
}
