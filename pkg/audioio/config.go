// Package audioio provides audio capture and playback primitives for the
// satellite pipeline.
//
// A Source delivers fixed-size PCM16 frames at the microphone's cadence; a
// Sink accepts PCM16 chunks for playback. Backends:
//   - Mock - scripted frames for CI/testing without hardware
//   - Reader/Writer - raw PCM over io.Reader/io.Writer (pipes, files, gstreamer)
//
// Hardware backends (I2S, ALSA) live behind the same interfaces and are
// selected by the enclosing application.
package audioio

import (
	"fmt"
	"time"
)

// Config holds audio configuration.
type Config struct {
	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (speech recognition standard)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// FrameDuration is the duration of one capture frame.
	// Default: 30ms (480 samples at 16kHz), the cadence the VAD expects.
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: 30 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audioio: channels must be positive, got %d", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("audioio: frame_duration must be positive, got %v", c.FrameDuration)
	}
	return nil
}

// FrameSamples returns the number of samples per frame.
func (c *Config) FrameSamples() int {
	return int(float64(c.SampleRate)*c.FrameDuration.Seconds()) * c.Channels
}

// FrameBytes returns the size of one frame in bytes (PCM16 samples).
func (c *Config) FrameBytes() int {
	return c.FrameSamples() * 2
}
