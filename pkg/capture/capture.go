// Package capture accumulates one utterance of microphone audio.
//
// The buffer is bounded: once full, further frames are rejected whole rather
// than truncated, so the captured prefix is never corrupted. A minimum-length
// floor lets the pipeline discard false starts (a breath or a cough that
// tripped the detector).
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

// ErrFull is returned by Append when the frame does not fit. The buffer
// contents are unchanged.
var ErrFull = errors.New("capture: buffer full")

// ErrNotRecording is returned by Append when no recording is in progress.
var ErrNotRecording = errors.New("capture: not recording")

// Config holds the capture buffer parameters.
type Config struct {
	// MaxDuration bounds the utterance length. Default: 10s.
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`

	// MinDuration is the floor below which a captured utterance is
	// considered a false start. Default: 250ms.
	MinDuration time.Duration `yaml:"min_duration" json:"min_duration"`

	// SampleRate of the captured audio. Default: 16000.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxDuration: 10 * time.Second,
		MinDuration: 250 * time.Millisecond,
		SampleRate:  16000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("capture: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("capture: max_duration must be positive, got %s", c.MaxDuration)
	}
	if c.MinDuration < 0 {
		return fmt.Errorf("capture: min_duration must not be negative, got %s", c.MinDuration)
	}
	if c.MinDuration >= c.MaxDuration {
		return fmt.Errorf("capture: min_duration %s must be below max_duration %s", c.MinDuration, c.MaxDuration)
	}
	return nil
}

func (c *Config) maxSamples() int {
	return int(c.MaxDuration.Milliseconds()) * c.SampleRate / 1000
}

func (c *Config) minSamples() int {
	return int(c.MinDuration.Milliseconds()) * c.SampleRate / 1000
}

// MinSamples returns the false-start floor in samples.
func (c *Config) MinSamples() int {
	return c.minSamples()
}

// Buffer accumulates PCM16 samples for a single utterance.
type Buffer struct {
	cfg Config

	mu        sync.Mutex
	samples   []int16
	length    int
	recording bool
	rejected  uint64
}

// NewBuffer creates a capture buffer. The backing array is allocated once and
// reused across recordings.
func NewBuffer(cfg Config) (*Buffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Buffer{
		cfg:     cfg,
		samples: make([]int16, cfg.maxSamples()),
	}, nil
}

// Start begins a new recording, discarding any prior contents.
func (b *Buffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.length = 0
	b.recording = true
	b.rejected = 0
}

// Append adds one frame to the recording. If the frame does not fit it is
// rejected whole and ErrFull is returned; the samples captured so far are
// untouched.
func (b *Buffer) Append(frame audioio.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return ErrNotRecording
	}
	if b.length+len(frame.Samples) > len(b.samples) {
		b.rejected++
		return ErrFull
	}
	copy(b.samples[b.length:], frame.Samples)
	b.length += len(frame.Samples)
	return nil
}

// Stop ends the recording and returns the captured samples. The returned
// slice aliases the internal buffer and is valid until the next Start.
func (b *Buffer) Stop() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recording = false
	return b.samples[:b.length]
}

// Clear discards the recording without returning it. Safe to call when no
// recording is in progress.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.length = 0
	b.recording = false
	b.rejected = 0
}

// Len returns the number of samples captured so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Duration returns the captured audio length in time.
func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.length) * time.Second / time.Duration(b.cfg.SampleRate)
}

// Recording reports whether a recording is in progress.
func (b *Buffer) Recording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

// TooShort reports whether the captured audio is below the false-start
// floor.
func (b *Buffer) TooShort() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length < b.cfg.minSamples()
}

// Full reports whether the buffer can no longer accept a frame of the given
// sample count.
func (b *Buffer) Full(frameSamples int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length+frameSamples > len(b.samples)
}

// RejectedFrames returns the number of frames rejected since Start.
func (b *Buffer) RejectedFrames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}
