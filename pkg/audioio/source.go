package audioio

import (
	"context"
	"io"
)

// Source captures audio from a microphone or other input device.
//
// ReadFrame is the pipeline's clock: it blocks until exactly one frame's
// worth of samples is available and never returns a short frame. A hardware
// read error is returned as-is; the caller retries after a short backoff and
// must not feed the failed tick into voice-activity detection.
type Source interface {
	// Start begins audio capture.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// ReadFrame reads the next full frame, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	ReadFrame(ctx context.Context) (Frame, error)

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "i2s", "reader", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// FramesRead is the total number of frames read.
	FramesRead int64 `json:"frames_read"`

	// SamplesRead is the total number of samples read.
	SamplesRead int64 `json:"samples_read"`

	// ReadErrors is the number of failed hardware reads.
	ReadErrors int64 `json:"read_errors"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
