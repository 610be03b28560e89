package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
//
// Write does not close the output stream between calls, so a reply can be
// played as a sequence of chunks without audible gaps. The final chunk of a
// stream may be shorter than the device's preferred chunk size.
type Sink interface {
	// Start begins audio playback.
	Start(ctx context.Context) error

	// Stop halts audio playback.
	// It is safe to call Stop multiple times.
	Stop() error

	// Write sends raw PCM16 bytes to the output device.
	// This may block if the output buffer is full.
	Write(ctx context.Context, pcm []byte) error

	// Flush waits for all buffered audio to be played.
	Flush(ctx context.Context) error

	// Clear discards all buffered audio immediately.
	// Use this to interrupt playback (e.g., conversation cancelled).
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "i2s", "writer", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the sink cannot be restarted.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// ChunksWritten is the total number of chunks written.
	ChunksWritten int64 `json:"chunks_written"`

	// BytesWritten is the total number of bytes written.
	BytesWritten int64 `json:"bytes_written"`

	// Running indicates if the sink is currently playing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
