package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ReaderSource reads raw little-endian PCM16 from an io.Reader and slices it
// into fixed-size frames. Useful for piping audio from arecord, sox or a
// recorded capture file into the pipeline.
type ReaderSource struct {
	cfg    Config
	logger *slog.Logger
	r      io.Reader

	mu      sync.Mutex
	running bool
	closed  bool

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	readErrors  atomic.Int64
}

// NewReaderSource creates a source that reads PCM16 from r.
func NewReaderSource(cfg Config, r io.Reader, logger *slog.Logger) *ReaderSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaderSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.reader"),
		r:      r,
	}
}

// Start begins capture.
func (s *ReaderSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	s.logger.Info("reader source started",
		"sample_rate", s.cfg.SampleRate,
		"frame_bytes", s.cfg.FrameBytes(),
	)
	return nil
}

// Stop halts capture.
func (s *ReaderSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// ReadFrame blocks until one full frame has been read from the underlying
// reader. A short read at end of stream is reported as io.EOF, never as a
// short frame.
func (s *ReaderSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	if s.closed || !s.running {
		s.mu.Unlock()
		return Frame{}, io.EOF
	}
	s.mu.Unlock()

	buf := make([]byte, s.cfg.FrameBytes())
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != io.EOF {
			s.readErrors.Add(1)
		}
		return Frame{}, err
	}

	f := FrameFromBytes(buf, s.cfg.SampleRate)
	s.framesRead.Add(1)
	s.samplesRead.Add(int64(len(f.Samples)))
	return f, nil
}

// Config returns the audio configuration.
func (s *ReaderSource) Config() Config { return s.cfg }

// Name returns "reader".
func (s *ReaderSource) Name() string { return "reader" }

// Close releases resources.
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running = false
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats returns source statistics.
func (s *ReaderSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead:  s.framesRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		ReadErrors:  s.readErrors.Load(),
		Running:     running,
		Backend:     "reader",
	}
}

var _ SourceWithStats = (*ReaderSource)(nil)

// WriterSink writes raw PCM16 to an io.Writer. Useful for piping playback
// into aplay/gstreamer or capturing output in tests and tools.
type WriterSink struct {
	cfg    Config
	logger *slog.Logger
	w      io.Writer

	mu      sync.Mutex
	running bool
	closed  bool

	chunksWritten atomic.Int64
	bytesWritten  atomic.Int64
}

// NewWriterSink creates a sink that writes PCM16 to w.
func NewWriterSink(cfg Config, w io.Writer, logger *slog.Logger) *WriterSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriterSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.writer"),
		w:      w,
	}
}

// Start begins playback.
func (s *WriterSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// Stop halts playback.
func (s *WriterSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Write sends pcm to the underlying writer.
func (s *WriterSink) Write(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}

	if _, err := s.w.Write(pcm); err != nil {
		return fmt.Errorf("audioio: write failed: %w", err)
	}

	s.chunksWritten.Add(1)
	s.bytesWritten.Add(int64(len(pcm)))
	return nil
}

// Flush flushes the underlying writer when it supports it.
func (s *WriterSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	type flusher interface{ Flush() error }
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Clear is a no-op: an io.Writer has no buffer to discard.
func (s *WriterSink) Clear() error { return nil }

// Config returns the audio configuration.
func (s *WriterSink) Config() Config { return s.cfg }

// Name returns "writer".
func (s *WriterSink) Name() string { return "writer" }

// Close releases resources.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running = false
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats returns sink statistics.
func (s *WriterSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten: s.chunksWritten.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		Running:       running,
		Backend:       "writer",
	}
}

var _ SinkWithStats = (*WriterSink)(nil)
