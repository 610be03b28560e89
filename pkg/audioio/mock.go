package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MockSource is a mock audio source for testing.
// It replays scripted frames in FIFO order; when the script is exhausted it
// emits silence so the pipeline keeps ticking.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	script  []Frame
	errs    []error

	// Stats
	framesRead  atomic.Int64
	samplesRead atomic.Int64
	readErrors  atomic.Int64
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSource{
		cfg:    cfg,
		logger: logger,
	}
}

// Enqueue appends frames to the playback script.
func (m *MockSource) Enqueue(frames ...Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, frames...)
}

// EnqueueError makes the next ReadFrame return err, simulating a hardware
// read failure.
func (m *MockSource) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

// Start begins capture.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts capture.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// ReadFrame returns the next scripted frame, a scripted error, or silence.
func (m *MockSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return Frame{}, io.EOF
	}

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.readErrors.Add(1)
		return Frame{}, err
	}

	var f Frame
	if len(m.script) > 0 {
		f = m.script[0]
		m.script = m.script[1:]
	} else {
		f = Frame{
			Samples:    make([]int16, m.cfg.FrameSamples()),
			SampleRate: m.cfg.SampleRate,
		}
	}

	m.framesRead.Add(1)
	m.samplesRead.Add(int64(len(f.Samples)))
	return f, nil
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		FramesRead:  m.framesRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		ReadErrors:  m.readErrors.Load(),
		Running:     running,
		Backend:     "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock audio sink for testing.
// It records every write so tests can assert on played audio.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	writes  [][]byte

	chunksWritten atomic.Int64
	bytesWritten  atomic.Int64
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write records a chunk.
func (m *MockSink) Write(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}

	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	m.writes = append(m.writes, cp)

	m.chunksWritten.Add(1)
	m.bytesWritten.Add(int64(len(pcm)))
	return nil
}

// Flush is a no-op for the mock.
func (m *MockSink) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Clear discards recorded writes.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
	return nil
}

// Writes returns copies of all recorded chunks in write order.
func (m *MockSink) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		cp := make([]byte, len(w))
		copy(cp, w)
		out[i] = cp
	}
	return out
}

// Played returns the concatenation of all recorded chunks.
func (m *MockSink) Played() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return out
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SinkStats{
		ChunksWritten: m.chunksWritten.Load(),
		BytesWritten:  m.bytesWritten.Load(),
		Running:       running,
		Backend:       "mock",
	}
}

// Ensure MockSink implements SinkWithStats.
var _ SinkWithStats = (*MockSink)(nil)
