package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelvoice/aria/internal/log"
	"github.com/kestrelvoice/aria/pkg/audioio"
)

// Config holds the streaming player parameters.
type Config struct {
	// BufferSize is the ring capacity in bytes. Default: 32768 (~1s of
	// 16kHz PCM16).
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// ChunkSize is the whole-chunk drain size in bytes. Default: 3200
	// (100ms of 16kHz PCM16).
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// DrainInterval is how often the drainer polls the ring when it has
	// less than a full chunk. Default: 10ms.
	DrainInterval time.Duration `yaml:"drain_interval" json:"drain_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:    32768,
		ChunkSize:     3200,
		DrainInterval: 10 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BufferSize < 2 {
		return fmt.Errorf("playback: buffer_size must be at least 2, got %d", c.BufferSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("playback: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkSize >= c.BufferSize {
		return fmt.Errorf("playback: chunk_size %d must be below buffer_size %d", c.ChunkSize, c.BufferSize)
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("playback: drain_interval must be positive, got %s", c.DrainInterval)
	}
	return nil
}

// Player streams reply audio through a Ring into a Sink. The network path
// calls Write as chunks arrive; a background drainer feeds the sink one
// whole chunk at a time. Finish flushes whatever short tail remains and
// stops the drainer.
type Player struct {
	cfg    Config
	ring   *Ring
	sink   audioio.Sink
	logger *slog.Logger

	mu       sync.Mutex
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	sinkErr  error
}

// NewPlayer creates a streaming player over the given sink.
func NewPlayer(cfg Config, sink audioio.Sink, logger *slog.Logger) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("playback: sink is required")
	}
	if logger == nil {
		logger = log.L()
	}
	ring, err := NewRing(cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	return &Player{
		cfg:    cfg,
		ring:   ring,
		sink:   sink,
		logger: logger.With("component", "playback"),
	}, nil
}

// Start resets the ring and launches the drainer. It is a no-op when the
// drainer is already running.
func (p *Player) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return
	}
	p.ring.Reset()
	p.sinkErr = nil
	drainCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.draining = true
	go p.drain(drainCtx, p.done)
	p.logger.Debug("playback started")
}

// Write buffers one downlink chunk. When the chunk does not fit, Write
// blocks briefly for the drainer to make room before giving up, so a
// transiently full ring does not drop audio.
func (p *Player) Write(ctx context.Context, data []byte) error {
	deadline := time.Now().Add(time.Second)
	for {
		err := p.ring.Write(data)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.DrainInterval):
		}
	}
}

// Finish waits for the ring to empty, flushing any short tail, then stops
// the drainer. When the drainer has died on a sink error, Finish discards
// the remaining audio and returns that error instead of waiting for a
// drain that can no longer happen.
func (p *Player) Finish(ctx context.Context) error {
	for p.ring.Len() >= p.cfg.ChunkSize {
		if err := p.drainErr(); err != nil {
			p.Abort()
			return err
		}

		p.mu.Lock()
		done := p.done
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case <-done:
			// Drainer exited with whole chunks still buffered.
			if err := p.drainErr(); err != nil {
				p.Abort()
				return err
			}
		case <-time.After(p.cfg.DrainInterval):
		}
	}

	p.Stop()
	if err := p.drainErr(); err != nil {
		p.ring.Reset()
		return err
	}

	// The tail is shorter than one chunk and bypasses the drainer.
	tail := make([]byte, p.cfg.ChunkSize)
	if n := p.ring.Read(tail); n > 0 {
		if err := p.sink.Write(ctx, tail[:n]); err != nil {
			return err
		}
	}
	p.ring.Reset()
	return p.sink.Flush(ctx)
}

func (p *Player) drainErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sinkErr
}

// Stop halts the drainer without flushing. Buffered audio stays in the
// ring until Reset or the next Start.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.draining {
		p.mu.Unlock()
		return
	}
	p.cancel()
	done := p.done
	p.draining = false
	p.mu.Unlock()

	<-done
}

// Abort discards all buffered audio and stops the drainer.
func (p *Player) Abort() {
	p.Stop()
	p.ring.Reset()
	p.logger.Debug("playback aborted")
}

// Buffered returns the number of buffered bytes.
func (p *Player) Buffered() int {
	return p.ring.Len()
}

func (p *Player) drain(ctx context.Context, done chan struct{}) {
	defer close(done)

	chunk := make([]byte, p.cfg.ChunkSize)
	ticker := time.NewTicker(p.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for p.ring.ReadFull(chunk) {
				if err := p.sink.Write(ctx, chunk); err != nil {
					p.logger.Warn("sink write failed", "error", err)
					p.mu.Lock()
					p.sinkErr = err
					p.mu.Unlock()
					return
				}
			}
		}
	}
}
