// Package downlink reassembles the server's chunked reply audio.
//
// Reply audio arrives as a run of binary chunks with no length prefix. The
// stream ends in one of two ways: the server's explicit end-of-stream signal
// (a WebSocket ping control frame), or an inactivity window elapsing with no
// new chunk. Either way completion fires exactly once per stream. A dropped
// connection mid-stream aborts: partial audio is discarded, never played.
package downlink

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State of the reassembler.
type State int

const (
	// StateIdle means no reply stream is in progress.
	StateIdle State = iota
	// StateAssembling means chunks are arriving.
	StateAssembling
)

func (s State) String() string {
	if s == StateAssembling {
		return "assembling"
	}
	return "idle"
}

// Config holds the reassembler parameters.
type Config struct {
	// InactivityTimeout completes the stream when no chunk arrives for
	// this long. Default: 500ms.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" json:"inactivity_timeout"`

	// MaxBytes bounds a buffered reply. 0 means unbounded. Ignored in
	// streaming mode.
	MaxBytes int `yaml:"max_bytes" json:"max_bytes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{InactivityTimeout: 500 * time.Millisecond}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("downlink: inactivity_timeout must be positive, got %s", c.InactivityTimeout)
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("downlink: max_bytes must not be negative, got %d", c.MaxBytes)
	}
	return nil
}

// Reassembler collects one reply audio stream at a time.
//
// In buffered mode (no forward function) chunks accumulate and the complete
// reply is handed to the completion callback. In streaming mode each chunk
// is forwarded as it arrives and the completion callback receives only the
// byte count; playback latency then does not depend on reply length.
type Reassembler struct {
	cfg     Config
	logger  *slog.Logger
	forward func(pcm []byte) error

	mu       sync.Mutex
	state    State
	buf      []byte
	total    int
	timer    *time.Timer
	streamID uint64

	onComplete func(pcm []byte, totalBytes int)
	onAbort    func(err error)
}

// Option configures a Reassembler.
type Option func(*Reassembler)

// WithForward puts the reassembler in streaming mode: each chunk is passed
// to fn as it arrives instead of being buffered. A forward error aborts the
// stream.
func WithForward(fn func(pcm []byte) error) Option {
	return func(r *Reassembler) { r.forward = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reassembler) { r.logger = logger }
}

// New creates a reassembler.
func New(cfg Config, opts ...Option) (*Reassembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Reassembler{cfg: cfg, state: StateIdle}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "downlink")
	return r, nil
}

// OnComplete sets the completion callback. In buffered mode pcm holds the
// whole reply; in streaming mode pcm is nil and totalBytes reports what was
// forwarded.
func (r *Reassembler) OnComplete(fn func(pcm []byte, totalBytes int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = fn
}

// OnAbort sets the abort callback.
func (r *Reassembler) OnAbort(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAbort = fn
}

// State returns the current state.
func (r *Reassembler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Chunk feeds one incoming audio chunk. The first chunk of a stream moves
// the reassembler to StateAssembling and arms the inactivity timer; every
// chunk re-arms it.
func (r *Reassembler) Chunk(pcm []byte) {
	r.mu.Lock()

	if r.state == StateIdle {
		r.state = StateAssembling
		r.buf = r.buf[:0]
		r.total = 0
		r.streamID++
		r.logger.Debug("reply stream started")
	}

	r.total += len(pcm)

	if r.forward != nil {
		fwd := r.forward
		r.armTimerLocked()
		r.mu.Unlock()
		// Forward outside the lock: the sink may block on backpressure.
		if err := fwd(pcm); err != nil {
			r.Abort(fmt.Errorf("downlink: forward failed: %w", err))
		}
		return
	}

	if r.cfg.MaxBytes > 0 && r.total > r.cfg.MaxBytes {
		r.mu.Unlock()
		r.Abort(fmt.Errorf("downlink: reply exceeds %d bytes", r.cfg.MaxBytes))
		return
	}

	r.buf = append(r.buf, pcm...)
	r.armTimerLocked()
	r.mu.Unlock()
}

// EndOfStream completes the stream explicitly. A signal arriving while idle
// is ignored; the server may confirm the end of a stream the inactivity
// timer already closed.
func (r *Reassembler) EndOfStream() {
	r.complete("end-of-stream signal")
}

// Abort discards the stream in progress. Safe to call while idle.
func (r *Reassembler) Abort(err error) {
	r.mu.Lock()
	if r.state == StateIdle {
		r.mu.Unlock()
		return
	}
	r.stopTimerLocked()
	r.state = StateIdle
	discarded := r.total
	r.buf = r.buf[:0]
	r.total = 0
	fn := r.onAbort
	r.mu.Unlock()

	r.logger.Warn("reply stream aborted", "discarded_bytes", discarded, "error", err)
	if fn != nil {
		fn(err)
	}
}

func (r *Reassembler) complete(reason string) {
	r.mu.Lock()
	if r.state == StateIdle {
		r.mu.Unlock()
		return
	}
	r.stopTimerLocked()
	r.state = StateIdle

	var pcm []byte
	if r.forward == nil {
		pcm = make([]byte, len(r.buf))
		copy(pcm, r.buf)
	}
	total := r.total
	r.buf = r.buf[:0]
	r.total = 0
	fn := r.onComplete
	r.mu.Unlock()

	r.logger.Debug("reply stream complete", "bytes", total, "reason", reason)
	if fn != nil {
		fn(pcm, total)
	}
}

// armTimerLocked resets the inactivity timer for the current stream.
func (r *Reassembler) armTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	id := r.streamID
	r.timer = time.AfterFunc(r.cfg.InactivityTimeout, func() {
		// A stale timer from a stream that already ended must not touch
		// the next one.
		r.mu.Lock()
		current := r.state == StateAssembling && r.streamID == id
		r.mu.Unlock()
		if current {
			r.complete("inactivity timeout")
		}
	})
}

func (r *Reassembler) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
