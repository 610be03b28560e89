// Package assistant orchestrates the conversation pipeline: wake word,
// utterance capture with live uplink streaming, and reply playback.
//
// A single goroutine owns the pipeline: it reads one microphone frame per
// tick and drives every state transition. The network receive path only
// feeds the downlink reassembler and the playback ring; completion and
// abort of a reply are handed to the pipeline goroutine through flags it
// picks up on its next tick, so conversation state has exactly one writer.
package assistant

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelvoice/aria/pkg/audioio"
	"github.com/kestrelvoice/aria/pkg/capture"
	"github.com/kestrelvoice/aria/pkg/downlink"
	"github.com/kestrelvoice/aria/pkg/playback"
	"github.com/kestrelvoice/aria/pkg/transport"
	"github.com/kestrelvoice/aria/pkg/uplink"
	"github.com/kestrelvoice/aria/pkg/vad"
	"github.com/kestrelvoice/aria/pkg/wake"
)

// State is the conversation state.
type State int

const (
	// StateWaitingWakeup means the device is idle, listening for the wake
	// word.
	StateWaitingWakeup State = iota
	// StateRecording means an utterance is being captured.
	StateRecording
	// StateWaitingResponse means the utterance was sent and the reply has
	// not finished arriving.
	StateWaitingResponse
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateWaitingResponse:
		return "waiting_response"
	default:
		return "waiting_wakeup"
	}
}

// Notifier receives user-facing conversation cues (acknowledgement sound,
// LED, servo gestures). All methods are called from the pipeline goroutine
// and must not block.
type Notifier interface {
	// WakeAcknowledged fires when the wake word is recognized.
	WakeAcknowledged()

	// ReplyStarted fires when reply audio starts playing.
	ReplyStarted()

	// ConversationEnded fires when the conversation returns to idle.
	ConversationEnded()
}

// Config holds the pipeline parameters.
type Config struct {
	Audio    audioio.Config  `yaml:"audio" json:"audio"`
	Gate     vad.GateConfig  `yaml:"gate" json:"gate"`
	Capture  capture.Config  `yaml:"capture" json:"capture"`
	Playback playback.Config `yaml:"playback" json:"playback"`
	Downlink downlink.Config `yaml:"downlink" json:"downlink"`

	// RecordingTimeout bounds the wait for first speech, in continuous
	// mode only. The first recording after the wake word has no timeout.
	// Default: 10s.
	RecordingTimeout time.Duration `yaml:"recording_timeout" json:"recording_timeout"`

	// ReadRetryBackoff is the pause after a microphone read error.
	// Default: 30ms.
	ReadRetryBackoff time.Duration `yaml:"read_retry_backoff" json:"read_retry_backoff"`

	// EndCommandID is the command-word ID that ends the conversation.
	// Default: 0.
	EndCommandID int `yaml:"end_command_id" json:"end_command_id"`

	// DeviceName identifies this device to the server.
	DeviceName string `yaml:"device_name" json:"device_name"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Audio:            audioio.DefaultConfig(),
		Gate:             vad.DefaultGateConfig(),
		Capture:          capture.DefaultConfig(),
		Playback:         playback.DefaultConfig(),
		Downlink:         downlink.DefaultConfig(),
		RecordingTimeout: 10 * time.Second,
		ReadRetryBackoff: 30 * time.Millisecond,
		DeviceName:       "aria",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if err := c.Gate.Validate(); err != nil {
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if err := c.Playback.Validate(); err != nil {
		return err
	}
	if err := c.Downlink.Validate(); err != nil {
		return err
	}
	if c.RecordingTimeout <= 0 {
		return fmt.Errorf("assistant: recording_timeout must be positive, got %s", c.RecordingTimeout)
	}
	if c.ReadRetryBackoff <= 0 {
		return fmt.Errorf("assistant: read_retry_backoff must be positive, got %s", c.ReadRetryBackoff)
	}
	return nil
}

// Assistant owns the conversation pipeline.
type Assistant struct {
	cfg    Config
	logger *slog.Logger

	source      audioio.Source
	sink        audioio.Sink
	gate        *vad.Gate
	capture     *capture.Buffer
	uplink      *uplink.Streamer
	wakeEngine  wake.Detector
	cmdEngine   wake.CommandDetector
	client      transport.Client
	reassembler *downlink.Reassembler
	player      *playback.Player

	notifier  Notifier
	cues      CueSet
	onCommand func(results []wake.CommandResult)
	clock     func() time.Time

	// Conversation state; written only by the pipeline goroutine.
	state      State
	continuous bool
	deadline   time.Time

	// Signals from the network context to the pipeline goroutine.
	replyDone    atomic.Bool
	replyAborted atomic.Bool

	stateMu sync.RWMutex
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithNotifier sets the cue notifier.
func WithNotifier(n Notifier) Option {
	return func(a *Assistant) { a.notifier = n }
}

// WithCues sets the PCM acknowledgement sounds played through the sink.
func WithCues(c CueSet) Option {
	return func(a *Assistant) { a.cues = c }
}

// WithCommandEngine enables local command-word recognition in continuous
// mode.
func WithCommandEngine(d wake.CommandDetector) Option {
	return func(a *Assistant) { a.cmdEngine = d }
}

// WithCommandHandler sets the callback for recognized commands other than
// the end-conversation command.
func WithCommandHandler(fn func(results []wake.CommandResult)) Option {
	return func(a *Assistant) { a.onCommand = fn }
}

// WithClock overrides the time source. Used by tests to drive the
// recording timeout without waiting.
func WithClock(fn func() time.Time) Option {
	return func(a *Assistant) { a.clock = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) { a.logger = logger }
}

// New creates the pipeline. sink receives reply audio; wakeEngine gates the
// conversation start; client carries both directions of the session.
func New(
	cfg Config,
	source audioio.Source,
	sink audioio.Sink,
	classifier vad.Classifier,
	wakeEngine wake.Detector,
	client transport.Client,
	opts ...Option,
) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || sink == nil || classifier == nil || wakeEngine == nil || client == nil {
		return nil, fmt.Errorf("assistant: source, sink, classifier, wake engine and client are required")
	}

	a := &Assistant{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		wakeEngine: wakeEngine,
		client:     client,
		state:      StateWaitingWakeup,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "assistant")

	gate, err := vad.NewGate(cfg.Gate, classifier)
	if err != nil {
		return nil, err
	}
	a.gate = gate

	buf, err := capture.NewBuffer(cfg.Capture)
	if err != nil {
		return nil, err
	}
	a.capture = buf

	player, err := playback.NewPlayer(cfg.Playback, sink, a.logger)
	if err != nil {
		return nil, err
	}
	a.player = player

	reassembler, err := downlink.New(cfg.Downlink,
		downlink.WithLogger(a.logger),
		downlink.WithForward(a.forwardReplyChunk),
	)
	if err != nil {
		return nil, err
	}
	a.reassembler = reassembler

	a.uplink = uplink.NewStreamer(client, a.logger)
	a.wireTransport()
	return a, nil
}

// State returns the current conversation state.
func (a *Assistant) State() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

// Continuous reports whether continuous conversation mode is active.
func (a *Assistant) Continuous() bool {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.continuous
}

func (a *Assistant) setState(s State) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
}
