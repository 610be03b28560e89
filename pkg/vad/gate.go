package vad

import (
	"fmt"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

// GateConfig holds the parameters for a Gate.
type GateConfig struct {
	// SilenceFrames is the number of consecutive silence frames, after
	// speech has been observed, that ends the utterance.
	// Default: 20 (~600ms at 30ms frames).
	SilenceFrames int `yaml:"silence_frames" json:"silence_frames"`
}

// DefaultGateConfig returns a GateConfig with sensible defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{SilenceFrames: 20}
}

// Validate checks the gate configuration.
func (c *GateConfig) Validate() error {
	if c.SilenceFrames <= 0 {
		return fmt.Errorf("vad: silence_frames must be positive, got %d", c.SilenceFrames)
	}
	return nil
}

// Event is the result of feeding one frame through a Gate.
type Event struct {
	// State is the raw classification of the frame.
	State State

	// UtteranceEnded is true on exactly the frame where the silence run
	// crossed the configured threshold.
	UtteranceEnded bool
}

// Gate performs end-of-utterance edge detection over a Classifier.
//
// Silence frames arriving before any speech are ignored: the user has not
// started talking yet, so they must not count toward end-of-utterance.
// Once speech has been observed, SilenceFrames consecutive silence frames
// fire UtteranceEnded exactly once; the run counter resets on firing so the
// edge cannot repeat.
type Gate struct {
	cfg        GateConfig
	classifier Classifier

	speechSeen bool
	silenceRun int
}

// NewGate creates a gate over the given classifier.
func NewGate(cfg GateConfig, classifier Classifier) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		return nil, fmt.Errorf("vad: classifier is required")
	}
	return &Gate{cfg: cfg, classifier: classifier}, nil
}

// Process classifies one frame and advances the edge detector.
func (g *Gate) Process(frame audioio.Frame) Event {
	state := g.classifier.Classify(frame)

	switch state {
	case Speech:
		g.speechSeen = true
		g.silenceRun = 0
	case Silence:
		if !g.speechSeen {
			// Leading silence: still waiting for the user to start.
			break
		}
		g.silenceRun++
		if g.silenceRun >= g.cfg.SilenceFrames {
			g.silenceRun = 0
			return Event{State: state, UtteranceEnded: true}
		}
	}

	return Event{State: state}
}

// SpeechSeen reports whether any speech has been observed since the last
// Reset.
func (g *Gate) SpeechSeen() bool {
	return g.speechSeen
}

// Reset clears the edge-detection state and the underlying classifier.
// Call it whenever a new recording starts.
func (g *Gate) Reset() {
	g.speechSeen = false
	g.silenceRun = 0
	g.classifier.Reset()
}
