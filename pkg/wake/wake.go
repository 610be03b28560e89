// Package wake defines the interfaces for the wake-word and command-word
// recognition engines.
//
// The engines themselves are opaque: a neural model consumes one frame per
// tick and reports a discrete detection state. This package only specifies
// the boundary the conversation pipeline talks to, plus mock engines for
// testing without a model.
package wake

import "github.com/kestrelvoice/aria/pkg/audioio"

// DetectState is the per-frame result of a detection engine.
type DetectState int

const (
	// NoDetect means nothing was recognized in this frame.
	NoDetect DetectState = iota
	// Detected means the engine recognized its target in this frame.
	Detected
	// Timeout means the command engine gave up waiting for a command.
	Timeout
)

func (s DetectState) String() string {
	switch s {
	case NoDetect:
		return "no_detect"
	case Detected:
		return "detected"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Detector is a wake-word engine. It is stateful across frames; Detect is
// called once per pipeline tick and must not block.
type Detector interface {
	// Detect feeds one frame and reports whether the wake word completed.
	Detect(frame audioio.Frame) DetectState

	// ModelName identifies the loaded model (for logging and control events).
	ModelName() string
}

// CommandResult is one recognized command candidate.
type CommandResult struct {
	// CommandID identifies the recognized command phrase.
	CommandID int

	// Confidence is the engine's confidence in [0, 1].
	Confidence float64

	// Transcript is the recognized phrase text, if the engine provides one.
	Transcript string
}

// CommandDetector is a command-word engine. Candidates are ordered by
// descending confidence.
type CommandDetector interface {
	// Detect feeds one frame and reports whether a command completed.
	Detect(frame audioio.Frame) DetectState

	// Results returns the candidates for the most recent detection.
	Results() []CommandResult

	// Reset clears the engine's internal audio buffer. Call it whenever a
	// new listening window starts.
	Reset()
}
