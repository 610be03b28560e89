// Package vad provides per-frame voice-activity classification and the
// end-of-utterance edge detection built on top of it.
//
// A Classifier labels each frame as speech or silence. The Gate turns that
// raw stream of labels into a single debounced "utterance ended" edge: it
// never counts silence before the first speech frame (a long pause before
// the user starts talking must not end a recording that has not begun), and
// it fires exactly once per utterance.
package vad

import "github.com/kestrelvoice/aria/pkg/audioio"

// State is the classification of a single audio frame.
type State int

const (
	// Silence indicates no voice activity in the frame.
	Silence State = iota
	// Speech indicates voice activity in the frame.
	Speech
)

func (s State) String() string {
	switch s {
	case Silence:
		return "silence"
	case Speech:
		return "speech"
	default:
		return "unknown"
	}
}

// Classifier labels one audio frame as speech or silence.
//
// Implementations wrap a frame-level detector (an energy threshold, WebRTC
// VAD, a neural model). A Classifier is stateful per stream and must not be
// shared across pipelines. Classify must not block: it is called once per
// tick on the pipeline goroutine.
type Classifier interface {
	// Classify labels a single frame.
	Classify(frame audioio.Frame) State

	// Reset clears accumulated smoothing state. Call it when the stream is
	// interrupted or a new recording starts so stale history from the
	// previous segment cannot leak into the next one.
	Reset()
}
