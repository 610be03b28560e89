// Package uplink streams utterance audio to the server while it is still
// being recorded.
//
// Streaming is best effort: the capture buffer remains the source of truth
// for the utterance, so a failed send is counted and skipped rather than
// propagated. Sending begins only once speech has actually been observed;
// the leading silence between wake word and first word never goes on the
// wire.
package uplink

import (
	"log/slog"
	"sync"

	"github.com/kestrelvoice/aria/pkg/audioio"
	"github.com/kestrelvoice/aria/pkg/transport"
)

// Streamer sends recorded frames up the device connection as they arrive.
type Streamer struct {
	client transport.Client
	logger *slog.Logger

	mu       sync.Mutex
	active   bool
	speaking bool

	sentFrames    int
	sentBytes     int
	droppedFrames int
}

// Stats describes one utterance's streaming outcome.
type Stats struct {
	SentFrames    int
	SentBytes     int
	DroppedFrames int
}

// NewStreamer creates a streamer over the given transport.
func NewStreamer(client transport.Client, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		client: client,
		logger: logger.With("component", "uplink"),
	}
}

// Begin starts a new utterance. Counters reset; sending stays off until
// MarkSpeech.
func (s *Streamer) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.speaking = false
	s.sentFrames = 0
	s.sentBytes = 0
	s.droppedFrames = 0
}

// MarkSpeech enables sending for the current utterance. Frames offered
// before this call are not streamed.
func (s *Streamer) MarkSpeech() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = s.active
}

// Offer streams one frame if the utterance is active and speech has been
// observed. Send failures are absorbed; the frame is counted as dropped.
func (s *Streamer) Offer(frame audioio.Frame) {
	s.mu.Lock()
	if !s.active || !s.speaking {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.client.SendAudio(frame.Bytes()); err != nil {
		s.mu.Lock()
		s.droppedFrames++
		dropped := s.droppedFrames
		s.mu.Unlock()
		if dropped == 1 {
			s.logger.Warn("uplink send failed, continuing best effort", "error", err)
		}
		return
	}

	s.mu.Lock()
	s.sentFrames++
	s.sentBytes += len(frame.Samples) * 2
	s.mu.Unlock()
}

// End closes the utterance and reports whether any audio went up. When
// streamed is false the caller sends the full capture in one message
// instead.
func (s *Streamer) End() (streamed bool, stats Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.speaking = false
	stats = Stats{
		SentFrames:    s.sentFrames,
		SentBytes:     s.sentBytes,
		DroppedFrames: s.droppedFrames,
	}
	return s.sentFrames > 0, stats
}

// Cancel discards the utterance without reporting.
func (s *Streamer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.speaking = false
}

// Active reports whether an utterance is open.
func (s *Streamer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
