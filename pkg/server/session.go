package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/kestrelvoice/aria/pkg/protocol"
)

// wsConn is the subset of the device WebSocket connection a session uses.
// Tests substitute a fake.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// Broadcaster receives session activity for observers. *hub.Hub satisfies
// it.
type Broadcaster interface {
	Broadcast(eventType, sessionID string, data interface{})
}

// Session handles one connected device: it collects the streamed utterance,
// produces a reply, and streams the reply audio back.
type Session struct {
	ID     string
	cfg    SessionConfig
	conn   wsConn
	logger *slog.Logger

	responder Responder
	synth     Synthesizer
	observers Broadcaster

	writeMu sync.Mutex

	mu         sync.Mutex
	deviceName string
	sampleRate int
	utterance  []byte
	replying   bool
}

// SessionConfig holds per-session parameters.
type SessionConfig struct {
	// ChunkBytes is the reply audio chunk size on the wire. Default: 3200
	// (100ms of 16kHz PCM16).
	ChunkBytes int `yaml:"chunk_bytes" json:"chunk_bytes"`

	// MaxUtteranceBytes bounds the collected utterance. Default: 320000
	// (10s of 16kHz PCM16).
	MaxUtteranceBytes int `yaml:"max_utterance_bytes" json:"max_utterance_bytes"`

	// ReplyTimeout bounds one respond-and-synthesize round trip.
	// Default: 45s.
	ReplyTimeout time.Duration `yaml:"reply_timeout" json:"reply_timeout"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ChunkBytes:        3200,
		MaxUtteranceBytes: 320000,
		ReplyTimeout:      45 * time.Second,
	}
}

// Validate checks the configuration.
func (c *SessionConfig) Validate() error {
	if c.ChunkBytes <= 0 {
		return fmt.Errorf("server: chunk_bytes must be positive, got %d", c.ChunkBytes)
	}
	if c.MaxUtteranceBytes <= 0 {
		return fmt.Errorf("server: max_utterance_bytes must be positive, got %d", c.MaxUtteranceBytes)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("server: reply_timeout must be positive, got %s", c.ReplyTimeout)
	}
	return nil
}

// NewSession creates a session over an accepted device connection.
func NewSession(id string, cfg SessionConfig, conn wsConn, responder Responder, synth Synthesizer, observers Broadcaster, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:         id,
		cfg:        cfg,
		conn:       conn,
		responder:  responder,
		synth:      synth,
		observers:  observers,
		logger:     logger.With("component", "server.session", "session_id", id),
		sampleRate: 16000,
	}, nil
}

// DeviceName returns the name the device announced, if any.
func (s *Session) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceName
}

// HandleBinary collects one streamed utterance chunk. Audio beyond the
// utterance cap is dropped; the device's own capture cap makes this a
// protocol violation rather than a normal condition.
func (s *Session) HandleBinary(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.utterance)+len(pcm) > s.cfg.MaxUtteranceBytes {
		s.logger.Warn("utterance cap exceeded, dropping chunk", "have", len(s.utterance))
		return
	}
	s.utterance = append(s.utterance, pcm...)
}

// HandleText processes one device control event.
func (s *Session) HandleText(ctx context.Context, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Warn("unparseable device message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeDeviceHello:
		s.handleHello(msg)

	case protocol.TypeWakeWordDetected:
		var d protocol.WakeWordData
		_ = msg.ParseData(&d)
		s.logger.Info("wake word detected", "model", d.Model)
		s.broadcast("wake_word_detected", d)

	case protocol.TypeRecordingStarted:
		s.mu.Lock()
		s.utterance = s.utterance[:0]
		s.mu.Unlock()
		s.broadcast("recording_started", nil)

	case protocol.TypeRecordingEnded:
		var d protocol.RecordingEndedData
		_ = msg.ParseData(&d)
		s.finishUtterance(ctx, d)

	case protocol.TypeRecordingCancelled:
		var d protocol.RecordingCancelledData
		_ = msg.ParseData(&d)
		s.mu.Lock()
		s.utterance = s.utterance[:0]
		s.mu.Unlock()
		s.logger.Info("recording cancelled", "reason", d.Reason)
		s.broadcast("recording_cancelled", d)

	default:
		s.logger.Debug("unhandled device message", "type", msg.Type)
	}
}

func (s *Session) handleHello(msg *protocol.Message) {
	var d protocol.DeviceHelloData
	_ = msg.ParseData(&d)

	s.mu.Lock()
	s.deviceName = d.DeviceName
	if d.SampleRate > 0 {
		s.sampleRate = d.SampleRate
	}
	s.mu.Unlock()

	s.logger.Info("device connected",
		"device", d.DeviceName,
		"sample_rate", d.SampleRate,
	)
	s.sendEvent(protocol.TypeSessionReady, protocol.SessionReadyData{SessionID: s.ID})
	s.broadcast("device_connected", d)
}

// finishUtterance closes the upload and produces the reply.
func (s *Session) finishUtterance(ctx context.Context, d protocol.RecordingEndedData) {
	s.mu.Lock()
	if s.replying {
		s.mu.Unlock()
		s.logger.Warn("recording ended while a reply is in flight, ignoring")
		return
	}
	pcm := make([]byte, len(s.utterance))
	copy(pcm, s.utterance)
	s.utterance = s.utterance[:0]
	rate := s.sampleRate
	s.replying = true
	s.mu.Unlock()

	s.logger.Info("utterance received",
		"bytes", len(pcm),
		"streamed", d.Streamed,
	)
	s.broadcast("recording_ended", d)

	go func() {
		defer func() {
			s.mu.Lock()
			s.replying = false
			s.mu.Unlock()
		}()

		replyCtx, cancel := context.WithTimeout(ctx, s.cfg.ReplyTimeout)
		defer cancel()

		if err := s.reply(replyCtx, pcm, rate); err != nil {
			s.logger.Error("reply failed", "error", err)
			s.sendEvent(protocol.TypeResponseError, protocol.ResponseErrorData{
				Code:    "reply_failed",
				Message: err.Error(),
			})
			s.broadcast("reply_failed", map[string]string{"error": err.Error()})
		}
	}()
}

// reply runs the utterance through the responder and synthesizer, then
// streams the audio back in fixed chunks terminated by a ping.
func (s *Session) reply(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return ErrEmptyUtterance
	}

	text, err := s.responder.Respond(ctx, pcm, sampleRate)
	if err != nil {
		return err
	}
	s.logger.Info("reply text ready", "chars", len(text))
	s.broadcast("reply_text", map[string]string{"text": text})

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	s.sendEvent(protocol.TypeResponseStarted, protocol.ResponseStartedData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Transcript: text,
	})

	if err := s.streamAudio(audio); err != nil {
		return err
	}
	s.broadcast("reply_sent", map[string]int{"bytes": len(audio)})
	return nil
}

// streamAudio sends the reply as binary chunks and marks the end with a
// ping control frame.
func (s *Session) streamAudio(audio []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for off := 0; off < len(audio); off += s.cfg.ChunkBytes {
		end := off + s.cfg.ChunkBytes
		if end > len(audio) {
			end = len(audio)
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
			return fmt.Errorf("server: reply chunk write failed: %w", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	if err := s.conn.WriteControl(websocket.PingMessage, []byte("eos"), deadline); err != nil {
		return fmt.Errorf("server: end-of-stream ping failed: %w", err)
	}
	return nil
}

func (s *Session) sendEvent(msgType protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		s.logger.Error("marshal event failed", "type", msgType, "error", err)
		return
	}
	payload, err := msg.Bytes()
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.logger.Warn("event send failed", "type", msgType, "error", err)
	}
}

func (s *Session) broadcast(eventType string, data interface{}) {
	if s.observers != nil {
		s.observers.Broadcast(eventType, s.ID, data)
	}
}
