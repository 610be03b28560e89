// Package server is the assistant backend: it accepts device WebSocket
// sessions, turns each uploaded utterance into a reply with an LLM and a
// TTS voice, and streams the reply audio back in fixed chunks.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Config holds the server parameters.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8888".
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	Session SessionConfig `yaml:"session" json:"session"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8888",
		Session:    DefaultSessionConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("server: listen_addr is required")
	}
	return c.Session.Validate()
}

// Server accepts device sessions over WebSocket.
type Server struct {
	cfg       Config
	app       *fiber.App
	responder Responder
	synth     Synthesizer
	observers Broadcaster
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates the server. observers may be nil.
func New(cfg Config, responder Responder, synth Synthesizer, observers Broadcaster, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if responder == nil || synth == nil {
		return nil, fmt.Errorf("server: responder and synthesizer are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		responder: responder,
		synth:     synth,
		observers: observers,
		logger:    logger.With("component", "server"),
		sessions:  make(map[string]*Session),
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
	}
	s.registerRoutes()
	return s, nil
}

// App returns the underlying Fiber app, so callers can mount more routes
// (the dashboard hub) before Listen.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("listening", "addr", s.cfg.ListenAddr)
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Sessions returns a snapshot of the connected sessions.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/api/sessions", func(c *fiber.Ctx) error {
		type info struct {
			ID     string `json:"id"`
			Device string `json:"device"`
		}
		var out []info
		for _, sess := range s.Sessions() {
			out = append(out, info{ID: sess.ID, Device: sess.DeviceName()})
		}
		return c.JSON(fiber.Map{"sessions": out, "count": len(out)})
	})

	s.app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/device", websocket.New(s.handleDevice))
}

// handleDevice owns one device connection for its lifetime.
func (s *Server) handleDevice(c *websocket.Conn) {
	id := uuid.NewString()
	sess, err := NewSession(id, s.cfg.Session, c, s.responder, s.synth, s.observers, s.logger)
	if err != nil {
		s.logger.Error("session setup failed", "error", err)
		return
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.logger.Info("device session opened", "session_id", id)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		if s.observers != nil {
			s.observers.Broadcast("device_disconnected", id, nil)
		}
		s.logger.Info("device session closed", "session_id", id)
	}()

	ctx := context.Background()
	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.logger.Warn("device read error", "session_id", id, "error", err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			sess.HandleBinary(data)
		case websocket.TextMessage:
			sess.HandleText(ctx, data)
		}
	}
}
