package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrelvoice/aria/pkg/protocol"
)

// Config holds WebSocket client parameters.
type Config struct {
	// URL is the server WebSocket endpoint, e.g. "ws://host:8888/ws/device".
	URL string `yaml:"url" json:"url"`

	// HandshakeTimeout bounds the initial dial. Default: 10s.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// WriteTimeout bounds each outgoing write. Default: 5s.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Logger for connection events. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("transport: invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("transport: URL scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("transport: handshake_timeout must be positive, got %s", c.HandshakeTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("transport: write_timeout must be positive, got %s", c.WriteTimeout)
	}
	return nil
}

// WSClient implements Client over gorilla/websocket.
type WSClient struct {
	config Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	state     ConnectionState
	cancelCtx context.CancelFunc

	// Callbacks
	onAudio       func(pcm []byte)
	onMessage     func(msg *protocol.Message)
	onEndOfStream func()
	onClosed      func(err error)

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewWSClient creates a WebSocket client for the given server.
func NewWSClient(cfg Config) (*WSClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		config: cfg,
		logger: logger.With("component", "transport.websocket"),
		state:  StateDisconnected,
	}, nil
}

// Connect establishes the WebSocket connection and starts the receive loop.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	c.logger.Info("connecting to assistant server", "url", c.config.URL)

	conn, resp, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	// The server ends a reply audio stream with a ping control frame.
	conn.SetPingHandler(func(appData string) error {
		c.emitEndOfStream()
		deadline := time.Now().Add(c.config.WriteTimeout)
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), deadline)
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.cancelCtx = cancel
	c.mu.Unlock()

	go c.readLoop(readCtx)

	c.logger.Info("connected to assistant server")
	return nil
}

// Close gracefully closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}

	if c.cancelCtx != nil {
		c.cancelCtx()
	}

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.conn.Close()
		c.conn = nil
	}

	c.state = StateDisconnected
	c.logger.Info("disconnected from assistant server")
	return nil
}

// IsConnected returns true while the connection is up.
func (c *WSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateConnected
}

// SendAudio sends one binary PCM16 chunk.
func (c *WSClient) SendAudio(pcm []byte) error {
	return c.send(websocket.BinaryMessage, pcm)
}

// SendMessage sends one JSON control event.
func (c *WSClient) SendMessage(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("transport: marshal failed: %w", err)
	}
	return c.send(websocket.TextMessage, data)
}

func (c *WSClient) send(messageType int, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	// gorilla permits one concurrent writer; serialize audio and control
	// messages here.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteMessage(messageType, data); err != nil {
		return NewConnectionError("write failed", err, true)
	}

	c.messagesSent.Add(1)
	return nil
}

// OnAudio sets the incoming audio callback.
func (c *WSClient) OnAudio(fn func(pcm []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = fn
}

// OnMessage sets the incoming control event callback.
func (c *WSClient) OnMessage(fn func(msg *protocol.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// OnEndOfStream sets the end-of-reply callback.
func (c *WSClient) OnEndOfStream(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEndOfStream = fn
}

// OnClosed sets the connection-dropped callback.
func (c *WSClient) OnClosed(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClosed = fn
}

// readLoop processes incoming WebSocket traffic. Control frames (the
// end-of-stream ping included) are handled inside ReadMessage.
func (c *WSClient) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.state == StateConnected
			c.state = StateDisconnected
			c.mu.Unlock()

			if !wasConnected {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection closed normally")
				c.emitClosed(nil)
				return
			}
			c.logger.Error("read error", "error", err)
			c.emitClosed(NewConnectionError("read failed", err, true))
			return
		}

		c.messagesReceived.Add(1)

		switch messageType {
		case websocket.BinaryMessage:
			c.emitAudio(data)
		case websocket.TextMessage:
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				c.logger.Warn("failed to parse message", "error", err)
				continue
			}
			c.emitMessage(msg)
		}
	}
}

// Emit helpers

func (c *WSClient) emitAudio(pcm []byte) {
	c.mu.RLock()
	fn := c.onAudio
	c.mu.RUnlock()
	if fn != nil {
		fn(pcm)
	}
}

func (c *WSClient) emitMessage(msg *protocol.Message) {
	c.mu.RLock()
	fn := c.onMessage
	c.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (c *WSClient) emitEndOfStream() {
	c.mu.RLock()
	fn := c.onEndOfStream
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *WSClient) emitClosed(err error) {
	c.mu.RLock()
	fn := c.onClosed
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Ensure WSClient implements Client.
var _ Client = (*WSClient)(nil)
