// Package transport provides the device-side WebSocket connection to the
// assistant server.
//
// Uplink audio goes out as binary frames; control events go out as JSON
// text messages. Downlink reply audio arrives as binary frames, terminated
// by a WebSocket ping control frame from the server. Incoming traffic is
// surfaced through callbacks set before Connect.
package transport

import (
	"context"

	"github.com/kestrelvoice/aria/pkg/protocol"
)

// ConnectionState represents the client connection state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client is the device's connection to the assistant server.
type Client interface {
	// Connect establishes the connection and starts the receive loop.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// IsConnected returns true while the connection is up.
	IsConnected() bool

	// SendAudio sends one binary PCM16 chunk.
	SendAudio(pcm []byte) error

	// SendMessage sends one JSON control event.
	SendMessage(msg *protocol.Message) error

	// OnAudio sets the callback for incoming binary audio chunks. The
	// slice is only valid for the duration of the call.
	OnAudio(fn func(pcm []byte))

	// OnMessage sets the callback for incoming JSON control events.
	OnMessage(fn func(msg *protocol.Message))

	// OnEndOfStream sets the callback for the server's end-of-reply ping.
	OnEndOfStream(fn func())

	// OnClosed sets the callback invoked when the connection drops. err is
	// nil on a clean close.
	OnClosed(fn func(err error))
}
