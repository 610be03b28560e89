package transport

import (
	"context"
	"sync"

	"github.com/kestrelvoice/aria/pkg/protocol"
)

// MockClient is a scriptable transport for testing. Outgoing traffic is
// recorded; incoming traffic is injected with the Deliver* methods, which
// invoke the registered callbacks synchronously.
type MockClient struct {
	mu        sync.Mutex
	connected bool

	// Scripted failures
	connectErr error
	sendErr    error

	// Recorded outgoing traffic
	sentAudio    [][]byte
	sentMessages []*protocol.Message

	// Callbacks
	onAudio       func(pcm []byte)
	onMessage     func(msg *protocol.Message)
	onEndOfStream func()
	onClosed      func(err error)
}

// NewMockClient creates a mock transport.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// FailConnect makes the next Connect return err.
func (m *MockClient) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// FailSends makes every Send return err until cleared with FailSends(nil).
func (m *MockClient) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Connect marks the client connected.
func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		err := m.connectErr
		m.connectErr = nil
		return err
	}
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close marks the client disconnected.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports the connection flag.
func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SendAudio records one outgoing audio chunk.
func (m *MockClient) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	m.sentAudio = append(m.sentAudio, cp)
	return nil
}

// SendMessage records one outgoing control event.
func (m *MockClient) SendMessage(msg *protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentMessages = append(m.sentMessages, msg)
	return nil
}

// SentAudio returns all recorded audio chunks in send order.
func (m *MockClient) SentAudio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sentAudio))
	copy(out, m.sentAudio)
	return out
}

// SentMessages returns all recorded control events in send order.
func (m *MockClient) SentMessages() []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*protocol.Message, len(m.sentMessages))
	copy(out, m.sentMessages)
	return out
}

// SentMessageTypes returns the type tags of all recorded control events.
func (m *MockClient) SentMessageTypes() []protocol.MessageType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.MessageType, len(m.sentMessages))
	for i, msg := range m.sentMessages {
		out[i] = msg.Type
	}
	return out
}

// OnAudio sets the incoming audio callback.
func (m *MockClient) OnAudio(fn func(pcm []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// OnMessage sets the incoming control event callback.
func (m *MockClient) OnMessage(fn func(msg *protocol.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = fn
}

// OnEndOfStream sets the end-of-reply callback.
func (m *MockClient) OnEndOfStream(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEndOfStream = fn
}

// OnClosed sets the connection-dropped callback.
func (m *MockClient) OnClosed(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClosed = fn
}

// DeliverAudio injects one incoming audio chunk.
func (m *MockClient) DeliverAudio(pcm []byte) {
	m.mu.Lock()
	fn := m.onAudio
	m.mu.Unlock()
	if fn != nil {
		fn(pcm)
	}
}

// DeliverMessage injects one incoming control event.
func (m *MockClient) DeliverMessage(msg *protocol.Message) {
	m.mu.Lock()
	fn := m.onMessage
	m.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// DeliverEndOfStream injects the server's end-of-reply signal.
func (m *MockClient) DeliverEndOfStream() {
	m.mu.Lock()
	fn := m.onEndOfStream
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// DeliverClosed injects a connection drop.
func (m *MockClient) DeliverClosed(err error) {
	m.mu.Lock()
	m.connected = false
	fn := m.onClosed
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)
