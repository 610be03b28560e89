package server

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors for the server package.
var (
	// ErrNoAPIKey indicates a required API key was not provided.
	ErrNoAPIKey = errors.New("server: API key is required")

	// ErrEmptyUtterance indicates a reply was requested for no audio.
	ErrEmptyUtterance = errors.New("server: empty utterance")

	// ErrEmptyReply indicates the model produced no text.
	ErrEmptyReply = errors.New("server: empty reply")
)

// Responder turns one utterance of PCM16 audio into a reply text.
type Responder interface {
	Respond(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// Synthesizer turns reply text into 16kHz mono PCM16 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// MockResponder returns a scripted reply. For testing and for running the
// server without an LLM key.
type MockResponder struct {
	mu    sync.Mutex
	Reply string
	Err   error

	calls    int
	lastPCM  []byte
	lastRate int
}

// Respond returns the scripted reply.
func (m *MockResponder) Respond(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPCM = pcm
	m.lastRate = sampleRate
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply == "" {
		return "I heard you.", nil
	}
	return m.Reply, nil
}

// Calls returns how many utterances were submitted.
func (m *MockResponder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastUtterance returns the most recent submitted audio.
func (m *MockResponder) LastUtterance() ([]byte, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPCM, m.lastRate
}

var _ Responder = (*MockResponder)(nil)

// MockSynthesizer returns scripted audio. When PCM is nil it fabricates a
// short buffer proportional to the text length.
type MockSynthesizer struct {
	mu   sync.Mutex
	PCM  []byte
	Err  error
	text string
}

// Synthesize returns the scripted audio.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	if m.Err != nil {
		return nil, m.Err
	}
	if m.PCM != nil {
		return m.PCM, nil
	}
	return make([]byte, 320*len(text)), nil
}

// LastText returns the most recent synthesized text.
func (m *MockSynthesizer) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

var _ Synthesizer = (*MockSynthesizer)(nil)
