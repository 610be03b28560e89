package wake

import (
	"sync"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

// MockDetector is a scriptable wake-word engine for testing.
// DetectAtFrame schedules a detection on the Nth call to Detect (0-based).
type MockDetector struct {
	mu      sync.Mutex
	tick    int
	fireAt  map[int]bool
	model   string
	Detects int
}

// NewMockDetector creates a mock wake-word engine.
func NewMockDetector() *MockDetector {
	return &MockDetector{
		fireAt: make(map[int]bool),
		model:  "mock_wakenet",
	}
}

// DetectAtFrame schedules a wake detection on the given Detect call index.
func (m *MockDetector) DetectAtFrame(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fireAt[n] = true
}

// Detect consumes one frame.
func (m *MockDetector) Detect(audioio.Frame) DetectState {
	m.mu.Lock()
	defer m.mu.Unlock()

	fire := m.fireAt[m.tick]
	m.tick++
	if fire {
		m.Detects++
		return Detected
	}
	return NoDetect
}

// ModelName returns the mock model name.
func (m *MockDetector) ModelName() string { return m.model }

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

var _ Detector = (*MockDetector)(nil)

// MockCommandDetector is a scriptable command-word engine for testing.
type MockCommandDetector struct {
	mu      sync.Mutex
	tick    int
	fireAt  map[int][]CommandResult
	results []CommandResult
	Resets  int
}

// NewMockCommandDetector creates a mock command-word engine.
func NewMockCommandDetector() *MockCommandDetector {
	return &MockCommandDetector{
		fireAt: make(map[int][]CommandResult),
	}
}

// DetectAtFrame schedules the given candidates on the Nth Detect call.
func (m *MockCommandDetector) DetectAtFrame(n int, results ...CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fireAt[n] = results
}

// Detect consumes one frame.
func (m *MockCommandDetector) Detect(audioio.Frame) DetectState {
	m.mu.Lock()
	defer m.mu.Unlock()

	results, fire := m.fireAt[m.tick]
	m.tick++
	if fire {
		m.results = results
		return Detected
	}
	return NoDetect
}

// Results returns the candidates from the last detection.
func (m *MockCommandDetector) Results() []CommandResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results
}

// Reset clears the engine buffer.
func (m *MockCommandDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets++
	m.results = nil
}

var _ CommandDetector = (*MockCommandDetector)(nil)
