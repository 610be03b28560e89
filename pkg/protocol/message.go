// Package protocol defines the WebSocket message types for device-server
// communication.
//
// Audio travels as raw binary frames (little-endian PCM16); everything else
// is a JSON text message with a type tag. The end of a reply audio stream is
// signalled out of band with a WebSocket ping control frame, so the audio
// path never needs byte stuffing or length prefixes.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket text message
type MessageType string

const (
	// Device → Server messages
	TypeWakeWordDetected   MessageType = "wake_word_detected"
	TypeRecordingStarted   MessageType = "recording_started"
	TypeRecordingEnded     MessageType = "recording_ended"
	TypeRecordingCancelled MessageType = "recording_cancelled"
	TypeDeviceHello        MessageType = "device_hello"

	// Server → Device messages
	TypeResponseStarted MessageType = "response_started"
	TypeResponseError   MessageType = "response_error"
	TypeSessionReady    MessageType = "session_ready"
)

// Message is the base wrapper for all WebSocket text messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// DeviceHelloData identifies a device when its session opens
type DeviceHelloData struct {
	DeviceName string `json:"device_name"`
	SampleRate int    `json:"sample_rate"` // e.g., 16000
	Channels   int    `json:"channels"`    // 1 for mono
	Format     string `json:"format"`      // "pcm16"
}

// WakeWordData reports a wake-word detection
type WakeWordData struct {
	Model string `json:"model,omitempty"`
}

// RecordingEndedData closes an utterance upload
type RecordingEndedData struct {
	// Samples is the total utterance length in samples.
	Samples int `json:"samples"`

	// Streamed reports whether the audio already went up incrementally.
	// When false the full utterance follows as one binary message.
	Streamed bool `json:"streamed"`
}

// RecordingCancelledData reports a discarded false start
type RecordingCancelledData struct {
	Reason  string `json:"reason"` // "too_short", "timeout"
	Samples int    `json:"samples,omitempty"`
}

// =============================================================================
// Server → Device Message Types
// =============================================================================

// SessionReadyData acknowledges a device session
type SessionReadyData struct {
	SessionID string `json:"session_id"`
}

// ResponseStartedData announces that reply audio chunks follow
type ResponseStartedData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g., 16000
	Transcript string `json:"transcript,omitempty"`
}

// ResponseErrorData reports a failed reply
type ResponseErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
