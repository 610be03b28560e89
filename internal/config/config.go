// Package config provides configuration helpers for aria commands.
package config

import (
	"fmt"
	"os"
)

// Default satellite configuration.
const (
	DefaultServerPort = "8888"
	DefaultDeviceName = "aria-satellite"
)

// ServerURL returns the reply-server WebSocket URL from ARIA_SERVER_URL.
// Falls back to the provided default if not set.
func ServerURL(defaultURL string) string {
	if u := os.Getenv("ARIA_SERVER_URL"); u != "" {
		return u
	}
	return defaultURL
}

// ServerURLRequired returns the reply-server URL from ARIA_SERVER_URL.
// Exits with a usage message if not set.
func ServerURLRequired() string {
	u := os.Getenv("ARIA_SERVER_URL")
	if u == "" {
		fmt.Fprintln(os.Stderr, "Error: ARIA_SERVER_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: ARIA_SERVER_URL=ws://192.168.1.10:8888/ws go run ./cmd/aria")
		os.Exit(1)
	}
	return u
}

// GeminiAPIKey returns the Gemini API key from GEMINI_API_KEY or GOOGLE_API_KEY.
func GeminiAPIKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// TTSAPIKey returns the Cloud Text-to-Speech API key from TTS_API_KEY,
// falling back to GOOGLE_API_KEY.
func TTSAPIKey() string {
	if k := os.Getenv("TTS_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// DeviceName returns the device identifier from ARIA_DEVICE_NAME or default.
func DeviceName() string {
	if n := os.Getenv("ARIA_DEVICE_NAME"); n != "" {
		return n
	}
	return DefaultDeviceName
}

// ListenAddr returns the server listen address from ARIA_LISTEN_ADDR or the
// default port on all interfaces.
func ListenAddr() string {
	if a := os.Getenv("ARIA_LISTEN_ADDR"); a != "" {
		return a
	}
	return ":" + DefaultServerPort
}

// LogLevel returns the log level from ARIA_LOG_LEVEL or "info".
func LogLevel() string {
	if l := os.Getenv("ARIA_LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}
