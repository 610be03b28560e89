package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

func testConfig() Config {
	return Config{
		MaxDuration: 90 * time.Millisecond, // 3 frames of 30ms
		MinDuration: 30 * time.Millisecond,
		SampleRate:  16000,
	}
}

func frameOf(value int16) audioio.Frame {
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = value
	}
	return audioio.Frame{Samples: samples, SampleRate: 16000}
}

func TestBufferAppendAndStop(t *testing.T) {
	b, err := NewBuffer(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	b.Start()
	if err := b.Append(frameOf(1)); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(frameOf(2)); err != nil {
		t.Fatal(err)
	}

	got := b.Stop()
	if len(got) != 960 {
		t.Fatalf("expected 960 samples, got %d", len(got))
	}
	if got[0] != 1 || got[480] != 2 {
		t.Error("samples out of order")
	}
}

func TestBufferRejectsWholeFrameWhenFull(t *testing.T) {
	b, _ := NewBuffer(testConfig())
	b.Start()

	for i := 0; i < 3; i++ {
		if err := b.Append(frameOf(int16(i + 1))); err != nil {
			t.Fatal(err)
		}
	}

	if err := b.Append(frameOf(99)); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if got := b.RejectedFrames(); got != 1 {
		t.Errorf("expected 1 rejected frame, got %d", got)
	}

	// The captured prefix must be intact after the rejection.
	got := b.Stop()
	if len(got) != 1440 {
		t.Fatalf("expected 1440 samples, got %d", len(got))
	}
	for i, want := range []int16{1, 2, 3} {
		if got[i*480] != want {
			t.Errorf("sample %d corrupted: got %d want %d", i*480, got[i*480], want)
		}
	}
}

func TestBufferAppendWithoutStart(t *testing.T) {
	b, _ := NewBuffer(testConfig())
	if err := b.Append(frameOf(1)); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestBufferStartResets(t *testing.T) {
	b, _ := NewBuffer(testConfig())

	b.Start()
	b.Append(frameOf(1))
	b.Stop()

	b.Start()
	if b.Len() != 0 {
		t.Error("start did not discard prior recording")
	}
}

func TestBufferTooShort(t *testing.T) {
	b, _ := NewBuffer(testConfig())
	b.Start()

	// MinDuration 30ms = one 480-sample frame.
	if !b.TooShort() {
		t.Error("empty recording should be too short")
	}
	b.Append(frameOf(1))
	if b.TooShort() {
		t.Error("one full frame meets the floor")
	}
}

func TestBufferClearIdempotent(t *testing.T) {
	b, _ := NewBuffer(testConfig())
	b.Start()
	b.Append(frameOf(1))

	b.Clear()
	b.Clear()

	if b.Len() != 0 || b.Recording() {
		t.Error("clear did not reset state")
	}
}

func TestBufferDuration(t *testing.T) {
	b, _ := NewBuffer(testConfig())
	b.Start()
	b.Append(frameOf(1))

	if got := b.Duration(); got != 30*time.Millisecond {
		t.Errorf("expected 30ms, got %s", got)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero sample rate", Config{MaxDuration: time.Second, SampleRate: 0}},
		{"zero max duration", Config{SampleRate: 16000}},
		{"min above max", Config{MaxDuration: time.Second, MinDuration: 2 * time.Second, SampleRate: 16000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBuffer(tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
