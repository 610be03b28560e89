package audioio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := DefaultConfig()

		if cfg.SampleRate != 16000 {
			t.Errorf("expected 16000 Hz, got %d", cfg.SampleRate)
		}
		if cfg.Channels != 1 {
			t.Errorf("expected mono, got %d channels", cfg.Channels)
		}
		if cfg.FrameDuration != 30*time.Millisecond {
			t.Errorf("expected 30ms frames, got %v", cfg.FrameDuration)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("frame sizes", func(t *testing.T) {
		cfg := DefaultConfig()

		if cfg.FrameSamples() != 480 {
			t.Errorf("expected 480 samples per frame, got %d", cfg.FrameSamples())
		}
		if cfg.FrameBytes() != 960 {
			t.Errorf("expected 960 bytes per frame, got %d", cfg.FrameBytes())
		}
	})

	t.Run("invalid configs", func(t *testing.T) {
		bad := []Config{
			{SampleRate: 0, Channels: 1, FrameDuration: time.Millisecond},
			{SampleRate: 16000, Channels: 0, FrameDuration: time.Millisecond},
			{SampleRate: 16000, Channels: 1, FrameDuration: 0},
		}
		for i, cfg := range bad {
			if err := cfg.Validate(); err == nil {
				t.Errorf("config %d should not validate", i)
			}
		}
	})
}

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{Samples: []int16{0, 1, -1, 32767, -32768}, SampleRate: 16000}

	got := FrameFromBytes(f.Bytes(), 16000)
	if len(got.Samples) != len(f.Samples) {
		t.Fatalf("expected %d samples, got %d", len(f.Samples), len(got.Samples))
	}
	for i := range f.Samples {
		if got.Samples[i] != f.Samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, f.Samples[i], got.Samples[i])
		}
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]int16, 480), SampleRate: 16000}
	if d := f.Duration(); d < 0.029 || d > 0.031 {
		t.Errorf("expected ~30ms, got %f", d)
	}

	var empty Frame
	if empty.Duration() != 0 {
		t.Error("empty frame should have zero duration")
	}
}

func TestMockSource(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("scripted frames in order", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		_ = src.Start(context.Background())

		src.Enqueue(
			Frame{Samples: []int16{1}, SampleRate: 16000},
			Frame{Samples: []int16{2}, SampleRate: 16000},
		)

		f1, err := src.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		f2, _ := src.ReadFrame(context.Background())

		if f1.Samples[0] != 1 || f2.Samples[0] != 2 {
			t.Error("frames returned out of order")
		}
	})

	t.Run("silence when script exhausted", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		_ = src.Start(context.Background())

		f, err := src.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if len(f.Samples) != cfg.FrameSamples() {
			t.Errorf("expected full frame of %d samples, got %d", cfg.FrameSamples(), len(f.Samples))
		}
		for _, s := range f.Samples {
			if s != 0 {
				t.Fatal("expected silence")
			}
		}
	})

	t.Run("scripted errors", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		_ = src.Start(context.Background())

		readErr := errors.New("i2s timeout")
		src.EnqueueError(readErr)

		if _, err := src.ReadFrame(context.Background()); !errors.Is(err, readErr) {
			t.Errorf("expected scripted error, got %v", err)
		}

		if src.Stats().ReadErrors != 1 {
			t.Error("read error not counted")
		}
	})

	t.Run("eof after stop", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		_ = src.Start(context.Background())
		_ = src.Stop()

		if _, err := src.ReadFrame(context.Background()); !errors.Is(err, io.EOF) {
			t.Errorf("expected EOF, got %v", err)
		}
	})
}

func TestMockSink(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("records writes in order", func(t *testing.T) {
		sink := NewMockSink(cfg, nil)
		_ = sink.Start(context.Background())

		_ = sink.Write(context.Background(), []byte{1, 2})
		_ = sink.Write(context.Background(), []byte{3, 4})

		if got := sink.Played(); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
			t.Errorf("unexpected played bytes: %v", got)
		}
		if sink.Stats().ChunksWritten != 2 {
			t.Error("chunk count mismatch")
		}
	})

	t.Run("rejects writes when stopped", func(t *testing.T) {
		sink := NewMockSink(cfg, nil)

		if err := sink.Write(context.Background(), []byte{1}); err == nil {
			t.Error("expected error when not started")
		}
	})

	t.Run("clear discards buffer", func(t *testing.T) {
		sink := NewMockSink(cfg, nil)
		_ = sink.Start(context.Background())
		_ = sink.Write(context.Background(), []byte{1})
		_ = sink.Clear()

		if len(sink.Played()) != 0 {
			t.Error("clear did not discard audio")
		}
	})
}

func TestReaderSource(t *testing.T) {
	cfg := Config{SampleRate: 16000, Channels: 1, FrameDuration: time.Millisecond} // 16-sample frames

	t.Run("full frames only", func(t *testing.T) {
		data := make([]byte, cfg.FrameBytes()+10) // one full frame plus a partial
		src := NewReaderSource(cfg, bytes.NewReader(data), nil)
		_ = src.Start(context.Background())

		f, err := src.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if len(f.Samples) != cfg.FrameSamples() {
			t.Errorf("expected %d samples, got %d", cfg.FrameSamples(), len(f.Samples))
		}

		// The trailing partial frame must surface as EOF, not a short frame.
		if _, err := src.ReadFrame(context.Background()); !errors.Is(err, io.EOF) {
			t.Errorf("expected EOF for partial frame, got %v", err)
		}
	})
}

func TestWriterSink(t *testing.T) {
	cfg := DefaultConfig()
	var buf bytes.Buffer

	sink := NewWriterSink(cfg, &buf, nil)
	_ = sink.Start(context.Background())

	if err := sink.Write(context.Background(), []byte{9, 8, 7}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{9, 8, 7}) {
		t.Error("bytes not written through")
	}
}
