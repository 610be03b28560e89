package playback

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

// failingSink accepts a fixed number of writes, then fails every write.
type failingSink struct {
	*audioio.MockSink
	mu        sync.Mutex
	passFirst int
	writes    int
	err       error
}

func (s *failingSink) Write(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes >= s.passFirst {
		return s.err
	}
	s.writes++
	return s.MockSink.Write(ctx, pcm)
}

func testPlayerConfig() Config {
	return Config{
		BufferSize:    256,
		ChunkSize:     64,
		DrainInterval: time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlayerStreamsWholeChunks(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())
	p, err := NewPlayer(testPlayerConfig(), sink, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	p.Start(ctx)

	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}
	if err := p.Write(ctx, data); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(sink.Played()) == 128 })
	p.Stop()

	for _, w := range sink.Writes() {
		if len(w) != 64 {
			t.Errorf("drainer emitted a partial chunk of %d bytes", len(w))
		}
	}
	if !bytes.Equal(sink.Played(), data) {
		t.Error("played audio does not match written audio")
	}
}

func TestPlayerFinishFlushesTail(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())
	p, _ := NewPlayer(testPlayerConfig(), sink, nil)

	ctx := context.Background()
	p.Start(ctx)

	// 100 bytes: one whole chunk plus a 36-byte tail.
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	if err := p.Write(ctx, data); err != nil {
		t.Fatal(err)
	}
	if err := p.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(sink.Played(), data) {
		t.Errorf("tail lost: played %d of %d bytes", len(sink.Played()), len(data))
	}
	if p.Buffered() != 0 {
		t.Error("finish left bytes in the ring")
	}
}

func TestPlayerAbortDiscards(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())
	p, _ := NewPlayer(testPlayerConfig(), sink, nil)

	// Not started: nothing drains, so the write stays buffered.
	if err := p.ring.Write(make([]byte, 32)); err != nil {
		t.Fatal(err)
	}
	p.Abort()

	if p.Buffered() != 0 {
		t.Error("abort left buffered audio")
	}
}

func TestPlayerWriteBackpressure(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())
	p, _ := NewPlayer(testPlayerConfig(), sink, nil)

	ctx := context.Background()
	p.Start(ctx)
	defer p.Stop()

	// Larger than the usable ring; succeeds only because the drainer
	// frees space while Write waits.
	big := make([]byte, 255)
	if err := p.Write(ctx, make([]byte, 200)); err != nil {
		t.Fatal(err)
	}
	if err := p.Write(ctx, big[:200]); err != nil {
		t.Fatalf("backpressured write failed: %v", err)
	}
}

func TestPlayerFinishReturnsSinkError(t *testing.T) {
	sinkErr := errors.New("speaker gone")
	sink := &failingSink{
		MockSink:  audioio.NewMockSink(audioio.DefaultConfig(), nil),
		passFirst: 1,
		err:       sinkErr,
	}
	sink.MockSink.Start(context.Background())
	p, _ := NewPlayer(testPlayerConfig(), sink, nil)

	ctx := context.Background()
	p.Start(ctx)

	// Three chunks: the drainer plays one, dies on the second, and the
	// third stays buffered with no drainer left to move it.
	if err := p.Write(ctx, make([]byte, 192)); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err := p.Finish(ctx)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected the sink error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("finish waited on a dead drainer")
	}
	if p.Buffered() != 0 {
		t.Error("failed finish left buffered audio")
	}
}

func TestPlayerRecoversAfterSinkFailure(t *testing.T) {
	sinkErr := errors.New("speaker gone")
	sink := &failingSink{
		MockSink:  audioio.NewMockSink(audioio.DefaultConfig(), nil),
		passFirst: 0,
		err:       sinkErr,
	}
	sink.MockSink.Start(context.Background())
	p, _ := NewPlayer(testPlayerConfig(), sink, nil)

	ctx := context.Background()
	p.Start(ctx)
	if err := p.Write(ctx, make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	if err := p.Finish(ctx); !errors.Is(err, sinkErr) {
		t.Fatalf("expected the sink error, got %v", err)
	}

	// The sink comes back; a fresh session must not see the stale error.
	sink.mu.Lock()
	sink.passFirst = 1 << 30
	sink.mu.Unlock()

	p.Start(ctx)
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	if err := p.Write(ctx, data); err != nil {
		t.Fatal(err)
	}
	if err := p.Finish(ctx); err != nil {
		t.Fatalf("finish failed after sink recovery: %v", err)
	}
	if !bytes.Equal(sink.Played(), data) {
		t.Error("recovered session played wrong audio")
	}
}

func TestPlayerConfigValidation(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	bad := []Config{
		{BufferSize: 1, ChunkSize: 1, DrainInterval: time.Millisecond},
		{BufferSize: 64, ChunkSize: 0, DrainInterval: time.Millisecond},
		{BufferSize: 64, ChunkSize: 64, DrainInterval: time.Millisecond},
		{BufferSize: 64, ChunkSize: 32, DrainInterval: 0},
	}
	for _, cfg := range bad {
		if _, err := NewPlayer(cfg, sink, nil); err == nil {
			t.Errorf("expected validation error for %+v", cfg)
		}
	}
}
