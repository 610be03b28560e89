package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/kestrelvoice/aria/pkg/protocol"
)

// fakeConn records the session's outgoing traffic.
type fakeConn struct {
	mu       sync.Mutex
	messages []struct {
		kind int
		data []byte
	}
	pings int
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.messages = append(f.messages, struct {
		kind int
		data []byte
	}{messageType, cp})
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.PingMessage {
		f.pings++
	}
	return nil
}

func (f *fakeConn) binaryPayload() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, m := range f.messages {
		if m.kind == websocket.BinaryMessage {
			out = append(out, m.data...)
		}
	}
	return out
}

func (f *fakeConn) textTypes(t *testing.T) []protocol.MessageType {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.MessageType
	for _, m := range f.messages {
		if m.kind != websocket.TextMessage {
			continue
		}
		msg, err := protocol.ParseMessage(m.data)
		if err != nil {
			t.Fatalf("session sent unparseable text: %v", err)
		}
		out = append(out, msg.Type)
	}
	return out
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) Broadcast(eventType, sessionID string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func textMsg(t *testing.T, msgType protocol.MessageType, data interface{}) []byte {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := msg.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func newTestSession(t *testing.T, conn wsConn, r Responder, syn Synthesizer) *Session {
	t.Helper()
	s, err := NewSession("test-session", DefaultSessionConfig(), conn, r, syn, &fakeBroadcaster{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionReplyRoundTrip(t *testing.T) {
	conn := &fakeConn{}
	resp := &MockResponder{Reply: "hello there"}
	reply := make([]byte, 7000)
	for i := range reply {
		reply[i] = byte(i)
	}
	syn := &MockSynthesizer{PCM: reply}
	s := newTestSession(t, conn, resp, syn)

	ctx := context.Background()
	s.HandleText(ctx, textMsg(t, protocol.TypeRecordingStarted, nil))
	s.HandleBinary([]byte{1, 2, 3, 4})
	s.HandleBinary([]byte{5, 6})
	s.HandleText(ctx, textMsg(t, protocol.TypeRecordingEnded, protocol.RecordingEndedData{Samples: 3, Streamed: true}))

	waitFor(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.pings == 1
	})

	// The responder saw the concatenated utterance.
	pcm, rate := resp.LastUtterance()
	if !bytes.Equal(pcm, []byte{1, 2, 3, 4, 5, 6}) || rate != 16000 {
		t.Errorf("responder got wrong utterance: %v at %d", pcm, rate)
	}
	if syn.LastText() != "hello there" {
		t.Errorf("synthesizer got %q", syn.LastText())
	}

	// Reply audio arrived whole, in order, followed by exactly one ping.
	if got := conn.binaryPayload(); !bytes.Equal(got, reply) {
		t.Errorf("reply audio mangled: %d of %d bytes", len(got), len(reply))
	}

	types := conn.textTypes(t)
	started := 0
	for _, mt := range types {
		if mt == protocol.TypeResponseStarted {
			started++
		}
	}
	if started != 1 {
		t.Errorf("expected one response_started, got %d", started)
	}
}

func TestSessionReplyChunking(t *testing.T) {
	conn := &fakeConn{}
	cfg := DefaultSessionConfig()
	cfg.ChunkBytes = 100
	s, err := NewSession("s", cfg, conn, &MockResponder{}, &MockSynthesizer{PCM: make([]byte, 250)}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.HandleBinary(make([]byte, 10))
	s.HandleText(ctx, textMsg(t, protocol.TypeRecordingEnded, protocol.RecordingEndedData{}))

	waitFor(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.pings == 1
	})

	conn.mu.Lock()
	var sizes []int
	for _, m := range conn.messages {
		if m.kind == websocket.BinaryMessage {
			sizes = append(sizes, len(m.data))
		}
	}
	conn.mu.Unlock()

	want := []int{100, 100, 50}
	if len(sizes) != len(want) {
		t.Fatalf("expected %v chunks, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk %d is %d bytes, want %d", i, sizes[i], want[i])
		}
	}
}

func TestSessionReplyFailureSendsError(t *testing.T) {
	conn := &fakeConn{}
	resp := &MockResponder{Err: errors.New("model unavailable")}
	s := newTestSession(t, conn, resp, &MockSynthesizer{})

	ctx := context.Background()
	s.HandleBinary([]byte{1, 2})
	s.HandleText(ctx, textMsg(t, protocol.TypeRecordingEnded, protocol.RecordingEndedData{}))

	waitFor(t, func() bool {
		for _, mt := range conn.textTypes(t) {
			if mt == protocol.TypeResponseError {
				return true
			}
		}
		return false
	})

	conn.mu.Lock()
	pings := conn.pings
	conn.mu.Unlock()
	if pings != 0 {
		t.Error("failed reply must not send end-of-stream")
	}
}

func TestSessionHelloAcknowledged(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSession(t, conn, &MockResponder{}, &MockSynthesizer{})

	s.HandleText(context.Background(), textMsg(t, protocol.TypeDeviceHello, protocol.DeviceHelloData{
		DeviceName: "kitchen",
		SampleRate: 16000,
	}))

	if s.DeviceName() != "kitchen" {
		t.Errorf("device name not stored: %q", s.DeviceName())
	}
	types := conn.textTypes(t)
	if len(types) != 1 || types[0] != protocol.TypeSessionReady {
		t.Errorf("expected session_ready, got %v", types)
	}
}

func TestSessionCancelDiscardsUtterance(t *testing.T) {
	conn := &fakeConn{}
	resp := &MockResponder{}
	s := newTestSession(t, conn, resp, &MockSynthesizer{})

	ctx := context.Background()
	s.HandleBinary([]byte{1, 2, 3})
	s.HandleText(ctx, textMsg(t, protocol.TypeRecordingCancelled, protocol.RecordingCancelledData{Reason: "conversation_ended"}))
	s.HandleBinary([]byte{9})
	s.HandleText(ctx, textMsg(t, protocol.TypeRecordingEnded, protocol.RecordingEndedData{}))

	waitFor(t, func() bool {
		return resp.Calls() == 1
	})

	pcm, _ := resp.LastUtterance()
	if !bytes.Equal(pcm, []byte{9}) {
		t.Errorf("cancelled audio leaked into the next utterance: %v", pcm)
	}
}

func TestSessionUtteranceCap(t *testing.T) {
	conn := &fakeConn{}
	cfg := DefaultSessionConfig()
	cfg.MaxUtteranceBytes = 8
	s, err := NewSession("s", cfg, conn, &MockResponder{}, &MockSynthesizer{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.HandleBinary(make([]byte, 6))
	s.HandleBinary(make([]byte, 6)) // over the cap, dropped

	s.mu.Lock()
	got := len(s.utterance)
	s.mu.Unlock()
	if got != 6 {
		t.Errorf("cap not enforced: %d bytes buffered", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := make([]byte, 320)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	wav := encodeWAV(pcm, 16000, 1)
	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("unexpected container size %d", len(wav))
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("header sample rate %d", rate)
	}

	got, err := stripWAV(wav)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("strip did not recover the payload")
	}

	// Raw PCM passes through untouched.
	raw, err := stripWAV(pcm)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, pcm) {
		t.Error("raw PCM was modified")
	}
}
