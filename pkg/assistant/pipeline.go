package assistant

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/kestrelvoice/aria/pkg/audioio"
	"github.com/kestrelvoice/aria/pkg/capture"
	"github.com/kestrelvoice/aria/pkg/downlink"
	"github.com/kestrelvoice/aria/pkg/protocol"
	"github.com/kestrelvoice/aria/pkg/vad"
	"github.com/kestrelvoice/aria/pkg/wake"
)

// Run drives the pipeline until the context is cancelled or the source is
// exhausted. It blocks; run it in its own goroutine.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.source.Start(ctx); err != nil {
		return err
	}
	defer a.source.Stop()

	if err := a.sink.Start(ctx); err != nil {
		return err
	}
	defer a.sink.Stop()

	a.sendHello()
	a.logger.Info("pipeline running",
		"sample_rate", a.cfg.Audio.SampleRate,
		"frame_ms", a.cfg.Audio.FrameDuration.Milliseconds(),
	)

	for {
		frame, err := a.source.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				a.logger.Info("audio source exhausted")
				return nil
			}
			// Transient hardware failure: back off and retry. It must not
			// reach the gate, where it would read as silence.
			a.logger.Warn("microphone read failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.cfg.ReadRetryBackoff):
			}
			continue
		}

		a.tick(ctx, frame)
	}
}

// tick advances the conversation by one frame.
func (a *Assistant) tick(ctx context.Context, frame audioio.Frame) {
	switch a.State() {
	case StateWaitingWakeup:
		a.tickWaitingWakeup(ctx, frame)
	case StateRecording:
		a.tickRecording(ctx, frame)
	case StateWaitingResponse:
		a.tickWaitingResponse(ctx)
	}
}

func (a *Assistant) tickWaitingWakeup(ctx context.Context, frame audioio.Frame) {
	if a.wakeEngine.Detect(frame) != wake.Detected {
		return
	}

	a.logger.Info("wake word detected", "model", a.wakeEngine.ModelName())
	if a.notifier != nil {
		a.notifier.WakeAcknowledged()
	}
	a.sendEvent(protocol.TypeWakeWordDetected, protocol.WakeWordData{Model: a.wakeEngine.ModelName()})
	a.playCue("wake", a.cues.Wake)

	a.startRecording(ctx)
}

func (a *Assistant) tickRecording(ctx context.Context, frame audioio.Frame) {
	// Local command words are only honored in continuous mode; during the
	// first exchange everything the user says belongs to the utterance.
	if a.continuous && a.cmdEngine != nil {
		if a.cmdEngine.Detect(frame) == wake.Detected {
			a.handleCommand()
			return
		}
	}

	ev := a.gate.Process(frame)
	if ev.State == vad.Speech {
		a.uplink.MarkSpeech()
	}

	a.uplink.Offer(frame)

	if err := a.capture.Append(frame); errors.Is(err, capture.ErrFull) {
		// Capacity reached is handled exactly like a detected end of
		// utterance.
		a.logger.Info("capture buffer full, ending utterance")
		a.finishUtterance()
		return
	}

	if ev.UtteranceEnded {
		// The silence tail that triggered the edge is not speech; exclude
		// it when judging whether the utterance was a false start.
		tail := a.cfg.Gate.SilenceFrames * a.cfg.Audio.FrameSamples()
		if a.capture.Len()-tail < a.cfg.Capture.MinSamples() {
			// False start: retry locally without a round trip.
			a.logger.Debug("utterance below minimum length, retrying",
				"samples", a.capture.Len(),
			)
			a.restartCapture()
			return
		}
		a.finishUtterance()
		return
	}

	// The waiting-for-speech timeout exists only in continuous mode: after
	// an explicit wake word the user has signalled intent and the system
	// waits indefinitely.
	if a.continuous && !a.gate.SpeechSeen() && !a.deadline.IsZero() && a.clock().After(a.deadline) {
		a.logger.Info("no speech before timeout, conversation over")
		a.endConversation(false)
	}
}

func (a *Assistant) tickWaitingResponse(ctx context.Context) {
	if a.replyAborted.CompareAndSwap(true, false) {
		a.logger.Warn("reply aborted, conversation over")
		a.player.Abort()
		a.endConversation(false)
		return
	}

	if a.replyDone.CompareAndSwap(true, false) {
		if err := a.player.Finish(ctx); err != nil {
			// A dead speaker must not strand the conversation; drop the
			// reply and return to idle.
			a.logger.Warn("reply playback failed, conversation over", "error", err)
			a.endConversation(false)
			return
		}
		// First successful reply unlocks continuous mode: the next turn
		// starts without a wake word.
		a.stateMu.Lock()
		a.continuous = true
		a.stateMu.Unlock()
		a.startRecording(ctx)
	}
}

// startRecording opens a fresh utterance and moves to StateRecording.
func (a *Assistant) startRecording(ctx context.Context) {
	a.capture.Start()
	a.gate.Reset()
	a.uplink.Begin()
	if a.cmdEngine != nil {
		a.cmdEngine.Reset()
	}

	a.stateMu.Lock()
	if a.continuous {
		a.deadline = a.clock().Add(a.cfg.RecordingTimeout)
	} else {
		a.deadline = time.Time{}
	}
	a.state = StateRecording
	a.stateMu.Unlock()

	a.player.Start(ctx)
	a.logger.Debug("recording started", "continuous", a.continuous)
	a.sendEvent(protocol.TypeRecordingStarted, nil)
}

// restartCapture discards a false start without leaving StateRecording.
func (a *Assistant) restartCapture() {
	a.capture.Start()
	a.gate.Reset()
	a.uplink.Begin()
}

// finishUtterance hands the utterance to the server and moves to
// StateWaitingResponse.
func (a *Assistant) finishUtterance() {
	samples := a.capture.Stop()
	streamed, stats := a.uplink.End()

	if !streamed {
		// Nothing went up incrementally; ship the whole capture at once.
		pcm := (&audioio.Frame{Samples: samples, SampleRate: a.cfg.Audio.SampleRate}).Bytes()
		if err := a.client.SendAudio(pcm); err != nil {
			a.logger.Error("bulk utterance send failed", "error", err)
			a.endConversation(true)
			return
		}
	}

	a.logger.Info("utterance ended",
		"samples", len(samples),
		"streamed", streamed,
		"dropped_frames", stats.DroppedFrames,
	)
	a.sendEvent(protocol.TypeRecordingEnded, protocol.RecordingEndedData{
		Samples:  len(samples),
		Streamed: streamed,
	})

	a.setState(StateWaitingResponse)
}

// handleCommand reacts to a locally recognized command word.
func (a *Assistant) handleCommand() {
	results := a.cmdEngine.Results()
	if len(results) == 0 {
		return
	}
	top := results[0]
	a.logger.Info("command recognized",
		"command_id", top.CommandID,
		"confidence", top.Confidence,
	)

	if top.CommandID == a.cfg.EndCommandID {
		a.endConversation(true)
		return
	}

	a.playCue("ack", a.cues.Ack)
	if a.onCommand != nil {
		a.onCommand(results)
	}
	a.restartCapture()
	a.stateMu.Lock()
	a.deadline = a.clock().Add(a.cfg.RecordingTimeout)
	a.stateMu.Unlock()
	a.cmdEngine.Reset()
}

// endConversation returns to StateWaitingWakeup from any state, cancelling
// in-flight capture and playback so no stale audio survives.
func (a *Assistant) endConversation(notifyServer bool) {
	wasRecording := a.State() == StateRecording

	a.capture.Clear()
	a.uplink.Cancel()
	a.player.Abort()
	a.reassembler.Abort(errors.New("assistant: conversation ended"))
	a.replyDone.Store(false)
	a.replyAborted.Store(false)

	if notifyServer && wasRecording {
		a.sendEvent(protocol.TypeRecordingCancelled, protocol.RecordingCancelledData{
			Reason: "conversation_ended",
		})
	}

	a.stateMu.Lock()
	a.continuous = false
	a.deadline = time.Time{}
	a.state = StateWaitingWakeup
	a.stateMu.Unlock()

	a.playCue("farewell", a.cues.Farewell)
	if a.notifier != nil {
		a.notifier.ConversationEnded()
	}
	a.logger.Info("conversation ended")
}

// wireTransport connects the network receive path to the reassembler. The
// conversation state decides whether inbound audio is currently relevant;
// anything arriving outside StateWaitingResponse is discarded.
func (a *Assistant) wireTransport() {
	a.client.OnAudio(func(pcm []byte) {
		if a.State() != StateWaitingResponse {
			return
		}
		if a.reassembler.State() == downlink.StateIdle && a.notifier != nil { // first chunk of the reply
			a.notifier.ReplyStarted()
		}
		a.reassembler.Chunk(pcm)
	})

	a.client.OnEndOfStream(func() {
		a.reassembler.EndOfStream()
	})

	a.client.OnMessage(func(msg *protocol.Message) {
		if msg.Type != protocol.TypeResponseError {
			return
		}
		var data protocol.ResponseErrorData
		_ = msg.ParseData(&data)
		a.logger.Warn("server reported reply failure", "code", data.Code, "message", data.Message)
		a.reassembler.Abort(errors.New("assistant: server reply failed"))
		if a.State() == StateWaitingResponse {
			a.replyAborted.Store(true)
		}
	})

	a.client.OnClosed(func(err error) {
		a.reassembler.Abort(errors.New("assistant: connection closed"))
		if a.State() == StateWaitingResponse {
			a.replyAborted.Store(true)
		}
	})

	a.reassembler.OnComplete(func(_ []byte, totalBytes int) {
		a.logger.Debug("reply received", "bytes", totalBytes)
		a.replyDone.Store(true)
	})
	a.reassembler.OnAbort(func(err error) {
		// endConversation aborts the reassembler itself; only a reply that
		// dies while we are still waiting needs to bounce the state.
		if a.State() == StateWaitingResponse {
			a.replyAborted.Store(true)
		}
	})
}

// forwardReplyChunk pushes one downlink chunk into the playback ring. It
// runs in the network receive context.
func (a *Assistant) forwardReplyChunk(pcm []byte) error {
	return a.player.Write(context.Background(), pcm)
}

func (a *Assistant) sendHello() {
	a.sendEvent(protocol.TypeDeviceHello, protocol.DeviceHelloData{
		DeviceName: a.cfg.DeviceName,
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   a.cfg.Audio.Channels,
		Format:     "pcm16",
	})
}

func (a *Assistant) sendEvent(msgType protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		a.logger.Error("marshal event failed", "type", msgType, "error", err)
		return
	}
	if err := a.client.SendMessage(msg); err != nil {
		a.logger.Warn("event send failed", "type", msgType, "error", err)
	}
}
