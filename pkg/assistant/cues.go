package assistant

import "context"

// CueSet holds short PCM16 acknowledgement sounds played through the sink.
// Empty slices disable the corresponding cue.
type CueSet struct {
	// Wake plays when the wake word is recognized.
	Wake []byte

	// Ack plays when a local command word is recognized.
	Ack []byte

	// Farewell plays when the conversation ends.
	Farewell []byte
}

// playCue writes one cue straight to the sink, bypassing the reply player.
// Cue playback is cosmetic; failures are logged and swallowed.
func (a *Assistant) playCue(name string, pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	ctx := context.Background()
	if err := a.sink.Start(ctx); err != nil {
		a.logger.Warn("cue sink start failed", "cue", name, "error", err)
		return
	}
	if err := a.sink.Write(ctx, pcm); err != nil {
		a.logger.Warn("cue playback failed", "cue", name, "error", err)
	}
}
