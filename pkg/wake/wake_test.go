package wake

import (
	"testing"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

func loudFrame() audioio.Frame {
	s := make([]int16, 480)
	for i := range s {
		if i%2 == 0 {
			s[i] = 16000
		} else {
			s[i] = -16000
		}
	}
	return audioio.Frame{Samples: s, SampleRate: 16000}
}

func quietFrame() audioio.Frame {
	return audioio.Frame{Samples: make([]int16, 480), SampleRate: 16000}
}

func TestMockDetectorFiresAtScheduledFrame(t *testing.T) {
	d := NewMockDetector()
	d.DetectAtFrame(2)

	results := []DetectState{
		d.Detect(quietFrame()),
		d.Detect(quietFrame()),
		d.Detect(quietFrame()),
		d.Detect(quietFrame()),
	}
	want := []DetectState{NoDetect, NoDetect, Detected, NoDetect}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("frame %d: got %s want %s", i, results[i], want[i])
		}
	}
	if d.Calls() != 4 {
		t.Errorf("expected 4 calls, got %d", d.Calls())
	}
}

func TestMockCommandDetectorResults(t *testing.T) {
	d := NewMockCommandDetector()
	d.DetectAtFrame(1,
		CommandResult{CommandID: 3, Confidence: 0.9, Transcript: "lights on"},
		CommandResult{CommandID: 5, Confidence: 0.4},
	)

	d.Detect(quietFrame())
	if d.Detect(quietFrame()) != Detected {
		t.Fatal("scheduled detection did not fire")
	}

	results := d.Results()
	if len(results) != 2 || results[0].CommandID != 3 {
		t.Errorf("unexpected results: %v", results)
	}

	d.Reset()
	if d.Results() != nil {
		t.Error("reset did not clear results")
	}
}

func TestEnergyDetectorFiresOnBurst(t *testing.T) {
	d := NewEnergyDetector(0.1, 2, 10)

	if d.Detect(loudFrame()) != NoDetect {
		t.Error("single loud frame should not wake")
	}
	if d.Detect(loudFrame()) != Detected {
		t.Error("sustained burst should wake")
	}
}

func TestEnergyDetectorCooldown(t *testing.T) {
	d := NewEnergyDetector(0.1, 1, 5)

	if d.Detect(loudFrame()) != Detected {
		t.Fatal("burst did not wake")
	}
	// Inside the cooldown window even loud audio is ignored.
	for i := 0; i < 5; i++ {
		if d.Detect(loudFrame()) == Detected {
			t.Fatal("cooldown did not hold")
		}
	}
	if d.Detect(loudFrame()) != Detected {
		t.Error("detector did not rearm after cooldown")
	}
}

func TestEnergyDetectorIgnoresQuiet(t *testing.T) {
	d := NewEnergyDetector(0.1, 1, 5)
	for i := 0; i < 100; i++ {
		if d.Detect(quietFrame()) == Detected {
			t.Fatal("quiet audio woke the detector")
		}
	}
}
