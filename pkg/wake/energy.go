package wake

import (
	"math"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

// EnergyDetector is a loudness-triggered wake detector: a sustained loud
// burst (a clap, a sharp "hey") wakes the device. It stands in for a neural
// wake-word model on hosts that have none, using the same per-frame Detect
// contract.
type EnergyDetector struct {
	threshold float64
	runNeeded int
	cooldown  int

	run     int
	holdoff int
}

// NewEnergyDetector creates a detector that fires after runNeeded
// consecutive frames above the normalized RMS threshold, then ignores
// audio for cooldown frames so one burst cannot wake twice.
func NewEnergyDetector(threshold float64, runNeeded, cooldown int) *EnergyDetector {
	if threshold <= 0 {
		threshold = 0.1
	}
	if runNeeded <= 0 {
		runNeeded = 2
	}
	if cooldown <= 0 {
		cooldown = 33 // ~1s at 30ms frames
	}
	return &EnergyDetector{
		threshold: threshold,
		runNeeded: runNeeded,
		cooldown:  cooldown,
	}
}

// Detect consumes one frame.
func (d *EnergyDetector) Detect(frame audioio.Frame) DetectState {
	if d.holdoff > 0 {
		d.holdoff--
		return NoDetect
	}

	if frameRMS(frame.Samples) >= d.threshold {
		d.run++
		if d.run >= d.runNeeded {
			d.run = 0
			d.holdoff = d.cooldown
			return Detected
		}
	} else {
		d.run = 0
	}
	return NoDetect
}

// ModelName identifies the detector.
func (d *EnergyDetector) ModelName() string { return "energy_burst" }

func frameRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

var _ Detector = (*EnergyDetector)(nil)
