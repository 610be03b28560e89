package vad

import (
	"math"

	"github.com/kestrelvoice/aria/pkg/audioio"
)

// EnergyClassifier is a pure-Go classifier based on RMS energy with
// hysteresis: a higher threshold to enter speech than to leave it, and a
// short run requirement in each direction so single noisy frames do not
// flip the state.
type EnergyClassifier struct {
	speechThreshold  float64 // normalized RMS to enter speech
	silenceThreshold float64 // normalized RMS to leave speech
	speechRun        int     // consecutive loud frames to enter speech
	silenceRun       int     // consecutive quiet frames to leave speech

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// NewEnergyClassifier returns a classifier tuned for 16kHz 30ms frames.
func NewEnergyClassifier() *EnergyClassifier {
	return &EnergyClassifier{
		speechThreshold:  0.015,
		silenceThreshold: 0.008,
		speechRun:        2,
		silenceRun:       3,
	}
}

// Classify labels the frame by RMS energy with hysteresis.
func (c *EnergyClassifier) Classify(frame audioio.Frame) State {
	level := rms(frame.Samples)

	if c.inSpeech {
		if level < c.silenceThreshold {
			c.silenceCount++
			if c.silenceCount >= c.silenceRun {
				c.inSpeech = false
				c.silenceCount = 0
			}
		} else {
			c.silenceCount = 0
		}
	} else {
		if level >= c.speechThreshold {
			c.speechCount++
			if c.speechCount >= c.speechRun {
				c.inSpeech = true
				c.speechCount = 0
			}
		} else {
			c.speechCount = 0
		}
	}

	if c.inSpeech {
		return Speech
	}
	return Silence
}

// Reset clears internal state.
func (c *EnergyClassifier) Reset() {
	c.inSpeech = false
	c.speechCount = 0
	c.silenceCount = 0
}

func rms(samples []int16) float64 {
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

var _ Classifier = (*EnergyClassifier)(nil)
