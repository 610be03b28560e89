package audioio

import "encoding/binary"

// Frame is one fixed-size block of PCM16 audio produced by a Source.
// A frame is immutable once produced: consumers must not modify Samples.
type Frame struct {
	// Samples contains PCM16 audio samples (little-endian order on the wire).
	Samples []int16

	// SampleRate is the sample rate of this frame.
	SampleRate int
}

// Bytes returns the raw little-endian bytes of the frame.
func (f *Frame) Bytes() []byte {
	buf := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FrameFromBytes builds a frame from raw little-endian PCM16 bytes.
func FrameFromBytes(data []byte, sampleRate int) Frame {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Frame{Samples: samples, SampleRate: sampleRate}
}

// Duration returns the duration of this frame in seconds.
func (f *Frame) Duration() float64 {
	if f.SampleRate == 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate)
}
