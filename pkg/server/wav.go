package server

import (
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the canonical PCM RIFF header length.
const wavHeaderSize = 44

// encodeWAV wraps raw PCM16 in a RIFF header so it can be handed to APIs
// that refuse bare sample streams.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * 2
	out := make([]byte, wavHeaderSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// stripWAV extracts the PCM payload from a RIFF container. Data that does
// not look like WAV is returned unchanged, on the assumption it is already
// raw PCM.
func stripWAV(data []byte) ([]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data, nil
	}

	// Walk the chunk list to the data chunk; the fmt chunk is not always
	// exactly 16 bytes.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if id == "data" {
			end := off + 8 + size
			if end > len(data) {
				end = len(data)
			}
			return data[off+8 : end], nil
		}
		off += 8 + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, fmt.Errorf("server: no data chunk in WAV payload")
}
