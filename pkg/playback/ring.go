// Package playback buffers downlink reply audio between the network and the
// speaker.
//
// The core is a byte ring with one reserved slot: with capacity C, at most
// C-1 bytes are buffered, so an empty ring (read == write) is never confused
// with a full one. Writes are all-or-nothing; the drainer pulls whole output
// chunks, splitting the copy in two when the data wraps past the end of the
// backing array.
package playback

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientSpace is returned by Write when the chunk does not fit.
// Nothing is buffered.
var ErrInsufficientSpace = errors.New("playback: insufficient space")

// Ring is a single-writer, single-drainer byte ring buffer. The writer is
// the network receive path; the drainer is the speaker loop. Internal
// locking makes each operation atomic across the two goroutines.
type Ring struct {
	mu    sync.Mutex
	buf   []byte
	read  int
	write int
}

// NewRing creates a ring buffer. capacity must exceed the largest write by
// at least one byte; usable space is capacity-1.
func NewRing(capacity int) (*Ring, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("playback: capacity must be at least 2, got %d", capacity)
	}
	return &Ring{buf: make([]byte, capacity)}, nil
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read = 0
	r.write = 0
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffered()
}

// Available returns the number of bytes that can be written without error.
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) - 1 - r.buffered()
}

func (r *Ring) buffered() int {
	return (r.write - r.read + len(r.buf)) % len(r.buf)
}

// Write buffers the chunk whole. If the free space cannot hold it,
// ErrInsufficientSpace is returned and the ring is unchanged.
func (r *Ring) Write(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data) > len(r.buf)-1-r.buffered() {
		return ErrInsufficientSpace
	}

	tail := len(r.buf) - r.write
	if len(data) <= tail {
		copy(r.buf[r.write:], data)
	} else {
		copy(r.buf[r.write:], data[:tail])
		copy(r.buf, data[tail:])
	}
	r.write = (r.write + len(data)) % len(r.buf)
	return nil
}

// Read copies up to len(dst) buffered bytes into dst and returns the count.
// A read that straddles the end of the backing array is served in two
// copies.
func (r *Ring) Read(dst []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.buffered()
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}

	tail := len(r.buf) - r.read
	if n <= tail {
		copy(dst, r.buf[r.read:r.read+n])
	} else {
		copy(dst, r.buf[r.read:])
		copy(dst[tail:], r.buf[:n-tail])
	}
	r.read = (r.read + n) % len(r.buf)
	return n
}

// ReadFull copies exactly len(dst) bytes into dst, or nothing. It returns
// false when fewer bytes are buffered.
func (r *Ring) ReadFull(dst []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffered() < len(dst) {
		return false
	}

	tail := len(r.buf) - r.read
	if len(dst) <= tail {
		copy(dst, r.buf[r.read:r.read+len(dst)])
	} else {
		copy(dst, r.buf[r.read:])
		copy(dst[tail:], r.buf[:len(dst)-tail])
	}
	r.read = (r.read + len(dst)) % len(r.buf)
	return true
}
