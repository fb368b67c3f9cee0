package kfmt

import "io"

// ringBufferSize is the capacity of the early output buffer: the characters
// of two full 80x25 screens, rounded up to a power of two.
const ringBufferSize = 4096

// ringBuffer keeps the most recent ringBufferSize bytes written to it. Once
// full, every write discards the oldest bytes and counts them as lost.
type ringBuffer struct {
	buffer [ringBufferSize]byte
	start  int
	count  int
	lost   int
}

// Write implements io.Writer. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.start+rb.count)&(ringBufferSize-1)] = b
		if rb.count < ringBufferSize {
			rb.count++
			continue
		}

		rb.start = (rb.start + 1) & (ringBufferSize - 1)
		rb.lost++
	}

	return len(p), nil
}

// Read implements io.Reader. It returns io.EOF once the buffer is drained.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	// Copy the contiguous run up to the end of the backing array; a
	// wrapped tail is returned by the next call.
	n := rb.count
	if tail := ringBufferSize - rb.start; n > tail {
		n = tail
	}
	if n > len(p) {
		n = len(p)
	}

	copy(p, rb.buffer[rb.start:rb.start+n])
	rb.start = (rb.start + n) & (ringBufferSize - 1)
	rb.count -= n
	return n, nil
}

// Len returns the number of unread bytes.
func (rb *ringBuffer) Len() int {
	return rb.count
}

// Lost returns the number of bytes discarded since the last Reset and
// clears the counter.
func (rb *ringBuffer) Lost() int {
	lost := rb.lost
	rb.lost = 0
	return lost
}

// Reset discards the buffered output.
func (rb *ringBuffer) Reset() {
	rb.start, rb.count, rb.lost = 0, 0, 0
}
