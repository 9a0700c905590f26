package logging

import (
	"os"
	"sync"
)

// RingBuffer is a fixed-size circular byte buffer that keeps the most
// recent log output for crash dumps. It implements io.Writer.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	pos  int
	full bool
}

// NewRingBuffer creates a ring buffer holding at most size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 2 * 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write never fails; old data is overwritten once the buffer is full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.buf)
	if n >= size {
		copy(rb.buf, p[n-size:])
		rb.pos = 0
		rb.full = true
		return n, nil
	}

	written := copy(rb.buf[rb.pos:], p)
	if written < n {
		copy(rb.buf, p[written:])
		rb.pos = n - written
		rb.full = true
		return n, nil
	}
	rb.pos += written
	if rb.pos == size {
		rb.pos = 0
		rb.full = true
	}
	return n, nil
}

// Len returns the number of buffered bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.full {
		return len(rb.buf)
	}
	return rb.pos
}

// Bytes returns the buffered data oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.full {
		return append([]byte(nil), rb.buf[:rb.pos]...)
	}
	out := make([]byte, 0, len(rb.buf))
	out = append(out, rb.buf[rb.pos:]...)
	return append(out, rb.buf[:rb.pos]...)
}

// DumpToFile writes Bytes to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o600)
}
