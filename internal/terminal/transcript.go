package terminal

import (
	"sync"
)

// Transcript retains the raw (escape-coded) byte stream of a session in a
// fixed-size ring buffer, so long-running programs cannot grow memory
// without bound. The structured event buffer is the source of truth for
// assertions; the transcript exists for artifact capture and triage.
type Transcript struct {
	mu    sync.RWMutex
	buf   []byte
	head  int
	total int64
}

// NewTranscript creates a transcript retaining at most size bytes.
func NewTranscript(size int) *Transcript {
	return &Transcript{buf: make([]byte, size)}
}

func (t *Transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	t.total += int64(n)
	size := len(t.buf)
	if n >= size {
		// Only the tail can survive; skip straight to it.
		copy(t.buf, p[n-size:])
		t.head = 0
		return n, nil
	}
	m := copy(t.buf[t.head:], p)
	if m < n {
		copy(t.buf, p[m:])
	}
	t.head = (t.head + n) % size
	return n, nil
}

// Bytes returns the retained raw stream in write order, and whether older
// bytes have been dropped to stay within the retention limit.
func (t *Transcript) Bytes() (raw []byte, truncated bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	size := int64(len(t.buf))
	if t.total < size {
		return append([]byte(nil), t.buf[:t.head]...), false
	}
	raw = make([]byte, 0, size)
	raw = append(raw, t.buf[t.head:]...)
	raw = append(raw, t.buf[:t.head]...)
	return raw, t.total > size
}

// Total reports how many bytes the session has produced over its
// lifetime, including bytes no longer retained.
func (t *Transcript) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Clear resets the transcript to empty.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.head = 0
	t.total = 0
}
