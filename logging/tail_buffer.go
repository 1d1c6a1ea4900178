package logging

import (
	"sync"
)

const DefaultTailBytes = 64 * 1024

// TailBuffer keeps only the last N bytes written to it, so a bounded snippet of engine
// output can be logged without holding the whole stream in memory.
type TailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func NewTailBuffer(maxBytes int) *TailBuffer {
	if maxBytes <= 0 {
		maxBytes = DefaultTailBytes
	}
	return &TailBuffer{
		maxBytes: maxBytes,
		contents: make([]byte, 0, maxBytes),
	}
}

func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
	}
	return len(p), nil
}

func (b *TailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.contents)
}

func (b *TailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *TailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.contents)) < b.total
}
