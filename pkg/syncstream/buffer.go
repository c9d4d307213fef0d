// ABOUTME: Bounded playback buffer with drop-oldest overflow
// ABOUTME: Push never blocks; Pop blocks until data arrives or the buffer closes
package syncstream

import (
	"sync"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

// DefaultBufferCapacity is the number of chunks buffered ahead of playback
const DefaultBufferCapacity = 32

// Buffer is a FIFO of decoded chunks. When full, Push evicts the oldest
// chunk so playback stays close to live.
type Buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []audio.Chunk
	head   int
	size   int
	closed bool
}

// NewBuffer creates a buffer holding up to capacity chunks
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	b := &Buffer{ring: make([]audio.Chunk, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends a chunk, evicting the oldest one if the buffer is full.
// It reports whether a chunk was evicted. Pushes after Close are ignored.
func (b *Buffer) Push(chunk audio.Chunk) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.size == len(b.ring) {
		b.ring[b.head] = nil
		b.head = (b.head + 1) % len(b.ring)
		b.size--
		evicted = true
	}

	b.ring[(b.head+b.size)%len(b.ring)] = chunk
	b.size++
	b.cond.Signal()
	return evicted
}

// Pop removes the oldest chunk, blocking while the buffer is empty.
// Once closed it returns (nil, false) even if chunks remain.
func (b *Buffer) Pop() (audio.Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.size == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return nil, false
	}

	chunk := b.ring[b.head]
	b.ring[b.head] = nil
	b.head = (b.head + 1) % len(b.ring)
	b.size--
	return chunk, true
}

// Clear discards every buffered chunk and returns how many were dropped
func (b *Buffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.size
	clear(b.ring)
	b.head = 0
	b.size = 0
	return n
}

// Close wakes all waiters; subsequent Pops return immediately
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered chunks
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity
func (b *Buffer) Cap() int {
	return len(b.ring)
}
