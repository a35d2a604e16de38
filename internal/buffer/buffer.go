// Package buffer provides the bounded chunk queue shared by the stream
// downloader (producer) and the decode engine (consumer).
package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Chunk is a single owned block of downloaded bytes. Ownership moves into the
// Buffer on a successful Push and out of it on Pop; whoever holds the chunk
// last must call Release.
type Chunk struct {
	data []byte
}

// NewChunk copies p into a freshly allocated chunk.
func NewChunk(p []byte) *Chunk {
	data := make([]byte, len(p))
	copy(data, p)
	return &Chunk{data: data}
}

func (c *Chunk) Bytes() []byte {
	return c.data
}

func (c *Chunk) Len() int {
	return len(c.data)
}

// Release drops the chunk's storage. Releasing twice is a no-op.
func (c *Chunk) Release() {
	c.data = nil
}

// Buffer is a FIFO of chunks bounded by total byte count. A single mutex
// guards the queue and the running total; one condition variable carries
// both the space-available and the data-available signals.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	chunks   []*Chunk
	total    int
	capacity int

	// producing is the downloader's liveness flag. It is a signal, not a lock:
	// every flip goes through SetProducing so that waiters are woken.
	producing atomic.Bool
}

// New returns an empty buffer holding at most capacity bytes. The bound holds
// for every chunk no larger than capacity. A larger chunk is admitted only
// into an empty buffer, so Bytes may then exceed capacity by that one chunk
// until it is popped. Callers that need a hard bound must keep chunks at or
// below capacity; the stream downloader pushes 4096-byte reads.
func New(capacity int) *Buffer {
	b := &Buffer{capacity: capacity}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// SetProducing flips the producer flag and wakes every waiter.
func (b *Buffer) SetProducing(active bool) {
	b.mu.Lock()
	b.producing.Store(active)
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *Buffer) Producing() bool {
	return b.producing.Load()
}

// Wake broadcasts to all waiters so they re-check their predicates.
func (b *Buffer) Wake() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Push enqueues c, blocking while c does not fit and the producer is still
// active. It returns false if the producer flag dropped before space became
// available; the caller then still owns c and must release it.
//
// A chunk larger than the whole capacity is admitted only into an empty
// buffer, otherwise it could never be queued.
func (b *Buffer) Push(c *Chunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.total > 0 && b.total+c.Len() > b.capacity && b.producing.Load() {
		b.cond.Wait()
	}
	if !b.producing.Load() {
		return false
	}

	b.chunks = append(b.chunks, c)
	b.total += c.Len()
	b.cond.Broadcast()
	return true
}

// Pop dequeues the oldest chunk, blocking while the buffer is empty and the
// producer is still active. ok is false once the buffer is empty and the
// producer has finished.
func (b *Buffer) Pop() (c *Chunk, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.chunks) == 0 && b.producing.Load() {
		b.cond.Wait()
	}
	if len(b.chunks) == 0 {
		return nil, false
	}

	c = b.chunks[0]
	b.chunks[0] = nil
	b.chunks = b.chunks[1:]
	if len(b.chunks) == 0 {
		b.chunks = nil
	}
	b.total -= c.Len()
	b.cond.Broadcast()
	return c, true
}

// WaitLevel blocks until at least min bytes are queued, or until the producer
// finishes. It reports whether there is anything to consume.
func (b *Buffer) WaitLevel(min int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.total < min && b.producing.Load() {
		b.cond.Wait()
	}
	return len(b.chunks) > 0
}

// Clear releases every queued chunk and resets the byte total.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	released := len(b.chunks)
	for i, c := range b.chunks {
		c.Release()
		b.chunks[i] = nil
	}
	b.chunks = nil
	b.total = 0
	b.cond.Broadcast()

	if released > 0 {
		log.Debug().Int("chunks", released).Msg("Audio buffer cleared")
	}
}

// Bytes returns the number of bytes currently queued.
func (b *Buffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Len returns the number of chunks currently queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

func (b *Buffer) Capacity() int {
	return b.capacity
}
