package buffer

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func newActive(capacity int) *Buffer {
	b := New(capacity)
	b.SetProducing(true)
	return b
}

func TestChunkCopiesAndReleases(t *testing.T) {
	src := []byte{1, 2, 3}
	c := NewChunk(src)
	src[0] = 9

	if !bytes.Equal(c.Bytes(), []byte{1, 2, 3}) {
		t.Errorf("chunk should own a copy, got %v", c.Bytes())
	}

	c.Release()
	c.Release()
	if c.Len() != 0 {
		t.Errorf("Len() after Release = %d, want 0", c.Len())
	}
}

func TestPushPopFIFO(t *testing.T) {
	b := newActive(1024)

	for i := 0; i < 10; i++ {
		if !b.Push(NewChunk([]byte{byte(i)})) {
			t.Fatalf("Push(%d) rejected", i)
		}
	}

	for i := 0; i < 10; i++ {
		c, ok := b.Pop()
		if !ok {
			t.Fatalf("Pop() #%d reported drained", i)
		}
		if c.Bytes()[0] != byte(i) {
			t.Errorf("Pop() #%d = %d, want %d", i, c.Bytes()[0], i)
		}
		c.Release()
	}
}

func TestByteTotalTracksQueuedChunks(t *testing.T) {
	const capacity = 4096
	b := newActive(capacity)
	rng := rand.New(rand.NewSource(1))

	queued := 0
	var sizes []int
	for step := 0; step < 500; step++ {
		if rng.Intn(2) == 0 {
			size := 1 + rng.Intn(1024)
			if queued+size > capacity {
				continue
			}
			if !b.Push(NewChunk(make([]byte, size))) {
				t.Fatal("Push rejected while producing")
			}
			sizes = append(sizes, size)
			queued += size
		} else if len(sizes) > 0 {
			c, ok := b.Pop()
			if !ok {
				t.Fatal("Pop() drained with chunks queued")
			}
			if c.Len() != sizes[0] {
				t.Fatalf("Pop() size = %d, want %d", c.Len(), sizes[0])
			}
			queued -= sizes[0]
			sizes = sizes[1:]
			c.Release()
		}

		if got := b.Bytes(); got != queued {
			t.Fatalf("step %d: Bytes() = %d, want %d", step, got, queued)
		}
		if b.Bytes() < 0 || b.Bytes() > capacity {
			t.Fatalf("step %d: Bytes() = %d outside [0, %d]", step, b.Bytes(), capacity)
		}
	}
}

func TestPushBlocksWhenFull(t *testing.T) {
	b := newActive(8)
	if !b.Push(NewChunk(make([]byte, 8))) {
		t.Fatal("first Push rejected")
	}

	pushed := make(chan bool, 1)
	go func() {
		pushed <- b.Push(NewChunk(make([]byte, 4)))
	}()

	select {
	case <-pushed:
		t.Fatal("Push should block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	c, _ := b.Pop()
	c.Release()

	select {
	case ok := <-pushed:
		if !ok {
			t.Error("Push should succeed once space frees")
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not resume after Pop")
	}

	if b.Bytes() != 4 {
		t.Errorf("Bytes() = %d, want 4", b.Bytes())
	}
}

func TestPushRejectedWhenProducerStops(t *testing.T) {
	b := newActive(4)
	b.Push(NewChunk(make([]byte, 4)))

	c := NewChunk(make([]byte, 4))
	pushed := make(chan bool, 1)
	go func() {
		pushed <- b.Push(c)
	}()

	time.Sleep(20 * time.Millisecond)
	b.SetProducing(false)

	select {
	case ok := <-pushed:
		if ok {
			t.Fatal("Push should be rejected once the producer flag drops")
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not wake on SetProducing(false)")
	}

	if c.Len() != 4 {
		t.Error("rejected chunk must be left intact for the caller to release")
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestOversizedChunkAdmittedWhenEmpty(t *testing.T) {
	b := newActive(4)
	if !b.Push(NewChunk(make([]byte, 10))) {
		t.Fatal("oversized chunk should be admitted into an empty buffer")
	}
	if b.Bytes() != 10 {
		t.Errorf("Bytes() = %d, want the single oversized chunk", b.Bytes())
	}

	next := NewChunk(make([]byte, 1))
	pushed := make(chan bool, 1)
	go func() {
		pushed <- b.Push(next)
	}()
	select {
	case <-pushed:
		t.Fatal("nothing may join an oversized chunk")
	case <-time.After(20 * time.Millisecond):
	}

	c, _ := b.Pop()
	c.Release()
	if ok := <-pushed; !ok {
		t.Fatal("Push should succeed once the oversized chunk is popped")
	}
	if b.Bytes() != 1 {
		t.Errorf("Bytes() = %d, want 1", b.Bytes())
	}
}

func TestPopBlocksUntilData(t *testing.T) {
	b := newActive(64)

	got := make(chan byte, 1)
	go func() {
		c, ok := b.Pop()
		if ok {
			got <- c.Bytes()[0]
			c.Release()
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop should block on an empty buffer")
	case <-time.After(50 * time.Millisecond):
	}

	b.Push(NewChunk([]byte{42}))

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("Pop() = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestPopDrainedAfterProducerFinishes(t *testing.T) {
	b := newActive(64)
	b.Push(NewChunk([]byte{1}))
	b.SetProducing(false)

	c, ok := b.Pop()
	if !ok || c.Bytes()[0] != 1 {
		t.Fatal("queued chunk should still be delivered after the producer finishes")
	}

	done := make(chan bool, 1)
	go func() {
		_, ok := b.Pop()
		done <- ok
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop() on empty finished buffer should report drained")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop blocked on an empty buffer with no producer")
	}
}

func TestClearReleasesChunks(t *testing.T) {
	b := newActive(64)
	chunks := []*Chunk{NewChunk([]byte{1, 2}), NewChunk([]byte{3})}
	for _, c := range chunks {
		b.Push(c)
	}

	b.Clear()

	if b.Bytes() != 0 || b.Len() != 0 {
		t.Errorf("after Clear: Bytes() = %d, Len() = %d, want 0, 0", b.Bytes(), b.Len())
	}
	for i, c := range chunks {
		if c.Len() != 0 {
			t.Errorf("chunk %d not released by Clear", i)
		}
	}
}

func TestWaitLevel(t *testing.T) {
	b := newActive(64)

	done := make(chan bool, 1)
	go func() {
		done <- b.WaitLevel(8)
	}()

	b.Push(NewChunk(make([]byte, 4)))
	select {
	case <-done:
		t.Fatal("WaitLevel returned below the threshold")
	case <-time.After(30 * time.Millisecond):
	}

	b.Push(NewChunk(make([]byte, 4)))
	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitLevel should report data available")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitLevel did not return at the threshold")
	}
}

func TestWaitLevelProducerFinishedEmpty(t *testing.T) {
	b := newActive(64)
	b.SetProducing(false)
	if b.WaitLevel(8) {
		t.Error("WaitLevel on an empty finished buffer should report false")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const chunks = 200
	b := newActive(256)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer b.SetProducing(false)
		for i := 0; i < chunks; i++ {
			c := NewChunk([]byte(fmt.Sprintf("%03d", i)))
			if !b.Push(c) {
				c.Release()
				return
			}
		}
	}()

	next := 0
	for {
		c, ok := b.Pop()
		if !ok {
			break
		}
		want := fmt.Sprintf("%03d", next)
		if string(c.Bytes()) != want {
			t.Fatalf("out of order: got %s, want %s", c.Bytes(), want)
		}
		if b.Bytes() > b.Capacity() {
			t.Fatalf("Bytes() = %d exceeds capacity", b.Bytes())
		}
		c.Release()
		next++
	}
	wg.Wait()

	if next != chunks {
		t.Errorf("consumed %d chunks, want %d", next, chunks)
	}
}
