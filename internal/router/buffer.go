package router

import (
	"sync"
)

// growThreshold is the fill percentage at which a buffer doubles.
const growThreshold = 70

// GrowableBuffer is a FIFO job queue between the router and a writer.
// It doubles its ring when 70% full, up to an optional ceiling; at the
// ceiling Send blocks until the writer catches up, so bursts are absorbed
// without dropping market data.
type GrowableBuffer[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	ring   []T
	head   int // read position
	count  int
	max    int // 0 means unbounded
	closed bool

	// Stats
	enqueued    int64
	dequeued    int64
	resizes     int
	blockedSend int64
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
// maxCapacity <= 0 lets it grow without bound.
func NewGrowableBuffer[T any](initialCapacity, maxCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	b := &GrowableBuffer[T]{
		ring: make([]T, initialCapacity),
		max:  maxCapacity,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

// Send enqueues an item, blocking while the buffer is at its ceiling.
// Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	waited := false
	for !b.closed && !b.roomFor(b.count+1) {
		if !waited {
			b.blockedSend++
			waited = true
		}
		b.notFull.Wait()
	}
	if b.closed {
		return false
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.enqueued++

	b.notEmpty.Signal()
	return true
}

// roomFor grows the ring if n items would cross the threshold and reports
// whether n items fit. Must be called with lock held.
func (b *GrowableBuffer[T]) roomFor(n int) bool {
	threshold := len(b.ring) * growThreshold / 100
	if threshold < 1 {
		threshold = 1
	}
	if n >= threshold && (b.max == 0 || len(b.ring) < b.max) {
		b.resize()
	}
	return n <= len(b.ring)
}

// resize doubles the ring, capped at max. Must be called with lock held.
func (b *GrowableBuffer[T]) resize() {
	size := len(b.ring) * 2
	if b.max > 0 && size > b.max {
		size = b.max
	}

	ring := make([]T, size)
	for i := 0; i < b.count; i++ {
		ring[i] = b.ring[(b.head+i)%len(b.ring)]
	}

	b.ring = ring
	b.head = 0
	b.resizes++
}

// Receive dequeues an item, blocking until one is available or the buffer
// is closed. Returns false once the buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.notEmpty.Wait()
	}
	return b.pop()
}

// TryReceive dequeues an item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pop()
}

// pop must be called with lock held.
func (b *GrowableBuffer[T]) pop() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}

	item := b.ring[b.head]
	b.ring[b.head] = zero // Clear reference for GC
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.dequeued++

	b.notFull.Signal()
	return item, true
}

// Close stops accepting items. Receivers still get what remains.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring size.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:       b.count,
		Capacity:    len(b.ring),
		MaxCapacity: b.max,
		Enqueued:    b.enqueued,
		Dequeued:    b.dequeued,
		ResizeCount: b.resizes,
		BlockedSend: b.blockedSend,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count       int
	Capacity    int
	MaxCapacity int
	Enqueued    int64
	Dequeued    int64
	ResizeCount int
	BlockedSend int64 // Sends that waited at the ceiling
}
