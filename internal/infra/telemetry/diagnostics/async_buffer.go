package diagnostics

import (
	"context"
	"sync/atomic"
)

// AsyncBuffer keeps the most recent values handed to Add without making the
// caller wait on the ring's lock, which matters inside a log core. Values
// pass through a bounded queue that one goroutine, launched by Start, moves
// into a RingBuffer. Add never blocks: when the queue is full the value is
// dropped and counted. Snapshot only sees values the drain has already moved.
//
// Construct with NewAsyncBuffer; the zero value is not usable. A nil
// *AsyncBuffer ignores Add and reports an empty Snapshot.
type AsyncBuffer[T any] struct {
	ring    *RingBuffer[T]
	queue   chan T
	dropped atomic.Uint64
	running atomic.Bool
}

// NewAsyncBuffer retains the last capacity values. queue bounds how many may
// wait for the drain and defaults to capacity when not positive. A capacity
// below one is rejected with an error wrapping domain.ErrInvalidCapacity.
func NewAsyncBuffer[T any](capacity, queue int) (*AsyncBuffer[T], error) {
	ring, err := NewRingBuffer[T](capacity)
	if err != nil {
		return nil, err
	}
	if queue < 1 {
		queue = capacity
	}
	return &AsyncBuffer[T]{ring: ring, queue: make(chan T, queue)}, nil
}

// Start launches the drain goroutine, which runs until ctx is done. Calls
// after the first are no-ops.
func (b *AsyncBuffer[T]) Start(ctx context.Context) {
	if b == nil || !b.running.CompareAndSwap(false, true) {
		return
	}
	go b.drain(ctx)
}

func (b *AsyncBuffer[T]) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case value := <-b.queue:
			b.ring.Add(value)
		}
	}
}

// Add enqueues value, or drops it when the queue is full.
func (b *AsyncBuffer[T]) Add(value T) {
	if b == nil {
		return
	}
	select {
	case b.queue <- value:
	default:
		b.dropped.Add(1)
	}
}

// Snapshot returns the retained values, oldest first.
func (b *AsyncBuffer[T]) Snapshot() []T {
	if b == nil {
		return []T{}
	}
	return b.ring.Snapshot()
}

// Capacity is the number of values retained once the ring is full.
func (b *AsyncBuffer[T]) Capacity() int {
	if b == nil {
		return 0
	}
	return b.ring.Capacity()
}

// Dropped counts values rejected by a full queue.
func (b *AsyncBuffer[T]) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
