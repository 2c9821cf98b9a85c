package diagnostics

import (
	"sync"

	"mgmtd/internal/domain"
)

// RingBuffer stores the most recent values in a fixed-size ring.
// Once full, each Add evicts exactly the oldest value.
type RingBuffer[T any] struct {
	mu    sync.Mutex
	items []T
	size  int
	next  int
}

// NewRingBuffer constructs a ring buffer with the provided capacity.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if capacity < 1 {
		return nil, domain.E(domain.CodeInvalidArgument, "diagnostics.NewRingBuffer", "", domain.ErrInvalidCapacity)
	}
	return &RingBuffer[T]{
		items: make([]T, capacity),
	}, nil
}

// MustRingBuffer is NewRingBuffer for capacities known to be valid.
func MustRingBuffer[T any](capacity int) *RingBuffer[T] {
	b, err := NewRingBuffer[T](capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Add inserts a value into the ring buffer.
func (b *RingBuffer[T]) Add(value T) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.items[b.next] = value
	b.next = (b.next + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
	b.mu.Unlock()
}

// Size returns the number of values currently held.
func (b *RingBuffer[T]) Size() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the fixed capacity.
func (b *RingBuffer[T]) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Snapshot returns the buffered values in insertion order, oldest first.
// The returned slice is never nil and is owned by the caller.
func (b *RingBuffer[T]) Snapshot() []T {
	if b == nil {
		return []T{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, b.size)
	start := (b.next - b.size + len(b.items)) % len(b.items)
	n := copy(out, b.items[start:min(start+b.size, len(b.items))])
	copy(out[n:], b.items[:b.size-n])
	return out
}
