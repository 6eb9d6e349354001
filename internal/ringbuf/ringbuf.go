// Package ringbuf provides a fixed-capacity FIFO buffer that overwrites its
// oldest entry once full. Book reconstruction uses it to hold updates that
// arrive before a snapshot is available.
package ringbuf

// Buffer is a bounded FIFO ring. The zero value is not usable; construct
// with New. Not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New returns an empty buffer with the given capacity. Capacity must be
// positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append adds item to the buffer. When the buffer is full the oldest entry
// is overwritten; the evicted entry and true are returned so callers can
// account for the loss.
func (b *Buffer[T]) Append(item T) (evicted T, wasEvicted bool) {
	if b.size == len(b.items) {
		evicted = b.items[b.head]
		b.items[b.head] = item
		b.head = (b.head + 1) % len(b.items)
		return evicted, true
	}
	b.items[(b.head+b.size)%len(b.items)] = item
	b.size++
	return evicted, false
}

// Len reports the number of buffered entries.
func (b *Buffer[T]) Len() int { return b.size }

// Cap reports the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Items copies the buffered entries out in insertion order, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}

// Clear empties the buffer and zeroes the backing slice so previously held
// values can be collected.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
