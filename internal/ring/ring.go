// Package ring provides a fixed-capacity FIFO buffer that overwrites its
// oldest element once full. It is not safe for concurrent use; the stores
// that embed it guard it with their own lock.
package ring

// Buffer holds at most Cap elements in arrival order. Push is O(1) at any
// fill level. The backing slice grows on demand up to the capacity.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element once the buffer has wrapped
	limit int
}

// New returns an empty buffer that keeps at most limit elements.
// A limit below 1 is treated as 1.
func New[T any](limit int) *Buffer[T] {
	return &Buffer[T]{limit: max(limit, 1)}
}

// Push appends v. When the buffer is full it overwrites the oldest element
// and returns it with evicted set to true.
func (b *Buffer[T]) Push(v T) (old T, evicted bool) {
	if len(b.items) < b.limit {
		b.items = append(b.items, v)
		return old, false
	}
	old = b.items[b.head]
	b.items[b.head] = v
	b.head = (b.head + 1) % b.limit
	return old, true
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int {
	return len(b.items)
}

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int {
	return b.limit
}

// At returns the i-th oldest element. It panics if i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= len(b.items) {
		panic("ring: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Newest returns the i-th newest element, Newest(0) being the last pushed.
func (b *Buffer[T]) Newest(i int) T {
	return b.At(len(b.items) - 1 - i)
}

// Reset drops every element and releases the backing array.
func (b *Buffer[T]) Reset() {
	b.items = nil
	b.head = 0
}
