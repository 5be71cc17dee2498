package queue

import "sync"

// Queue is a generic FIFO queue safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a Queue holding the given items in order.
func New[T any](items ...T) *Queue[T] {
	return &Queue[T]{items: append([]T{}, items...)}
}

// Enqueue adds an element to the end of the queue.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Dequeue removes and returns the front element of the queue.
// The boolean is false if the queue was empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
