package queue

import "syncnet/lib/ds/internal"

// Circular is a fixed-size FIFO ring. Unlike [NaiveQueue] it never grows:
// [Circular.Offer] reports false once every slot is taken.
// It is not safe for concurrent use.
type Circular[T any] struct {
	ring       []T
	head, tail uint

	count uint
}

func NewCircular[T any](size uint) *Circular[T] {
	return &Circular[T]{ring: make([]T, size)}
}

// Offer adds an element to the tail. Returns false if the ring is full.
func (q *Circular[T]) Offer(data T) (success bool) {
	if q.Len() == q.Size() {
		return false
	}

	q.ring[q.tail] = data
	q.tail = q.advance(q.tail)
	q.count++

	return true
}

// Dequeue removes and returns the head element.
// If the ring is empty, it returns [ErrQueueEmpty].
func (q *Circular[T]) Dequeue() (T, error) {
	if q.Len() == 0 {
		return internal.Zero[T](), ErrQueueEmpty
	}

	data := q.ring[q.head]
	q.ring[q.head] = internal.Zero[T]()

	q.head = q.advance(q.head)
	q.count--

	return data, nil
}

// Peek returns the head element without removing it.
func (q *Circular[T]) Peek() (T, error) {
	if q.Len() == 0 {
		return internal.Zero[T](), ErrQueueEmpty
	}

	return q.ring[q.head], nil
}

// Len returns the number of stored elements.
func (q *Circular[T]) Len() uint { return q.count }

// Size returns the capacity of the ring.
func (q *Circular[T]) Size() uint { return uint(len(q.ring)) }

func (q *Circular[T]) advance(n uint) uint {
	return (n + 1) % uint(len(q.ring))
}
