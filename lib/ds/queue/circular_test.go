package queue

import (
	"testing"

	"syncnet/lib/ds/internal"

	"github.com/stretchr/testify/assert"
)

func TestCircularNew(t *testing.T) {
	q := NewCircular[int](5)

	assert.Equal(t, uint(5), q.Size())
	assert.Equal(t, uint(0), q.Len())
}

func TestCircularOfferDequeue(t *testing.T) {
	q := NewCircular[int](3)

	assert.True(t, q.Offer(1))
	assert.True(t, q.Offer(2))
	assert.True(t, q.Offer(3))
	assert.False(t, q.Offer(4)) // full

	val, err := q.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, 1, val)

	assert.True(t, q.Offer(4)) // slot freed by dequeue
	assert.Equal(t, uint(3), q.Len())
}

func TestCircularPeek(t *testing.T) {
	q := NewCircular[string](2)

	q.Offer("hello")
	q.Offer("world")

	val, err := q.Peek()
	assert.NoError(t, err)
	assert.Equal(t, "hello", val)
	assert.Equal(t, uint(2), q.Len())
}

func TestCircularEmpty(t *testing.T) {
	q := NewCircular[int](1)

	val, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.Equal(t, internal.Zero[int](), val)

	_, err = q.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestCircularWrapAround(t *testing.T) {
	q := NewCircular[int](4)

	q.Offer(1)
	q.Offer(2)
	q.Dequeue()
	q.Offer(3)
	q.Offer(4)
	q.Offer(5) // tail wraps

	assert.Equal(t, uint(4), q.Len())

	for _, expected := range []int{2, 3, 4, 5} {
		v, err := q.Dequeue()
		assert.NoError(t, err)
		assert.Equal(t, expected, v)
	}
}

func TestCircularDropsReferences(t *testing.T) {
	q := NewCircular[*int](1)
	v := 7
	q.Offer(&v)

	_, err := q.Dequeue()
	assert.NoError(t, err)
	assert.Nil(t, q.ring[0])
}
