// Package pool holds the reusable resources a request borrows for its
// lifetime: byte buffers and single-lane executors.
package pool

import (
	"sync"
	"sync/atomic"

	"syncnet/lib/ds/queue"
)

// BufferSource hands out fixed-size byte buffers and takes them back.
type BufferSource interface {
	Obtain() []byte
	Recycle(b []byte)
}

// BufferPool is a bounded cache of equally sized buffers.
// Obtain never blocks: an empty pool allocates. Recycle zero-fills the
// buffer and drops it when the pool already holds max buffers.
type BufferPool struct {
	mu    sync.Mutex
	store *queue.Circular[[]byte]

	bufferSize int
	allocated  atomic.Int64
}

var _ BufferSource = (*BufferPool)(nil)

func NewBufferPool(max, bufferSize int) *BufferPool {
	return &BufferPool{
		store:      queue.NewCircular[[]byte](uint(max)),
		bufferSize: bufferSize,
	}
}

func (p *BufferPool) Obtain() []byte {
	p.mu.Lock()
	b, err := p.store.Dequeue()
	p.mu.Unlock()

	if err != nil {
		p.allocated.Add(1)
		return make([]byte, p.bufferSize)
	}
	return b
}

func (p *BufferPool) Recycle(b []byte) {
	if cap(b) < p.bufferSize {
		// Not one of ours.
		return
	}
	b = b[:p.bufferSize]
	clear(b)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.Offer(b)
}

// Rc returns a reference-counted handle that borrows one buffer lazily.
func (p *BufferPool) Rc() *RcBuffer { return NewRcBuffer(p) }

// BufferSize returns the length of every buffer handed out.
func (p *BufferPool) BufferSize() int { return p.bufferSize }

// Idle returns how many buffers are waiting for reuse.
func (p *BufferPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.store.Len())
}

// Allocated returns how many buffers the pool ever had to create.
func (p *BufferPool) Allocated() int { return int(p.allocated.Load()) }

var (
	defaultBuffers     = sync.OnceValue(func() *BufferPool { return NewBufferPool(10, 8*1024) })
	defaultBodyBuffers = sync.OnceValue(func() *BufferPool { return NewBufferPool(10, 32*1024) })
)

// DefaultBuffers is the shared pool for engine reads.
func DefaultBuffers() *BufferPool { return defaultBuffers() }

// DefaultBodyBuffers is the shared pool for copying whole bodies.
func DefaultBodyBuffers() *BufferPool { return defaultBodyBuffers() }
