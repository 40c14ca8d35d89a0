package pool

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrDeallocated = errors.New("buffer has already been deallocated")

// RcBuffer shares one pooled buffer between several holders.
//
// The count starts at zero and the buffer is borrowed on the first
// [RcBuffer.Retain]. When the count drops back to zero the buffer returns to
// its source and the handle is spent: any further Retain fails with
// [ErrDeallocated]. Balancing Retain and Release is up to the callers.
type RcBuffer struct {
	mu sync.Mutex

	source BufferSource
	count  int
	buf    []byte
	inited bool
}

func NewRcBuffer(source BufferSource) *RcBuffer {
	return &RcBuffer{source: source}
}

func (r *RcBuffer) Retain() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deallocatedLocked() {
		return nil, ErrDeallocated
	}

	if !r.inited {
		r.buf = r.source.Obtain()
		r.inited = true
	}
	r.count++

	return r.buf, nil
}

// Release is a no-op while nothing is retained.
func (r *RcBuffer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return
	}

	r.count--
	if r.deallocatedLocked() {
		r.source.Recycle(r.buf)
		r.buf = nil
	}
}

// Clone returns a fresh handle on the same source with its own count.
func (r *RcBuffer) Clone() *RcBuffer { return NewRcBuffer(r.source) }

func (r *RcBuffer) Deallocated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deallocatedLocked()
}

// Count returns the number of outstanding retains.
func (r *RcBuffer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *RcBuffer) deallocatedLocked() bool { return r.count == 0 && r.inited }
