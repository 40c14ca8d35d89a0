package client

import (
	"io"
	"sync"
	"sync/atomic"

	"syncnet/application/http/httperr"
)

type bodyState int

const (
	bodyAwait bodyState = iota
	bodySet
	bodyFinished
	bodyClosed
)

type bodyDelegate struct {
	// onRead returns the next chunk, or nil at the end of the body.
	onRead   func() ([]byte, error)
	onError  func(err error)
	onClosed func()
}

// bodyStream turns chunk pulls into an io.ReadCloser.
type bodyStream struct {
	delegate bodyDelegate

	mu    sync.Mutex
	state bodyState
	chunk []byte
	err   error

	closed atomic.Bool
}

var (
	_ io.ReadCloser = (*bodyStream)(nil)
	_ io.ByteReader = (*bodyStream)(nil)
)

func newBodyStream(delegate bodyDelegate) *bodyStream {
	return &bodyStream{delegate: delegate}
}

func (b *bodyStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.step(p)
}

func (b *bodyStream) ReadByte() (byte, error) {
	var one [1]byte

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.step(one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}

// step copies at most len(p) bytes, pulling chunks until some data, the end
// of the body or an error shows up. Assumes b.mu is held.
func (b *bodyStream) step(p []byte) (int, error) {
	for {
		if b.state != bodyFinished && b.closed.Load() {
			b.state = bodyClosed
			b.chunk = nil
		}

		switch b.state {
		case bodyFinished:
			if b.err != nil {
				return 0, b.err
			}
			return 0, io.EOF

		case bodyClosed:
			return 0, httperr.New(httperr.Closed, "read on closed body")

		case bodyAwait:
			chunk, err := b.delegate.onRead()
			switch {
			case err != nil:
				b.state = bodyFinished
				b.err = err
				b.delegate.onError(err)
				return 0, err
			case chunk == nil:
				b.state = bodyFinished
				return 0, io.EOF
			}
			b.chunk = chunk
			b.state = bodySet

		case bodySet:
			if len(b.chunk) == 0 {
				b.state = bodyAwait
				continue
			}

			n := copy(p, b.chunk)
			b.chunk = b.chunk[n:]
			if len(b.chunk) == 0 {
				b.state = bodyAwait
			}
			return n, nil
		}
	}
}

// Close notifies the delegate once, even while a read is in progress.
func (b *bodyStream) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.delegate.onClosed()
	return nil
}
