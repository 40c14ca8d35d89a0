package client

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncnet/application/http/httperr"
)

type scriptedChunks struct {
	chunks [][]byte
	reads  atomic.Int32
	errs   atomic.Int32
	closes atomic.Int32
}

func (sc *scriptedChunks) delegate() bodyDelegate {
	return bodyDelegate{
		onRead: func() ([]byte, error) {
			i := int(sc.reads.Add(1)) - 1
			if i >= len(sc.chunks) {
				return nil, nil
			}
			return sc.chunks[i], nil
		},
		onError:  func(error) { sc.errs.Add(1) },
		onClosed: func() { sc.closes.Add(1) },
	}
}

func TestBodyStreamEOFIsSticky(t *testing.T) {
	sc := &scriptedChunks{chunks: [][]byte{[]byte("ab"), {}, []byte("c")}}
	b := newBodyStream(sc.delegate())

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.EqualValues(t, 4, sc.reads.Load())

	for range 3 {
		n, err := b.Read(make([]byte, 8))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, io.EOF)

		_, err = b.ReadByte()
		assert.ErrorIs(t, err, io.EOF)
	}
	assert.EqualValues(t, 4, sc.reads.Load())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.EqualValues(t, 1, sc.closes.Load())
}

func TestBodyStreamSmallReads(t *testing.T) {
	sc := &scriptedChunks{chunks: [][]byte{[]byte("hello"), []byte("!")}}
	b := newBodyStream(sc.delegate())

	var out []byte
	for {
		c, err := b.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		out = append(out, c)
	}
	assert.Equal(t, "hello!", string(out))
}

func TestBodyStreamErrorIsSticky(t *testing.T) {
	boom := httperr.New(httperr.Timeout, "slow")
	var errs atomic.Int32
	b := newBodyStream(bodyDelegate{
		onRead:   func() ([]byte, error) { return nil, boom },
		onError:  func(error) { errs.Add(1) },
		onClosed: func() {},
	})

	_, err := b.Read(make([]byte, 1))
	assert.ErrorIs(t, err, boom)
	_, err = b.Read(make([]byte, 1))
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, errs.Load())
}

func TestBodyStreamReadAfterClose(t *testing.T) {
	sc := &scriptedChunks{chunks: [][]byte{[]byte("abc")}}
	b := newBodyStream(sc.delegate())

	one := make([]byte, 1)
	_, err := b.Read(one)
	require.NoError(t, err)

	require.NoError(t, b.Close())

	_, err = b.Read(one)
	assert.ErrorIs(t, err, httperr.ErrClosed)
}

func TestBodyStreamConcurrentReadAndClose(t *testing.T) {
	unblock := make(chan struct{})
	var closes atomic.Int32

	b := newBodyStream(bodyDelegate{
		onRead: func() ([]byte, error) {
			<-unblock
			return nil, httperr.New(httperr.Canceled, "canceled")
		},
		onError: func(error) {},
		onClosed: func() {
			closes.Add(1)
			close(unblock)
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := b.Read(make([]byte, 8))
		assert.ErrorIs(t, err, httperr.ErrCanceled)
	}()

	time.Sleep(10 * time.Millisecond)

	var closers sync.WaitGroup
	for range 4 {
		closers.Add(1)
		go func() {
			defer closers.Done()
			assert.NoError(t, b.Close())
		}()
	}
	closers.Wait()
	wg.Wait()

	assert.EqualValues(t, 1, closes.Load())
}
