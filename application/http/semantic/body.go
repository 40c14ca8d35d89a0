package semantic

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"

	"syncnet/application/http/httperr"
	"syncnet/lib/pool"
)

const maxPresize = 1 << 20

// ResponseBody is the single-consumer body of a response. It can be read
// as a stream or drained at once with [ResponseBody.AsBytes], in which case
// the bytes are cached and later calls return them.
type ResponseBody struct {
	mu sync.Mutex

	stream        io.ReadCloser
	buffer        *pool.RcBuffer
	contentLength int64
	contentType   string

	body   []byte
	done   bool
	closed bool
}

// NewResponseBody wraps stream. buffer provides the scratch space used when
// draining; contentLength is -1 when unknown.
func NewResponseBody(stream io.ReadCloser, buffer *pool.RcBuffer, contentLength int64, contentType string) *ResponseBody {
	if contentLength < 0 {
		contentLength = -1
	}
	return &ResponseBody{
		stream:        stream,
		buffer:        buffer,
		contentLength: contentLength,
		contentType:   contentType,
	}
}

// Clone returns a body over another stream sharing this body's metadata and
// buffer source.
func (b *ResponseBody) Clone(stream io.ReadCloser) *ResponseBody {
	return NewResponseBody(stream, b.buffer.Clone(), b.contentLength, b.contentType)
}

func (b *ResponseBody) ContentType() string  { return b.contentType }
func (b *ResponseBody) ContentLength() int64 { return b.contentLength }

func (b *ResponseBody) AsStream() (io.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, httperr.New(httperr.Closed, "body is closed")
	}
	if b.done {
		return bytes.NewReader(b.body), nil
	}
	return b.stream, nil
}

func (b *ResponseBody) AsBytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, httperr.New(httperr.Closed, "body is closed")
	}
	if b.done {
		return b.body, nil
	}

	out, err := b.drainLocked()
	if err != nil {
		// The stream has already been closed by the drain.
		b.closed = true
		b.done = true
		return nil, err
	}

	b.body = out
	b.done = true
	return out, nil
}

func (b *ResponseBody) AsString() (string, error) {
	out, err := b.AsBytes()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Close is idempotent. It drops cached bytes and closes the stream.
func (b *ResponseBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *ResponseBody) closeLocked() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.done = true
	b.body = nil
	return b.stream.Close()
}

func (b *ResponseBody) drainLocked() ([]byte, error) {
	defer b.stream.Close()

	// Content-Length comes from the peer, so it only hints the first
	// allocation.
	var out bytes.Buffer
	if b.contentLength > 0 {
		out.Grow(int(min(b.contentLength, maxPresize)))
	}

	scratch, err := b.buffer.Retain()
	if err != nil {
		return nil, errors.Wrap(err, "retaining read buffer")
	}
	defer b.buffer.Release()

	if _, err := io.CopyBuffer(onlyWriter{&out}, onlyReader{b.stream}, scratch); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// onlyReader and onlyWriter hide WriterTo and ReaderFrom so io.CopyBuffer
// goes through the scratch buffer.
type (
	onlyReader struct{ io.Reader }
	onlyWriter struct{ io.Writer }
)
