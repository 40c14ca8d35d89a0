package engine

import (
	"bytes"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
)

// UploadProvider is a rewindable pull source for the request body.
type UploadProvider interface {
	// Length returns the body size, or -1 when unknown.
	Length() int64
	Read(p []byte) (int, error)
	// Rewind restarts the body from the beginning, e.g. on redirects.
	Rewind() error
	Close() error
}

// BytesUpload serves an in-memory body.
type BytesUpload struct {
	data   []byte
	r      *bytes.Reader
	closed atomic.Bool
}

func NewBytesUpload(data []byte) *BytesUpload {
	return &BytesUpload{data: data, r: bytes.NewReader(data)}
}

func (u *BytesUpload) Length() int64 { return int64(len(u.data)) }

func (u *BytesUpload) Read(p []byte) (int, error) {
	if u.closed.Load() {
		return 0, errors.New("upload is closed")
	}
	return u.r.Read(p)
}

func (u *BytesUpload) Rewind() error {
	if u.closed.Load() {
		return errors.New("upload is closed")
	}
	_, err := u.r.Seek(0, io.SeekStart)
	return err
}

func (u *BytesUpload) Close() error {
	u.closed.Store(true)
	return nil
}
