// Package enginetest provides a scripted in-memory [engine.Engine].
package enginetest

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"syncnet/application/http/engine"
)

var ErrShutdown = errors.New("scripted engine is shut down")

// Behavior scripts how a request proceeds once started.
type Behavior struct {
	// Fail fails the request right after start.
	Fail error
	// Hang never delivers any callback until canceled.
	Hang bool
	// Redirects are offered one after another before the response.
	Redirects []string

	Status     int
	StatusText string
	Headers    map[string][]string
	Protocol   string
	Chunks     [][]byte
	// HangBody delivers the response but never a chunk.
	HangBody bool

	// UploadChunk bounds each upload read, 512 bytes when zero.
	UploadChunk int
	// UploadPace is slept after every upload read.
	UploadPace time.Duration
}

func Respond(status int, headers map[string][]string, chunks ...string) Behavior {
	b := Behavior{Status: status, Headers: headers, Protocol: "h2"}
	for _, c := range chunks {
		b.Chunks = append(b.Chunks, []byte(c))
	}
	return b
}

func Hang() Behavior { return Behavior{Hang: true} }

func Fail(err error) Behavior { return Behavior{Fail: err} }

func (b Behavior) WithRedirects(locations ...string) Behavior {
	b.Redirects = locations
	return b
}

// WithPacedUpload pulls the upload chunk bytes at a time, pausing pace
// between reads.
func (b Behavior) WithPacedUpload(chunk int, pace time.Duration) Behavior {
	b.UploadChunk = chunk
	b.UploadPace = pace
	return b
}

func (b Behavior) WithHangingBody() Behavior {
	b.HangBody = true
	return b
}

type Engine struct {
	script func(engine.RequestParams) Behavior

	// FailNewRequest makes NewRequest fail when set.
	FailNewRequest error

	created   atomic.Int32
	started   atomic.Int32
	canceled  atomic.Int32
	shutdowns atomic.Int32
	shutdown  atomic.Bool

	mu       sync.Mutex
	uploaded [][]byte
}

var _ engine.Engine = (*Engine)(nil)

func New(script func(engine.RequestParams) Behavior) *Engine {
	return &Engine{script: script}
}

// Static runs every request with the same behavior.
func Static(b Behavior) *Engine {
	return New(func(engine.RequestParams) Behavior { return b })
}

func (e *Engine) NewRequest(params engine.RequestParams, cb engine.Callback, exec engine.Executor) (engine.Request, error) {
	if e.FailNewRequest != nil {
		return nil, e.FailNewRequest
	}
	if e.shutdown.Load() {
		return nil, ErrShutdown
	}
	e.created.Add(1)

	return &Request{
		e:        e,
		params:   params,
		cb:       cb,
		exec:     exec,
		behavior: e.script(params),
	}, nil
}

func (e *Engine) Shutdown() error {
	e.shutdowns.Add(1)
	e.shutdown.Store(true)
	return nil
}

func (e *Engine) Created() int   { return int(e.created.Load()) }
func (e *Engine) Started() int   { return int(e.started.Load()) }
func (e *Engine) Canceled() int  { return int(e.canceled.Load()) }
func (e *Engine) Shutdowns() int { return int(e.shutdowns.Load()) }

// Uploaded returns the request bodies consumed so far.
func (e *Engine) Uploaded() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.uploaded...)
}

type Request struct {
	e        *Engine
	params   engine.RequestParams
	cb       engine.Callback
	exec     engine.Executor
	behavior Behavior

	mu          sync.Mutex
	started     bool
	done        bool
	awaiting    bool
	redirect    int
	info        *engine.ResponseInfo
	chunk       int
	chunkOffset int
}

var _ engine.Request = (*Request)(nil)

func (r *Request) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.done {
		return
	}
	r.started = true
	r.e.started.Add(1)

	r.exec.Execute(r.proceed)
}

// proceed runs on the executor.
func (r *Request) proceed() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}

	if r.redirect == 0 && r.params.Upload != nil {
		// The upload source calls back into the client.
		r.mu.Unlock()
		body, err := r.pullUpload()
		r.mu.Lock()

		if r.done {
			return
		}
		if err != nil {
			r.terminateLocked(func() { r.cb.OnFailed(r, nil, err) })
			return
		}
		r.e.mu.Lock()
		r.e.uploaded = append(r.e.uploaded, body)
		r.e.mu.Unlock()
	}

	b := r.behavior
	switch {
	case b.Fail != nil:
		r.terminateLocked(func() { r.cb.OnFailed(r, nil, b.Fail) })
	case b.Hang:
	case r.redirect < len(b.Redirects):
		r.awaiting = true
		location := b.Redirects[r.redirect]
		info := &engine.ResponseInfo{URL: r.params.URL, StatusCode: 302, StatusText: "Found"}

		// Callbacks must run without our lock.
		r.mu.Unlock()
		err := r.cb.OnRedirectReceived(r, info, location)
		r.mu.Lock()

		if err != nil && !r.done {
			r.terminateLocked(func() { r.cb.OnFailed(r, info, &engine.CallbackError{Cause: err}) })
		}
	default:
		url := r.params.URL
		if n := len(b.Redirects); n > 0 {
			url = b.Redirects[n-1]
		}
		r.info = &engine.ResponseInfo{
			URL:                url,
			StatusCode:         b.Status,
			StatusText:         b.StatusText,
			Headers:            b.Headers,
			NegotiatedProtocol: b.Protocol,
		}
		info := r.info
		r.exec.Execute(func() { r.cb.OnResponseStarted(r, info) })
	}
}

func (r *Request) FollowRedirect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done || !r.awaiting {
		return
	}
	r.awaiting = false
	r.redirect++
	r.exec.Execute(r.proceed)
}

func (r *Request) Read(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done || r.info == nil || r.behavior.HangBody {
		return
	}

	info := r.info
	if r.chunk >= len(r.behavior.Chunks) {
		r.terminateLocked(func() { r.cb.OnSucceeded(r, info) })
		return
	}

	chunk := r.behavior.Chunks[r.chunk][r.chunkOffset:]
	n := copy(buf, chunk)
	r.chunkOffset += n
	if r.chunkOffset == len(r.behavior.Chunks[r.chunk]) {
		r.chunk++
		r.chunkOffset = 0
	}
	r.exec.Execute(func() { r.cb.OnReadCompleted(r, info, n) })
}

func (r *Request) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}
	r.e.canceled.Add(1)

	info := r.info
	r.terminateLocked(func() { r.cb.OnCanceled(r, info) })
}

func (r *Request) IsDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// pullUpload reads the whole upload without holding r.mu. It stops early
// once the request is done.
func (r *Request) pullUpload() ([]byte, error) {
	size := r.behavior.UploadChunk
	if size <= 0 {
		size = 512
	}

	var (
		out bytes.Buffer
		buf = make([]byte, size)
	)
	for !r.IsDone() {
		n, err := r.params.Upload.Read(buf)
		out.Write(buf[:n])
		switch {
		case errors.Is(err, io.EOF):
			return out.Bytes(), nil
		case err != nil:
			return nil, err
		}

		if r.behavior.UploadPace > 0 {
			time.Sleep(r.behavior.UploadPace)
		}
	}
	return out.Bytes(), nil
}

// Assumes it is locked.
func (r *Request) terminateLocked(callback func()) {
	r.done = true
	if r.params.Upload != nil {
		r.params.Upload.Close()
	}
	r.exec.Execute(callback)
}

// Body joins the scripted chunks.
func (b Behavior) Body() []byte { return bytes.Join(b.Chunks, nil) }
