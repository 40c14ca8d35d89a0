package nethttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"syncnet/application/http/engine"
)

type outcome int

const (
	succeeded outcome = iota
	failed
	canceled
)

// request runs network I/O on its own goroutines and hands every event to
// the bound executor. busy is set while such a goroutine is outstanding; a
// cancel that arrives meanwhile is completed by that goroutine.
type request struct {
	e      *Engine
	cb     engine.Callback
	exec   engine.Executor
	upload engine.UploadProvider
	client *http.Client
	req    *http.Request

	ctx    context.Context
	cancel context.CancelFunc
	follow chan error

	mu       sync.Mutex
	started  bool
	busy     bool
	canceled bool
	done     bool
	info     *engine.ResponseInfo
	body     io.ReadCloser
}

var _ engine.Request = (*request)(nil)

func (r *request) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.done {
		return
	}
	r.started = true
	r.busy = true

	go r.run()
}

func (r *request) run() {
	resp, err := r.client.Do(r.req)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.busy = false

	switch {
	case r.done:
		if resp != nil {
			resp.Body.Close()
		}
	case r.canceled:
		if resp != nil {
			resp.Body.Close()
		}
		r.terminateLocked(canceled, nil)
	case err != nil:
		r.terminateLocked(failed, toNetworkError(err))
	default:
		r.body = resp.Body
		r.info = infoOf(resp)

		info := r.info
		r.e.logger.Debug("response started",
			slog.String("url", info.URL),
			slog.Int("status", info.StatusCode),
			slog.String("protocol", info.NegotiatedProtocol),
		)
		r.exec.Execute(func() { r.cb.OnResponseStarted(r, info) })
	}
}

func (r *request) FollowRedirect() {
	select {
	case r.follow <- nil:
	default:
	}
}

func (r *request) Read(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done || r.busy || r.body == nil {
		return
	}
	r.busy = true

	go r.read(r.body, buf)
}

func (r *request) read(body io.Reader, buf []byte) {
	n, err := readSome(body, buf)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.busy = false

	switch {
	case r.done:
	case r.canceled:
		r.terminateLocked(canceled, nil)
	case n > 0:
		info := r.info
		r.exec.Execute(func() { r.cb.OnReadCompleted(r, info, n) })
	case errors.Is(err, io.EOF):
		r.terminateLocked(succeeded, nil)
	default:
		r.terminateLocked(failed, toNetworkError(err))
	}
}

func (r *request) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done || r.canceled {
		return
	}
	r.canceled = true
	r.cancel()

	if !r.busy {
		r.terminateLocked(canceled, nil)
	}
}

func (r *request) IsDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Assumes it is locked.
func (r *request) terminateLocked(o outcome, err error) {
	r.done = true
	r.cancel()

	if r.body != nil {
		r.body.Close()
		r.body = nil
	}
	if r.upload != nil {
		r.upload.Close()
	}

	info := r.info
	switch o {
	case succeeded:
		r.exec.Execute(func() { r.cb.OnSucceeded(r, info) })
	case failed:
		r.e.logger.Debug("request failed", slog.String("url", r.req.URL.String()), slog.Any("error", err))
		r.exec.Execute(func() { r.cb.OnFailed(r, info, err) })
	case canceled:
		r.exec.Execute(func() { r.cb.OnCanceled(r, info) })
	}
}

// checkRedirect pauses the transfer until the callback decides.
func (r *request) checkRedirect(next *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.Errorf("stopped after %d redirects", maxRedirects)
	}

	var info *engine.ResponseInfo
	if next.Response != nil {
		info = infoOf(next.Response)
	}
	location := next.URL.String()

	r.exec.Execute(func() {
		if err := r.cb.OnRedirectReceived(r, info, location); err != nil {
			select {
			case r.follow <- err:
			default:
			}
		}
	})

	select {
	case err := <-r.follow:
		if err != nil {
			return &engine.CallbackError{Cause: err}
		}
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

func readSome(body io.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}
	for {
		n, err := body.Read(buf)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
	}
}

func infoOf(resp *http.Response) *engine.ResponseInfo {
	protocol := resp.Proto
	if resp.TLS != nil && resp.TLS.NegotiatedProtocol != "" {
		protocol = resp.TLS.NegotiatedProtocol
	}

	var url string
	if resp.Request != nil {
		url = resp.Request.URL.String()
	}

	return &engine.ResponseInfo{
		URL:                url,
		StatusCode:         resp.StatusCode,
		StatusText:         strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		Headers:            resp.Header.Clone(),
		NegotiatedProtocol: protocol,
	}
}
