// Package nethttp implements [engine.Engine] on top of net/http, with
// HTTP/2 negotiated through golang.org/x/net/http2.
package nethttp

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"syncnet/application/http/engine"
	"syncnet/application/util/domain"
)

const maxRedirects = 10

var ErrShutdown = errors.New("engine is shut down")

type Options struct {
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
	// MaxConnsPerHost of zero means no limit.
	MaxConnsPerHost int

	// EnvironmentProxy routes through HTTP_PROXY and friends.
	EnvironmentProxy bool

	// Lookuper, when set, is asked before the system resolver. Hosts it
	// does not know fall through.
	Lookuper domain.Lookuper
}

func DefaultOptions() Options {
	return Options{
		DialTimeout:         30 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 16,
		EnvironmentProxy:    true,
	}
}

type Engine struct {
	logger    *slog.Logger
	transport *http.Transport
	dialer    *net.Dialer
	lookuper  domain.Lookuper

	mu       sync.Mutex
	shutdown bool
}

var _ engine.Engine = (*Engine)(nil)

func New(logger *slog.Logger, opts Options) (*Engine, error) {
	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: opts.KeepAlive,
	}

	e := &Engine{logger: logger, dialer: dialer, lookuper: opts.Lookuper}

	transport := &http.Transport{
		DialContext:         e.dial,
		TLSHandshakeTimeout: opts.TLSHandshakeTimeout,
		IdleConnTimeout:     opts.IdleConnTimeout,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxConnsPerHost:     opts.MaxConnsPerHost,
	}
	if opts.EnvironmentProxy {
		transport.Proxy = http.ProxyFromEnvironment
	}
	if _, err := http2.ConfigureTransports(transport); err != nil {
		return nil, errors.Wrap(err, "configuring http2")
	}

	e.transport = transport

	return e, nil
}

func (e *Engine) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if e.lookuper == nil {
		return e.dialer.DialContext(ctx, network, addr)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	addrs, err := e.lookuper.LookupIP(ctx, host)
	switch {
	case errors.Is(err, domain.ErrDomainNotFound):
	case err != nil:
		return nil, &net.DNSError{Err: err.Error(), Name: host}
	case len(addrs) > 0:
		e.logger.Debug("resolved by lookuper", slog.String("host", host), slog.String("addr", addrs[0].String()))
		addr = net.JoinHostPort(addrs[0].String(), port)
	}

	return e.dialer.DialContext(ctx, network, addr)
}

func (e *Engine) NewRequest(params engine.RequestParams, cb engine.Callback, exec engine.Executor) (engine.Request, error) {
	e.mu.Lock()
	shutdown := e.shutdown
	e.mu.Unlock()
	if shutdown {
		return nil, ErrShutdown
	}

	ctx, cancel := context.WithCancel(context.Background())

	var body *uploadBody
	if params.Upload != nil {
		body = &uploadBody{params.Upload}
	}

	req, err := http.NewRequestWithContext(ctx, params.Method, params.URL, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "building request")
	}

	for k, v := range params.Headers {
		if http.CanonicalHeaderKey(k) == "Host" && len(v) > 0 {
			req.Host = v[0]
			continue
		}
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	if body != nil {
		req.Body = body
		req.GetBody = body.rewound
		req.ContentLength = params.Upload.Length()
		if req.ContentLength == 0 {
			req.Body = http.NoBody
		}
	}

	r := &request{
		e:      e,
		cb:     cb,
		exec:   exec,
		upload: params.Upload,
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		follow: make(chan error, 1),
	}
	r.client = &http.Client{
		Transport:     e.transport,
		CheckRedirect: r.checkRedirect,
	}

	return r, nil
}

// Shutdown refuses new requests and closes idle connections.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return nil
	}
	e.shutdown = true
	e.transport.CloseIdleConnections()

	e.logger.Debug("engine shut down")
	return nil
}

type uploadBody struct{ u engine.UploadProvider }

func (b *uploadBody) Read(p []byte) (int, error) { return b.u.Read(p) }

// The provider outlives redirects and is closed by the request itself.
func (b *uploadBody) Close() error { return nil }

func (b *uploadBody) rewound() (io.ReadCloser, error) {
	if err := b.u.Rewind(); err != nil {
		return nil, errors.Wrap(err, "rewinding upload")
	}
	return b, nil
}
