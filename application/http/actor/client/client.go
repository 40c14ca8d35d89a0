// Package client is a blocking HTTP client on top of an asynchronous
// [engine.Engine].
//
// Every [Client.Execute] call blocks its goroutine through admission,
// connect and response headers, and returns a response whose body is
// pulled chunk by chunk from the engine. The buffer, the executor and the
// admission slots of a request are released exactly once, from whichever
// path finishes it.
package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"syncnet/application/http/engine"
	"syncnet/application/http/httperr"
	"syncnet/application/http/semantic"
	"syncnet/lib/pool"
)

type Client struct {
	engine     engine.Engine
	dispatcher *dispatcher

	opts Options

	logger *slog.Logger
	clock  clock.Clock

	mu       sync.Mutex
	sessions map[uint64]*session
	shutdown atomic.Bool
}

// session tracks what one in-flight request holds.
type session struct {
	request  *semantic.Request
	executor *pool.Executor
	buffer   *pool.RcBuffer
	ctrl     *controller

	// Guarded by Client.mu.
	admitted bool
}

func New(e engine.Engine, logger *slog.Logger, clock clock.Clock, opts Options) *Client {
	opts = opts.withDefaults()

	return &Client{
		engine:     e,
		dispatcher: newDispatcher(logger, opts.Conn),
		opts:       opts,
		logger:     logger,
		clock:      clock,
		sessions:   make(map[uint64]*session),
	}
}

// Execute sends request and blocks until the response headers arrive. The
// caller must close the response body; ctx also bounds reading it.
func (c *Client) Execute(ctx context.Context, request *semantic.Request) (*semantic.Response, error) {
	c.emit(Event{Stage: StageLaunched, Request: request})

	executor, err := c.opts.Pool.Executors.Obtain(ctx)
	if err != nil {
		return nil, httperr.Wrap(contextKind(err), err, "obtaining executor for %s", request)
	}

	s := &session{
		request:  request,
		executor: executor,
		buffer:   c.opts.Pool.Buffers.Rc(),
	}
	s.ctrl = newController(
		request, c.engine, c.opts.Redirect.Policy, c.logger, c.clock,
		c.opts.Timeout.ConnectBackoffInit,
		func(err error) { c.closeSession(s, err) },
	)

	// Held by the connection and released by closeSession.
	if _, err := s.buffer.Retain(); err != nil {
		c.opts.Pool.Executors.Recycle(executor)
		return nil, httperr.Wrap(httperr.IllegalState, err, "retaining buffer")
	}

	if err := s.ctrl.setupSession(executor); err != nil {
		s.buffer.Release()
		c.opts.Pool.Executors.Recycle(executor)
		c.fail(StageSessionSetupFailed, request, err)
		return nil, err
	}
	c.emit(Event{Stage: StageSessionSetup, Request: request})

	if err := c.startSession(ctx, s); err != nil {
		c.fail(StageSessionStartFailed, request, err)
		return nil, err
	}
	c.emit(Event{Stage: StageSessionStarted, Request: request})

	begin := c.clock.Now()
	if err := s.ctrl.startConnection(); err != nil {
		s.ctrl.closeConnection()
		c.closeSession(s, err)
		c.fail(StageConnectionStartFailed, request, err)
		return nil, err
	}
	if err := s.ctrl.awaitConnection(ctx, c.opts.Timeout.Connect); err != nil {
		s.ctrl.closeConnection()
		c.fail(StageConnectionStartFailed, request, err)
		return nil, err
	}
	c.emit(Event{Stage: StageConnectionStarted, Request: request, Elapsed: c.clock.Since(begin)})

	info, err := s.ctrl.awaitResponse(ctx, c.opts.Timeout.Write)
	if err != nil {
		s.ctrl.closeConnection()
		c.fail(StageResponseInfoFailed, request, err)
		return nil, err
	}

	response, err := c.newResponse(ctx, s, info)
	if err != nil {
		s.ctrl.closeConnection()
		c.fail(StageResponseInfoFailed, request, err)
		return nil, err
	}
	c.emit(Event{Stage: StageResponseInfoReceived, Request: request})

	return response, nil
}

// startSession registers s and waits for admission. A client that is
// shutting down refuses it.
func (c *Client) startSession(ctx context.Context, s *session) error {
	id := s.request.ID()

	c.mu.Lock()
	if c.shutdown.Load() {
		c.mu.Unlock()
		c.refuse(s)
		return httperr.New(httperr.Canceled, "client is shut down")
	}
	if _, ok := c.sessions[id]; ok {
		c.mu.Unlock()
		c.refuse(s)
		return httperr.New(httperr.IllegalState, "request %d is already in flight", id)
	}
	c.sessions[id] = s
	c.mu.Unlock()

	if err := c.dispatcher.startAsyncSession(ctx, s.request.Host()); err != nil {
		s.ctrl.closeConnection()
		c.closeSession(s, err)
		return err
	}

	c.mu.Lock()
	current, ok := c.sessions[id]
	if ok && current == s {
		s.admitted = true
	}
	c.mu.Unlock()

	if !ok || current != s {
		// Terminated while waiting, nobody else knows about the slots.
		c.dispatcher.closeAsyncSession(s.request.Host())
		return httperr.New(httperr.Canceled, "request to %s canceled while waiting for admission", s.request)
	}

	return nil
}

// refuse cleans up a session that never got registered.
func (c *Client) refuse(s *session) {
	s.ctrl.closeConnection()
	s.buffer.Release()
	c.opts.Pool.Executors.Recycle(s.executor)
}

// closeSession releases everything s holds. Only the first call for a
// registered session has an effect.
func (c *Client) closeSession(s *session, err error) {
	id := s.request.ID()

	c.mu.Lock()
	current, ok := c.sessions[id]
	if !ok || current != s {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, id)
	admitted := s.admitted
	c.mu.Unlock()

	if admitted {
		c.dispatcher.closeAsyncSession(s.request.Host())
	}
	c.opts.Pool.Executors.Recycle(s.executor)
	s.buffer.Release()

	c.emit(Event{Stage: StageSessionClosed, Request: s.request, Err: err})
}

func (c *Client) newResponse(ctx context.Context, s *session, info *engine.ResponseInfo) (*semantic.Response, error) {
	// Held by the body until it is closed.
	chunkBuf, err := s.buffer.Retain()
	if err != nil {
		if stored := s.ctrl.storedErr(); stored != nil {
			return nil, stored
		}
		return nil, httperr.Wrap(httperr.Canceled, err, "request to %s finished before its body was read", s.request)
	}

	stream := newBodyStream(bodyDelegate{
		onRead: func() ([]byte, error) {
			return s.ctrl.awaitChunk(ctx, chunkBuf, c.opts.Timeout.Read)
		},
		onError: s.ctrl.closeWithError,
		onClosed: func() {
			s.ctrl.closeConnection()
			s.buffer.Release()
		},
	})

	status, ok := semantic.StatusFromCode(uint(info.StatusCode))
	if !ok || info.StatusText != "" {
		status.ReasonPhrase = info.StatusText
	}

	response := &semantic.Response{
		Protocol: semantic.ParseProtocol(info.NegotiatedProtocol),
		URL:      info.URL,
		Status:   status,
		Headers:  semantic.NewHeaders(info.Headers),
	}

	contentType, _ := response.Headers.Get("Content-Type")
	response.Body = semantic.NewResponseBody(stream, c.opts.Pool.BodyBuffers.Rc(), response.ContentLength(), contentType)

	return response, nil
}

// Shutdown cancels every in-flight request and shuts the engine down.
// Further calls do nothing.
func (c *Client) Shutdown() {
	if !c.shutdown.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	ctrls := make([]*controller, 0, len(c.sessions))
	for _, s := range c.sessions {
		ctrls = append(ctrls, s.ctrl)
	}
	c.mu.Unlock()

	c.logger.Info("shutting down", slog.Int("in_flight", len(ctrls)))

	for _, ctrl := range ctrls {
		ctrl.closeConnection()
	}

	if err := c.engine.Shutdown(); err != nil {
		c.logger.Warn("engine shutdown failed", slog.Any("error", err))
	}
}

// InFlight returns the number of registered requests.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Client) emit(e Event) { c.opts.Listeners.emit(c.logger, e) }

func (c *Client) fail(stage Stage, request *semantic.Request, err error) {
	c.logger.Error("request failed",
		slog.String("stage", stage.String()),
		slog.String("url", request.String()),
		slog.Any("error", err),
	)
	c.emit(Event{Stage: stage, Request: request, Err: err})
}
