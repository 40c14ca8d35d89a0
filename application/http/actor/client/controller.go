package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"syncnet/application/http/engine"
	"syncnet/application/http/httperr"
	"syncnet/application/http/semantic"
	"syncnet/lib/backoff"
	"syncnet/lib/cond"
)

// controller drives one request through the engine. Engine callbacks only
// record state and flip gates; the blocking await methods run on the
// caller's goroutine.
//
// The state, the engine request, the response info, the terminal error and
// the four gates are all guarded by lock.
type controller struct {
	logger   *slog.Logger
	clock    clock.Clock
	engine   engine.Engine
	redirect RedirectPolicy
	request  *semantic.Request

	backoffInit time.Duration

	lock         *cond.Lock
	connectGate  *cond.Gate
	writeGate    *cond.Gate
	responseGate *cond.Gate
	readGate     *cond.Gate

	state    state
	conn     engine.Request
	info     *engine.ResponseInfo
	err      error
	lastRead int

	onTerminate func(err error)
}

func newController(
	request *semantic.Request,
	e engine.Engine,
	redirect RedirectPolicy,
	logger *slog.Logger,
	clk clock.Clock,
	backoffInit time.Duration,
	onTerminate func(err error),
) *controller {
	lock := cond.NewLock(clk)

	return &controller{
		logger:       logger,
		clock:        clk,
		engine:       e,
		redirect:     redirect,
		request:      request,
		backoffInit:  backoffInit,
		lock:         lock,
		connectGate:  cond.NewGate(lock),
		writeGate:    cond.NewGate(lock),
		responseGate: cond.NewGate(lock),
		readGate:     cond.NewGate(lock),
		onTerminate:  onTerminate,
	}
}

// setupSession builds the engine request without starting it.
func (c *controller) setupSession(exec engine.Executor) error {
	params := buildParams(c.request, c.writeRequest)

	conn, err := c.engine.NewRequest(params, &callback{c: c}, exec)
	if err != nil {
		return httperr.Wrap(httperr.Setup, err, "building request for %s", c.request)
	}

	c.lock.Lock()
	c.conn = conn
	c.lock.Unlock()

	return nil
}

func (c *controller) startConnection() error {
	c.lock.Lock()

	conn := c.conn
	if conn == nil {
		c.lock.Unlock()
		return httperr.New(httperr.IllegalState, "session of %s is not set up", c.request)
	}
	if c.state.terminal() {
		err := c.terminalErrLocked()
		c.lock.Unlock()
		return err
	}
	c.moveLocked(stateConnecting)

	c.lock.Unlock()

	conn.Start()
	return nil
}

// awaitConnection polls the connect gate in backoff steps summing up to
// timeout. A non-positive timeout waits until ctx is done.
func (c *controller) awaitConnection(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		if err := c.connectGate.Await(ctx, true); err != nil {
			return c.interrupted(err, "awaiting connection")
		}
		return c.storedErr()
	}

	b := backoff.NewExponentSum(c.backoffInit, timeout)
	for !b.IsDone() {
		ok, err := c.connectGate.AwaitTimeout(ctx, true, b.Next())
		if err != nil {
			return c.interrupted(err, "awaiting connection")
		}
		if ok {
			return c.storedErr()
		}

		c.logger.Debug("still connecting",
			slog.String("url", c.request.String()),
			slog.Duration("waited", b.Accumulated()),
		)
	}

	return httperr.New(httperr.Timeout, "connecting to %s timed out after %s", c.request.Host(), timeout)
}

// awaitResponse waits for the response headers. The write stage is an
// inactivity wait of writeTimeout which restarts on every upload read.
func (c *controller) awaitResponse(ctx context.Context, writeTimeout time.Duration) (*engine.ResponseInfo, error) {
	if err := c.connectGate.Await(ctx, true); err != nil {
		return nil, c.interrupted(err, "awaiting response")
	}
	if err := c.storedErr(); err != nil {
		return nil, err
	}

	ok, err := c.writeGate.AwaitTimeout(ctx, true, writeTimeout)
	if err != nil {
		return nil, c.interrupted(err, "awaiting response")
	}
	if !ok {
		return nil, httperr.New(httperr.Timeout, "no response from %s within %s", c.request.Host(), writeTimeout)
	}
	if err := c.storedErr(); err != nil {
		return nil, err
	}

	if err := c.responseGate.Await(ctx, true); err != nil {
		return nil, c.interrupted(err, "awaiting response")
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.info == nil {
		return nil, httperr.New(httperr.IllegalState, "no response info in state %s", c.state)
	}
	return c.info, nil
}

// awaitChunk reads the next chunk of the body into buf. It returns nil at
// the end of the body.
func (c *controller) awaitChunk(ctx context.Context, buf []byte, timeout time.Duration) ([]byte, error) {
	if err := c.responseGate.Await(ctx, true); err != nil {
		return nil, c.interrupted(err, "awaiting body")
	}

	c.lock.Lock()
	if c.state.terminal() {
		err := c.err
		c.lock.Unlock()
		return nil, err
	}
	c.readGate.ChangeLocked(false)
	c.lastRead = 0
	conn := c.conn
	c.lock.Unlock()

	conn.Read(buf)

	ok, err := c.readGate.AwaitTimeout(ctx, true, timeout)
	if err != nil {
		return nil, c.interrupted(err, "awaiting body")
	}
	if !ok {
		return nil, httperr.New(httperr.Timeout, "reading body of %s timed out after %s", c.request, timeout)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	switch {
	case c.err != nil:
		return nil, c.err
	case c.state.terminal() && c.lastRead == 0:
		return nil, nil
	}
	// May be empty; only nil ends the body.
	return buf[:c.lastRead], nil
}

// closeConnection asks the engine to cancel. Idempotent.
func (c *controller) closeConnection() {
	c.lock.Lock()
	conn := c.conn
	done := c.state.terminal()
	c.lock.Unlock()

	if conn == nil || done {
		return
	}
	conn.Cancel()
}

// closeWithError stores err as the outcome and cancels.
func (c *controller) closeWithError(err error) {
	c.lock.Lock()
	if !c.state.terminal() && c.err == nil {
		c.err = err
	}
	c.lock.Unlock()

	c.closeConnection()
}

func (c *controller) writeRequest() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.moveLocked(stateWriting) {
		return
	}
	c.connectGate.ChangeLocked(true)
	c.writeGate.RestartAwaitTimeoutsLocked()
}

func (c *controller) responseReady(info *engine.ResponseInfo) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.moveLocked(stateReading) {
		return
	}
	c.info = info
	c.connectGate.ChangeLocked(true)
	c.writeGate.ChangeLocked(true)
	c.responseGate.ChangeLocked(true)
}

func (c *controller) readResponse(n int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.moveLocked(stateReading) {
		return
	}
	c.lastRead = n
	c.readGate.ChangeLocked(true)
}

// terminate moves to a terminal state, releases every gate and notifies
// onTerminate. Only the first call has an effect.
func (c *controller) terminate(target state, err error) {
	c.lock.Lock()

	if c.state.terminal() {
		c.lock.Unlock()
		return
	}

	c.logger.Debug("request terminated",
		slog.String("url", c.request.String()),
		slog.String("from", c.state.String()),
		slog.String("to", target.String()),
	)

	c.state = target
	if c.err == nil {
		c.err = err
	}
	if target == stateCanceled && c.err == nil {
		c.err = httperr.New(httperr.Canceled, "request to %s canceled", c.request)
	}

	for _, g := range []*cond.Gate{c.connectGate, c.writeGate, c.responseGate, c.readGate} {
		g.ChangeLocked(true)
	}

	stored := c.err
	onTerminate := c.onTerminate
	c.lock.Unlock()

	if onTerminate != nil {
		onTerminate(stored)
	}
}

// moveLocked applies a non terminal transition. Assumes it is locked.
func (c *controller) moveLocked(target state) bool {
	switch {
	case c.state.terminal():
		return false
	case c.state == stateQueued && target != stateConnecting:
		c.logger.Debug("ignoring transition from QUEUED", slog.String("to", target.String()))
		return false
	}

	if target > c.state {
		c.state = target
	}
	return true
}

func (c *controller) storedErr() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.err
}

// Assumes it is locked.
func (c *controller) terminalErrLocked() error {
	if c.err != nil {
		return c.err
	}
	return httperr.New(httperr.Canceled, "request to %s already finished", c.request)
}

func (c *controller) interrupted(err error, stage string) error {
	return httperr.Wrap(contextKind(err), err, "%s of %s", stage, c.request)
}

func (c *controller) currentState() state {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// callback adapts engine callbacks to controller events.
type callback struct{ c *controller }

var _ engine.Callback = (*callback)(nil)

func (cb *callback) OnRedirectReceived(req engine.Request, _ *engine.ResponseInfo, location string) error {
	if err := cb.c.redirect.Allow(cb.c.request, location); err != nil {
		return err
	}
	req.FollowRedirect()
	return nil
}

func (cb *callback) OnResponseStarted(_ engine.Request, info *engine.ResponseInfo) {
	cb.c.responseReady(info)
}

func (cb *callback) OnReadCompleted(_ engine.Request, _ *engine.ResponseInfo, n int) {
	cb.c.readResponse(n)
}

func (cb *callback) OnSucceeded(engine.Request, *engine.ResponseInfo) {
	cb.c.terminate(stateSuccess, nil)
}

func (cb *callback) OnFailed(_ engine.Request, _ *engine.ResponseInfo, err error) {
	cb.c.terminate(stateError, fromEngineError(err))
}

func (cb *callback) OnCanceled(engine.Request, *engine.ResponseInfo) {
	cb.c.terminate(stateCanceled, nil)
}
