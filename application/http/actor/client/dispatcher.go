package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"syncnet/application/http/httperr"
)

// dispatcher bounds in-flight requests globally and per host. Host
// semaphores are created on first use and kept for the client's lifetime.
type dispatcher struct {
	logger *slog.Logger

	global  *semaphore.Weighted
	perHost int64

	hostsMu sync.Mutex
	hosts   map[string]*semaphore.Weighted

	// nil when unlimited.
	limiter *rate.Limiter

	active atomic.Int64
}

func newDispatcher(logger *slog.Logger, opts ConnOptions) *dispatcher {
	d := &dispatcher{
		logger:  logger,
		global:  semaphore.NewWeighted(int64(opts.MaxRequests)),
		perHost: int64(opts.MaxRequestsPerHost),
		hosts:   make(map[string]*semaphore.Weighted),
	}

	if opts.RequestsPerSecond > 0 {
		burst := max(opts.Burst, 1)
		d.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return d
}

func (d *dispatcher) hostSemaphore(host string) *semaphore.Weighted {
	d.hostsMu.Lock()
	defer d.hostsMu.Unlock()

	sem, ok := d.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(d.perHost)
		d.hosts[host] = sem
	}
	return sem
}

// startAsyncSession takes a host slot and then a global one. Whatever was
// acquired is given back on failure.
func (d *dispatcher) startAsyncSession(ctx context.Context, host string) error {
	hostSem := d.hostSemaphore(host)

	if err := hostSem.Acquire(ctx, 1); err != nil {
		return httperr.Wrap(contextKind(err), err, "waiting for a slot of host %s", host)
	}

	if err := d.global.Acquire(ctx, 1); err != nil {
		hostSem.Release(1)
		return httperr.Wrap(contextKind(err), err, "waiting for a global slot")
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.global.Release(1)
			hostSem.Release(1)
			return httperr.Wrap(contextKind(err), err, "waiting for rate limit")
		}
	}

	n := d.active.Add(1)
	d.logger.Debug("session started", slog.String("host", host), slog.Int64("active", n))

	return nil
}

// closeAsyncSession gives back the slots in reverse order. Must be called
// exactly once per successful startAsyncSession.
func (d *dispatcher) closeAsyncSession(host string) {
	d.global.Release(1)
	d.hostSemaphore(host).Release(1)

	n := d.active.Add(-1)
	d.logger.Debug("session closed", slog.String("host", host), slog.Int64("active", n))
}

// Active returns the number of admitted sessions.
func (d *dispatcher) Active() int { return int(d.active.Load()) }
