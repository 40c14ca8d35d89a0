// Package cond provides boolean wait/notify gates with restartable timeouts.
//
// Several gates can share one [Lock] so that a single critical section may
// flip many of them at once; every waiter observes such a change atomically.
package cond

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Lock is the mutex shared by a family of gates.
// Each broadcast closes the current wake channel and installs a new one,
// which is how waiters blocked on any gate of the family get notified.
type Lock struct {
	mu    sync.Mutex
	clock clock.Clock
	wake  chan struct{}
}

func NewLock(clk clock.Clock) *Lock {
	if clk == nil {
		clk = clock.New()
	}
	return &Lock{clock: clk, wake: make(chan struct{})}
}

func (l *Lock) Lock()   { l.mu.Lock() }
func (l *Lock) Unlock() { l.mu.Unlock() }

// Assumes it is locked.
func (l *Lock) broadcastLocked() {
	close(l.wake)
	l.wake = make(chan struct{})
}

// Gate is a boolean guarded by a [Lock].
type Gate struct {
	l *Lock

	value   bool
	restart bool
}

func NewGate(l *Lock) *Gate { return &Gate{l: l} }

// Change sets the value and wakes every waiter of the lock.
func (g *Gate) Change(value bool) {
	g.l.Lock()
	defer g.l.Unlock()
	g.ChangeLocked(value)
}

// ChangeLocked is [Gate.Change] for callers already holding the lock.
func (g *Gate) ChangeLocked(value bool) {
	g.value = value
	g.l.broadcastLocked()
}

// Value reports the current value.
func (g *Gate) Value() bool {
	g.l.Lock()
	defer g.l.Unlock()
	return g.value
}

// RestartAwaitTimeouts makes an in-progress [Gate.AwaitTimeout] recompute
// its deadline from now.
func (g *Gate) RestartAwaitTimeouts() {
	g.l.Lock()
	defer g.l.Unlock()
	g.RestartAwaitTimeoutsLocked()
}

func (g *Gate) RestartAwaitTimeoutsLocked() {
	g.restart = true
	g.l.broadcastLocked()
}

// Await blocks until the gate holds value or ctx is done.
func (g *Gate) Await(ctx context.Context, value bool) error {
	g.l.Lock()
	defer g.l.Unlock()

	for g.value != value {
		wake := g.l.wake

		g.l.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			g.l.Lock()
			if g.value == value {
				return nil
			}
			return ctx.Err()
		}
		g.l.Lock()
	}

	return nil
}

// AwaitTimeout blocks until the gate holds value, the timeout elapses or ctx
// is done. It reports whether value was reached. A non-positive timeout
// waits without a deadline.
func (g *Gate) AwaitTimeout(ctx context.Context, value bool, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		if err := g.Await(ctx, value); err != nil {
			return false, err
		}
		return true, nil
	}

	g.l.Lock()
	defer g.l.Unlock()

	// Only restarts requested while we wait count.
	g.restart = false

	now := g.l.clock.Now()
	end := now.Add(timeout)

	for g.value != value && now.Before(end) {
		wake := g.l.wake
		timer := g.l.clock.Timer(end.Sub(now))

		g.l.Unlock()
		var err error
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
			err = ctx.Err()
		}
		timer.Stop()
		g.l.Lock()

		if err != nil {
			if g.value == value {
				return true, nil
			}
			return false, err
		}

		now = g.l.clock.Now()
		if g.restart {
			g.restart = false
			end = now.Add(timeout)
		}
	}

	return g.value == value, nil
}
