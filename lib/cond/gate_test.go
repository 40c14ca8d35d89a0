package cond

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGateAwaitAlreadySatisfied(t *testing.T) {
	g := NewGate(NewLock(clock.New()))
	g.Change(true)

	require.NoError(t, g.Await(context.Background(), true))

	ok, err := g.AwaitTimeout(context.Background(), true, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateChangeWakesWaiters(t *testing.T) {
	g := NewGate(NewLock(clock.New()))

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.AwaitTimeout(context.Background(), true, 5*time.Second)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	g.Change(true)
	wg.Wait()
}

func TestGateAwaitTimeoutElapses(t *testing.T) {
	g := NewGate(NewLock(clock.New()))

	start := time.Now()
	ok, err := g.AwaitTimeout(context.Background(), true, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestGateRestartExtendsDeadline(t *testing.T) {
	g := NewGate(NewLock(clock.New()))
	timeout := 80 * time.Millisecond

	done := make(chan bool, 1)
	start := time.Now()
	go func() {
		ok, err := g.AwaitTimeout(context.Background(), true, timeout)
		assert.NoError(t, err)
		done <- ok
	}()

	// Keep pushing the deadline forward past the original timeout.
	for range 4 {
		time.Sleep(40 * time.Millisecond)
		g.RestartAwaitTimeouts()
	}

	ok := <-done
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 160*time.Millisecond+timeout)
}

func TestGateSharedLockTransition(t *testing.T) {
	l := NewLock(clock.New())
	first, second := NewGate(l), NewGate(l)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, second.Await(context.Background(), true))
		// Both were flipped in the same critical section.
		assert.True(t, first.Value())
	}()

	time.Sleep(10 * time.Millisecond)
	l.Lock()
	first.ChangeLocked(true)
	second.ChangeLocked(true)
	l.Unlock()

	<-done
}

func TestGateAwaitContextCanceled(t *testing.T) {
	g := NewGate(NewLock(clock.New()))
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.ErrorIs(t, g.Await(ctx, true), context.Canceled)

	ok, err := g.AwaitTimeout(ctx, true, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestGateNonPositiveTimeoutWaitsForValue(t *testing.T) {
	g := NewGate(NewLock(clock.New()))

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Change(true)
	}()

	ok, err := g.AwaitTimeout(context.Background(), true, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateAwaitFalse(t *testing.T) {
	g := NewGate(NewLock(clock.New()))
	g.Change(true)

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Change(false)
	}()

	require.NoError(t, g.Await(context.Background(), false))
	assert.False(t, g.Value())
}
