// Package backoff generates bounded wait schedules.
package backoff

import "time"

const defaultMultiplier = 2

// Backoff yields successive waits until it is done.
type Backoff interface {
	Next() time.Duration
	IsDone() bool
	Reset()
}

// ExponentSum yields init, init*m, init*m^2, ... and clips the last step
// so that all returned waits add up to exactly sum.
//
//	init=2 sum=30 -> 2 4 8 16
//	init=2 sum=29 -> 2 4 8 15
//	init=2 sum=31 -> 2 4 8 16 1
type ExponentSum struct {
	init       time.Duration
	sum        time.Duration
	multiplier int64

	step        int64
	accumulated time.Duration
}

var _ Backoff = (*ExponentSum)(nil)

// NewExponentSum creates a doubling sequence. A non-positive init
// spends the whole sum in one step.
func NewExponentSum(init, sum time.Duration) *ExponentSum {
	if init <= 0 {
		init = sum
	}

	return &ExponentSum{
		init:       init,
		sum:        sum,
		multiplier: defaultMultiplier,
		step:       1,
	}
}

// WithMultiplier replaces the growth factor. Values below 2 are ignored.
func (b *ExponentSum) WithMultiplier(m int64) *ExponentSum {
	if m >= 2 {
		b.multiplier = m
	}
	return b
}

func (b *ExponentSum) Next() time.Duration {
	current := min(b.init*time.Duration(b.step), b.sum-b.accumulated)
	if current < 0 {
		current = 0
	}

	b.step *= b.multiplier
	b.accumulated += current

	return current
}

func (b *ExponentSum) IsDone() bool { return b.accumulated >= b.sum }

// Accumulated returns the total of every wait handed out so far.
func (b *ExponentSum) Accumulated() time.Duration { return b.accumulated }

func (b *ExponentSum) Reset() {
	b.step = 1
	b.accumulated = 0
}
