package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func drain(b Backoff) []time.Duration {
	var steps []time.Duration
	for !b.IsDone() {
		steps = append(steps, b.Next())
	}
	return steps
}

func TestExponentSum(t *testing.T) {
	testcases := []struct {
		desc      string
		init, sum time.Duration
		expected  []time.Duration
	}{
		{desc: "exact sum", init: 2, sum: 30, expected: []time.Duration{2, 4, 8, 16}},
		{desc: "last step clipped", init: 2, sum: 29, expected: []time.Duration{2, 4, 8, 15}},
		{desc: "remainder step", init: 2, sum: 31, expected: []time.Duration{2, 4, 8, 16, 1}},
		{desc: "init exceeds sum", init: 50, sum: 30, expected: []time.Duration{30}},
		{desc: "non-positive init", init: 0, sum: 30, expected: []time.Duration{30}},
		{desc: "zero sum", init: 2, sum: 0, expected: nil},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			b := NewExponentSum(tc.init, tc.sum)
			assert.Equal(t, tc.expected, drain(b))
			assert.Equal(t, tc.sum, b.Accumulated())
		})
	}
}

func TestExponentSumDoneOnLastStep(t *testing.T) {
	b := NewExponentSum(2, 30)

	for _, expected := range []time.Duration{2, 4, 8} {
		assert.Equal(t, expected, b.Next())
		assert.False(t, b.IsDone())
	}

	assert.Equal(t, time.Duration(16), b.Next())
	assert.True(t, b.IsDone())
	assert.Equal(t, time.Duration(30), b.Accumulated())
}

func TestExponentSumMultiplier(t *testing.T) {
	b := NewExponentSum(1, 40).WithMultiplier(3)
	assert.Equal(t, []time.Duration{1, 3, 9, 27}, drain(b))

	ignored := NewExponentSum(1, 3).WithMultiplier(1)
	assert.Equal(t, []time.Duration{1, 2}, drain(ignored))
}

func TestExponentSumReset(t *testing.T) {
	b := NewExponentSum(2, 29)
	first := drain(b)

	b.Reset()
	assert.False(t, b.IsDone())
	assert.Equal(t, first, drain(b))
}
