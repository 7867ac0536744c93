package follower

import (
	"fmt"
	"testing"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newCaptor(t *testing.T, policy flow.Policy[int, int], stamps ...int) *flow.Captor[int, int] {
	t.Helper()

	c := flow.NewCaptor(policy, flow.CaptorConfig[int, int]{Name: "follower"})
	for _, s := range stamps {
		require.NoError(t, c.Inject(s, 100))
	}
	return c
}

func stamps(ds []core.Dispatch[int, int]) []int {
	out := make([]int, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Stamp)
	}
	return out
}

func remaining(c *flow.Captor[int, int]) []int {
	return stamps(c.Peek(core.CaptureRange[int]{Lower: core.MinStamp[int](), Upper: core.MaxStamp[int]()}))
}

func TestClosestBefore(t *testing.T) {
	policy, err := NewClosestBefore[int, int](core.ClosestBeforeConfig[int]{})
	require.NoError(t, err)

	t.Run("selects latest before bound", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 3, 5, 9)
		var out []core.Dispatch[int, int]

		state := c.Capture(&out, &core.CaptureRange[int]{Lower: 6, Upper: 6})

		assert.Equal(t, core.StatePrimed, state)
		assert.Equal(t, []int{5}, stamps(out))
		assert.Equal(t, []int{9}, remaining(c))
	})

	t.Run("aborts when oldest is past bound", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 3, 5, 9)
		var out []core.Dispatch[int, int]

		state := c.Capture(&out, &core.CaptureRange[int]{Lower: 0, Upper: 0})

		assert.Equal(t, core.StateAbort, state)
		assert.Empty(t, out)
		assert.Equal(t, 4, c.Size())
	})

	t.Run("retries on empty", func(t *testing.T) {
		c := newCaptor(t, policy)
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateRetry, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
	})

	t.Run("retries until something newer arrives", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 3)
		var out []core.Dispatch[int, int]
		rng := core.CaptureRange[int]{Lower: 5, Upper: 5}

		assert.Equal(t, core.StateRetry, c.Capture(&out, &rng))

		require.NoError(t, c.Inject(4, 100))
		assert.Equal(t, core.StateRetry, c.Capture(&out, &rng))

		require.NoError(t, c.Inject(6, 100))
		assert.Equal(t, core.StatePrimed, c.Capture(&out, &rng))
		assert.Equal(t, []int{4}, stamps(out))
	})

	t.Run("exact match is final", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 5)
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
		assert.Equal(t, []int{5}, stamps(out))
	})

	t.Run("closed stream settles candidate", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 3)
		c.Close()
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
		assert.Equal(t, []int{3}, stamps(out))
	})

	t.Run("closed empty stream aborts", func(t *testing.T) {
		c := newCaptor(t, policy)
		c.Close()
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateAbort, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
	})
}

func TestClosestBeforeDelayAndGap(t *testing.T) {
	policy, err := NewClosestBefore[int, int](core.ClosestBeforeConfig[int]{Delay: 2, MaxGap: 1})
	require.NoError(t, err)

	var out []core.Dispatch[int, int]

	// Bound 8: candidate 7 within the gap
	c := newCaptor(t, policy, 5, 7, 9)
	assert.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 10, Upper: 10}))
	assert.Equal(t, []int{7}, stamps(out))

	// Bound 10: candidate 5 too far, newer data already present
	c = newCaptor(t, policy, 5, 11)
	assert.Equal(t, core.StateAbort, c.Capture(&out, &core.CaptureRange[int]{Lower: 12, Upper: 12}))

	// Bound 10: candidate 5 too far but a closer one may still arrive
	c = newCaptor(t, policy, 5)
	assert.Equal(t, core.StateRetry, c.Capture(&out, &core.CaptureRange[int]{Lower: 12, Upper: 12}))
}

func TestClosestBeforeAbortKeepsNewestCandidate(t *testing.T) {
	policy, err := NewClosestBefore[int, int](core.ClosestBeforeConfig[int]{Delay: 1})
	require.NoError(t, err)

	c := newCaptor(t, policy, 1, 2, 3, 4, 8)
	c.Abort(5)

	assert.Equal(t, []int{4, 8}, remaining(c))
}

func TestClosestBeforeRejectsInvalidConfig(t *testing.T) {
	_, err := NewClosestBefore[int, int](core.ClosestBeforeConfig[int]{Delay: -1})
	assert.Error(t, err)
}

// For any buffered stamps and bound, a PRIMED closest-before capture SHALL return the
// latest dispatch at or before the bound, and nothing newer than the bound.
func TestPropertyClosestBeforeSelectsLatest(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		policy, _ := NewClosestBefore[int, int](core.ClosestBeforeConfig[int]{})
		buffered := rapid.SliceOfN(rapid.IntRange(0, 100), 1, 30).Draw(rt, "stamps")
		bound := rapid.IntRange(0, 100).Draw(rt, "bound")

		c := flow.NewCaptor[int, int](policy, flow.CaptorConfig[int, int]{})
		best, found := -1, false
		for _, s := range buffered {
			_ = c.Inject(s, s)
			if s <= bound && s > best {
				best, found = s, true
			}
		}
		c.Close()

		var out []core.Dispatch[int, int]
		state := c.Capture(&out, &core.CaptureRange[int]{Lower: bound, Upper: bound})

		if !found {
			if state != core.StateAbort {
				rt.Fatalf("expected abort without candidate, got %s", state)
			}
			return
		}
		if state != core.StatePrimed {
			rt.Fatalf("expected primed, got %s", state)
		}
		if len(out) != 1 || out[0].Stamp != best {
			rt.Fatalf("expected stamp %d, got %v", best, out)
		}
	})
}

func TestCountBefore(t *testing.T) {
	policy, err := NewCountBefore[int, int](core.CountBeforeConfig[int]{Count: 3})
	require.NoError(t, err)

	t.Run("captures oldest count in order", func(t *testing.T) {
		c := newCaptor(t, policy, 4, 2, 3, 1)
		var out []core.Dispatch[int, int]

		state := c.Capture(&out, &core.CaptureRange[int]{Lower: 10, Upper: 10})

		assert.Equal(t, core.StatePrimed, state)
		assert.Equal(t, []int{1, 2, 3}, stamps(out))
		assert.Equal(t, []int{4}, remaining(c))
	})

	t.Run("retries while too few", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 2, 30)
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateRetry, c.Capture(&out, &core.CaptureRange[int]{Lower: 10, Upper: 10}))
		assert.Equal(t, 3, c.Size())
	})

	t.Run("aborts when closed with too few", func(t *testing.T) {
		c := newCaptor(t, policy, 1, 2)
		c.Close()
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateAbort, c.Capture(&out, &core.CaptureRange[int]{Lower: 10, Upper: 10}))
	})

	t.Run("delay shifts the bound", func(t *testing.T) {
		delayed, err := NewCountBefore[int, int](core.CountBeforeConfig[int]{Count: 2, Delay: 5})
		require.NoError(t, err)

		c := newCaptor(t, delayed, 1, 4, 6)
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateRetry, c.Capture(&out, &core.CaptureRange[int]{Lower: 8, Upper: 8}))
		assert.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 9, Upper: 9}))
		assert.Equal(t, []int{1, 4}, stamps(out))
	})

	t.Run("rejects zero count", func(t *testing.T) {
		_, err := NewCountBefore[int, int](core.CountBeforeConfig[int]{})
		assert.Error(t, err)
	})
}

func TestLatched(t *testing.T) {
	t.Run("retries on empty", func(t *testing.T) {
		policy, _ := NewLatched[int, int](core.LatchedConfig[int]{MinPeriod: 1})
		c := newCaptor(t, policy)
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateRetry, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
	})

	t.Run("aborts when only newer data exists", func(t *testing.T) {
		policy, _ := NewLatched[int, int](core.LatchedConfig[int]{MinPeriod: 1})
		c := newCaptor(t, policy, 10)
		var out []core.Dispatch[int, int]

		assert.Equal(t, core.StateAbort, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
	})

	t.Run("holds and re-emits", func(t *testing.T) {
		policy, _ := NewLatched[int, int](core.LatchedConfig[int]{MinPeriod: 1})
		c := newCaptor(t, policy, 1, 2, 9)
		var out []core.Dispatch[int, int]

		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
		assert.Equal(t, []int{2}, stamps(out))
		assert.Equal(t, []int{2, 9}, remaining(c))

		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 6, Upper: 6}))
		assert.Equal(t, []int{2}, stamps(out))

		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 10, Upper: 10}))
		assert.Equal(t, []int{9}, stamps(out))
		assert.Equal(t, []int{9}, remaining(c))
	})

	t.Run("emits latched after data is evicted", func(t *testing.T) {
		policy, _ := NewLatched[int, int](core.LatchedConfig[int]{MinPeriod: 1})
		c := flow.NewCaptor[int, int](policy, flow.CaptorConfig[int, int]{
			Monitor: queue.MaxDepthMonitor[int, int]{Depth: 1},
		})
		require.NoError(t, c.Inject(2, 100))
		var out []core.Dispatch[int, int]

		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))

		// Evicts 2, and 20 does not qualify yet for a range starting at 10
		require.NoError(t, c.Inject(20, 100))
		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 10, Upper: 10}))
		assert.Equal(t, []int{2}, stamps(out))
		assert.Equal(t, []int{20}, remaining(c))
	})

	t.Run("reset forgets latched", func(t *testing.T) {
		policy, _ := NewLatched[int, int](core.LatchedConfig[int]{MinPeriod: 1})
		c := newCaptor(t, policy, 2)
		var out []core.Dispatch[int, int]

		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
		c.Reset()

		assert.Equal(t, core.StateRetry, c.Capture(&out, &core.CaptureRange[int]{Lower: 5, Upper: 5}))
	})
}

func TestRanged(t *testing.T) {
	for _, delay := range []int{0, 1, 2} {
		for _, period := range []int{1, 2} {
			t.Run(fmt.Sprintf("delay=%d/period=%d", delay, period), func(t *testing.T) {
				testRanged(t, delay, period)
			})
		}
	}
}

func testRanged(t *testing.T, delay, period int) {
	policy := func() *Ranged[int, int] {
		p, err := NewRanged[int, int](core.RangedConfig[int]{Period: period, Delay: delay})
		require.NoError(t, err)
		return p
	}

	cases := []struct {
		name     string
		stamps   []int
		rng      core.CaptureRange[int]
		state    core.State
		captured int
	}{
		{"retry on empty", nil, core.CaptureRange[int]{Lower: 0, Upper: 0}, core.StateRetry, 0},
		{"abort on too few before zero range", []int{-delay + 1, -delay + 2}, core.CaptureRange[int]{Lower: 0, Upper: 0}, core.StateAbort, 0},
		{"abort on too few before non-zero range", []int{-delay + 1, -delay + 2}, core.CaptureRange[int]{Lower: 0, Upper: 1}, core.StateAbort, 0},
		{"retry on none after zero range", []int{-delay - 1, -delay - 2}, core.CaptureRange[int]{Lower: 0, Upper: 0}, core.StateRetry, 0},
		{"retry on none after non-zero range", []int{-delay - 1, -delay + 1}, core.CaptureRange[int]{Lower: 0, Upper: 1}, core.StateRetry, 0},
		{"capture on zero range", []int{-delay - 1, -delay + 1}, core.CaptureRange[int]{Lower: 0, Upper: 0}, core.StatePrimed, 2},
		{"capture on zero range with intermediate", []int{-delay - 1, -delay, -delay + 1}, core.CaptureRange[int]{Lower: 0, Upper: 0}, core.StatePrimed, 3},
		{"capture on non-zero range", []int{-delay - 1, -delay + 2}, core.CaptureRange[int]{Lower: 0, Upper: 1}, core.StatePrimed, 2},
		{"capture on non-zero range with intermediate", []int{-delay - 1, -delay, -delay + 1, -delay + 2}, core.CaptureRange[int]{Lower: 0, Upper: 1}, core.StatePrimed, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCaptor(t, policy(), tc.stamps...)
			var out []core.Dispatch[int, int]
			rng := tc.rng

			assert.Equal(t, tc.state, c.Capture(&out, &rng))
			assert.Len(t, out, tc.captured)
		})
	}

	t.Run("abort data removal", func(t *testing.T) {
		c := newCaptor(t, policy(), -delay-3*period, -delay-1, -delay, -delay+1, -delay+2)
		c.Abort(0)

		available, ok := c.AvailableStampRange()
		require.True(t, ok)
		assert.Greater(t, available.Lower, -delay-2*period)
	})

	t.Run("commit keeps the boundary before", func(t *testing.T) {
		c := newCaptor(t, policy(), -delay-2, -delay-1, -delay+1)
		var out []core.Dispatch[int, int]

		require.Equal(t, core.StatePrimed, c.Capture(&out, &core.CaptureRange[int]{Lower: 0, Upper: 0}))
		assert.Equal(t, []int{-delay - 1, -delay + 1}, stamps(out))
		assert.Equal(t, []int{-delay - 1, -delay + 1}, remaining(c))
	})
}

func TestOffsetsBelowSmallestStamp(t *testing.T) {
	lowest := core.MinStamp[int]()
	first := &core.CaptureRange[int]{Lower: lowest, Upper: lowest}

	t.Run("closest before", func(t *testing.T) {
		policy, err := NewClosestBefore[int, int](core.ClosestBeforeConfig[int]{Delay: 1})
		require.NoError(t, err)
		c := newCaptor(t, policy, 1, 2, 3, 4)

		c.Abort(lowest)
		assert.Equal(t, []int{1, 2, 3, 4}, remaining(c))

		var out []core.Dispatch[int, int]
		rng := *first
		assert.Equal(t, core.StateAbort, c.Capture(&out, &rng))
		assert.Equal(t, []int{1, 2, 3, 4}, remaining(c))
	})

	t.Run("count before", func(t *testing.T) {
		policy, err := NewCountBefore[int, int](core.CountBeforeConfig[int]{Count: 1, Delay: 1})
		require.NoError(t, err)
		c := newCaptor(t, policy, 1, 2)

		var out []core.Dispatch[int, int]
		rng := *first
		assert.Equal(t, core.StateRetry, c.Capture(&out, &rng))
		assert.Empty(t, out)
	})

	t.Run("latched", func(t *testing.T) {
		policy, err := NewLatched[int, int](core.LatchedConfig[int]{MinPeriod: 1})
		require.NoError(t, err)
		c := newCaptor(t, policy, 1, 2, 3)

		c.Abort(lowest)
		assert.Equal(t, []int{1, 2, 3}, remaining(c))

		var out []core.Dispatch[int, int]
		rng := *first
		assert.Equal(t, core.StateAbort, c.Capture(&out, &rng))
	})

	t.Run("ranged", func(t *testing.T) {
		policy, err := NewRanged[int, int](core.RangedConfig[int]{Period: 1, Delay: 1})
		require.NoError(t, err)
		c := newCaptor(t, policy, 1, 2, 3)

		c.Abort(lowest)
		assert.Equal(t, []int{1, 2, 3}, remaining(c))

		var out []core.Dispatch[int, int]
		rng := *first
		assert.Equal(t, core.StateAbort, c.Capture(&out, &rng))
	})
}
