package queue

import (
	"testing"

	"github.com/creastat/flow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// For any insertion sequence, a max depth monitor SHALL keep at most Depth dispatches.
func TestPropertyMaxDepthBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		depth := rapid.IntRange(1, 10).Draw(rt, "depth")
		stamps := rapid.SliceOf(rapid.IntRange(0, 1000)).Draw(rt, "stamps")

		q := New(Config[int, int]{Monitor: MaxDepthMonitor[int, int]{Depth: depth}})
		for i, s := range stamps {
			if err := q.Insert(core.NewDispatch(s, i)); err != nil {
				rt.Fatalf("insert failed: %v", err)
			}
			if q.Len() > depth {
				rt.Fatalf("queue grew to %d beyond depth %d", q.Len(), depth)
			}
		}

		expectedEvicted := max(0, len(stamps)-depth)
		if int(q.Evicted()) != expectedEvicted {
			rt.Fatalf("expected %d evictions, got %d", expectedEvicted, q.Evicted())
		}
	})
}

func TestMaxAgeMonitor(t *testing.T) {
	q := New(Config[int, string]{Monitor: MaxAgeMonitor[int, string]{MaxAge: 5}})

	for _, s := range []int{1, 2, 3} {
		require.NoError(t, q.Insert(core.NewDispatch(s, "v")))
	}

	// 10 makes everything before 5 stale
	require.NoError(t, q.Insert(core.NewDispatch(10, "v")))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, uint64(3), q.Evicted())

	assert.ErrorIs(t, q.Insert(core.NewDispatch(4, "late")), ErrRejected)
	assert.NoError(t, q.Insert(core.NewDispatch(6, "in window")))
}

func TestChainStopsAtFirstRejection(t *testing.T) {
	calls := 0
	counting := MonitorFunc[int, string](func(*DispatchQueue[int, string], core.Dispatch[int, string]) bool {
		calls++
		return true
	})
	rejectOdd := MonitorFunc[int, string](func(_ *DispatchQueue[int, string], d core.Dispatch[int, string]) bool {
		return d.Stamp%2 == 0
	})

	q := New(Config[int, string]{Monitor: Chain[int, string](rejectOdd, counting)})

	assert.ErrorIs(t, q.Insert(core.NewDispatch(1, "odd")), ErrRejected)
	assert.Equal(t, 0, calls)

	assert.NoError(t, q.Insert(core.NewDispatch(2, "even")))
	assert.Equal(t, 1, calls)
}
