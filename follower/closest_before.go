// Package follower holds the policies that align a stream to the range established by a driver
package follower

import (
	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// ClosestBefore captures the latest dispatch at or before the driving range upper stamp,
// shifted back by Delay. The match is only final once newer data shows that no closer
// dispatch can still arrive.
type ClosestBefore[S core.Stamp, V any] struct {
	delay  S
	maxGap S
}

// NewClosestBefore creates a closest-before follower
func NewClosestBefore[S core.Stamp, V any](config core.ClosestBeforeConfig[S]) (*ClosestBefore[S, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ClosestBefore[S, V]{
		delay:  config.Delay,
		maxGap: config.MaxGap,
	}, nil
}

func (c *ClosestBefore[S, V]) Role() core.Role {
	return core.RoleFollower
}

func (c *ClosestBefore[S, V]) Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (flow.Selection[S, V], core.State) {
	if q.Empty() {
		return none[S, V](q)
	}

	bound, ok := earlier(rng.Upper, c.delay)
	if !ok {
		return flow.Selection[S, V]{}, core.StateAbort
	}
	idx := q.UpperIndex(bound)
	if idx == 0 {
		// Oldest buffered dispatch is already past the bound
		return flow.Selection[S, V]{}, core.StateAbort
	}

	candidate := q.At(idx - 1)
	settled := idx < q.Len() || candidate.Stamp == bound || q.Closed()

	if c.maxGap > 0 && bound-candidate.Stamp > c.maxGap {
		if settled {
			return flow.Selection[S, V]{}, core.StateAbort
		}
		return flow.Selection[S, V]{}, core.StateRetry
	}
	if !settled {
		return flow.Selection[S, V]{}, core.StateRetry
	}

	return flow.Selection[S, V]{
		Dispatches: []core.Dispatch[S, V]{candidate},
		Drop:       idx,
	}, core.StatePrimed
}

func (c *ClosestBefore[S, V]) Commit(flow.Selection[S, V]) {}

// Abort keeps the newest dispatch that could still match a range ending at or after t
func (c *ClosestBefore[S, V]) Abort(q *queue.DispatchQueue[S, V], t S) {
	bound, ok := earlier(t, c.delay)
	if !ok {
		return
	}
	if idx := q.UpperIndex(bound); idx > 1 {
		q.RemoveFirst(idx - 1)
	}
}

func (c *ClosestBefore[S, V]) Reset() {}

// earlier moves t back by offset. It reports false when the result would fall below the
// smallest representable stamp, in which case no dispatch can precede it.
func earlier[S core.Stamp](t, offset S) (S, bool) {
	if offset > 0 && t < core.MinStamp[S]()+offset {
		return t, false
	}
	return t - offset, true
}

// none is the outcome when a stream has nothing to offer: final once it is closed
func none[S core.Stamp, V any](q *queue.DispatchQueue[S, V]) (flow.Selection[S, V], core.State) {
	if q.Closed() {
		return flow.Selection[S, V]{}, core.StateAbort
	}
	return flow.Selection[S, V]{}, core.StateRetry
}
