package follower

import (
	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// Ranged captures every dispatch spanning the driving range, shifted back by Delay: the
// last dispatch strictly before the lower boundary, the first strictly after the upper
// boundary and everything in between. Suited to interpolating a faster stream.
type Ranged[S core.Stamp, V any] struct {
	period S
	delay  S
}

// NewRanged creates a ranged follower
func NewRanged[S core.Stamp, V any](config core.RangedConfig[S]) (*Ranged[S, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Ranged[S, V]{
		period: config.Period,
		delay:  config.Delay,
	}, nil
}

func (r *Ranged[S, V]) Role() core.Role {
	return core.RoleFollower
}

func (r *Ranged[S, V]) Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (flow.Selection[S, V], core.State) {
	if q.Empty() {
		return none[S, V](q)
	}

	lower, ok := earlier(rng.Lower, r.delay)
	if !ok {
		return flow.Selection[S, V]{}, core.StateAbort
	}
	upper := rng.Upper - r.delay

	before := q.LowerIndex(lower) - 1
	if before < 0 {
		// Nothing precedes the boundary and it cannot arrive later
		return flow.Selection[S, V]{}, core.StateAbort
	}

	after := q.UpperIndex(upper)
	if after >= q.Len() {
		return none[S, V](q)
	}

	return flow.Selection[S, V]{
		Dispatches: q.Slice(before, after+1),
		Drop:       before,
	}, core.StatePrimed
}

func (r *Ranged[S, V]) Commit(flow.Selection[S, V]) {}

// Abort removes dispatches too old to precede any range starting at or after t
func (r *Ranged[S, V]) Abort(q *queue.DispatchQueue[S, V], t S) {
	bound, ok := earlier(t, r.delay)
	if ok {
		bound, ok = earlier(bound, r.period)
	}
	if ok {
		q.RemoveBefore(bound)
	}
}

func (r *Ranged[S, V]) Reset() {}
