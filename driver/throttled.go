package driver

import (
	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// Throttled captures at most one dispatch per period. Dispatches arriving sooner than
// Period after the last capture are skipped and dropped on the next commit.
type Throttled[S core.Stamp, V any] struct {
	period S

	previous    S
	hasPrevious bool
}

// NewThrottled creates a throttled driver
func NewThrottled[S core.Stamp, V any](config core.ThrottledConfig[S]) (*Throttled[S, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Throttled[S, V]{period: config.Period}, nil
}

func (t *Throttled[S, V]) Role() core.Role {
	return core.RoleDriver
}

func (t *Throttled[S, V]) Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (flow.Selection[S, V], core.State) {
	for i := q.UpperIndex(rng.Lower); i < q.Len(); i++ {
		d := q.At(i)
		if t.hasPrevious && d.Stamp-t.previous < t.period {
			continue
		}

		rng.Lower = d.Stamp
		rng.Upper = d.Stamp
		return flow.Selection[S, V]{
			Dispatches: []core.Dispatch[S, V]{d},
			Drop:       i + 1,
		}, core.StatePrimed
	}

	if q.Closed() {
		return flow.Selection[S, V]{}, core.StateAbort
	}
	return flow.Selection[S, V]{}, core.StateRetry
}

func (t *Throttled[S, V]) Commit(sel flow.Selection[S, V]) {
	if len(sel.Dispatches) == 0 {
		return
	}
	t.previous = sel.Dispatches[len(sel.Dispatches)-1].Stamp
	t.hasPrevious = true
}

// Abort drops everything at or before t
func (t *Throttled[S, V]) Abort(q *queue.DispatchQueue[S, V], stamp S) {
	q.RemoveAtBefore(stamp)
}

func (t *Throttled[S, V]) Reset() {
	t.hasPrevious = false
}
