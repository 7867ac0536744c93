package follower

import (
	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// Latched holds the last value of an infrequent stream, such as a configuration or
// calibration update, and hands it out on every cycle until a newer one qualifies.
// A dispatch qualifies once it is at least MinPeriod older than the driving range.
type Latched[S core.Stamp, V any] struct {
	minPeriod S

	latched    core.Dispatch[S, V]
	hasLatched bool
}

// NewLatched creates a latched follower
func NewLatched[S core.Stamp, V any](config core.LatchedConfig[S]) (*Latched[S, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Latched[S, V]{minPeriod: config.MinPeriod}, nil
}

func (l *Latched[S, V]) Role() core.Role {
	return core.RoleFollower
}

func (l *Latched[S, V]) Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (flow.Selection[S, V], core.State) {
	if bound, ok := earlier(rng.Lower, l.minPeriod); ok {
		if idx := q.UpperIndex(bound); idx > 0 {
			return flow.Selection[S, V]{
				Dispatches: []core.Dispatch[S, V]{q.At(idx - 1)},
				Drop:       idx - 1,
			}, core.StatePrimed
		}
	}

	if l.hasLatched {
		return flow.Selection[S, V]{
			Dispatches: []core.Dispatch[S, V]{l.latched},
		}, core.StatePrimed
	}

	if q.Empty() {
		return none[S, V](q)
	}
	return flow.Selection[S, V]{}, core.StateAbort
}

func (l *Latched[S, V]) Commit(sel flow.Selection[S, V]) {
	if len(sel.Dispatches) == 1 {
		l.latched = sel.Dispatches[0]
		l.hasLatched = true
	}
}

// Abort keeps the newest dispatch that still qualifies for ranges starting at or after t
func (l *Latched[S, V]) Abort(q *queue.DispatchQueue[S, V], t S) {
	bound, ok := earlier(t, l.minPeriod)
	if !ok {
		return
	}
	if idx := q.UpperIndex(bound); idx > 1 {
		q.RemoveFirst(idx - 1)
	}
}

// Reset forgets the latched dispatch
func (l *Latched[S, V]) Reset() {
	l.latched = core.Dispatch[S, V]{}
	l.hasLatched = false
}
