package queue

import "github.com/creastat/flow/core"

// Monitor is consulted before every insertion. It may evict queued data to enforce a
// retention policy and returns false to reject the incoming dispatch.
// A monitor must only act on the queue it is given.
type Monitor[S core.Stamp, V any] interface {
	Check(q *DispatchQueue[S, V], incoming core.Dispatch[S, V]) bool
}

// MonitorFunc adapts a function to the Monitor interface
type MonitorFunc[S core.Stamp, V any] func(q *DispatchQueue[S, V], incoming core.Dispatch[S, V]) bool

// Check calls f
func (f MonitorFunc[S, V]) Check(q *DispatchQueue[S, V], incoming core.Dispatch[S, V]) bool {
	return f(q, incoming)
}

// DefaultMonitor accepts everything
type DefaultMonitor[S core.Stamp, V any] struct{}

// Check always accepts
func (DefaultMonitor[S, V]) Check(*DispatchQueue[S, V], core.Dispatch[S, V]) bool {
	return true
}

// MaxDepthMonitor bounds the queue length by evicting the oldest dispatches
type MaxDepthMonitor[S core.Stamp, V any] struct {
	// Depth is the maximum number of queued dispatches; values below 1 disable the bound
	Depth int
}

// Check makes room for the incoming dispatch
func (m MaxDepthMonitor[S, V]) Check(q *DispatchQueue[S, V], _ core.Dispatch[S, V]) bool {
	if m.Depth < 1 {
		return true
	}
	if excess := q.Len() - m.Depth + 1; excess > 0 {
		q.Evict(excess)
	}
	return true
}

// MaxAgeMonitor drops data older than MaxAge relative to the newest stamp seen
type MaxAgeMonitor[S core.Stamp, V any] struct {
	MaxAge S
}

// Check evicts stale dispatches and rejects arrivals that are already stale
func (m MaxAgeMonitor[S, V]) Check(q *DispatchQueue[S, V], incoming core.Dispatch[S, V]) bool {
	newest := incoming.Stamp
	if last, ok := q.Newest(); ok && last.Stamp > newest {
		newest = last.Stamp
	}
	cutoff := newest - m.MaxAge
	if incoming.Stamp < cutoff {
		return false
	}
	q.Evict(q.LowerIndex(cutoff))
	return true
}

// Chain runs monitors in order and rejects as soon as one rejects
func Chain[S core.Stamp, V any](monitors ...Monitor[S, V]) Monitor[S, V] {
	return MonitorFunc[S, V](func(q *DispatchQueue[S, V], incoming core.Dispatch[S, V]) bool {
		for _, m := range monitors {
			if !m.Check(q, incoming) {
				return false
			}
		}
		return true
	})
}
