// Package queue provides the stamp-ordered dispatch buffer owned by each captor.
//
// A DispatchQueue is not safe for concurrent use; the owning captor serializes access
// through its lock policy.
package queue

import (
	"errors"
	"sort"

	"github.com/creastat/flow/core"
)

var (
	// ErrRejected is returned when the queue monitor vetoes an insertion
	ErrRejected = errors.New("dispatch rejected by queue monitor")

	// ErrDuplicateStamp is returned when a stamp is already queued and duplicates are rejected
	ErrDuplicateStamp = errors.New("duplicate dispatch stamp")

	// ErrClosed is returned when inserting into a closed queue
	ErrClosed = errors.New("dispatch queue closed")
)

// DuplicatePolicy defines how dispatches sharing a stamp are handled
type DuplicatePolicy int

const (
	// DuplicatesAllow keeps every dispatch; equal stamps stay in insertion order
	DuplicatesAllow DuplicatePolicy = iota

	// DuplicatesReject refuses a dispatch whose stamp is already queued
	DuplicatesReject
)

// Config configures a dispatch queue
type Config[S core.Stamp, V any] struct {
	// Monitor is consulted on every insertion. Nil means DefaultMonitor.
	Monitor Monitor[S, V]

	// Duplicates selects the duplicate stamp policy
	Duplicates DuplicatePolicy
}

// DispatchQueue is a sequence of dispatches kept in ascending stamp order
type DispatchQueue[S core.Stamp, V any] struct {
	items      []core.Dispatch[S, V]
	monitor    Monitor[S, V]
	duplicates DuplicatePolicy
	evicted    uint64
	closed     bool
}

// New creates an empty dispatch queue
func New[S core.Stamp, V any](config Config[S, V]) *DispatchQueue[S, V] {
	monitor := config.Monitor
	if monitor == nil {
		monitor = DefaultMonitor[S, V]{}
	}
	return &DispatchQueue[S, V]{
		items:      make([]core.Dispatch[S, V], 0),
		monitor:    monitor,
		duplicates: config.Duplicates,
	}
}

// Unbounded returns a range covering every representable stamp
func Unbounded[S core.Stamp]() core.CaptureRange[S] {
	return core.CaptureRange[S]{Lower: core.MinStamp[S](), Upper: core.MaxStamp[S]()}
}

// Insert adds a dispatch, keeping stamp order
func (q *DispatchQueue[S, V]) Insert(dispatch core.Dispatch[S, V]) error {
	if q.closed {
		return ErrClosed
	}
	// Duplicates are refused before the monitor can evict anything for them
	if q.duplicates == DuplicatesReject {
		if idx := q.UpperIndex(dispatch.Stamp); idx > 0 && q.items[idx-1].Stamp == dispatch.Stamp {
			return ErrDuplicateStamp
		}
	}
	if !q.monitor.Check(q, dispatch) {
		return ErrRejected
	}

	idx := q.UpperIndex(dispatch.Stamp)

	// Producers are near monotonic so this is usually an append
	if idx == len(q.items) {
		q.items = append(q.items, dispatch)
		return nil
	}
	var zero core.Dispatch[S, V]
	q.items = append(q.items, zero)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = dispatch
	return nil
}

// Copy returns the dispatches whose stamps lie within the range
func (q *DispatchQueue[S, V]) Copy(rng core.CaptureRange[S]) []core.Dispatch[S, V] {
	if !rng.Valid() {
		return nil
	}
	return q.Slice(q.LowerIndex(rng.Lower), q.UpperIndex(rng.Upper))
}

// Clear removes the dispatches whose stamps lie within the range and returns how many were removed
func (q *DispatchQueue[S, V]) Clear(rng core.CaptureRange[S]) int {
	if !rng.Valid() {
		return 0
	}
	lo, hi := q.LowerIndex(rng.Lower), q.UpperIndex(rng.Upper)
	if lo >= hi {
		return 0
	}
	q.items = append(q.items[:lo], q.items[hi:]...)
	return hi - lo
}

// ClearAll removes every dispatch
func (q *DispatchQueue[S, V]) ClearAll() {
	q.items = q.items[:0]
}

// Len returns the number of queued dispatches
func (q *DispatchQueue[S, V]) Len() int {
	return len(q.items)
}

// Empty reports whether the queue holds no dispatches
func (q *DispatchQueue[S, V]) Empty() bool {
	return len(q.items) == 0
}

// At returns the i-th oldest dispatch
func (q *DispatchQueue[S, V]) At(i int) core.Dispatch[S, V] {
	return q.items[i]
}

// Slice returns a copy of the dispatches in [i, j)
func (q *DispatchQueue[S, V]) Slice(i, j int) []core.Dispatch[S, V] {
	if i >= j {
		return nil
	}
	out := make([]core.Dispatch[S, V], j-i)
	copy(out, q.items[i:j])
	return out
}

// Oldest returns the dispatch with the smallest stamp
func (q *DispatchQueue[S, V]) Oldest() (core.Dispatch[S, V], bool) {
	if len(q.items) == 0 {
		return core.Dispatch[S, V]{}, false
	}
	return q.items[0], true
}

// Newest returns the dispatch with the largest stamp
func (q *DispatchQueue[S, V]) Newest() (core.Dispatch[S, V], bool) {
	if len(q.items) == 0 {
		return core.Dispatch[S, V]{}, false
	}
	return q.items[len(q.items)-1], true
}

// StampRange returns the oldest and newest queued stamps
func (q *DispatchQueue[S, V]) StampRange() (core.CaptureRange[S], bool) {
	if len(q.items) == 0 {
		return core.CaptureRange[S]{}, false
	}
	return core.CaptureRange[S]{Lower: q.items[0].Stamp, Upper: q.items[len(q.items)-1].Stamp}, true
}

// LowerIndex returns the index of the first dispatch with stamp >= t
func (q *DispatchQueue[S, V]) LowerIndex(t S) int {
	return sort.Search(len(q.items), func(i int) bool { return q.items[i].Stamp >= t })
}

// UpperIndex returns the index of the first dispatch with stamp > t
func (q *DispatchQueue[S, V]) UpperIndex(t S) int {
	return sort.Search(len(q.items), func(i int) bool { return q.items[i].Stamp > t })
}

// RemoveFirst removes the n oldest dispatches
func (q *DispatchQueue[S, V]) RemoveFirst(n int) {
	if n <= 0 {
		return
	}
	if n >= len(q.items) {
		q.items = q.items[:0]
		return
	}
	q.items = append(q.items[:0], q.items[n:]...)
}

// RemoveBefore removes dispatches with stamp < t
func (q *DispatchQueue[S, V]) RemoveBefore(t S) {
	q.RemoveFirst(q.LowerIndex(t))
}

// RemoveAtBefore removes dispatches with stamp <= t
func (q *DispatchQueue[S, V]) RemoveAtBefore(t S) {
	q.RemoveFirst(q.UpperIndex(t))
}

// Evict removes the n oldest dispatches on behalf of a retention policy
func (q *DispatchQueue[S, V]) Evict(n int) {
	n = min(n, len(q.items))
	if n <= 0 {
		return
	}
	q.RemoveFirst(n)
	q.evicted += uint64(n)
}

// Evicted returns how many dispatches retention policies have dropped
func (q *DispatchQueue[S, V]) Evicted() uint64 {
	return q.evicted
}

// Close marks the stream as exhausted; queued data stays available
func (q *DispatchQueue[S, V]) Close() {
	q.closed = true
}

// Closed reports whether the stream is exhausted
func (q *DispatchQueue[S, V]) Closed() bool {
	return q.closed
}

// Reopen clears the closed flag
func (q *DispatchQueue[S, V]) Reopen() {
	q.closed = false
}
