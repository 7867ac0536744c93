package flow

import (
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// Selection is the result of a successful Locate: the dispatches handed to the caller and
// the number of leading queue entries dropped when the selection is committed
type Selection[S core.Stamp, V any] struct {
	Dispatches []core.Dispatch[S, V]
	Drop       int
}

// Policy decides how a captor turns queued data into a capture.
//
// Locate must not modify the queue or the policy. Drivers write the range they establish
// into rng; followers only read it. Commit is called once the selection is handed out,
// after which the captor drops Selection.Drop entries from the queue.
type Policy[S core.Stamp, V any] interface {
	Role() core.Role
	Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (Selection[S, V], core.State)
	Commit(sel Selection[S, V])
	Abort(q *queue.DispatchQueue[S, V], t S)
	Reset()
}
