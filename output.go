package flow

import (
	"github.com/creastat/flow/core"
)

// Output binds a captor to the destination its captures are written to.
// Outputs are created with Into and passed to the synchronizer driver first.
type Output[S core.Stamp] interface {
	// Name returns the bound stream name
	Name() string

	// Role reports whether the bound captor drives or follows
	Role() core.Role

	captor() any
	lockPolicy() LockPolicy
	closed() bool
	locate(rng *core.CaptureRange[S]) core.State
	commit()
	discard()
	abort(t S)
	reset()
}

// Into binds a captor to dst. A committed cycle replaces the contents of dst.
func Into[S core.Stamp, V any](c *Captor[S, V], dst *[]core.Dispatch[S, V]) Output[S] {
	return &binding[S, V]{c: c, dst: dst}
}

type binding[S core.Stamp, V any] struct {
	c       *Captor[S, V]
	dst     *[]core.Dispatch[S, V]
	pending Selection[S, V]
}

func (b *binding[S, V]) Name() string           { return b.c.name }
func (b *binding[S, V]) Role() core.Role        { return b.c.policy.Role() }
func (b *binding[S, V]) lockPolicy() LockPolicy { return b.c.lock }
func (b *binding[S, V]) closed() bool           { return b.c.Closed() }

func (b *binding[S, V]) captor() any {
	if b.c == nil {
		return nil
	}
	return b.c
}

// The methods below run with the captor lock held by the synchronizer

func (b *binding[S, V]) locate(rng *core.CaptureRange[S]) core.State {
	sel, state := b.c.locateLocked(rng)
	if state == core.StatePrimed {
		b.pending = sel
	}
	return state
}

func (b *binding[S, V]) commit() {
	b.c.commitLocked(b.pending, b.dst)
	b.pending = Selection[S, V]{}
}

func (b *binding[S, V]) discard() {
	b.pending = Selection[S, V]{}
}

func (b *binding[S, V]) abort(t S) {
	b.c.policy.Abort(b.c.queue, t)
}

func (b *binding[S, V]) reset() {
	b.c.Reset()
}
