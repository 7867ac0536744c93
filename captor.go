package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/telemetry"
	"github.com/creastat/flow/queue"
	"github.com/rs/zerolog"
)

// CaptorConfig holds captor configuration
type CaptorConfig[S core.Stamp, V any] struct {
	// Name identifies the stream in logs and transports
	Name string

	// Lock guards the queue. Nil means NoLock.
	Lock LockPolicy

	// Monitor is consulted on every insertion. Nil accepts everything.
	Monitor queue.Monitor[S, V]

	// Duplicates selects how dispatches sharing a stamp are handled
	Duplicates queue.DuplicatePolicy

	Logger zerolog.Logger
}

// Captor buffers one stream and answers capture requests against it
type Captor[S core.Stamp, V any] struct {
	name   string
	lock   LockPolicy
	queue  *queue.DispatchQueue[S, V]
	policy Policy[S, V]
	logger zerolog.Logger
}

// NewCaptor creates a captor driven by the given policy
func NewCaptor[S core.Stamp, V any](policy Policy[S, V], config CaptorConfig[S, V]) *Captor[S, V] {
	lock := config.Lock
	if lock == nil {
		lock = NoLock{}
	}
	name := config.Name
	if name == "" {
		name = policy.Role().String()
	}
	return &Captor[S, V]{
		name: name,
		lock: lock,
		queue: queue.New(queue.Config[S, V]{
			Monitor:    config.Monitor,
			Duplicates: config.Duplicates,
		}),
		policy: policy,
		logger: telemetry.WithModule(config.Logger, "captor").With().Str("stream", name).Logger(),
	}
}

// Name returns the stream name
func (c *Captor[S, V]) Name() string {
	return c.name
}

// Role reports whether the captor drives or follows
func (c *Captor[S, V]) Role() core.Role {
	return c.policy.Role()
}

// Inject adds a value stamped at stamp
func (c *Captor[S, V]) Inject(stamp S, value V) error {
	return c.Insert(core.NewDispatch(stamp, value))
}

// Insert adds a dispatch to the queue
func (c *Captor[S, V]) Insert(dispatch core.Dispatch[S, V]) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.queue.Insert(dispatch); err != nil {
		c.logger.Debug().Err(err).Interface("stamp", dispatch.Stamp).Msg("dispatch not queued")
		return fmt.Errorf("stream %q: %w", c.name, err)
	}
	return nil
}

// Close marks the stream as exhausted. Queued data stays available for capture.
func (c *Captor[S, V]) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.queue.Close()
	c.logger.Debug().Msg("stream closed")
}

// Closed reports whether the stream is exhausted
func (c *Captor[S, V]) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.queue.Closed()
}

// Size returns the number of queued dispatches
func (c *Captor[S, V]) Size() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.queue.Len()
}

// Evicted returns how many dispatches the queue monitor has dropped
func (c *Captor[S, V]) Evicted() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.queue.Evicted()
}

// AvailableStampRange returns the oldest and newest queued stamps
func (c *Captor[S, V]) AvailableStampRange() (core.CaptureRange[S], bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.queue.StampRange()
}

// Peek copies the queued dispatches within the range without consuming them
func (c *Captor[S, V]) Peek(rng core.CaptureRange[S]) []core.Dispatch[S, V] {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.queue.Copy(rng)
}

// Capture attempts the request once without waiting. On PRIMED, out is replaced with the
// captured dispatches and consumed data leaves the queue; otherwise nothing changes.
func (c *Captor[S, V]) Capture(out *[]core.Dispatch[S, V], rng *core.CaptureRange[S]) core.State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.captureLocked(out, rng)
}

// CaptureUntil repeats Capture until it is no longer RETRY. It returns TIMEOUT once the
// deadline passes or ctx is done; a zero deadline waits on ctx alone. Under NoLock the
// request is checked once and RETRY is returned as is.
func (c *Captor[S, V]) CaptureUntil(ctx context.Context, out *[]core.Dispatch[S, V], rng *core.CaptureRange[S], deadline time.Time) core.State {
	interval := c.lock.PollInterval()
	for {
		state := c.Capture(out, rng)
		if state != core.StateRetry || interval <= 0 {
			return state
		}
		if !sleepPoll(ctx, interval, deadline) {
			return core.StateTimeout
		}
	}
}

// Abort discards data that can no longer be captured at or after t
func (c *Captor[S, V]) Abort(t S) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.policy.Abort(c.queue, t)
}

// Reset drops all queued data, reopens the stream and resets the policy
func (c *Captor[S, V]) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.queue.ClearAll()
	c.queue.Reopen()
	c.policy.Reset()
}

func (c *Captor[S, V]) captureLocked(out *[]core.Dispatch[S, V], rng *core.CaptureRange[S]) core.State {
	sel, state := c.locateLocked(rng)
	if state == core.StatePrimed {
		c.commitLocked(sel, out)
	}
	return state
}

func (c *Captor[S, V]) locateLocked(rng *core.CaptureRange[S]) (Selection[S, V], core.State) {
	return c.policy.Locate(c.queue, rng)
}

func (c *Captor[S, V]) commitLocked(sel Selection[S, V], out *[]core.Dispatch[S, V]) {
	if out != nil {
		*out = append((*out)[:0], sel.Dispatches...)
	}
	c.policy.Commit(sel)
	c.queue.RemoveFirst(sel.Drop)
}
