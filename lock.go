package flow

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is used by PollingLock when no interval is given
const DefaultPollInterval = time.Millisecond

// LockPolicy guards a captor's queue and decides how blocking captures wait.
// A zero PollInterval means the policy cannot suspend the caller.
type LockPolicy interface {
	sync.Locker
	PollInterval() time.Duration
}

// NoLock is for single threaded use; blocking captures degrade to a single check
type NoLock struct{}

// Lock does nothing
func (NoLock) Lock() {}

// Unlock does nothing
func (NoLock) Unlock() {}

// PollInterval is zero: NoLock never suspends
func (NoLock) PollInterval() time.Duration { return 0 }

// PollingLock wraps any mutual exclusion primitive. Blocking captures take the lock,
// check, release it and sleep for the polling interval before checking again.
type PollingLock struct {
	locker   sync.Locker
	interval time.Duration
}

// NewPollingLock creates a polling lock. A nil locker uses a new sync.Mutex.
func NewPollingLock(locker sync.Locker, interval time.Duration) *PollingLock {
	if locker == nil {
		locker = &sync.Mutex{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingLock{
		locker:   locker,
		interval: interval,
	}
}

// Lock acquires the wrapped primitive
func (l *PollingLock) Lock() { l.locker.Lock() }

// Unlock releases the wrapped primitive
func (l *PollingLock) Unlock() { l.locker.Unlock() }

// PollInterval returns the time slept between checks
func (l *PollingLock) PollInterval() time.Duration { return l.interval }

// sleepPoll waits for one polling interval, never past the deadline.
// It returns false when the deadline has passed or the context is done.
// A zero deadline means no deadline.
func sleepPoll(ctx context.Context, interval time.Duration, deadline time.Time) bool {
	wait := interval
	if !deadline.IsZero() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait = min(wait, remaining)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
