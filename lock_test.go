package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPollingLockDefaults(t *testing.T) {
	l := NewPollingLock(nil, 0)
	assert.Equal(t, DefaultPollInterval, l.PollInterval())

	l.Lock()
	l.Unlock()

	var rw sync.RWMutex
	l = NewPollingLock(&rw, 5*time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, l.PollInterval())
}

func TestNoLockNeverSuspends(t *testing.T) {
	var l LockPolicy = NoLock{}
	l.Lock()
	l.Lock()
	l.Unlock()
	assert.Zero(t, l.PollInterval())
}

func TestSleepPoll(t *testing.T) {
	ctx := context.Background()

	assert.True(t, sleepPoll(ctx, time.Millisecond, time.Time{}))
	assert.False(t, sleepPoll(ctx, time.Millisecond, time.Now().Add(-time.Millisecond)))

	// Never sleeps past the deadline
	start := time.Now()
	sleepPoll(ctx, time.Second, start.Add(5*time.Millisecond))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, sleepPoll(cancelled, time.Second, time.Time{}))
}
