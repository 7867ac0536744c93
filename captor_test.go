package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) Role() core.Role {
	return m.Called().Get(0).(core.Role)
}

func (m *MockPolicy) Locate(q *queue.DispatchQueue[int, string], rng *core.CaptureRange[int]) (Selection[int, string], core.State) {
	args := m.Called(q, rng)
	return args.Get(0).(Selection[int, string]), args.Get(1).(core.State)
}

func (m *MockPolicy) Commit(sel Selection[int, string]) {
	m.Called(sel)
}

func (m *MockPolicy) Abort(q *queue.DispatchQueue[int, string], t int) {
	m.Called(q, t)
}

func (m *MockPolicy) Reset() {
	m.Called()
}

func newMockCaptor(t *testing.T, lock LockPolicy, stamps ...int) (*Captor[int, string], *MockPolicy) {
	t.Helper()

	policy := &MockPolicy{}
	policy.On("Role").Return(core.RoleFollower).Maybe()

	c := NewCaptor[int, string](policy, CaptorConfig[int, string]{Name: "mock", Lock: lock})
	for _, s := range stamps {
		require.NoError(t, c.Inject(s, "v"))
	}
	return c, policy
}

func TestCaptorCommitsPrimedSelection(t *testing.T) {
	c, policy := newMockCaptor(t, nil, 1, 2, 3)

	sel := Selection[int, string]{
		Dispatches: []core.Dispatch[int, string]{core.NewDispatch(2, "v")},
		Drop:       2,
	}
	policy.On("Locate", mock.Anything, mock.Anything).Return(sel, core.StatePrimed).Once()
	policy.On("Commit", sel).Once()

	out := []core.Dispatch[int, string]{core.NewDispatch(-1, "old"), core.NewDispatch(-2, "old")}
	state := c.Capture(&out, &core.CaptureRange[int]{Lower: 2, Upper: 2})

	assert.Equal(t, core.StatePrimed, state)
	assert.Equal(t, sel.Dispatches, out)
	assert.Equal(t, 1, c.Size())
	policy.AssertExpectations(t)
}

func TestCaptorLeavesQueueUnlessPrimed(t *testing.T) {
	for _, state := range []core.State{core.StateRetry, core.StateAbort} {
		t.Run(state.String(), func(t *testing.T) {
			c, policy := newMockCaptor(t, nil, 1, 2, 3)
			policy.On("Locate", mock.Anything, mock.Anything).Return(Selection[int, string]{Drop: 3}, state).Once()

			out := []core.Dispatch[int, string]{core.NewDispatch(7, "kept")}
			assert.Equal(t, state, c.Capture(&out, &core.CaptureRange[int]{}))

			assert.Equal(t, 3, c.Size())
			assert.Equal(t, "kept", out[0].Value)
			policy.AssertNotCalled(t, "Commit", mock.Anything)
		})
	}
}

func TestCaptorCaptureUntilTimesOut(t *testing.T) {
	c, policy := newMockCaptor(t, NewPollingLock(nil, time.Millisecond))
	policy.On("Locate", mock.Anything, mock.Anything).Return(Selection[int, string]{}, core.StateRetry)

	start := time.Now()
	state := c.CaptureUntil(context.Background(), nil, &core.CaptureRange[int]{}, time.Now().Add(15*time.Millisecond))

	assert.Equal(t, core.StateTimeout, state)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Greater(t, len(policy.Calls), 2)
}

func TestCaptorCaptureUntilNoLockChecksOnce(t *testing.T) {
	c, policy := newMockCaptor(t, NoLock{})
	policy.On("Locate", mock.Anything, mock.Anything).Return(Selection[int, string]{}, core.StateRetry).Once()

	state := c.CaptureUntil(context.Background(), nil, &core.CaptureRange[int]{}, time.Now().Add(time.Hour))

	assert.Equal(t, core.StateRetry, state)
	policy.AssertExpectations(t)
}

func TestCaptorCaptureUntilCancelled(t *testing.T) {
	c, policy := newMockCaptor(t, NewPollingLock(nil, time.Millisecond))
	policy.On("Locate", mock.Anything, mock.Anything).Return(Selection[int, string]{}, core.StateRetry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, core.StateTimeout, c.CaptureUntil(ctx, nil, &core.CaptureRange[int]{}, time.Time{}))
}

func TestCaptorInsertErrors(t *testing.T) {
	policy := &MockPolicy{}
	policy.On("Role").Return(core.RoleDriver)

	c := NewCaptor[int, string](policy, CaptorConfig[int, string]{
		Duplicates: queue.DuplicatesReject,
	})
	assert.Equal(t, "driver", c.Name())

	require.NoError(t, c.Inject(1, "a"))
	assert.ErrorIs(t, c.Inject(1, "b"), queue.ErrDuplicateStamp)

	c.Close()
	assert.True(t, c.Closed())
	err := c.Inject(2, "c")
	assert.True(t, errors.Is(err, queue.ErrClosed))
	assert.Contains(t, err.Error(), `stream "driver"`)
}

func TestCaptorAbortAndReset(t *testing.T) {
	c, policy := newMockCaptor(t, nil, 1, 2, 3)
	policy.On("Abort", mock.Anything, 2).Once()
	policy.On("Reset").Once()

	c.Abort(2)
	c.Close()
	c.Reset()

	assert.Zero(t, c.Size())
	assert.False(t, c.Closed())
	_, ok := c.AvailableStampRange()
	assert.False(t, ok)
	policy.AssertExpectations(t)
}

func TestCaptorEvictionCount(t *testing.T) {
	policy := &MockPolicy{}
	policy.On("Role").Return(core.RoleFollower)

	c := NewCaptor[int, string](policy, CaptorConfig[int, string]{
		Monitor: queue.MaxDepthMonitor[int, string]{Depth: 2},
	})
	for s := range 5 {
		require.NoError(t, c.Inject(s, "v"))
	}

	assert.Equal(t, 2, c.Size())
	assert.Equal(t, uint64(3), c.Evicted())
	assert.Len(t, c.Peek(core.CaptureRange[int]{Lower: 0, Upper: 10}), 2)
}
