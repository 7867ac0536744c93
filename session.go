package flow

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/flow/core"
	"github.com/rs/zerolog"
)

// SessionStats counts cycle outcomes
type SessionStats struct {
	Cycles   uint64
	Primed   uint64
	Retried  uint64
	Aborted  uint64
	TimedOut uint64
}

// Session carries the running lower bound between successive cycles of one output set
type Session[S core.Stamp] struct {
	sync    *Synchronizer[S]
	outputs []Output[S]
	logger  zerolog.Logger

	mu     sync.Mutex
	lower  S
	stats  SessionStats
	cancel context.CancelFunc
}

// NewSession creates a session starting at the smallest possible lower bound
func NewSession[S core.Stamp](synchronizer *Synchronizer[S], outputs ...Output[S]) (*Session[S], error) {
	if err := ValidateOutputs(outputs); err != nil {
		return nil, err
	}
	return &Session[S]{
		sync:    synchronizer,
		outputs: outputs,
		logger:  synchronizer.logger,
		lower:   core.MinStamp[S](),
	}, nil
}

// LowerBound returns the exclusive lower bound of the next cycle
func (s *Session[S]) LowerBound() S {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lower
}

// Stats returns a snapshot of the cycle counters
func (s *Session[S]) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Next runs one cycle bounded by timeout and advances the lower bound.
// A zero timeout waits until ctx is done.
func (s *Session[S]) Next(ctx context.Context, timeout time.Duration) (Result[S], error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	lower := s.LowerBound()
	result, err := s.sync.Capture(ctx, s.outputs, lower, deadline)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Cycles++
	switch result.State {
	case core.StatePrimed:
		s.stats.Primed++
	case core.StateRetry:
		s.stats.Retried++
	case core.StateAbort:
		s.stats.Aborted++
	case core.StateTimeout:
		s.stats.TimedOut++
	}

	if err == nil && result.Next > s.lower {
		s.lower = result.Next
	}
	return result, err
}

// Run repeats cycles and hands every primed result to handler. It stops when ctx is done,
// when the handler fails, or when the driver can make no further progress on closed streams.
func (s *Session[S]) Run(ctx context.Context, timeout time.Duration, handler func(Result[S]) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	for {
		lower := s.LowerBound()
		result, err := s.Next(runCtx, timeout)
		if err != nil {
			return err
		}

		switch result.State {
		case core.StatePrimed:
			if err := handler(result); err != nil {
				s.logger.Error().Err(err).Msg("result handler failed")
				return err
			}

		case core.StateAbort:
			// The driver itself could not produce a range and never will
			if result.Next == lower && s.outputs[0].closed() {
				s.logger.Debug().Msg("session exhausted")
				return nil
			}

		case core.StateRetry:
			// Captors without a polling lock never wait, so back off here
			if !sleepPoll(runCtx, DefaultPollInterval, time.Time{}) {
				return runCtx.Err()
			}

		case core.StateTimeout:
			s.logger.Debug().Interface("lower_bound", lower).Msg("no cycle within timeout")
		}
	}
}

// Cancel stops a running Run call
func (s *Session[S]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// Reset returns the session to its initial lower bound and resets every captor
func (s *Session[S]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, out := range s.outputs {
		out.reset()
	}
	s.lower = core.MinStamp[S]()
	s.stats = SessionStats{}
}
