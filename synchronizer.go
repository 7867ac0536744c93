package flow

import (
	"context"
	"time"

	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// SynchronizerConfig configures a synchronizer
type SynchronizerConfig struct {
	// PollInterval overrides the interval derived from the captors' lock policies.
	// It only applies when at least one captor can suspend.
	PollInterval time.Duration

	// ParallelAlign locates followers concurrently. Each follower owns its queue, so this
	// only pays off with many followers or expensive monitors.
	ParallelAlign bool

	Logger zerolog.Logger
}

// Result is the outcome of one synchronization cycle
type Result[S core.Stamp] struct {
	// State is the aggregate outcome of the cycle
	State core.State

	// Range is the driving range the cycle was aligned to; set on PRIMED and follower ABORT
	Range core.CaptureRange[S]

	// Next is the exclusive lower bound for the following cycle
	Next S
}

// Synchronizer drives one driver captor and any number of followers to jointly aligned captures
type Synchronizer[S core.Stamp] struct {
	config SynchronizerConfig
	logger zerolog.Logger
}

// NewSynchronizer creates a synchronizer
func NewSynchronizer[S core.Stamp](config SynchronizerConfig) *Synchronizer[S] {
	return &Synchronizer[S]{
		config: config,
		logger: telemetry.WithModule(config.Logger, "synchronizer"),
	}
}

// CaptureFromStart runs a cycle with the smallest possible lower bound
func (s *Synchronizer[S]) CaptureFromStart(ctx context.Context, outputs []Output[S], deadline time.Time) (Result[S], error) {
	return s.Capture(ctx, outputs, core.MinStamp[S](), deadline)
}

// Capture runs one drive, align and commit cycle.
//
// The driver only considers data newer than lowerBound. Followers are aligned to the range
// the driver establishes. Destinations are written only when every captor is PRIMED; on
// ABORT the offending driving range is discarded and Result.Next moves past it. RETRY waits
// for the next poll until the deadline, then reports TIMEOUT with every queue untouched.
// A zero deadline waits until ctx is done. Context cancellation is returned as an error.
func (s *Synchronizer[S]) Capture(ctx context.Context, outputs []Output[S], lowerBound S, deadline time.Time) (Result[S], error) {
	if err := ValidateOutputs(outputs); err != nil {
		return Result[S]{State: core.StateAbort, Next: lowerBound}, err
	}

	interval := s.pollInterval(outputs)
	polls := 0

	for {
		select {
		case <-ctx.Done():
			return Result[S]{State: core.StateTimeout, Next: lowerBound}, ctx.Err()
		default:
		}

		polls++
		result := s.attempt(outputs, lowerBound)

		switch result.State {
		case core.StatePrimed:
			s.logger.Debug().
				Interface("lower", result.Range.Lower).
				Interface("upper", result.Range.Upper).
				Int("polls", polls).
				Msg("cycle primed")
			return result, nil

		case core.StateAbort:
			s.logger.Debug().
				Interface("lower_bound", lowerBound).
				Interface("next", result.Next).
				Msg("cycle aborted")
			return result, nil
		}

		// RETRY
		if interval <= 0 {
			return result, nil
		}
		if !sleepPoll(ctx, interval, deadline) {
			if err := ctx.Err(); err != nil {
				return Result[S]{State: core.StateTimeout, Next: lowerBound}, err
			}
			s.logger.Debug().Interface("lower_bound", lowerBound).Int("polls", polls).Msg("cycle timed out")
			return Result[S]{State: core.StateTimeout, Next: lowerBound}, nil
		}
	}
}

// attempt performs one poll with every captor lock held
func (s *Synchronizer[S]) attempt(outputs []Output[S], lowerBound S) Result[S] {
	for _, out := range outputs {
		out.lockPolicy().Lock()
	}
	defer func() {
		for i := len(outputs) - 1; i >= 0; i-- {
			outputs[i].lockPolicy().Unlock()
		}
	}()

	driver, followers := outputs[0], outputs[1:]

	// Drive
	rng := core.CaptureRange[S]{Lower: lowerBound, Upper: lowerBound}
	switch driver.locate(&rng) {
	case core.StateRetry:
		return Result[S]{State: core.StateRetry, Next: lowerBound}
	case core.StateAbort:
		for _, out := range outputs {
			out.abort(lowerBound)
		}
		return Result[S]{State: core.StateAbort, Next: lowerBound}
	}

	// Align
	states := s.align(followers, rng)
	aggregate := core.StatePrimed
	for _, state := range states {
		if state == core.StateAbort {
			aggregate = core.StateAbort
			break
		}
		if state == core.StateRetry {
			aggregate = core.StateRetry
		}
	}

	switch aggregate {
	case core.StateRetry:
		for _, out := range outputs {
			out.discard()
		}
		return Result[S]{State: core.StateRetry, Range: rng, Next: lowerBound}

	case core.StateAbort:
		for _, out := range outputs {
			out.discard()
			out.abort(rng.Upper)
		}
		return Result[S]{State: core.StateAbort, Range: rng, Next: rng.Upper}
	}

	// Commit
	for _, out := range outputs {
		out.commit()
	}
	return Result[S]{State: core.StatePrimed, Range: rng, Next: rng.Upper}
}

func (s *Synchronizer[S]) align(followers []Output[S], rng core.CaptureRange[S]) []core.State {
	states := make([]core.State, len(followers))

	if !s.config.ParallelAlign || len(followers) < 2 {
		for i, f := range followers {
			r := rng
			states[i] = f.locate(&r)
		}
		return states
	}

	var wg conc.WaitGroup
	for i, f := range followers {
		wg.Go(func() {
			r := rng
			states[i] = f.locate(&r)
		})
	}
	wg.Wait()
	return states
}

// pollInterval picks the shortest interval among captors able to suspend
func (s *Synchronizer[S]) pollInterval(outputs []Output[S]) time.Duration {
	var interval time.Duration
	for _, out := range outputs {
		p := out.lockPolicy().PollInterval()
		if p > 0 && (interval == 0 || p < interval) {
			interval = p
		}
	}
	if interval > 0 && s.config.PollInterval > 0 {
		interval = s.config.PollInterval
	}
	return interval
}
