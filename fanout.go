package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/creastat/flow/core"
)

// ResultHandler consumes primed cycle results
type ResultHandler[S core.Stamp] func(ctx context.Context, result Result[S]) error

// FanOutConfig configures result delivery to several handlers
type FanOutConfig[S core.Stamp] struct {
	// ErrorPolicy determines behavior when a handler fails
	ErrorPolicy core.ErrorPolicy

	// Handlers receive every delivered result, each on its own goroutine
	Handlers []ResultHandler[S]
}

// FanOut delivers each result to every handler concurrently
type FanOut[S core.Stamp] struct {
	config *FanOutConfig[S]

	mu       sync.Mutex
	failed   []bool
	errs     []error
	canceled bool
}

// NewFanOut creates a fan-out
func NewFanOut[S core.Stamp](config *FanOutConfig[S]) (*FanOut[S], error) {
	if !config.ErrorPolicy.Valid() {
		return nil, fmt.Errorf("unknown error policy %q", config.ErrorPolicy)
	}
	return &FanOut[S]{
		config: config,
		failed: make([]bool, len(config.Handlers)),
	}, nil
}

// Deliver hands the result to every handler that has not failed and waits for them.
// Under cancel-all the first failure stops all further deliveries.
func (f *FanOut[S]) Deliver(ctx context.Context, result Result[S]) error {
	f.mu.Lock()
	if f.canceled {
		f.mu.Unlock()
		return errors.Join(f.errs...)
	}
	f.mu.Unlock()

	var wg sync.WaitGroup
	errorChan := make(chan error, len(f.config.Handlers))

	for i, handler := range f.config.Handlers {
		if f.isFailed(i) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler(ctx, result); err != nil {
				f.markFailed(i, err)
				errorChan <- fmt.Errorf("handler %d: %w", i, err)
			}
		}()
	}

	wg.Wait()
	close(errorChan)

	var errs []error
	for err := range errorChan {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}

	if f.config.ErrorPolicy == core.ErrorPolicyIsolated {
		// Failed handlers are skipped from now on, the others keep receiving results
		return errors.Join(errs...)
	}

	f.mu.Lock()
	f.canceled = true
	f.mu.Unlock()
	return errors.Join(errs...)
}

// Handler adapts the fan-out to Session.Run
func (f *FanOut[S]) Handler(ctx context.Context) func(Result[S]) error {
	return func(result Result[S]) error {
		err := f.Deliver(ctx, result)
		if err != nil && f.config.ErrorPolicy == core.ErrorPolicyIsolated && f.Active() > 0 {
			return nil
		}
		return err
	}
}

// Active returns the number of handlers still receiving results
func (f *FanOut[S]) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.canceled {
		return 0
	}
	active := 0
	for _, failed := range f.failed {
		if !failed {
			active++
		}
	}
	return active
}

// Errors returns every handler error seen so far
func (f *FanOut[S]) Errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]error(nil), f.errs...)
}

func (f *FanOut[S]) isFailed(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failed[i]
}

func (f *FanOut[S]) markFailed(i int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failed[i] = true
	f.errs = append(f.errs, err)
}
