package flow

import (
	"fmt"

	"github.com/creastat/flow/core"
)

// SessionBuilder constructs sessions with a fluent API
type SessionBuilder[S core.Stamp] struct {
	config    SynchronizerConfig
	driver    Output[S]
	followers []Output[S]
}

// NewBuilder creates a new session builder
func NewBuilder[S core.Stamp]() *SessionBuilder[S] {
	return &SessionBuilder[S]{
		followers: make([]Output[S], 0),
	}
}

// WithSynchronizer sets the synchronizer configuration
func (b *SessionBuilder[S]) WithSynchronizer(config SynchronizerConfig) *SessionBuilder[S] {
	b.config = config
	return b
}

// SetDriver sets the output that establishes the reference range
func (b *SessionBuilder[S]) SetDriver(out Output[S]) *SessionBuilder[S] {
	b.driver = out
	return b
}

// AddFollower adds an output aligned to the driver
func (b *SessionBuilder[S]) AddFollower(out Output[S]) *SessionBuilder[S] {
	b.followers = append(b.followers, out)
	return b
}

// Outputs returns the outputs in synchronization order
func (b *SessionBuilder[S]) Outputs() []Output[S] {
	outputs := make([]Output[S], 0, len(b.followers)+1)
	outputs = append(outputs, b.driver)
	return append(outputs, b.followers...)
}

// Build creates and validates the session
func (b *SessionBuilder[S]) Build() (*Session[S], error) {
	if b.driver == nil {
		return nil, fmt.Errorf("session must have a driver")
	}

	session, err := NewSession(NewSynchronizer[S](b.config), b.Outputs()...)
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	return session, nil
}
