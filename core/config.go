package core

import "fmt"

// ChunkConfig configures a driver that captures a fixed number of dispatches per cycle
type ChunkConfig struct {
	// Size is the number of dispatches captured per cycle
	Size int
}

// Validate checks the chunk configuration
func (c ChunkConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("chunk size must be at least 1, got %d", c.Size)
	}
	return nil
}

// ThrottledConfig configures a driver that captures at most one dispatch per period
type ThrottledConfig[S Stamp] struct {
	// Period is the minimum stamp difference between successive captures
	Period S
}

// Validate checks the throttling configuration
func (c ThrottledConfig[S]) Validate() error {
	if c.Period < 0 {
		return fmt.Errorf("throttle period must not be negative, got %v", c.Period)
	}
	return nil
}

// ClosestBeforeConfig configures a follower matching the latest dispatch before the reference
type ClosestBeforeConfig[S Stamp] struct {
	// Delay shifts the reference bound back from the driving range upper stamp
	Delay S

	// MaxGap is the largest allowed distance between the bound and the match.
	// Zero disables the check.
	MaxGap S
}

// Validate checks the closest-before configuration
func (c ClosestBeforeConfig[S]) Validate() error {
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %v", c.Delay)
	}
	if c.MaxGap < 0 {
		return fmt.Errorf("max gap must not be negative, got %v", c.MaxGap)
	}
	return nil
}

// CountBeforeConfig configures a follower capturing a fixed number of dispatches before the reference
type CountBeforeConfig[S Stamp] struct {
	// Count is the number of dispatches captured per cycle
	Count int

	// Delay shifts the reference bound back from the driving range upper stamp
	Delay S
}

// Validate checks the count-before configuration
func (c CountBeforeConfig[S]) Validate() error {
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", c.Count)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %v", c.Delay)
	}
	return nil
}

// LatchedConfig configures a follower that holds the last value of an infrequent stream
type LatchedConfig[S Stamp] struct {
	// MinPeriod is the minimum expected difference between dispatch stamps
	MinPeriod S
}

// Validate checks the latched configuration
func (c LatchedConfig[S]) Validate() error {
	if c.MinPeriod < 0 {
		return fmt.Errorf("min period must not be negative, got %v", c.MinPeriod)
	}
	return nil
}

// RangedConfig configures a follower capturing all dispatches spanning the driving range
type RangedConfig[S Stamp] struct {
	// Period is the expected input period, used when discarding data on abort
	Period S

	// Delay shifts the driving range back in time
	Delay S
}

// Validate checks the ranged configuration
func (c RangedConfig[S]) Validate() error {
	if c.Period < 0 {
		return fmt.Errorf("period must not be negative, got %v", c.Period)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %v", c.Delay)
	}
	return nil
}
