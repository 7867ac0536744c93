package core

import "fmt"

// State is the outcome of a capture attempt
type State int

const (
	// StatePrimed means the request was fully satisfied
	StatePrimed State = iota

	// StateRetry means there is not enough data yet; waiting may help
	StateRetry

	// StateAbort means the request can never be satisfied
	StateAbort

	// StateTimeout means the deadline elapsed before the request was satisfied
	StateTimeout
)

// String returns the lower case name of the state
func (s State) String() string {
	switch s {
	case StatePrimed:
		return "primed"
	case StateRetry:
		return "retry"
	case StateAbort:
		return "abort"
	case StateTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Role distinguishes the stream establishing the reference range from the streams aligned to it
type Role int

const (
	RoleDriver Role = iota
	RoleFollower
)

// String returns the lower case name of the role
func (r Role) String() string {
	switch r {
	case RoleDriver:
		return "driver"
	case RoleFollower:
		return "follower"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText encodes the role by name
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
