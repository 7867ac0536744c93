package flow

import (
	"fmt"

	"github.com/creastat/flow/core"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Message string
	Details string
}

func (e ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ValidateOutputs checks that an output set can be synchronized: a driver first,
// followers after it, and no captor bound twice
func ValidateOutputs[S core.Stamp](outputs []Output[S]) error {
	if len(outputs) == 0 {
		return ValidationError{
			Message: "output validation failed",
			Details: "no outputs given",
		}
	}

	// Check for nil bindings
	for i, out := range outputs {
		if out == nil || out.captor() == nil {
			return ValidationError{
				Message: "output validation failed",
				Details: fmt.Sprintf("output %d has no captor", i),
			}
		}
	}

	// Check roles
	if err := checkRoles(outputs); err != nil {
		return err
	}

	// Check for captors bound more than once
	return checkDistinct(outputs)
}

// checkRoles requires exactly one driver in the first position
func checkRoles[S core.Stamp](outputs []Output[S]) error {
	if outputs[0].Role() != core.RoleDriver {
		return ValidationError{
			Message: "output validation failed",
			Details: fmt.Sprintf("first output %q must be a driver, got %s", outputs[0].Name(), outputs[0].Role()),
		}
	}

	for _, out := range outputs[1:] {
		if out.Role() != core.RoleFollower {
			return ValidationError{
				Message: "output validation failed",
				Details: fmt.Sprintf("output %q must be a follower, got %s", out.Name(), out.Role()),
			}
		}
	}

	return nil
}

// checkDistinct rejects outputs sharing a captor, which would lock it twice
func checkDistinct[S core.Stamp](outputs []Output[S]) error {
	seen := make(map[any]bool, len(outputs))
	for _, out := range outputs {
		c := out.captor()
		if seen[c] {
			return ValidationError{
				Message: "output validation failed",
				Details: fmt.Sprintf("stream %q is bound more than once", out.Name()),
			}
		}
		seen[c] = true
	}
	return nil
}
