package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/creastat/flow/core"
	"github.com/rs/zerolog"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "driver.size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// DriverPolicies returns the valid driver policy names
func DriverPolicies() []string {
	return []string{PolicyNext, PolicyChunk, PolicyThrottled}
}

// FollowerPolicies returns the valid follower policy names
func FollowerPolicies() []string {
	return []string{PolicyClosestBefore, PolicyCountBefore, PolicyLatched, PolicyRanged}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateQueue()...)
	errors = append(errors, c.validateStreams()...)

	return errors
}

func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.TimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.timeout_ms",
			Value:   c.Session.TimeoutMs,
			Message: "must not be negative",
		})
	}
	if c.Session.PollIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.poll_interval_ms",
			Value:   c.Session.PollIntervalMs,
			Message: "must not be negative",
		})
	}
	if !core.ErrorPolicy(c.Session.ErrorPolicy).Valid() {
		errors = append(errors, ValidationError{
			Field:   "session.error_policy",
			Value:   c.Session.ErrorPolicy,
			Message: fmt.Sprintf("must be one of: %s, %s", core.ErrorPolicyCancelAll, core.ErrorPolicyIsolated),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be a zerolog level such as debug, info, warn or error",
		}}
	}
	return nil
}

func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	if c.Lock.Mode != LockNone && c.Lock.Mode != LockPolling {
		errors = append(errors, ValidationError{
			Field:   "lock.mode",
			Value:   c.Lock.Mode,
			Message: fmt.Sprintf("must be one of: %s, %s", LockNone, LockPolling),
		})
	}
	if c.Lock.PollIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.poll_interval_ms",
			Value:   c.Lock.PollIntervalMs,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateQueue() []ValidationError {
	var errors []ValidationError

	if c.Queue.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "queue.max_depth",
			Value:   c.Queue.MaxDepth,
			Message: "must not be negative",
		})
	}
	if c.Queue.MaxAge < 0 {
		errors = append(errors, ValidationError{
			Field:   "queue.max_age",
			Value:   c.Queue.MaxAge,
			Message: "must not be negative",
		})
	}
	if c.Queue.Duplicates != "allow" && c.Queue.Duplicates != "reject" {
		errors = append(errors, ValidationError{
			Field:   "queue.duplicates",
			Value:   c.Queue.Duplicates,
			Message: "must be one of: allow, reject",
		})
	}

	return errors
}

func (c *Config) validateStreams() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(DriverPolicies(), c.Driver.Policy) {
		errors = append(errors, ValidationError{
			Field:   "driver.policy",
			Value:   c.Driver.Policy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(DriverPolicies(), ", ")),
		})
	}

	seen := map[string]bool{c.Driver.Name: true}
	if c.Driver.Name == "" {
		errors = append(errors, ValidationError{Field: "driver.name", Value: "", Message: "must not be empty"})
	}

	for i, f := range c.Followers {
		field := fmt.Sprintf("followers[%d]", i)
		if f.Name == "" {
			errors = append(errors, ValidationError{Field: field + ".name", Value: "", Message: "must not be empty"})
		} else if seen[f.Name] {
			errors = append(errors, ValidationError{Field: field + ".name", Value: f.Name, Message: "must be unique"})
		}
		seen[f.Name] = true

		if !slices.Contains(FollowerPolicies(), f.Policy) {
			errors = append(errors, ValidationError{
				Field:   field + ".policy",
				Value:   f.Policy,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(FollowerPolicies(), ", ")),
			})
		}
	}

	return errors
}
