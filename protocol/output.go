package protocol

import "github.com/creastat/flow/core"

// OutputMessageType defines server-to-consumer message types
type OutputMessageType string

const (
	// Cycle outcomes
	OutputCyclePrimed  OutputMessageType = "cycle.primed"  // Aligned tuple
	OutputCycleAbort   OutputMessageType = "cycle.abort"   // Driving range skipped
	OutputCycleTimeout OutputMessageType = "cycle.timeout" // No tuple before the deadline

	// Session
	OutputStatus OutputMessageType = "session.status"

	// Errors
	OutputError OutputMessageType = "error"
)

// OutputMessage represents a message to a consumer
type OutputMessage struct {
	Type      OutputMessageType `json:"type"`
	ID        string            `json:"id"`                // Server-generated message ID
	SessionID string            `json:"sessionId"`         // Session identifier
	ReplyTo   string            `json:"replyTo,omitempty"` // ID of input message
	Payload   any               `json:"payload"`
	Timestamp int64             `json:"timestamp"`
}

// DispatchPayload is one captured dispatch
type DispatchPayload[S core.Stamp] struct {
	Stamp S   `json:"stamp"`
	Value any `json:"value"`
}

// TuplePayload for cycle messages
type TuplePayload[S core.Stamp] struct {
	Lower   S                               `json:"lower"`
	Upper   S                               `json:"upper"`
	Next    S                               `json:"next"`              // Lower bound of the following cycle
	Streams map[string][]DispatchPayload[S] `json:"streams,omitempty"` // Only on cycle.primed
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "INVALID_MESSAGE"
	ErrorCodeUnknownStream  = "UNKNOWN_STREAM"
	ErrorCodeRejected       = "DISPATCH_REJECTED"
	ErrorCodeSession        = "SESSION_ERROR"
)
