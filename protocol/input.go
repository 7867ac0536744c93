package protocol

import (
	"encoding/json"

	"github.com/creastat/flow/core"
)

// InputMessageType defines producer-to-server message types
type InputMessageType string

const (
	InputDispatch    InputMessageType = "dispatch.inject" // One stamped value for a stream
	InputStreamClose InputMessageType = "stream.close"    // Stream is exhausted
)

// InputMessage represents a message from a producer
type InputMessage[S core.Stamp] struct {
	Type      InputMessageType `json:"type"`
	ID        string           `json:"id,omitempty"` // Producer-generated message ID
	Stream    string           `json:"stream"`       // Target stream name
	Stamp     S                `json:"stamp"`
	Payload   json.RawMessage  `json:"payload,omitempty"` // Decoded into the stream's value type
	Timestamp int64            `json:"timestamp,omitempty"`
}

// Decode parses one JSON encoded input message
func Decode[S core.Stamp](data []byte) (InputMessage[S], error) {
	var msg InputMessage[S]
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	return msg, msg.Validate()
}

// Validate checks the message type and target stream
func (m InputMessage[S]) Validate() error {
	switch m.Type {
	case InputDispatch, InputStreamClose:
	default:
		return &InvalidMessageError{Reason: "unknown message type " + string(m.Type)}
	}
	if m.Stream == "" {
		return &InvalidMessageError{Reason: "missing stream"}
	}
	return nil
}

// InvalidMessageError reports a malformed input message
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return "invalid message: " + e.Reason
}
