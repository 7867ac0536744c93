package protocol

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
)

// ResultToMessage converts a cycle result to an output message. Streams is only
// attached to primed cycles.
func ResultToMessage[S core.Stamp](result flow.Result[S], sessionID string, streams map[string][]DispatchPayload[S]) *OutputMessage {
	msg := &OutputMessage{
		ID:        generateMessageID(),
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}

	payload := TuplePayload[S]{
		Lower: result.Range.Lower,
		Upper: result.Range.Upper,
		Next:  result.Next,
	}

	switch result.State {
	case core.StatePrimed:
		msg.Type = OutputCyclePrimed
		payload.Streams = streams
	case core.StateAbort:
		msg.Type = OutputCycleAbort
	case core.StateTimeout:
		msg.Type = OutputCycleTimeout
	default:
		return nil
	}

	msg.Payload = payload
	return msg
}

// NewStatusMessage creates a session.status message
func NewStatusMessage[S core.Stamp](sessionID string, lower S, stats flow.SessionStats, streams []StreamStatus) *OutputMessage {
	return &OutputMessage{
		Type:      OutputStatus,
		ID:        generateMessageID(),
		SessionID: sessionID,
		Payload: StatusPayload[S]{
			LowerBound: lower,
			Cycles:     stats.Cycles,
			Primed:     stats.Primed,
			Aborted:    stats.Aborted,
			TimedOut:   stats.TimedOut,
			Streams:    streams,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, replyTo, code, message string, retryable bool, details any) *OutputMessage {
	return &OutputMessage{
		Type:      OutputError,
		ID:        generateMessageID(),
		SessionID: sessionID,
		ReplyTo:   replyTo,
		Payload: ErrorPayload{
			Code:      code,
			Message:   message,
			Retryable: retryable,
			Details:   details,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

var messageSeq atomic.Uint64

// generateMessageID generates a unique message ID
func generateMessageID() string {
	return fmt.Sprintf("msg-%s-%d", time.Now().Format("20060102150405.000000"), messageSeq.Add(1))
}
