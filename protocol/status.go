package protocol

import "github.com/creastat/flow/core"

// StreamStatus describes one stream of a session
type StreamStatus struct {
	Name    string    `json:"name"`
	Role    core.Role `json:"role"`
	Queued  int       `json:"queued"`  // Dispatches waiting for capture
	Evicted uint64    `json:"evicted"` // Dispatches dropped by the queue monitor
	Closed  bool      `json:"closed"`
}

// StatusPayload for session.status messages
type StatusPayload[S core.Stamp] struct {
	LowerBound S              `json:"lowerBound"`
	Cycles     uint64         `json:"cycles"`
	Primed     uint64         `json:"primed"`
	Aborted    uint64         `json:"aborted"`
	TimedOut   uint64         `json:"timedOut"`
	Streams    []StreamStatus `json:"streams"`
}
