package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/telemetry"
	"github.com/creastat/flow/protocol"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownStream   = errors.New("unknown stream")
	ErrDuplicateStream = errors.New("stream already registered")
)

// Stream is a captor reachable by name whose values arrive JSON encoded
type Stream[S core.Stamp] interface {
	Name() string
	Role() core.Role

	// Output is the binding handed to the synchronizer
	Output() flow.Output[S]

	// Inject decodes payload into the stream's value type and queues it
	Inject(stamp S, payload json.RawMessage) error
	Close()

	// Captured returns what the last primed cycle captured from this stream
	Captured() []protocol.DispatchPayload[S]
	Status() protocol.StreamStatus
}

type boundStream[S core.Stamp, V any] struct {
	captor *flow.Captor[S, V]
	out    []core.Dispatch[S, V]
	output flow.Output[S]
}

// Bind exposes a captor as a stream
func Bind[S core.Stamp, V any](c *flow.Captor[S, V]) Stream[S] {
	b := &boundStream[S, V]{captor: c}
	b.output = flow.Into(c, &b.out)
	return b
}

func (b *boundStream[S, V]) Name() string           { return b.captor.Name() }
func (b *boundStream[S, V]) Role() core.Role        { return b.captor.Role() }
func (b *boundStream[S, V]) Output() flow.Output[S] { return b.output }
func (b *boundStream[S, V]) Close()                 { b.captor.Close() }

func (b *boundStream[S, V]) Inject(stamp S, payload json.RawMessage) error {
	var value V
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &value); err != nil {
			return fmt.Errorf("stream %q: decode payload: %w", b.Name(), err)
		}
	}
	return b.captor.Inject(stamp, value)
}

func (b *boundStream[S, V]) Captured() []protocol.DispatchPayload[S] {
	captured := make([]protocol.DispatchPayload[S], len(b.out))
	for i, d := range b.out {
		captured[i] = protocol.DispatchPayload[S]{Stamp: d.Stamp, Value: d.Value}
	}
	return captured
}

func (b *boundStream[S, V]) Status() protocol.StreamStatus {
	return protocol.StreamStatus{
		Name:    b.Name(),
		Role:    b.Role(),
		Queued:  b.captor.Size(),
		Evicted: b.captor.Evicted(),
		Closed:  b.captor.Closed(),
	}
}

// RegistryConfig holds registry configuration
type RegistryConfig struct {
	Logger zerolog.Logger
}

// Registry routes input messages to named streams
type Registry[S core.Stamp] struct {
	mu      sync.RWMutex
	streams map[string]Stream[S]
	order   []string
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry[S core.Stamp](config RegistryConfig) *Registry[S] {
	return &Registry[S]{
		streams: make(map[string]Stream[S]),
		order:   make([]string, 0),
		logger:  telemetry.WithModule(config.Logger, "registry"),
	}
}

// Register adds a stream under its name
func (r *Registry[S]) Register(stream Stream[S]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := stream.Name()
	if _, exists := r.streams[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStream, name)
	}
	r.streams[name] = stream
	r.order = append(r.order, name)

	r.logger.Debug().Str("stream", name).Stringer("role", stream.Role()).Msg("stream registered")
	return nil
}

// Lookup returns the stream registered under name
func (r *Registry[S]) Lookup(name string) (Stream[S], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, ok := r.streams[name]
	return stream, ok
}

// Outputs returns the synchronizer outputs: drivers first, then followers, each in
// registration order
func (r *Registry[S]) Outputs() []flow.Output[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	outputs := make([]flow.Output[S], 0, len(r.order))
	for _, role := range []core.Role{core.RoleDriver, core.RoleFollower} {
		for _, name := range r.order {
			if stream := r.streams[name]; stream.Role() == role {
				outputs = append(outputs, stream.Output())
			}
		}
	}
	return outputs
}

// Handle applies one input message
func (r *Registry[S]) Handle(msg protocol.InputMessage[S]) error {
	stream, ok := r.Lookup(msg.Stream)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStream, msg.Stream)
	}

	switch msg.Type {
	case protocol.InputDispatch:
		return stream.Inject(msg.Stamp, msg.Payload)
	case protocol.InputStreamClose:
		stream.Close()
		return nil
	default:
		return &protocol.InvalidMessageError{Reason: "unknown message type " + string(msg.Type)}
	}
}

// Tuple collects what the last primed cycle captured, keyed by stream name
func (r *Registry[S]) Tuple() map[string][]protocol.DispatchPayload[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tuple := make(map[string][]protocol.DispatchPayload[S], len(r.streams))
	for name, stream := range r.streams {
		tuple[name] = stream.Captured()
	}
	return tuple
}

// CloseAll marks every stream as exhausted
func (r *Registry[S]) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stream := range r.streams {
		stream.Close()
	}
}

// Status reports every stream in registration order
func (r *Registry[S]) Status() []protocol.StreamStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make([]protocol.StreamStatus, 0, len(r.order))
	for _, name := range r.order {
		status = append(status, r.streams[name].Status())
	}
	return status
}
