package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/telemetry"
	"github.com/creastat/flow/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketSinkConfig holds WebSocket sink configuration
type WebSocketSinkConfig struct {
	Conn      *websocket.Conn
	SessionID string
	Logger    zerolog.Logger
}

// WebSocketSink writes output messages to a consumer connection
type WebSocketSink struct {
	config WebSocketSinkConfig
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewWebSocketSink creates a new WebSocket sink
func NewWebSocketSink(config WebSocketSinkConfig) *WebSocketSink {
	return &WebSocketSink{
		config: config,
		logger: telemetry.WithModule(config.Logger, "websocket_sink").With().
			Str("session_id", config.SessionID).Logger(),
	}
}

// Send writes one message as a text frame
func (ws *WebSocketSink) Send(msg *protocol.OutputMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		ws.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to marshal message")
		return err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err := ws.config.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to send message to websocket")
		return err
	}
	ws.logger.Debug().Str("type", string(msg.Type)).Msg("sent message to websocket")
	return nil
}

// Close sends a close frame and closes the connection
func (ws *WebSocketSink) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	_ = ws.config.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return ws.config.Conn.Close()
}

// Hub broadcasts cycle results to every attached sink. Sinks failing a write are detached.
type Hub[S core.Stamp] struct {
	registry  *Registry[S]
	sessionID string
	logger    zerolog.Logger

	mu    sync.Mutex
	sinks map[*WebSocketSink]struct{}
}

// NewHub creates a hub reading captured tuples from registry
func NewHub[S core.Stamp](registry *Registry[S], sessionID string, logger zerolog.Logger) *Hub[S] {
	return &Hub[S]{
		registry:  registry,
		sessionID: sessionID,
		logger:    telemetry.WithModule(logger, "hub"),
		sinks:     make(map[*WebSocketSink]struct{}),
	}
}

// Attach adds a sink
func (h *Hub[S]) Attach(sink *WebSocketSink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sinks[sink] = struct{}{}
}

// Detach removes a sink
func (h *Hub[S]) Detach(sink *WebSocketSink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sinks, sink)
}

// Len returns the number of attached sinks
func (h *Hub[S]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.sinks)
}

// Deliver is a flow.ResultHandler broadcasting the result with the captured tuple
func (h *Hub[S]) Deliver(_ context.Context, result flow.Result[S]) error {
	var tuple map[string][]protocol.DispatchPayload[S]
	if result.State == core.StatePrimed {
		tuple = h.registry.Tuple()
	}
	msg := protocol.ResultToMessage(result, h.sessionID, tuple)
	if msg == nil {
		return nil
	}
	return h.Broadcast(msg)
}

// Broadcast sends msg to every attached sink
func (h *Hub[S]) Broadcast(msg *protocol.OutputMessage) error {
	h.mu.Lock()
	sinks := make([]*WebSocketSink, 0, len(h.sinks))
	for sink := range h.sinks {
		sinks = append(sinks, sink)
	}
	h.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Send(msg); err != nil {
			h.logger.Warn().Err(err).Msg("detaching consumer")
			h.Detach(sink)
		}
	}
	return nil
}
