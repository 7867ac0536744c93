package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/telemetry"
	"github.com/creastat/flow/protocol"
	"github.com/creastat/flow/queue"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketSourceConfig holds WebSocket source configuration
type WebSocketSourceConfig[S core.Stamp] struct {
	Conn      *websocket.Conn
	Registry  *Registry[S]
	SessionID string

	// CloseOnDisconnect closes every stream once the producer goes away
	CloseOnDisconnect bool

	Logger zerolog.Logger
}

// WebSocketSource reads input messages from a producer connection and injects them.
// Rejected messages are answered with an error message on the same connection.
type WebSocketSource[S core.Stamp] struct {
	config WebSocketSourceConfig[S]
	logger zerolog.Logger
}

// NewWebSocketSource creates a new WebSocket source
func NewWebSocketSource[S core.Stamp](config WebSocketSourceConfig[S]) *WebSocketSource[S] {
	return &WebSocketSource[S]{
		config: config,
		logger: telemetry.WithModule(config.Logger, "websocket_source").With().
			Str("session_id", config.SessionID).Logger(),
	}
}

// Run reads until the connection closes or ctx is done
func (ws *WebSocketSource[S]) Run(ctx context.Context) error {
	ws.logger.Info().Msg("starting websocket source")

	stop := context.AfterFunc(ctx, func() {
		ws.config.Conn.Close()
	})
	defer stop()

	if ws.config.CloseOnDisconnect {
		defer ws.config.Registry.CloseAll()
	}

	for {
		mt, data, err := ws.config.Conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				ws.logger.Info().Msg("websocket source context cancelled")
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Info().Msg("producer disconnected")
				return nil
			}
			ws.logger.Error().Err(err).Msg("failed to read from websocket")
			return err
		}
		if mt != websocket.TextMessage {
			ws.logger.Debug().Int("message_type", mt).Msg("skipping non-text frame")
			continue
		}

		msg, err := protocol.Decode[S](data)
		if err != nil {
			ws.reject("", protocol.ErrorCodeInvalidMessage, err)
			continue
		}

		if err := ws.config.Registry.Handle(msg); err != nil {
			ws.reject(msg.ID, ErrorCode(err), err)
			continue
		}
		ws.logger.Debug().Str("type", string(msg.Type)).Str("stream", msg.Stream).Msg("message applied")
	}
}

func (ws *WebSocketSource[S]) reject(replyTo, code string, err error) {
	ws.logger.Warn().Err(err).Str("code", code).Msg("message rejected")

	reply := protocol.NewErrorMessage(ws.config.SessionID, replyTo, code, err.Error(), false, nil)
	data, err := json.Marshal(reply)
	if err != nil {
		ws.logger.Error().Err(err).Msg("failed to marshal error message")
		return
	}
	if err := ws.config.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.logger.Error().Err(err).Msg("failed to send error message")
	}
}

// ErrorCode maps an injection error to a protocol error code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownStream):
		return protocol.ErrorCodeUnknownStream
	case errors.Is(err, queue.ErrRejected), errors.Is(err, queue.ErrDuplicateStamp), errors.Is(err, queue.ErrClosed):
		return protocol.ErrorCodeRejected
	default:
		// Malformed payloads
		return protocol.ErrorCodeInvalidMessage
	}
}
