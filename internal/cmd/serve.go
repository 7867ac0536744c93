package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/config"
	"github.com/creastat/flow/protocol"
	"github.com/creastat/flow/transport"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live session over websockets",
	Long: `Serve runs one session fed and consumed over websockets:

  /ingest  producers send input messages (dispatch.inject, stream.close)
  /tuples  consumers receive one cycle.primed message per aligned tuple
  /status  current session counters and stream queues as JSON`,
	RunE: runServe,
}

var (
	serveAddr              string // Listen address
	serveCloseOnDisconnect bool   // Close all streams when a producer disconnects
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveCloseOnDisconnect, "close-on-disconnect", false, "close every stream when a producer disconnects")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := checkServeConfig(cfg); err != nil {
		return err
	}

	rt, err := cfg.Build(logger)
	if err != nil {
		return fmt.Errorf("failed to build session: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := transport.NewHub(rt.Registry, cfg.Session.ID, logger)
	server := &http.Server{
		Addr:              serveAddr,
		Handler:           newServeMux(ctx, cfg, rt, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fanOut, err := flow.NewFanOut(&flow.FanOutConfig[config.Stamp]{
		ErrorPolicy: core.ErrorPolicy(cfg.Session.ErrorPolicy),
		Handlers: []flow.ResultHandler[config.Stamp]{
			hub.Deliver,
			func(_ context.Context, result flow.Result[config.Stamp]) error {
				logger.Debug().Int64("upper", result.Range.Upper).Int("consumers", hub.Len()).Msg("tuple delivered")
				return nil
			},
		},
	})
	if err != nil {
		return err
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		logger.Info().Str("addr", serveAddr).Msg("listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	p.Go(func(ctx context.Context) error {
		err := rt.Session.Run(ctx, cfg.Session.Timeout(), fanOut.Handler(ctx))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil {
			logger.Info().Msg("all streams exhausted")
		}
		return err
	})

	return p.Wait()
}

// checkServeConfig rejects settings that are unsafe with concurrent producers.
// Producers inject from connection goroutines while the session captures on its own.
func checkServeConfig(cfg *config.Config) error {
	if cfg.Lock.Mode == config.LockNone {
		return fmt.Errorf("invalid configuration: lock.mode %q is single threaded, serve requires %q",
			config.LockNone, config.LockPolling)
	}
	return nil
}

func newServeMux(ctx context.Context, cfg *config.Config, rt *config.Runtime, hub *transport.Hub[config.Stamp], logger zerolog.Logger) *http.ServeMux {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/ingest", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("ingest upgrade failed")
			return
		}
		defer conn.Close()

		source := transport.NewWebSocketSource(transport.WebSocketSourceConfig[config.Stamp]{
			Conn:              conn,
			Registry:          rt.Registry,
			SessionID:         cfg.Session.ID,
			CloseOnDisconnect: serveCloseOnDisconnect,
			Logger:            logger,
		})
		if err := source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("producer connection failed")
		}
	})

	mux.HandleFunc("/tuples", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("tuples upgrade failed")
			return
		}

		sink := transport.NewWebSocketSink(transport.WebSocketSinkConfig{
			Conn:      conn,
			SessionID: cfg.Session.ID,
			Logger:    logger,
		})
		hub.Attach(sink)
		defer func() {
			hub.Detach(sink)
			_ = sink.Close()
		}()

		// Consumers only send control frames; reading processes them and notices disconnects
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		msg := protocol.NewStatusMessage(cfg.Session.ID, rt.Session.LowerBound(), rt.Session.Stats(), rt.Registry.Status())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(msg); err != nil {
			logger.Error().Err(err).Msg("failed to write status")
		}
	})

	return mux
}
