package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/internal/config"
	"github.com/creastat/flow/protocol"
	"github.com/creastat/flow/transport"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded input messages through a session",
	Long: `Replay reads input messages, one JSON object per line, injects them into the
configured streams, closes every stream and runs cycles until the driver is
exhausted. Every aligned tuple is written as one JSON output message per line,
followed by a final session.status message. Recordings ending in .zst or .gz are
decompressed.

Input lines that cannot be applied are reported as error messages and skipped.`,
	RunE: runReplay,
}

var (
	replayInput string // Input file, - for stdin
)

func init() {
	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "-", "recorded input messages (JSON lines, optionally .zst or .gz), - for stdin")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := cfg.Build(logger)
	if err != nil {
		return fmt.Errorf("failed to build session: %w", err)
	}

	in, err := openInput(replayInput, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := inject(in, rt, cfg.Session.ID, enc); err != nil {
		return err
	}
	rt.Registry.CloseAll()

	fanOut, err := flow.NewFanOut(&flow.FanOutConfig[config.Stamp]{
		ErrorPolicy: core.ErrorPolicy(cfg.Session.ErrorPolicy),
		Handlers: []flow.ResultHandler[config.Stamp]{
			func(_ context.Context, result flow.Result[config.Stamp]) error {
				return enc.Encode(protocol.ResultToMessage(result, cfg.Session.ID, rt.Registry.Tuple()))
			},
		},
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := rt.Session.Run(ctx, cfg.Session.Timeout(), fanOut.Handler(ctx)); err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	stats := rt.Session.Stats()
	logger.Info().
		Uint64("cycles", stats.Cycles).
		Uint64("primed", stats.Primed).
		Uint64("aborted", stats.Aborted).
		Msg("replay finished")

	return enc.Encode(protocol.NewStatusMessage(cfg.Session.ID, rt.Session.LowerBound(), stats, rt.Registry.Status()))
}

// inject applies every input line, reporting rejected lines on enc
func inject(in io.Reader, rt *config.Runtime, sessionID string, enc *json.Encoder) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		msg, err := protocol.Decode[config.Stamp](data)
		if err == nil {
			err = rt.Registry.Handle(msg)
		}
		if err != nil {
			reply := protocol.NewErrorMessage(sessionID, msg.ID, transport.ErrorCode(err), err.Error(), false, map[string]int{"line": line})
			if err := enc.Encode(reply); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
