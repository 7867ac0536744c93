package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creastat/flow/internal/config"
	"github.com/creastat/flow/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v = viper.New()

	// configErr holds a failure reading an explicitly requested config file
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "flowsync",
	Short: "Align timestamped streams into synchronized tuples",
	Long: `Flowsync buffers several independently timestamped streams and emits
aligned tuples: one driving stream sets the reference range of every cycle
and each follower stream contributes the data its capture policy selects.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/flowsync/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	config.SetDefaults(v)
	configErr = nil

	cfgFile := v.GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FLOWSYNC")
	// e.g. FLOWSYNC_SESSION_TIMEOUT_MS for session.timeout_ms
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists (ignore error if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("failed to read config file: %w", err)
		}
	}
}

// loadConfig loads and validates the configuration and builds the logger
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	if configErr != nil {
		return nil, zerolog.Nop(), configErr
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}

	logger := telemetry.New(telemetry.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}
