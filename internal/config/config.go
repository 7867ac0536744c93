package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the flowsync configuration
type Config struct {
	Session   SessionConfig  `mapstructure:"session"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	Lock      LockConfig     `mapstructure:"lock"`
	Queue     QueueConfig    `mapstructure:"queue"`
	Driver    StreamConfig   `mapstructure:"driver"`
	Followers []StreamConfig `mapstructure:"followers"`
}

// SessionConfig controls the synchronization cycles
type SessionConfig struct {
	// ID is reported in every output message
	ID string `mapstructure:"id"`
	// TimeoutMs bounds one cycle; 0 waits indefinitely
	TimeoutMs int `mapstructure:"timeout_ms"`
	// PollIntervalMs overrides the lock polling interval for whole cycles
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// ParallelAlign locates followers concurrently
	ParallelAlign bool `mapstructure:"parallel_align"`
	// ErrorPolicy is cancel-all or isolated, applied to result consumers
	ErrorPolicy string `mapstructure:"error_policy"`
}

// LoggingConfig controls the zerolog logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LockConfig selects the captor lock policy
type LockConfig struct {
	// Mode is none or polling
	Mode           string `mapstructure:"mode"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`
}

// QueueConfig bounds every stream queue
type QueueConfig struct {
	// MaxDepth evicts the oldest dispatches beyond this many; 0 is unbounded
	MaxDepth int `mapstructure:"max_depth"`
	// MaxAge evicts dispatches older than the newest by more than this, in stamp units; 0 disables
	MaxAge int64 `mapstructure:"max_age"`
	// Duplicates is allow or reject
	Duplicates string `mapstructure:"duplicates"`
}

// StreamConfig describes one stream and its capture policy. Offsets are in stamp units.
type StreamConfig struct {
	Name   string `mapstructure:"name"`
	Policy string `mapstructure:"policy"`

	Size      int   `mapstructure:"size"`       // chunk
	Count     int   `mapstructure:"count"`      // count_before
	Period    int64 `mapstructure:"period"`     // throttled, ranged
	Delay     int64 `mapstructure:"delay"`      // closest_before, count_before, ranged
	MaxGap    int64 `mapstructure:"max_gap"`    // closest_before
	MinPeriod int64 `mapstructure:"min_period"` // latched
}

// Driver policies
const (
	PolicyNext      = "next"
	PolicyChunk     = "chunk"
	PolicyThrottled = "throttled"
)

// Follower policies
const (
	PolicyClosestBefore = "closest_before"
	PolicyCountBefore   = "count_before"
	PolicyLatched       = "latched"
	PolicyRanged        = "ranged"
)

// Lock modes
const (
	LockNone    = "none"
	LockPolling = "polling"
)

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			ID:        "flowsync",
			TimeoutMs: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Lock: LockConfig{
			Mode:           LockPolling,
			PollIntervalMs: 1,
		},
		Queue: QueueConfig{
			Duplicates: "allow",
		},
		Driver: StreamConfig{
			Name:   "driver",
			Policy: PolicyNext,
		},
	}
}

// Timeout returns the cycle timeout
func (c *SessionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// PollInterval returns the cycle polling override
func (c *SessionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// PollInterval returns the lock polling interval
func (c *LockConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SetDefaults registers the defaults with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Session defaults
	v.SetDefault("session.id", defaults.Session.ID)
	v.SetDefault("session.timeout_ms", defaults.Session.TimeoutMs)
	v.SetDefault("session.poll_interval_ms", defaults.Session.PollIntervalMs)
	v.SetDefault("session.parallel_align", defaults.Session.ParallelAlign)
	v.SetDefault("session.error_policy", defaults.Session.ErrorPolicy)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.pretty", defaults.Logging.Pretty)

	// Lock defaults
	v.SetDefault("lock.mode", defaults.Lock.Mode)
	v.SetDefault("lock.poll_interval_ms", defaults.Lock.PollIntervalMs)

	// Queue defaults
	v.SetDefault("queue.max_depth", defaults.Queue.MaxDepth)
	v.SetDefault("queue.max_age", defaults.Queue.MaxAge)
	v.SetDefault("queue.duplicates", defaults.Queue.Duplicates)

	// Driver defaults
	v.SetDefault("driver.name", defaults.Driver.Name)
	v.SetDefault("driver.policy", defaults.Driver.Policy)
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "flowsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowsync"
	}
	return filepath.Join(home, ".config", "flowsync")
}
