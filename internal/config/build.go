package config

import (
	"encoding/json"
	"fmt"

	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/driver"
	"github.com/creastat/flow/follower"
	"github.com/creastat/flow/queue"
	"github.com/creastat/flow/transport"
	"github.com/rs/zerolog"
)

// Stamp is the stamp type of configured sessions
type Stamp = int64

// Value is the payload type of configured streams; values are kept as raw JSON
type Value = json.RawMessage

// Runtime is a session assembled from configuration
type Runtime struct {
	Registry *transport.Registry[Stamp]
	Session  *flow.Session[Stamp]
}

// Build creates the streams and the session described by the configuration
func (c *Config) Build(logger zerolog.Logger) (*Runtime, error) {
	registry := transport.NewRegistry[Stamp](transport.RegistryConfig{Logger: logger})

	driverPolicy, err := c.Driver.driverPolicy()
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", c.Driver.Name, err)
	}
	if err := registry.Register(transport.Bind(c.captor(c.Driver.Name, driverPolicy, logger))); err != nil {
		return nil, err
	}

	for _, f := range c.Followers {
		policy, err := f.followerPolicy()
		if err != nil {
			return nil, fmt.Errorf("follower %q: %w", f.Name, err)
		}
		if err := registry.Register(transport.Bind(c.captor(f.Name, policy, logger))); err != nil {
			return nil, err
		}
	}

	synchronizer := flow.NewSynchronizer[Stamp](flow.SynchronizerConfig{
		PollInterval:  c.Session.PollInterval(),
		ParallelAlign: c.Session.ParallelAlign,
		Logger:        logger,
	})
	session, err := flow.NewSession(synchronizer, registry.Outputs()...)
	if err != nil {
		return nil, err
	}

	return &Runtime{Registry: registry, Session: session}, nil
}

func (c *Config) captor(name string, policy flow.Policy[Stamp, Value], logger zerolog.Logger) *flow.Captor[Stamp, Value] {
	var lock flow.LockPolicy = flow.NoLock{}
	if c.Lock.Mode == LockPolling {
		lock = flow.NewPollingLock(nil, c.Lock.PollInterval())
	}

	duplicates := queue.DuplicatesAllow
	if c.Queue.Duplicates == "reject" {
		duplicates = queue.DuplicatesReject
	}

	return flow.NewCaptor(policy, flow.CaptorConfig[Stamp, Value]{
		Name:       name,
		Lock:       lock,
		Monitor:    c.monitor(),
		Duplicates: duplicates,
		Logger:     logger,
	})
}

func (c *Config) monitor() queue.Monitor[Stamp, Value] {
	var monitors []queue.Monitor[Stamp, Value]
	if c.Queue.MaxAge > 0 {
		monitors = append(monitors, queue.MaxAgeMonitor[Stamp, Value]{MaxAge: c.Queue.MaxAge})
	}
	if c.Queue.MaxDepth > 0 {
		monitors = append(monitors, queue.MaxDepthMonitor[Stamp, Value]{Depth: c.Queue.MaxDepth})
	}
	if len(monitors) == 0 {
		return nil
	}
	return queue.Chain(monitors...)
}

func (s StreamConfig) driverPolicy() (flow.Policy[Stamp, Value], error) {
	switch s.Policy {
	case PolicyNext:
		return driver.NewNext[Stamp, Value](), nil
	case PolicyChunk:
		return driver.NewChunk[Stamp, Value](core.ChunkConfig{Size: s.Size})
	case PolicyThrottled:
		return driver.NewThrottled[Stamp, Value](core.ThrottledConfig[Stamp]{Period: s.Period})
	default:
		return nil, fmt.Errorf("unknown driver policy %q", s.Policy)
	}
}

func (s StreamConfig) followerPolicy() (flow.Policy[Stamp, Value], error) {
	switch s.Policy {
	case PolicyClosestBefore:
		return follower.NewClosestBefore[Stamp, Value](core.ClosestBeforeConfig[Stamp]{Delay: s.Delay, MaxGap: s.MaxGap})
	case PolicyCountBefore:
		return follower.NewCountBefore[Stamp, Value](core.CountBeforeConfig[Stamp]{Count: s.Count, Delay: s.Delay})
	case PolicyLatched:
		return follower.NewLatched[Stamp, Value](core.LatchedConfig[Stamp]{MinPeriod: s.MinPeriod})
	case PolicyRanged:
		return follower.NewRanged[Stamp, Value](core.RangedConfig[Stamp]{Period: s.Period, Delay: s.Delay})
	default:
		return nil, fmt.Errorf("unknown follower policy %q", s.Policy)
	}
}
