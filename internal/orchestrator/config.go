package orchestrator

import (
	"strings"
	"time"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/errors"
)

// DefaultConsensusThreshold is the fraction of agents that must signal
// completion in one iteration for the run to stop.
const DefaultConsensusThreshold = 0.70

// Config holds the parameters of one run.
type Config struct {
	Task string
	// Agents are invoked in ascending priority each iteration.
	Agents []agent.Descriptor

	MaxIterations int
	// MinIterations is the first iteration whose consensus is checked.
	MinIterations      int
	AutoStop           bool
	ConsensusThreshold float64

	// InvocationTimeout bounds each agent invocation. Zero means no timeout.
	InvocationTimeout time.Duration
	// MaxRetries is how many extra attempts a failed invocation gets.
	MaxRetries int
	// HistoryLimit caps the messages handed to each agent. Zero means all.
	HistoryLimit int

	WatchExternalChanges bool
}

// DefaultConfig returns a Config with the default roster and limits.
func DefaultConfig() Config {
	return Config{
		Agents:             agent.DefaultRoster(),
		MaxIterations:      5,
		MinIterations:      2,
		AutoStop:           true,
		ConsensusThreshold: DefaultConsensusThreshold,
		InvocationTimeout:  10 * time.Minute,
		HistoryLimit:       20,
	}
}

// ConfigFrom builds a run Config from the loaded configuration. An empty
// roster falls back to the agents section, then to the default roster.
func ConfigFrom(cfg *config.Config, task string, roster []agent.Descriptor) Config {
	if len(roster) == 0 {
		roster = agent.FromConfig(cfg.Agents)
	}
	if len(roster) == 0 {
		roster = agent.DefaultRoster()
	}
	return Config{
		Task:                 task,
		Agents:               roster,
		MaxIterations:        cfg.Run.MaxIterations,
		MinIterations:        cfg.Run.MinIterations,
		AutoStop:             cfg.Run.AutoStop,
		ConsensusThreshold:   cfg.Run.ConsensusThreshold,
		InvocationTimeout:    cfg.Run.InvocationTimeout(),
		MaxRetries:           cfg.Run.MaxRetries,
		HistoryLimit:         cfg.Run.HistoryLimit,
		WatchExternalChanges: cfg.Workspace.WatchExternalChanges,
	}
}

// Validate returns the first problem that makes the configuration unusable.
// Every error it returns matches errors.ErrInvalidConfig.
func (c Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return errors.NewValidationError(msg).
			WithField(field).
			WithValue(value).
			WithCause(errors.ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Task) == "" {
		return invalid("task", c.Task, "task is required")
	}
	if c.MaxIterations < 1 {
		return invalid("run.max_iterations", c.MaxIterations, "must be at least 1")
	}
	if c.MinIterations < 1 {
		return invalid("run.min_iterations", c.MinIterations, "must be at least 1")
	}
	if c.MinIterations > c.MaxIterations {
		return invalid("run.min_iterations", c.MinIterations, "must not exceed max_iterations")
	}
	// Written as a negated range so NaN is rejected too.
	if !(c.ConsensusThreshold >= 0 && c.ConsensusThreshold <= 1) {
		return invalid("run.consensus_threshold", c.ConsensusThreshold, "must be between 0 and 1")
	}
	if c.InvocationTimeout < 0 {
		return invalid("run.invocation_timeout_seconds", c.InvocationTimeout, "must not be negative")
	}
	if c.MaxRetries < 0 {
		return invalid("run.max_retries", c.MaxRetries, "must not be negative")
	}
	if c.HistoryLimit < 0 {
		return invalid("run.history_limit", c.HistoryLimit, "must not be negative")
	}
	return agent.ValidateRoster(c.Agents)
}
