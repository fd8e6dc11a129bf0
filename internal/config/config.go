package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete roundtable configuration
type Config struct {
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Agents    []AgentConfig   `mapstructure:"agents" yaml:"agents"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
}

// RunConfig controls the iteration loop
type RunConfig struct {
	// MaxIterations is the hard cap on iterations per run (default: 5)
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	// MinIterations is the first iteration at which consensus is checked (default: 2)
	MinIterations int `mapstructure:"min_iterations" yaml:"min_iterations"`
	// AutoStop ends the run early once consensus is reached (default: true)
	AutoStop bool `mapstructure:"auto_stop" yaml:"auto_stop"`
	// ConsensusThreshold is the fraction of agents that must signal completion (default: 0.70)
	ConsensusThreshold float64 `mapstructure:"consensus_threshold" yaml:"consensus_threshold"`
	// InvocationTimeoutSeconds bounds a single agent invocation, 0 = no timeout (default: 600)
	InvocationTimeoutSeconds int `mapstructure:"invocation_timeout_seconds" yaml:"invocation_timeout_seconds"`
	// MaxRetries is how many times a failed invocation is retried within the same turn (default: 0)
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// HistoryLimit caps the conversation history handed to agents, 0 = unbounded (default: 20)
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
}

// AgentConfig describes one agent in the roster
type AgentConfig struct {
	Role         string `mapstructure:"role" yaml:"role"`
	Name         string `mapstructure:"name" yaml:"name,omitempty"`
	Priority     int    `mapstructure:"priority" yaml:"priority"`
	Instructions string `mapstructure:"instructions" yaml:"instructions,omitempty"`
}

// BackendConfig selects and configures the text-generation backend
type BackendConfig struct {
	// Kind is one of: command, anthropic, openai, script (default: "command")
	Kind string `mapstructure:"kind" yaml:"kind"`
	// Command is the executable for the command backend (default: "claude")
	Command string `mapstructure:"command" yaml:"command"`
	// Args are passed to Command; the prompt is written to stdin (default: ["--print"])
	Args []string `mapstructure:"args" yaml:"args"`
	// Model is the model name for the API backends
	Model string `mapstructure:"model" yaml:"model"`
	// APIKeyEnv names the environment variable holding the API key.
	// Empty uses the backend's conventional variable.
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
	// BaseURL overrides the API endpoint for the API backends
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	// MaxTokens bounds the API response length (default: 8192)
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
	// ScriptFile is the YAML script used by the script backend
	ScriptFile string `mapstructure:"script_file" yaml:"script_file"`
}

// WorkspaceConfig controls how the project directory is read and written
type WorkspaceConfig struct {
	// BackupSuffix is appended to a file's path to form its backup path (default: ".bak")
	BackupSuffix string `mapstructure:"backup_suffix" yaml:"backup_suffix"`
	// Ignore holds glob patterns excluded from the agent snapshot
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// MaxFileBytes skips larger files in the snapshot, 0 = no limit (default: 262144)
	MaxFileBytes int64 `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	// WatchExternalChanges records files modified outside the run (default: true)
	WatchExternalChanges bool `mapstructure:"watch_external_changes" yaml:"watch_external_changes"`
	// CompletionPhrases extends the built-in completion phrase list
	CompletionPhrases []string `mapstructure:"completion_phrases" yaml:"completion_phrases"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// PathsConfig controls where roundtable stores run data
type PathsConfig struct {
	// StateDir is the per-project directory holding run data, relative to the
	// project root (default: ".roundtable")
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// Backend kinds
const (
	BackendCommand   = "command"
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendScript    = "script"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Run: RunConfig{
			MaxIterations:            5,
			MinIterations:            2,
			AutoStop:                 true,
			ConsensusThreshold:       0.70,
			InvocationTimeoutSeconds: 600,
			MaxRetries:               0,
			HistoryLimit:             20,
		},
		Agents: []AgentConfig{},
		Backend: BackendConfig{
			Kind:      BackendCommand,
			Command:   "claude",
			Args:      []string{"--print"},
			MaxTokens: 8192,
		},
		Workspace: WorkspaceConfig{
			BackupSuffix:         ".bak",
			Ignore:               []string{},
			MaxFileBytes:         256 * 1024,
			WatchExternalChanges: true,
			CompletionPhrases:    []string{},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			StateDir: ".roundtable",
		},
	}
}

// InvocationTimeout returns the per-invocation timeout (0 means none)
func (c *RunConfig) InvocationTimeout() time.Duration {
	return time.Duration(c.InvocationTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Run defaults
	viper.SetDefault("run.max_iterations", defaults.Run.MaxIterations)
	viper.SetDefault("run.min_iterations", defaults.Run.MinIterations)
	viper.SetDefault("run.auto_stop", defaults.Run.AutoStop)
	viper.SetDefault("run.consensus_threshold", defaults.Run.ConsensusThreshold)
	viper.SetDefault("run.invocation_timeout_seconds", defaults.Run.InvocationTimeoutSeconds)
	viper.SetDefault("run.max_retries", defaults.Run.MaxRetries)
	viper.SetDefault("run.history_limit", defaults.Run.HistoryLimit)

	// Agents default to the built-in roster when empty
	viper.SetDefault("agents", defaults.Agents)

	// Backend defaults
	viper.SetDefault("backend.kind", defaults.Backend.Kind)
	viper.SetDefault("backend.command", defaults.Backend.Command)
	viper.SetDefault("backend.args", defaults.Backend.Args)
	viper.SetDefault("backend.model", defaults.Backend.Model)
	viper.SetDefault("backend.api_key_env", defaults.Backend.APIKeyEnv)
	viper.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	viper.SetDefault("backend.max_tokens", defaults.Backend.MaxTokens)
	viper.SetDefault("backend.script_file", defaults.Backend.ScriptFile)

	// Workspace defaults
	viper.SetDefault("workspace.backup_suffix", defaults.Workspace.BackupSuffix)
	viper.SetDefault("workspace.ignore", defaults.Workspace.Ignore)
	viper.SetDefault("workspace.max_file_bytes", defaults.Workspace.MaxFileBytes)
	viper.SetDefault("workspace.watch_external_changes", defaults.Workspace.WatchExternalChanges)
	viper.SetDefault("workspace.completion_phrases", defaults.Workspace.CompletionPhrases)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Paths defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
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
		return filepath.Join(xdg, "roundtable")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roundtable"
	}
	return filepath.Join(home, ".config", "roundtable")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ResolveStateDir returns the absolute state directory for a project root.
// An absolute StateDir is used as-is; ~ expands to the home directory.
func (p *PathsConfig) ResolveStateDir(root string) string {
	dir := p.StateDir
	if dir == "" {
		dir = Default().Paths.StateDir
	}

	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}

	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir
}

// ValidBackendKinds returns the list of valid backend kinds
func ValidBackendKinds() []string {
	return []string{BackendCommand, BackendAnthropic, BackendOpenAI, BackendScript}
}
