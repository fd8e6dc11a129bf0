package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/roundtable/internal/config"
)

// ErrUnknownBackend is returned when the configured backend is unsupported.
var ErrUnknownBackend = fmt.Errorf("unknown agent backend")

// ErrMissingAPIKey is returned when an API backend has no key to use.
var ErrMissingAPIKey = fmt.Errorf("missing API key")

// Default models for the API backends.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOpenAIModel    = "gpt-4.1"
)

// NewFromConfig builds the Invoker selected by cfg.Backend.
func NewFromConfig(cfg *config.Config) (Invoker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing config")
	}

	b := cfg.Backend
	switch strings.ToLower(b.Kind) {
	case config.BackendCommand, "":
		return NewCommandBackend(b.Command, b.Args...), nil
	case config.BackendAnthropic:
		return NewAnthropicBackend(b)
	case config.BackendOpenAI:
		return NewOpenAIBackend(b)
	case config.BackendScript:
		return LoadScript(b.ScriptFile)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, b.Kind)
	}
}

// apiKey reads the key from envName, or from fallback when envName is empty.
func apiKey(envName, fallback string) (string, error) {
	if envName == "" {
		envName = fallback
	}
	key := strings.TrimSpace(os.Getenv(envName))
	if key == "" {
		return "", fmt.Errorf("%w: set %s", ErrMissingAPIKey, envName)
	}
	return key, nil
}
