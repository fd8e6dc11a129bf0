package config

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	rterrors "github.com/Iron-Ham/roundtable/internal/errors"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "run.min_iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Is reports configuration failures as ErrInvalidConfig.
func (e ValidationError) Is(target error) bool {
	return target == rterrors.ErrInvalidConfig
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports configuration failures as ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == rterrors.ErrInvalidConfig
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateWorkspace()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validateRun validates the RunConfig
func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError
	r := c.Run

	if r.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.max_iterations",
			Value:   r.MaxIterations,
			Message: "must be at least 1",
		})
	}

	if r.MinIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.min_iterations",
			Value:   r.MinIterations,
			Message: "must be at least 1",
		})
	} else if r.MaxIterations >= 1 && r.MinIterations > r.MaxIterations {
		errors = append(errors, ValidationError{
			Field:   "run.min_iterations",
			Value:   r.MinIterations,
			Message: fmt.Sprintf("cannot exceed run.max_iterations (%d)", r.MaxIterations),
		})
	}

	if !(r.ConsensusThreshold >= 0 && r.ConsensusThreshold <= 1) {
		errors = append(errors, ValidationError{
			Field:   "run.consensus_threshold",
			Value:   r.ConsensusThreshold,
			Message: "must be between 0 and 1",
		})
	}

	if r.InvocationTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.invocation_timeout_seconds",
			Value:   r.InvocationTimeoutSeconds,
			Message: "must be non-negative (0 = no timeout)",
		})
	}

	const maxRetriesLimit = 10
	if r.MaxRetries < 0 || r.MaxRetries > maxRetriesLimit {
		errors = append(errors, ValidationError{
			Field:   "run.max_retries",
			Value:   r.MaxRetries,
			Message: fmt.Sprintf("must be between 0 and %d", maxRetriesLimit),
		})
	}

	if r.HistoryLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.history_limit",
			Value:   r.HistoryLimit,
			Message: "must be non-negative (0 = unbounded)",
		})
	}

	return errors
}

// validateAgents validates the configured roster. An empty roster is valid
// and selects the built-in one.
func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError
	seen := make(map[string]bool)

	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d].role", i)
		role := strings.TrimSpace(a.Role)
		if role == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   a.Role,
				Message: "must not be empty",
			})
			continue
		}
		key := strings.ToLower(role)
		if seen[key] {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   a.Role,
				Message: "duplicate role",
			})
		}
		seen[key] = true
	}

	return errors
}

// validateBackend validates the BackendConfig
func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError
	b := c.Backend

	if !slices.Contains(ValidBackendKinds(), b.Kind) {
		errors = append(errors, ValidationError{
			Field:   "backend.kind",
			Value:   b.Kind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackendKinds(), ", ")),
		})
		return errors
	}

	switch b.Kind {
	case BackendCommand:
		if strings.TrimSpace(b.Command) == "" {
			errors = append(errors, ValidationError{
				Field:   "backend.command",
				Value:   b.Command,
				Message: "is required for the command backend",
			})
		}
	case BackendScript:
		if strings.TrimSpace(b.ScriptFile) == "" {
			errors = append(errors, ValidationError{
				Field:   "backend.script_file",
				Value:   b.ScriptFile,
				Message: "is required for the script backend",
			})
		}
	case BackendAnthropic, BackendOpenAI:
		if b.MaxTokens <= 0 {
			errors = append(errors, ValidationError{
				Field:   "backend.max_tokens",
				Value:   b.MaxTokens,
				Message: "must be positive",
			})
		}
	}

	return errors
}

// validateWorkspace validates the WorkspaceConfig
func (c *Config) validateWorkspace() []ValidationError {
	var errors []ValidationError
	w := c.Workspace

	suffix := w.BackupSuffix
	if suffix == "" || strings.ContainsAny(suffix, "/\\") || strings.TrimSpace(suffix) != suffix {
		errors = append(errors, ValidationError{
			Field:   "workspace.backup_suffix",
			Value:   suffix,
			Message: "must be a non-empty file name suffix without separators or surrounding spaces",
		})
	}

	if w.MaxFileBytes < 0 {
		errors = append(errors, ValidationError{
			Field:   "workspace.max_file_bytes",
			Value:   w.MaxFileBytes,
			Message: "must be non-negative (0 = no limit)",
		})
	}

	for i, pattern := range w.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("workspace.ignore[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	for i, phrase := range w.CompletionPhrases {
		if strings.TrimSpace(phrase) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("workspace.completion_phrases[%d]", i),
				Value:   phrase,
				Message: "must not be blank",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError
	dir := c.Paths.StateDir

	if strings.TrimSpace(dir) == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   dir,
			Message: "must not be empty",
		})
		return errors
	}

	if strings.ContainsRune(dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   dir,
			Message: "contains invalid null character",
		})
	}

	if cleaned := path.Clean(strings.ReplaceAll(dir, "\\", "/")); cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   dir,
			Message: "must name a directory inside the project root or an absolute path",
		})
	}

	return errors
}
