package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/logging"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
	"github.com/Iron-Ham/roundtable/internal/orchestrator/completion"
	"github.com/Iron-Ham/roundtable/internal/session"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// runFlagKeys maps the flags shared by run and batch to their config keys.
var runFlagKeys = map[string]string{
	"max-iterations": "run.max_iterations",
	"min-iterations": "run.min_iterations",
	"auto-stop":      "run.auto_stop",
	"threshold":      "run.consensus_threshold",
	"timeout":        "run.invocation_timeout_seconds",
	"retries":        "run.max_retries",
	"history":        "run.history_limit",
	"backend":        "backend.kind",
	"model":          "backend.model",
	"script":         "backend.script_file",
}

// runJob is everything needed to run one project.
type runJob struct {
	root      string
	task      string
	cfg       *config.Config
	roster    []agent.Descriptor
	invoker   agent.Invoker
	callbacks *orchestrator.Callbacks
}

// executeRun runs job against its project root and persists the result.
// A result is returned whenever the run started, even if it ended in error.
func executeRun(ctx context.Context, job runJob) (*orchestrator.RunResult, error) {
	runCfg := orchestrator.ConfigFrom(job.cfg, job.task, job.roster)
	if err := runCfg.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(job.root)
	if err != nil {
		return nil, errors.NewWorkspaceError("open", errors.Join(errors.ErrRootUnavailable, err)).WithPath(job.root)
	}
	stateRoot := job.cfg.Paths.ResolveStateDir(root)
	runID := uuid.NewString()

	lock, err := session.AcquireLock(stateRoot, runID, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	run, err := session.Create(root, stateRoot, runID)
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if job.cfg.Logging.Enabled {
		logger, err = logging.NewLoggerWithRotation(run.Dir, job.cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  job.cfg.Logging.MaxSizeMB,
			MaxBackups: job.cfg.Logging.MaxBackups,
			Compress:   job.cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create run logger: %w", err)
		}
		defer func() { _ = logger.Close() }()
	}

	project, err := workspace.Open(root, workspace.Options{
		BackupSuffix: job.cfg.Workspace.BackupSuffix,
		StateDir:     projectStateDir(root, stateRoot),
		Ignore:       job.cfg.Workspace.Ignore,
		MaxFileBytes: job.cfg.Workspace.MaxFileBytes,
		Logger:       logger.WithRun(runID),
	})
	if err != nil {
		return nil, err
	}

	controller, err := orchestrator.New(runCfg, project, job.invoker,
		orchestrator.WithLogger(logger),
		orchestrator.WithRunID(runID),
		orchestrator.WithCallbacks(job.callbacks),
		orchestrator.WithDetector(completion.NewDetector(job.cfg.Workspace.CompletionPhrases...)),
	)
	if err != nil {
		return nil, err
	}

	res, runErr := controller.Run(ctx)
	if res != nil {
		if err := run.SaveReport(res); err != nil {
			logger.Error("failed to save report", "error", err)
			runErr = errors.Join(runErr, err)
		}
	}
	return res, runErr
}

// projectStateDir returns stateRoot relative to root when it lies inside
// it, so the project reserves and ignores it. Otherwise it returns
// stateRoot unchanged.
func projectStateDir(root, stateRoot string) string {
	rel, err := filepath.Rel(root, stateRoot)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return stateRoot
	}
	return rel
}

// loadRoster reads the roster file when one is given. An empty result makes
// the run fall back to the configured or default roster.
func loadRoster(path string) ([]agent.Descriptor, error) {
	if path == "" {
		return nil, nil
	}
	return agent.LoadRoster(path)
}

// readTask returns the task from the flag or, failing that, from a file.
// A file named "-" is read from stdin.
func readTask(task, taskFile string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(task) != "" {
		return task, nil
	}
	if taskFile == "" {
		return "", errors.NewValidationError("a task is required (use --task or --task-file)").
			WithField("task").WithCause(errors.ErrInvalidInput)
	}

	var data []byte
	var err error
	if taskFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(taskFile)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read task file")
	}
	return string(data), nil
}

// interruptContext returns a context canceled by the first interrupt. The
// run then ends after the agent that is currently working. Signal handling
// is released after the first interrupt, so a second one exits immediately.
func interruptContext(parent context.Context, w io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			signal.Stop(sigCh)
			fmt.Fprintln(w, "\nInterrupted: stopping after the current agent finishes. Interrupt again to quit now.")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
