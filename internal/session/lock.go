package session

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/logging"
)

// LockFileName is the name of the lock file within the state directory
const LockFileName = "run.lock"

// ErrProjectLocked is returned when another live process is already running
// against the same project root.
var ErrProjectLocked = errors.New("project is locked by another run")

// Lock represents an acquired project lock. A project has a single writer,
// so only one run may hold it at a time.
type Lock struct {
	RunID     string    `yaml:"run_id"`
	PID       int       `yaml:"pid"`
	Hostname  string    `yaml:"hostname"`
	StartedAt time.Time `yaml:"started_at"`

	// Internal fields (not serialized)
	lockFile string
	logger   *logging.Logger
}

// AcquireLock takes the project lock in stateRoot for runID. A lock left
// behind by a dead process is removed first. The logger may be nil.
func AcquireLock(stateRoot, runID string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(stateRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lockPath := filepath.Join(stateRoot, LockFileName)

	if existing, err := ReadLock(lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			logger.Error("failed to acquire lock",
				"run_id", runID,
				"held_by", existing.RunID,
				"pid", existing.PID,
			)
			return nil, fmt.Errorf("%w: run %s (PID %d on %s)", ErrProjectLocked, existing.RunID, existing.PID, existing.Hostname)
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		logger.Warn("stale lock cleaned", "old_run_id", existing.RunID, "old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		RunID:     runID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		lockFile:  lockPath,
		logger:    logger,
	}

	data, err := yaml.Marshal(lock)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL guards against another process winning the race after the
	// stale check above.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := ReadLock(lockPath); readErr == nil {
				return nil, fmt.Errorf("%w: run %s (PID %d on %s)", ErrProjectLocked, existing.RunID, existing.PID, existing.Hostname)
			}
			return nil, ErrProjectLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	logger.Info("project lock acquired", "run_id", runID, "pid", lock.PID)
	return lock, nil
}

// Release removes the lock file if this process still owns it.
// Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	existing, err := ReadLock(l.lockFile)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID || existing.RunID != l.RunID {
		return nil
	}

	if err := os.Remove(l.lockFile); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("project lock released", "run_id", l.RunID)
	}
	return nil
}

// ReadLock reads a lock file.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// IsLocked reports whether a live process holds the lock in stateRoot.
func IsLocked(stateRoot string) (*Lock, bool) {
	lock, err := ReadLock(filepath.Join(stateRoot, LockFileName))
	if err != nil {
		return nil, false
	}
	if !isProcessAlive(lock.PID) {
		return lock, false
	}
	return lock, true
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, sending signal 0 checks if process exists without affecting it
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
