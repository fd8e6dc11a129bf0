// Package session persists runs on disk.
//
// Every run gets its own directory under the project's state directory:
//
//	<root>/<state_dir>/runs/<run-id>/debug.log
//	<root>/<state_dir>/runs/<run-id>/report.yaml
//
// The report is written once, when the run ends. A run directory without a
// report belongs to a run that is still going or that was killed.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/logging"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
)

// RunsDir is the directory within the state directory that holds all runs.
const RunsDir = "runs"

// ReportFileName is the name of the persisted Run Result within a run directory.
const ReportFileName = "report.yaml"

// StateRoot returns the absolute state directory for a project root.
// An absolute stateDir is used as is.
func StateRoot(root, stateDir string) string {
	if filepath.IsAbs(stateDir) {
		return stateDir
	}
	return filepath.Join(root, stateDir)
}

// GetRunsDir returns the directory holding every run of a project.
func GetRunsDir(root, stateDir string) string {
	return filepath.Join(StateRoot(root, stateDir), RunsDir)
}

// GetRunDir returns the directory of one run.
func GetRunDir(root, stateDir, runID string) string {
	return filepath.Join(GetRunsDir(root, stateDir), runID)
}

// Run is the on-disk home of one run.
type Run struct {
	ID  string
	Dir string
}

// Create makes the directory for a new run.
func Create(root, stateDir, runID string) (*Run, error) {
	if runID == "" {
		return nil, errors.NewValidationError("run ID is required").WithField("run_id")
	}
	dir := GetRunDir(root, stateDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Run{ID: runID, Dir: dir}, nil
}

// ReportPath returns the path of the run's report.
func (r *Run) ReportPath() string {
	return filepath.Join(r.Dir, ReportFileName)
}

// LogPath returns the path of the run's debug log.
func (r *Run) LogPath() string {
	return filepath.Join(r.Dir, logging.LogFileName)
}

// SaveReport writes res as the run's report, replacing any earlier one.
func (r *Run) SaveReport(res *orchestrator.RunResult) error {
	data, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return atomicWriteFile(r.ReportPath(), data, 0644)
}

// LoadReport reads the report stored in runDir.
func LoadReport(runDir string) (*orchestrator.RunResult, error) {
	data, err := os.ReadFile(filepath.Join(runDir, ReportFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("report", filepath.Base(runDir)).WithCause(errors.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var res orchestrator.RunResult
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &res, nil
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it over path, so readers see either the old or the new file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
