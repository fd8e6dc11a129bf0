package session

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
)

// Info contains summary information about a run
type Info struct {
	ID           string                  `yaml:"id"`
	Task         string                  `yaml:"task,omitempty"`
	StartedAt    time.Time               `yaml:"started_at"`
	State        orchestrator.State      `yaml:"state"`
	Reason       orchestrator.StopReason `yaml:"reason,omitempty"`
	Iterations   int                     `yaml:"iterations"`
	StoppedEarly bool                    `yaml:"stopped_early"`
	Failures     int                     `yaml:"failures"`
	// Finished is false while the run has not written its report.
	Finished bool   `yaml:"finished"`
	RunDir   string `yaml:"run_dir"`
}

// ListRuns returns every run of the project, most recent first. Run
// directories without a report are listed as unfinished and dated by the
// directory's modification time.
func ListRuns(root, stateDir string) ([]*Info, error) {
	runsDir := GetRunsDir(root, stateDir)

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No runs directory = no runs
		}
		return nil, err
	}

	var runs []*Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := GetRunInfo(root, stateDir, entry.Name())
		if err != nil {
			// Skip runs we can't read
			continue
		}
		runs = append(runs, info)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

// GetRunInfo returns summary information about one run.
func GetRunInfo(root, stateDir, runID string) (*Info, error) {
	runDir := GetRunDir(root, stateDir, runID)
	dirInfo, err := os.Stat(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("run", runID).WithCause(errors.ErrRunNotFound)
		}
		return nil, err
	}

	res, err := LoadReport(runDir)
	if errors.Is(err, errors.ErrRunNotFound) {
		return &Info{
			ID:        runID,
			StartedAt: dirInfo.ModTime(),
			RunDir:    runDir,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Info{
		ID:           runID,
		Task:         res.Task,
		StartedAt:    res.StartedAt,
		State:        res.State,
		Reason:       res.Reason,
		Iterations:   res.Iterations,
		StoppedEarly: res.StoppedEarly,
		Failures:     len(res.Failures()),
		Finished:     true,
		RunDir:       runDir,
	}, nil
}

// FindRun resolves ref to a run. An empty ref means the most recent run;
// otherwise ref is a full run ID or a prefix matching exactly one run.
func FindRun(root, stateDir, ref string) (*Info, error) {
	runs, err := ListRuns(root, stateDir)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NewNotFoundError("run", ref).WithCause(errors.ErrRunNotFound)
	}
	if ref == "" {
		return runs[0], nil
	}

	var matches []*Info
	for _, r := range runs {
		if r.ID == ref {
			return r, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errors.NewNotFoundError("run", ref).WithCause(errors.ErrRunNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, errors.NewValidationError("run ID prefix matches more than one run").
			WithField("run_id").
			WithValue(ref).
			WithCause(errors.ErrInvalidInput)
	}
}

// RunExists checks if a run with the given ID exists.
func RunExists(root, stateDir, runID string) bool {
	_, err := os.Stat(GetRunDir(root, stateDir, runID))
	return err == nil
}

// ShortID returns the first eight characters of a run ID for display.
func ShortID(runID string) string {
	if len(runID) <= 8 {
		return runID
	}
	return runID[:8]
}

