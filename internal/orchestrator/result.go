package orchestrator

import (
	"time"

	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// AgentRecord is what one agent did in one iteration.
type AgentRecord struct {
	Role     string              `yaml:"role"`
	Name     string              `yaml:"name"`
	Outcomes []workspace.Outcome `yaml:"outcomes,omitempty"`
	// SignaledDone is true when the response carried a completion phrase.
	// A failed invocation never signals.
	SignaledDone  bool          `yaml:"signaled_done"`
	MatchedPhrase string        `yaml:"matched_phrase,omitempty"`
	Attempts      int           `yaml:"attempts"`
	Duration      time.Duration `yaml:"duration"`
	Error         string        `yaml:"error,omitempty"`
	TimedOut      bool          `yaml:"timed_out,omitempty"`
	// AttemptErrors holds the error of each failed attempt, oldest first.
	AttemptErrors []string `yaml:"attempt_errors,omitempty"`
}

// Failed reports whether the invocation produced no response.
func (r AgentRecord) Failed() bool {
	return r.Error != ""
}

// IterationRecord is the append-only record of one iteration.
type IterationRecord struct {
	Index  int           `yaml:"index"`
	Agents []AgentRecord `yaml:"agents"`
	// Signaled counts agents whose response carried a completion signal.
	Signaled int `yaml:"signaled"`
	// Consensus is Signaled over the number of agents invoked.
	Consensus float64 `yaml:"consensus"`
	// Checked is true when the iteration was at or past the minimum and its
	// consensus was compared against the threshold.
	Checked bool `yaml:"checked"`
	// Interrupted is true when the run was canceled before every agent ran.
	Interrupted bool `yaml:"interrupted,omitempty"`
}

// Tally returns the signaled and total agent counts.
func (r IterationRecord) Tally() (signaled, total int) {
	return r.Signaled, len(r.Agents)
}

// RunResult is the final outcome of a run. It is built once when the run
// ends and not modified afterwards.
type RunResult struct {
	ID        string    `yaml:"id"`
	Task      string    `yaml:"task"`
	Root      string    `yaml:"root"`
	StartedAt time.Time `yaml:"started_at"`
	EndedAt   time.Time `yaml:"ended_at"`

	State  State      `yaml:"state"`
	Reason StopReason `yaml:"reason"`
	// Iterations is the number of iterations executed, including an
	// interrupted one.
	Iterations   int  `yaml:"iterations"`
	StoppedEarly bool `yaml:"stopped_early"`
	// StopIteration is the iteration at which consensus stopped the run, or
	// zero.
	StopIteration int `yaml:"stop_iteration,omitempty"`

	Agents  []string          `yaml:"agents"`
	Records []IterationRecord `yaml:"records"`

	// ExternalChanges lists files modified during the run by something other
	// than the run itself.
	ExternalChanges []string `yaml:"external_changes,omitempty"`
	Error           string   `yaml:"error,omitempty"`
}

// FailureKind classifies a Failure.
type FailureKind string

const (
	FailureWrite      FailureKind = "write"
	FailureInvocation FailureKind = "invocation"
)

// Failure is one recorded failure in a run.
type Failure struct {
	Iteration int         `yaml:"iteration"`
	Role      string      `yaml:"role"`
	Kind      FailureKind `yaml:"kind"`
	Path      string      `yaml:"path,omitempty"`
	Message   string      `yaml:"message"`
}

// Failures enumerates every failed invocation and rejected write in order.
func (r *RunResult) Failures() []Failure {
	var failures []Failure
	for _, rec := range r.Records {
		for _, a := range rec.Agents {
			if a.Failed() {
				failures = append(failures, Failure{
					Iteration: rec.Index,
					Role:      a.Role,
					Kind:      FailureInvocation,
					Message:   a.Error,
				})
			}
			for _, out := range a.Outcomes {
				if !out.Failed() {
					continue
				}
				failures = append(failures, Failure{
					Iteration: rec.Index,
					Role:      a.Role,
					Kind:      FailureWrite,
					Path:      out.Path,
					Message:   out.Reason,
				})
			}
		}
	}
	return failures
}

// OutcomeCounts totals file write outcomes across the run.
func (r *RunResult) OutcomeCounts() map[workspace.OutcomeKind]int {
	counts := make(map[workspace.OutcomeKind]int)
	for _, rec := range r.Records {
		for _, a := range rec.Agents {
			for _, out := range a.Outcomes {
				counts[out.Kind]++
			}
		}
	}
	return counts
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// LastRecord returns the final iteration record, if any.
func (r *RunResult) LastRecord() (IterationRecord, bool) {
	if len(r.Records) == 0 {
		return IterationRecord{}, false
	}
	return r.Records[len(r.Records)-1], true
}
