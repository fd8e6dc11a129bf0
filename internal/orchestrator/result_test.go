package orchestrator

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/workspace"
)

func TestConsensusReached(t *testing.T) {
	tests := []struct {
		signaled, total int
		threshold       float64
		want            bool
	}{
		{2, 3, 0.70, false},
		{3, 3, 0.70, true},
		{1, 2, 0.70, false},
		{7, 10, 0.70, true},
		{0, 0, 0.70, false},
		{0, 4, 0, true},
		{4, 4, 1, true},
	}
	for _, tt := range tests {
		if got := ConsensusReached(tt.signaled, tt.total, tt.threshold); got != tt.want {
			t.Errorf("ConsensusReached(%d, %d, %v) = %v, want %v", tt.signaled, tt.total, tt.threshold, got, tt.want)
		}
	}
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{StateRunning, StateCheckingConsensus, StateStopped, StateExhausted} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText() error = %v", err)
		}
		var got State
		if err := got.UnmarshalText(text); err != nil || got != s {
			t.Errorf("UnmarshalText(%q) = %v, %v; want %v", text, got, err, s)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown state")
	}
	if State(42).String() != "unknown" {
		t.Errorf("String() = %q", State(42).String())
	}
	if !StateStopped.Terminal() || !StateExhausted.Terminal() || StateRunning.Terminal() {
		t.Error("only stopped and exhausted are terminal")
	}
}

func sampleResult() *RunResult {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &RunResult{
		ID:        "r1",
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		State:     StateStopped,
		Reason:    ReasonConsensus,
		Records: []IterationRecord{
			{
				Index: 1,
				Agents: []AgentRecord{
					{Role: "a", Outcomes: []workspace.Outcome{
						{Path: "x.go", Kind: workspace.Created},
						{Path: "../y", Kind: workspace.Rejected, Err: errors.New("outside root"), Reason: "outside root"},
					}},
					{Role: "b", Error: "backend down", Attempts: 2},
				},
			},
			{
				Index: 2,
				Agents: []AgentRecord{
					{Role: "a", SignaledDone: true, Outcomes: []workspace.Outcome{{Path: "x.go", Kind: workspace.Updated, BackupPath: "x.go.bak"}}},
					{Role: "b", SignaledDone: true},
				},
				Signaled:  2,
				Consensus: 1,
				Checked:   true,
			},
		},
	}
}

func TestRunResult_Failures(t *testing.T) {
	failures := sampleResult().Failures()
	want := []Failure{
		{Iteration: 1, Role: "a", Kind: FailureWrite, Path: "../y", Message: "outside root"},
		{Iteration: 1, Role: "b", Kind: FailureInvocation, Message: "backend down"},
	}
	if len(failures) != len(want) {
		t.Fatalf("Failures() = %+v", failures)
	}
	for i := range want {
		if failures[i] != want[i] {
			t.Errorf("failure %d = %+v, want %+v", i, failures[i], want[i])
		}
	}
}

func TestRunResult_Summaries(t *testing.T) {
	res := sampleResult()

	counts := res.OutcomeCounts()
	if counts[workspace.Created] != 1 || counts[workspace.Updated] != 1 || counts[workspace.Rejected] != 1 {
		t.Errorf("OutcomeCounts() = %v", counts)
	}
	if res.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v", res.Duration())
	}
	last, ok := res.LastRecord()
	if !ok || last.Index != 2 {
		t.Errorf("LastRecord() = %v, %v", last.Index, ok)
	}
	if _, ok := (&RunResult{}).LastRecord(); ok {
		t.Error("empty result has no last record")
	}
}

func TestRunResult_YAML(t *testing.T) {
	data, err := yaml.Marshal(sampleResult())
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}

	var got RunResult
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if got.State != StateStopped || got.Reason != ReasonConsensus {
		t.Errorf("State = %v, Reason = %v", got.State, got.Reason)
	}
	if len(got.Failures()) != 2 {
		t.Errorf("persisted result lost failures: %+v", got.Failures())
	}
	if got.Records[1].Agents[0].Outcomes[0].Kind != workspace.Updated {
		t.Errorf("outcome kind = %v", got.Records[1].Agents[0].Outcomes[0].Kind)
	}
}
