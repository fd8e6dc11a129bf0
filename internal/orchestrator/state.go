package orchestrator

import "fmt"

// State is the controller's position in its state machine.
//
//	Running -> CheckingConsensus -> Running | Stopped
//	Running -> Exhausted (max iterations reached without consensus)
//
// Stopped and Exhausted are terminal.
type State int

const (
	// StateRunning means agents are being invoked for the current iteration.
	StateRunning State = iota
	// StateCheckingConsensus means the iteration finished and its completion
	// tally is being compared against the threshold.
	StateCheckingConsensus
	// StateStopped means consensus was reached with auto-stop enabled.
	StateStopped
	// StateExhausted means the iteration limit was reached without stopping.
	StateExhausted
)

var stateNames = map[State]string{
	StateRunning:           "running",
	StateCheckingConsensus: "checking_consensus",
	StateStopped:           "stopped",
	StateExhausted:         "exhausted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateExhausted
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// StopReason explains why a run ended.
type StopReason string

const (
	// ReasonConsensus means enough agents signaled completion.
	ReasonConsensus StopReason = "consensus"
	// ReasonMaxIterations means the iteration limit was reached.
	ReasonMaxIterations StopReason = "max_iterations"
	// ReasonCanceled means the caller canceled the run.
	ReasonCanceled StopReason = "canceled"
	// ReasonError means a fatal error ended the run.
	ReasonError StopReason = "error"
)

// ConsensusReached reports whether signaled out of total agents meets
// threshold. An iteration with no agents never reaches consensus.
func ConsensusReached(signaled, total int, threshold float64) bool {
	if total <= 0 {
		return false
	}
	return float64(signaled)/float64(total) >= threshold
}
