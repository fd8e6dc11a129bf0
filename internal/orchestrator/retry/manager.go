// Package retry tracks invocation attempts for agent turns.
//
// A turn is one agent's slot in one iteration. The manager counts attempts
// per turn, decides whether a failed turn may be attempted again, and keeps
// the error of every failed attempt for the run report.
package retry

import (
	"fmt"
	"sort"
	"sync"
)

// TurnState tracks attempts for one agent turn.
type TurnState struct {
	Key        string   `yaml:"key"`
	Attempts   int      `yaml:"attempts"`
	MaxRetries int      `yaml:"max_retries"`
	Errors     []string `yaml:"errors,omitempty"`
	Succeeded  bool     `yaml:"succeeded,omitempty"`
}

// LastError returns the error of the most recent failed attempt.
func (s TurnState) LastError() string {
	if len(s.Errors) == 0 {
		return ""
	}
	return s.Errors[len(s.Errors)-1]
}

// Key identifies the turn of role in iteration.
func Key(iteration int, role string) string {
	return fmt.Sprintf("%d/%s", iteration, role)
}

// Manager manages attempt state for agent turns.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*TurnState
}

// NewManager creates a new retry manager.
func NewManager() *Manager {
	return &Manager{
		states: make(map[string]*TurnState),
	}
}

// Begin returns the state for key, creating it with maxRetries if needed.
func (m *Manager) Begin(key string, maxRetries int) TurnState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[key]
	if !ok {
		if maxRetries < 0 {
			maxRetries = 0
		}
		state = &TurnState{Key: key, MaxRetries: maxRetries}
		m.states[key] = state
	}
	return *state
}

// State returns the state for key and whether it exists.
func (m *Manager) State(key string) (TurnState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[key]
	if !ok {
		return TurnState{}, false
	}
	return copyState(state), true
}

// RecordAttempt records the result of one attempt. A nil err marks the turn
// as succeeded.
func (m *Manager) RecordAttempt(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[key]
	if !ok {
		return
	}
	state.Attempts++
	if err == nil {
		state.Succeeded = true
		return
	}
	state.Errors = append(state.Errors, err.Error())
}

// ShouldRetry reports whether the turn failed and has retries left. The first
// attempt is not a retry, so a turn gets MaxRetries+1 attempts in total.
func (m *Manager) ShouldRetry(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[key]
	if !ok || state.Succeeded || state.Attempts == 0 {
		return false
	}
	return state.Attempts <= state.MaxRetries
}

// Failed returns the keys of attempted turns that never succeeded, sorted.
// A turn may stop before using every retry, so call it once turns are over.
func (m *Manager) Failed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var failed []string
	for key, state := range m.states {
		if !state.Succeeded && state.Attempts > 0 {
			failed = append(failed, key)
		}
	}
	sort.Strings(failed)
	return failed
}

func copyState(s *TurnState) TurnState {
	c := *s
	if s.Errors != nil {
		c.Errors = append([]string(nil), s.Errors...)
	}
	return c
}
