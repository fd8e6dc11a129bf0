package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/errors"
)

// ScriptEntry is the scripted response of one role in one iteration. A
// non-empty Error makes the invocation fail with that message.
type ScriptEntry struct {
	Iteration int    `yaml:"iteration"`
	Role      string `yaml:"role"`
	Text      string `yaml:"text,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

// Script is the file format of the script backend:
//
//	responses:
//	  - iteration: 1
//	    role: architect
//	    text: |
//	      File: README.md
//	      ```
//	      # demo
//	      ```
//	defaults:
//	  qa: "The project is complete."
//	  "*": "Nothing to add."
type Script struct {
	Responses []ScriptEntry `yaml:"responses"`
	// Defaults maps a role, or "*" for any role, to the response used when
	// no entry matches.
	Defaults map[string]string `yaml:"defaults,omitempty"`
}

type scriptKey struct {
	iteration int
	role      string
}

// ScriptBackend replays a Script. It makes runs deterministic for tests and
// dry runs.
type ScriptBackend struct {
	entries  map[scriptKey]ScriptEntry
	defaults map[string]string
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (*ScriptBackend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read script %s", path)
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (*ScriptBackend, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.NewValidationError("invalid script YAML").
			WithField("backend.script_file").
			WithCause(err)
	}
	return NewScriptBackend(s)
}

// NewScriptBackend validates s and returns a backend for it. Roles match
// case-insensitively.
func NewScriptBackend(s Script) (*ScriptBackend, error) {
	b := &ScriptBackend{
		entries:  make(map[scriptKey]ScriptEntry, len(s.Responses)),
		defaults: make(map[string]string, len(s.Defaults)),
	}
	for i, e := range s.Responses {
		if e.Iteration < 1 {
			return nil, errors.NewValidationError("iteration must be at least 1").
				WithField(fmt.Sprintf("responses[%d].iteration", i)).
				WithValue(e.Iteration)
		}
		role := strings.ToLower(strings.TrimSpace(e.Role))
		if role == "" {
			return nil, errors.NewValidationError("role is required").
				WithField(fmt.Sprintf("responses[%d].role", i))
		}
		key := scriptKey{iteration: e.Iteration, role: role}
		if _, dup := b.entries[key]; dup {
			return nil, errors.NewValidationError("duplicate response").
				WithField(fmt.Sprintf("responses[%d]", i)).
				WithValue(fmt.Sprintf("iteration %d, role %s", e.Iteration, e.Role))
		}
		b.entries[key] = e
	}
	for role, text := range s.Defaults {
		b.defaults[strings.ToLower(strings.TrimSpace(role))] = text
	}
	return b, nil
}

// Invoke returns the scripted response for the request's iteration and role,
// then the role's default, then the "*" default, then "".
func (b *ScriptBackend) Invoke(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	role := strings.ToLower(req.Agent.Role)
	if e, ok := b.entries[scriptKey{iteration: req.Iteration, role: role}]; ok {
		if e.Error != "" {
			return "", fmt.Errorf("scripted failure: %s", e.Error)
		}
		return e.Text, nil
	}
	if text, ok := b.defaults[role]; ok {
		return text, nil
	}
	return b.defaults["*"], nil
}
