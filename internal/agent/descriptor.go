// Package agent defines the agents that take part in a run and the boundary
// through which they are invoked.
//
// An agent is a role-bound participant: given its role, the task, the
// conversation so far, and a snapshot of the project files, it returns free
// text. Anything that can produce that text satisfies Invoker, whether it is a
// local CLI, a remote API, or a script used in tests.
package agent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/errors"
)

// Descriptor identifies one agent. It is immutable for the lifetime of a run.
type Descriptor struct {
	Role         string `yaml:"role"`
	Name         string `yaml:"name,omitempty"`
	Priority     int    `yaml:"priority"`
	Instructions string `yaml:"instructions,omitempty"`
}

// DisplayName returns Name, or the role when no name is set.
func (d Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Role
}

// Built-in roles.
const (
	RoleArchitect = "architect"
	RoleBackend   = "backend"
	RoleFrontend  = "frontend"
	RoleQA        = "qa"
)

var defaultInstructions = map[string]string{
	RoleArchitect: "You own the overall structure of the project: directory layout, module boundaries, build files, and the README. Keep the design coherent as the other agents add to it.",
	RoleBackend:   "You own server-side code: data models, business logic, APIs, and persistence. Follow the structure the architect set up.",
	RoleFrontend:  "You own the user interface: pages, components, styling, and client-side logic. Integrate with the APIs the backend agent provides.",
	RoleQA:        "You own quality: write and fix tests, look for bugs and gaps in the other agents' work, and correct them directly.",
}

// DefaultRoster returns the built-in four-agent roster.
func DefaultRoster() []Descriptor {
	return []Descriptor{
		{Role: RoleArchitect, Name: "Architect", Priority: 1, Instructions: defaultInstructions[RoleArchitect]},
		{Role: RoleBackend, Name: "Backend Engineer", Priority: 2, Instructions: defaultInstructions[RoleBackend]},
		{Role: RoleFrontend, Name: "Frontend Engineer", Priority: 3, Instructions: defaultInstructions[RoleFrontend]},
		{Role: RoleQA, Name: "QA Engineer", Priority: 4, Instructions: defaultInstructions[RoleQA]},
	}
}

// FromConfig converts configured agents to descriptors. Built-in roles
// without instructions get the default instructions for that role.
func FromConfig(agents []config.AgentConfig) []Descriptor {
	out := make([]Descriptor, 0, len(agents))
	for _, a := range agents {
		d := Descriptor{
			Role:         strings.TrimSpace(a.Role),
			Name:         strings.TrimSpace(a.Name),
			Priority:     a.Priority,
			Instructions: strings.TrimSpace(a.Instructions),
		}
		if d.Instructions == "" {
			d.Instructions = defaultInstructions[strings.ToLower(d.Role)]
		}
		out = append(out, d)
	}
	return out
}

// Ordered returns a copy of roster sorted by ascending priority. Agents with
// equal priority keep their relative order.
func Ordered(roster []Descriptor) []Descriptor {
	out := slices.Clone(roster)
	slices.SortStableFunc(out, func(a, b Descriptor) int {
		return a.Priority - b.Priority
	})
	return out
}

// ValidateRoster checks that roster is non-empty and that every role is
// present and unique, ignoring case.
func ValidateRoster(roster []Descriptor) error {
	if len(roster) == 0 {
		return errors.NewValidationError("roster has no agents").
			WithField("agents").
			WithCause(errors.ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(roster))
	for i, d := range roster {
		role := strings.ToLower(strings.TrimSpace(d.Role))
		if role == "" {
			return errors.NewValidationError("agent role is required").
				WithField(fmt.Sprintf("agents[%d].role", i)).
				WithCause(errors.ErrInvalidConfig)
		}
		if seen[role] {
			return errors.NewValidationError("duplicate agent role").
				WithField(fmt.Sprintf("agents[%d].role", i)).
				WithValue(d.Role).
				WithCause(errors.ErrInvalidConfig)
		}
		seen[role] = true
	}
	return nil
}

// Roles returns the roles of roster in order.
func Roles(roster []Descriptor) []string {
	roles := make([]string, len(roster))
	for i, d := range roster {
		roles[i] = d.Role
	}
	return roles
}
