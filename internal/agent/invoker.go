package agent

import (
	"context"

	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// Message is one agent turn in the conversation history.
type Message struct {
	Iteration int    `yaml:"iteration"`
	Role      string `yaml:"role"`
	Text      string `yaml:"text"`
}

// Request is everything an agent is given for one invocation.
type Request struct {
	Agent     Descriptor
	Task      string
	Iteration int
	// History holds earlier turns, oldest first.
	History []Message
	// Snapshot reflects every write made before this invocation, including
	// writes by earlier agents in the same iteration.
	Snapshot workspace.Snapshot
	// Root is the absolute project root.
	Root string
}

// Invoker produces an agent's response text. Implementations must honor ctx
// cancellation; the controller bounds every call with a timeout.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// RecentHistory returns the last limit messages of history. A limit of zero
// or less returns all of it.
func RecentHistory(history []Message, limit int) []Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
