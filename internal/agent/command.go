package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/util"
)

// commandWaitDelay bounds how long a killed command may hold its pipes open.
const commandWaitDelay = 5 * time.Second

// CommandBackend runs an external CLI once per invocation. The full prompt is
// written to stdin and stdout is the response. The command runs in the
// project root.
type CommandBackend struct {
	command string
	args    []string
}

// NewCommandBackend returns a CommandBackend. An empty command defaults to
// "claude --print".
func NewCommandBackend(command string, args ...string) *CommandBackend {
	if command == "" {
		command = "claude"
		if len(args) == 0 {
			args = []string{"--print"}
		}
	}
	return &CommandBackend{command: command, args: args}
}

// Invoke runs the command and returns its stdout. A nonzero exit is an error
// carrying the first line of stderr. A command that cannot be found is
// reported as not retryable.
func (c *CommandBackend) Invoke(ctx context.Context, req Request) (string, error) {
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = req.Root
	cmd.Stdin = strings.NewReader(FullPrompt(req))
	cmd.WaitDelay = commandWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.NewInvocationError(c.command+" not found", err).WithRetryable(false)
		}
		if msg := util.FirstLine(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.command, err, util.TruncateString(msg, 200))
		}
		return "", fmt.Errorf("%s: %w", c.command, err)
	}
	return stdout.String(), nil
}

// String returns the command line, for logs.
func (c *CommandBackend) String() string {
	return strings.TrimSpace(c.command + " " + strings.Join(c.args, " "))
}
