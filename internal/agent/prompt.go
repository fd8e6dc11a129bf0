package agent

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/roundtable/internal/util"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// MaxHistoryMessageRunes caps how much of each earlier response is repeated
// in a prompt.
const MaxHistoryMessageRunes = 4000

// SystemPrompt returns the role framing used as the system prompt by API
// backends and as the prompt header by the command backend.
func SystemPrompt(d Descriptor) string {
	instructions := d.Instructions
	if instructions == "" {
		instructions = "Contribute whatever the project needs most from your role."
	}
	return fmt.Sprintf(systemPromptTemplate, d.DisplayName(), d.Role, instructions)
}

// BuildPrompt renders the user prompt for one invocation: the task, the
// current project files, the recent conversation, and the response format.
func BuildPrompt(req Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Task\n\n%s\n\n", strings.TrimSpace(req.Task))
	fmt.Fprintf(&sb, "## Iteration %d\n\n", req.Iteration)

	writeFiles(&sb, req.Snapshot)
	writeHistory(&sb, req.History)

	sb.WriteString(outputFormatInstructions)
	return sb.String()
}

// FullPrompt joins SystemPrompt and BuildPrompt for backends that take a
// single prompt.
func FullPrompt(req Request) string {
	return SystemPrompt(req.Agent) + "\n\n" + BuildPrompt(req)
}

func writeFiles(sb *strings.Builder, snap workspace.Snapshot) {
	sb.WriteString("## Current Project Files\n\n")
	if len(snap.Files) == 0 {
		sb.WriteString("The project is empty.\n\n")
		return
	}

	for _, f := range snap.Files {
		fmt.Fprintf(sb, "File: %s\n", f.Path)
		fence := fenceFor(f.Content)
		fmt.Fprintf(sb, "%s\n%s", fence, f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "%s\n", fence)
		if f.Truncated {
			fmt.Fprintf(sb, "(truncated: showing %d of %d bytes)\n", len(f.Content), f.Size)
		}
		sb.WriteString("\n")
	}
}

func writeHistory(sb *strings.Builder, history []Message) {
	if len(history) == 0 {
		return
	}
	sb.WriteString("## Conversation So Far\n\n")
	for _, m := range history {
		fmt.Fprintf(sb, "### Iteration %d, %s\n\n", m.Iteration, m.Role)
		sb.WriteString(util.TruncateString(strings.TrimSpace(m.Text), MaxHistoryMessageRunes))
		sb.WriteString("\n\n")
	}
}

// fenceFor returns a backtick fence longer than any backtick run in content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

const systemPromptTemplate = `You are %s, the %q agent on a small team of AI engineers building a project together.
The team works in rounds. Each round every agent sees the current project files and the conversation so far, then responds.

%s`

const outputFormatInstructions = `## Response Format

To create or replace a file, write a line "File: <relative/path>" followed by a fenced code block with the COMPLETE file content:

File: src/example.go
` + "```go" + `
package example
` + "```" + `

Rules:
- Paths are relative to the project root. Do not use absolute paths or "..".
- Always send the whole file. Partial files and diffs are not applied.
- Only change files that need changing. Unchanged files can be left out.

When you believe the whole project is finished and nothing more is needed from any agent, say "The project is complete." in your response.
`
