// Package report renders run results for people.
//
// Output is styled with lipgloss when it goes to a terminal and plain
// otherwise, so reports piped to a file or another tool carry no escape
// codes.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
	"github.com/Iron-Ham/roundtable/internal/session"
	"github.com/Iron-Ham/roundtable/internal/util"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 100

// Renderer writes human-readable reports to an io.Writer.
type Renderer struct {
	w       io.Writer
	width   int
	color   bool
	verbose bool
}

// New returns a Renderer for w. Color and width come from the terminal when
// w is one; NO_COLOR disables color.
func New(w io.Writer) *Renderer {
	r := &Renderer{w: w, width: DefaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.color = os.Getenv("NO_COLOR") == ""
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			r.width = width
		}
	}
	return r
}

// NewPlain returns a Renderer without color at a fixed width.
func NewPlain(w io.Writer, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{w: w, width: width}
}

// SetVerbose makes reports list unchanged files and the error of every
// retried attempt too.
func (r *Renderer) SetVerbose(v bool) {
	r.verbose = v
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) line(sb *strings.Builder, text string) {
	sb.WriteString(util.TruncateANSI(text, r.width))
	sb.WriteByte('\n')
}

func (r *Renderer) field(sb *strings.Builder, label, value string) {
	r.line(sb, fmt.Sprintf("  %s %s", r.style(Label, fmt.Sprintf("%-11s", label)), value))
}

// Result renders a full run report.
func (r *Renderer) Result(res *orchestrator.RunResult) error {
	var sb strings.Builder

	status := res.State.String()
	if res.Reason != "" {
		status = fmt.Sprintf("%s (%s)", status, strings.ReplaceAll(string(res.Reason), "_", " "))
	}
	r.line(&sb, fmt.Sprintf("%s %s  %s",
		r.style(Title, "Run"),
		r.style(Title, session.ShortID(res.ID)),
		r.style(StateStyle(res.State, res.Reason), status),
	))

	r.field(&sb, "Task", util.FirstLine(res.Task))
	r.field(&sb, "Root", res.Root)
	r.field(&sb, "Agents", strings.Join(res.Agents, ", "))
	iterations := util.Plural(res.Iterations, "iteration")
	if res.StoppedEarly {
		iterations += fmt.Sprintf(", stopped early at iteration %d", res.StopIteration)
	}
	r.field(&sb, "Iterations", iterations)
	if d := res.Duration(); d > 0 {
		r.field(&sb, "Duration", formatDuration(d))
	}
	r.field(&sb, "Files", fileSummary(res.OutcomeCounts()))
	if res.Error != "" {
		r.field(&sb, "Error", r.style(Error, res.Error))
	}

	for _, rec := range res.Records {
		sb.WriteByte('\n')
		r.iteration(&sb, rec)
	}

	if failures := res.Failures(); len(failures) > 0 {
		sb.WriteByte('\n')
		r.line(&sb, r.style(Heading, fmt.Sprintf("Failures (%d)", len(failures))))
		for _, f := range failures {
			where := string(f.Kind)
			if f.Path != "" {
				where += " " + f.Path
			}
			r.line(&sb, fmt.Sprintf("  %s  %s  %s  %s",
				r.style(Muted, fmt.Sprintf("iteration %d", f.Iteration)),
				f.Role,
				where,
				r.style(Error, f.Message),
			))
		}
	}

	if len(res.ExternalChanges) > 0 {
		sb.WriteByte('\n')
		r.line(&sb, r.style(Heading, fmt.Sprintf("Changed outside the run (%d)", len(res.ExternalChanges))))
		for _, p := range res.ExternalChanges {
			r.line(&sb, "  "+r.style(Warning, p))
		}
	}

	_, err := io.WriteString(r.w, sb.String())
	return err
}

func (r *Renderer) iteration(sb *strings.Builder, rec orchestrator.IterationRecord) {
	signaled, total := rec.Tally()
	check := "not checked"
	if rec.Checked {
		check = "checked"
	}
	header := fmt.Sprintf("%s  %s  %s",
		r.style(Heading, fmt.Sprintf("Iteration %d", rec.Index)),
		fmt.Sprintf("consensus %d/%d (%.0f%%)", signaled, total, rec.Consensus*100),
		r.style(Muted, check),
	)
	if rec.Interrupted {
		header += "  " + r.style(Warning, "interrupted")
	}
	r.line(sb, header)

	for _, a := range rec.Agents {
		r.agentLine(sb, a)
		if r.verbose && a.Attempts > 1 {
			for n, msg := range a.AttemptErrors {
				r.line(sb, fmt.Sprintf("      attempt %d  %s", n+1, r.style(Muted, util.FirstLine(msg))))
			}
		}
		for _, out := range a.Outcomes {
			if out.Kind == workspace.Unchanged && !r.verbose {
				continue
			}
			text := fmt.Sprintf("      %s %s", r.style(OutcomeStyle(out.Kind), fmt.Sprintf("%-9s", out.Kind.String())), out.Path)
			if out.Failed() && out.Reason != "" {
				text += "  " + r.style(Muted, out.Reason)
			}
			r.line(sb, text)
		}
	}
}

func (r *Renderer) agentLine(sb *strings.Builder, a orchestrator.AgentRecord) {
	mark := r.style(Success, "✓")
	var detail string
	switch {
	case a.TimedOut:
		mark = r.style(Error, "✗")
		detail = r.style(Error, "timed out")
	case a.Failed():
		mark = r.style(Error, "✗")
		detail = r.style(Error, "failed: "+util.FirstLine(a.Error))
	default:
		detail = util.Plural(len(a.Outcomes), "file")
		if a.SignaledDone {
			detail += "  " + r.style(Success, fmt.Sprintf("done (%q)", a.MatchedPhrase))
		}
	}
	if a.Attempts > 1 {
		detail += "  " + r.style(Warning, util.Plural(a.Attempts, "attempt"))
	}
	r.line(sb, fmt.Sprintf("  %s %-10s %s  %s", mark, a.Role, detail, r.style(Muted, formatDuration(a.Duration))))
}

// Runs renders a table of runs.
func (r *Renderer) Runs(runs []*session.Info) error {
	var sb strings.Builder
	if len(runs) == 0 {
		r.line(&sb, r.style(Muted, "No runs found."))
		_, err := io.WriteString(r.w, sb.String())
		return err
	}

	r.line(&sb, r.style(Heading, fmt.Sprintf("%-8s  %-16s  %-22s  %-5s  %-8s  %s", "ID", "STARTED", "STATUS", "ITER", "FAILURES", "TASK")))
	for _, info := range runs {
		status := "unfinished"
		style := Warning
		if info.Finished {
			status = info.State.String()
			if info.Reason != "" {
				status += " (" + strings.ReplaceAll(string(info.Reason), "_", " ") + ")"
			}
			style = StateStyle(info.State, info.Reason)
		}
		r.line(&sb, fmt.Sprintf("%-8s  %-16s  %s  %-5d  %-8d  %s",
			session.ShortID(info.ID),
			info.StartedAt.Local().Format("2006-01-02 15:04"),
			r.style(style, fmt.Sprintf("%-22s", status)),
			info.Iterations,
			info.Failures,
			util.FirstLine(info.Task),
		))
	}
	_, err := io.WriteString(r.w, sb.String())
	return err
}

// Roster renders agents in invocation order.
func (r *Renderer) Roster(roster []agent.Descriptor) error {
	var sb strings.Builder
	for i, d := range agent.Ordered(roster) {
		r.line(&sb, fmt.Sprintf("%d. %s %s",
			i+1,
			r.style(Heading, d.DisplayName()),
			r.style(Muted, fmt.Sprintf("(%s, priority %d)", d.Role, d.Priority)),
		))
		if d.Instructions != "" {
			r.line(&sb, "   "+util.FirstLine(d.Instructions))
		}
	}
	_, err := io.WriteString(r.w, sb.String())
	return err
}

// Phrases renders the completion phrases responses are matched against.
func (r *Renderer) Phrases(phrases []string) error {
	var sb strings.Builder
	r.line(&sb, r.style(Heading, fmt.Sprintf("Completion phrases (%d)", len(phrases))))
	for _, p := range phrases {
		r.line(&sb, "  "+p)
	}
	_, err := io.WriteString(r.w, sb.String())
	return err
}

func fileSummary(counts map[workspace.OutcomeKind]int) string {
	var parts []string
	for _, kind := range []workspace.OutcomeKind{workspace.Created, workspace.Updated, workspace.Unchanged, workspace.Rejected} {
		if n := counts[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind.String()))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
