package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
	"github.com/Iron-Ham/roundtable/internal/util"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// Progress prints one line per run event while a run is underway. A prefix
// tells runs apart when several share the output, as in batch mode.
type Progress struct {
	r      *Renderer
	prefix string
	mu     *sync.Mutex
}

// NewProgress returns a Progress printing through r. Progress values that
// share mu may write to the same output from different goroutines.
func NewProgress(r *Renderer, prefix string, mu *sync.Mutex) *Progress {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Progress{r: r, prefix: prefix, mu: mu}
}

// Callbacks returns controller callbacks that print progress.
func (p *Progress) Callbacks() *orchestrator.Callbacks {
	return &orchestrator.Callbacks{
		OnIterationStart: func(iteration int) {
			p.print(p.r.style(Heading, fmt.Sprintf("Iteration %d", iteration)))
		},
		OnAgentStart: func(_ int, d agent.Descriptor) {
			p.print(p.r.style(Muted, fmt.Sprintf("  %s is working...", d.DisplayName())))
		},
		OnAgentComplete: func(_ int, rec orchestrator.AgentRecord) {
			var sb strings.Builder
			p.r.agentLine(&sb, rec)
			if changed := changedFiles(rec.Outcomes); changed != "" {
				p.r.line(&sb, "      "+p.r.style(Muted, changed))
			}
			p.print(strings.TrimRight(sb.String(), "\n"))
		},
		OnIterationComplete: func(rec orchestrator.IterationRecord) {
			signaled, total := rec.Tally()
			msg := fmt.Sprintf("  consensus %d/%d", signaled, total)
			if !rec.Checked {
				msg += " (below minimum iterations)"
			}
			p.print(p.r.style(Muted, msg))
		},
		OnComplete: func(res *orchestrator.RunResult) {
			p.print(p.r.style(StateStyle(res.State, res.Reason),
				fmt.Sprintf("Finished after %s: %s", util.Plural(res.Iterations, "iteration"), res.Reason)))
		},
	}
}

func (p *Progress) print(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for line := range strings.Lines(text) {
		line = strings.TrimSuffix(line, "\n")
		if p.prefix != "" {
			line = p.r.style(Info, "["+p.prefix+"]") + " " + line
		}
		_, _ = io.WriteString(p.r.w, util.TruncateANSI(line, p.r.width)+"\n")
	}
}

// changedFiles lists created and updated paths on one line.
func changedFiles(outcomes []workspace.Outcome) string {
	var paths []string
	for _, out := range outcomes {
		if out.Kind == workspace.Created || out.Kind == workspace.Updated {
			paths = append(paths, out.Path)
		}
	}
	return strings.Join(paths, ", ")
}
