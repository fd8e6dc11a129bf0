package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
	"github.com/Iron-Ham/roundtable/internal/report"
	"github.com/Iron-Ham/roundtable/internal/session"
)

var batchCmd = &cobra.Command{
	Use:   "batch <project-dir>...",
	Short: "Run the same task on several projects in parallel",
	Long: `Run one task on several project directories at once.

Every directory gets its own independent run with its own agents, history
and report. Directories named more than once are run once. A failed run
does not stop the others.

Examples:
  # Three attempts at the same task, two at a time
  roundtable batch ./try-1 ./try-2 ./try-3 --task "A URL shortener" --parallel 2`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, runFlagKeys)
	},
	RunE: runBatch,
}

var batchParallel int

func init() {
	rootCmd.AddCommand(batchCmd)
	addRunFlags(batchCmd)
	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 4, "Maximum runs at once (0 for no limit)")
}

// batchOutcome is the result of one run in a batch.
type batchOutcome struct {
	root   string
	result *orchestrator.RunResult
	err    error
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	task, err := readTask(runTask, runTaskFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	roster, err := loadRoster(runAgentsFile)
	if err != nil {
		return err
	}
	roots, err := uniqueRoots(args)
	if err != nil {
		return err
	}

	out := report.New(cmd.OutOrStdout())
	ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr())
	defer stop()

	var mu sync.Mutex
	outcomes := make([]batchOutcome, len(roots))

	// Each run reports its own error; the group only bounds concurrency.
	var g errgroup.Group
	if batchParallel > 0 {
		g.SetLimit(batchParallel)
	}
	for i, root := range roots {
		g.Go(func() error {
			outcomes[i] = batchOutcome{root: root}
			invoker, err := agent.NewFromConfig(cfg)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			job := runJob{
				root:      root,
				task:      task,
				cfg:       cfg,
				roster:    roster,
				invoker:   invoker,
				callbacks: report.NewProgress(out, filepath.Base(root), &mu).Callbacks(),
			}
			outcomes[i].result, outcomes[i].err = executeRun(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return summarizeBatch(cmd.OutOrStdout(), outcomes)
}

// uniqueRoots resolves roots to absolute paths and drops repeats, keeping
// the first occurrence. Two runs on one directory would fight over its files.
func uniqueRoots(roots []string) ([]string, error) {
	seen := make(map[string]bool, len(roots))
	var unique []string
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.NewValidationError("invalid project directory").
				WithField("project-dir").WithValue(root).WithCause(errors.ErrInvalidInput)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		unique = append(unique, abs)
	}
	return unique, nil
}

func summarizeBatch(w io.Writer, outcomes []batchOutcome) error {
	fmt.Fprintln(w)
	var failed []error
	for _, o := range outcomes {
		switch {
		case o.result == nil:
			fmt.Fprintf(w, "%s  not started: %v\n", o.root, o.err)
		default:
			res := o.result
			fmt.Fprintf(w, "%s  run %s  %s (%s) after %d iterations\n",
				o.root, session.ShortID(res.ID), res.State, res.Reason, res.Iterations)
		}
		if o.err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", o.root, o.err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d runs failed: %w", len(failed), len(outcomes), errors.Join(failed...))
	}
	return nil
}
