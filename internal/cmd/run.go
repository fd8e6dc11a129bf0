package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run [project-dir]",
	Short: "Run the agents on a project until they agree it is done",
	Long: `Run the agent roster on a project directory.

The directory is created if it does not exist. Agents take turns in priority
order, each one seeing the files written so far. After the minimum number of
iterations the run stops as soon as enough agents say the project is
complete, or when the iteration cap is reached.

Interrupting a run lets the current agent finish, then stops. Interrupt
again to quit immediately.

Examples:
  # Build a project in ./todo with the default roster
  roundtable run ./todo --task "A CLI todo app in Go with tests"

  # Use a custom roster and a longer run
  roundtable run ./api --task-file task.md --agents agents.yaml --max-iterations 8

  # Replay a scripted conversation without calling a model
  roundtable run ./demo --task "demo" --backend script --script replies.yaml`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, runFlagKeys)
	},
	RunE: runRun,
}

var (
	runTask       string
	runTaskFile   string
	runAgentsFile string
	runQuiet      bool
	runVerbose    bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Only print the final report")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "List unchanged files in the report")
}

// addRunFlags registers the flags shared by run and batch.
func addRunFlags(cmd *cobra.Command) {
	defaults := config.Default()

	cmd.Flags().StringVarP(&runTask, "task", "t", "", "Task description")
	cmd.Flags().StringVar(&runTaskFile, "task-file", "", "Read the task from a file (- for stdin)")
	cmd.Flags().StringVarP(&runAgentsFile, "agents", "a", "", "Roster file (default: agents from config, then the built-in roster)")

	cmd.Flags().Int("max-iterations", defaults.Run.MaxIterations, "Maximum number of iterations")
	cmd.Flags().Int("min-iterations", defaults.Run.MinIterations, "First iteration at which consensus is checked")
	cmd.Flags().Bool("auto-stop", defaults.Run.AutoStop, "Stop early once consensus is reached")
	cmd.Flags().Float64("threshold", defaults.Run.ConsensusThreshold, "Fraction of agents that must signal completion")
	cmd.Flags().Int("timeout", defaults.Run.InvocationTimeoutSeconds, "Per-invocation timeout in seconds (0 for none)")
	cmd.Flags().Int("retries", defaults.Run.MaxRetries, "Retries for a failed invocation")
	cmd.Flags().Int("history", defaults.Run.HistoryLimit, "Messages of history shown to agents (0 for all)")
	cmd.Flags().String("backend", defaults.Backend.Kind, "Agent backend (command/anthropic/openai/script)")
	cmd.Flags().String("model", "", "Model for the API backends")
	cmd.Flags().String("script", "", "Reply script for the script backend")
}

func runRun(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

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
	invoker, err := agent.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	out := report.New(cmd.OutOrStdout())
	out.SetVerbose(runVerbose)

	job := runJob{root: root, task: task, cfg: cfg, roster: roster, invoker: invoker}
	if !runQuiet {
		job.callbacks = report.NewProgress(out, "", &sync.Mutex{}).Callbacks()
	}

	ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr())
	defer stop()

	res, runErr := executeRun(ctx, job)
	if res == nil {
		return runErr
	}

	if !runQuiet {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if err := out.Result(res); err != nil {
		return err
	}
	return runErr
}
