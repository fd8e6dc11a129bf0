package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/roundtable/internal/logging"
	"github.com/Iron-Ham/roundtable/internal/session"
)

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "View run logs",
	Long: `View and filter the debug log of a run.

By default, shows the last 50 entries of the most recent run. Use flags to
filter and format the output.

Examples:
  # Show the last 50 entries of the most recent run
  roundtable logs

  # Show everything the qa agent logged in iteration 2 of run 3f2a
  roundtable logs 3f2a -n 0 --agent qa --iteration 2

  # Warnings and errors from the last hour
  roundtable logs --level warn --since 1h

  # Export a run's log as CSV
  roundtable logs 3f2a --format csv --output run.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsRoot      string
	logsTail      int
	logsLevel     string
	logsAgent     string
	logsIteration int
	logsSince     string
	logsGrep      string
	logsFormat    string
	logsOutput    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsRoot, "root", "r", ".", "Project directory")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsAgent, "agent", "", "Only entries for this agent role")
	logsCmd.Flags().IntVar(&logsIteration, "iteration", 0, "Only entries for this iteration")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only entries whose message contains this text")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format (text/json/csv)")
	logsCmd.Flags().StringVarP(&logsOutput, "output", "o", "", "Write to a file instead of stdout")
}

func runLogs(cmd *cobra.Command, args []string) error {
	var ref string
	if len(args) > 0 {
		ref = args[0]
	}

	filter, err := buildLogFilter(time.Now())
	if err != nil {
		return err
	}

	root, stateRoot, err := resolveProject(logsRoot)
	if err != nil {
		return err
	}
	info, err := session.FindRun(root, stateRoot, ref)
	if err != nil {
		return err
	}
	entries, err := logging.AggregateLogs(info.RunDir)
	if err != nil {
		return err
	}
	entries = tailEntries(logging.FilterLogs(entries, filter), logsTail)

	if logsOutput != "" {
		if err := logging.ExportLogEntries(entries, logsOutput, logsFormat); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s\n", len(entries), logsOutput)
		return nil
	}
	return logging.WriteLogEntries(cmd.OutOrStdout(), entries, logsFormat)
}

func buildLogFilter(now time.Time) (logging.LogFilter, error) {
	filter := logging.LogFilter{
		Level:           logsLevel,
		Agent:           logsAgent,
		Iteration:       logsIteration,
		MessageContains: logsGrep,
	}
	if logsLevel != "" {
		upper := strings.ToUpper(logsLevel)
		if upper != "WARNING" && !slices.Contains(logging.ValidLevels(), upper) {
			return filter, fmt.Errorf("invalid level %q (valid: %s)", logsLevel, strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
		}
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.StartTime = now.Add(-d)
	}
	return filter, nil
}

// tailEntries returns the last n entries, or all of them when n <= 0.
func tailEntries(entries []logging.LogEntry, n int) []logging.LogEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
