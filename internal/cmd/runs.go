package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/report"
	"github.com/Iron-Ham/roundtable/internal/session"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs of a project",
	Long: `List the runs recorded for a project, most recent first.

Runs without a report are still going or were killed before they finished.`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

var runsRoot string

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVarP(&runsRoot, "root", "r", ".", "Project directory")
}

func runRuns(cmd *cobra.Command, args []string) error {
	root, stateRoot, err := resolveProject(runsRoot)
	if err != nil {
		return err
	}
	infos, err := session.ListRuns(root, stateRoot)
	if err != nil {
		return err
	}
	return report.New(cmd.OutOrStdout()).Runs(infos)
}

// resolveProject returns the absolute project root and its state directory
// under the loaded configuration.
func resolveProject(root string) (string, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", "", err
	}
	return abs, cfg.Paths.ResolveStateDir(abs), nil
}
