package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/report"
	"github.com/Iron-Ham/roundtable/internal/session"
)

var showCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the report of a run",
	Long: `Show the report of a finished run.

The run ID may be abbreviated to any unique prefix. Without one, the most
recent run is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

var (
	showRoot    string
	showVerbose bool
	showYAML    bool
)

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showRoot, "root", "r", ".", "Project directory")
	showCmd.Flags().BoolVarP(&showVerbose, "verbose", "v", false, "List unchanged files too")
	showCmd.Flags().BoolVar(&showYAML, "yaml", false, "Print the raw report as YAML")
}

func runShow(cmd *cobra.Command, args []string) error {
	var ref string
	if len(args) > 0 {
		ref = args[0]
	}

	root, stateRoot, err := resolveProject(showRoot)
	if err != nil {
		return err
	}
	info, err := session.FindRun(root, stateRoot, ref)
	if err != nil {
		return err
	}
	res, err := session.LoadReport(info.RunDir)
	if err != nil {
		return err
	}

	if showYAML {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}

	out := report.New(cmd.OutOrStdout())
	out.SetVerbose(showVerbose)
	return out.Result(res)
}
