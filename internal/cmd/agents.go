package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/orchestrator/completion"
	"github.com/Iron-Ham/roundtable/internal/report"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show the agent roster in invocation order",
	Long: `Show the agents a run would use, in the order they take their turns.

The roster comes from --agents when given, otherwise from the agents section
of the config file, otherwise the built-in roster is used.

The completion phrases a response is matched against are listed after the
roster: the built-in ones plus workspace.completion_phrases.`,
	Args: cobra.NoArgs,
	RunE: runAgents,
}

var agentsFile string

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.Flags().StringVarP(&agentsFile, "agents", "a", "", "Roster file")
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	roster, err := loadRoster(agentsFile)
	if err != nil {
		return err
	}
	if len(roster) == 0 {
		roster = agent.FromConfig(cfg.Agents)
	}
	if len(roster) == 0 {
		roster = agent.DefaultRoster()
	}
	if err := agent.ValidateRoster(roster); err != nil {
		return err
	}

	out := report.New(cmd.OutOrStdout())
	if err := out.Roster(roster); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return out.Phrases(completion.NewDetector(cfg.Workspace.CompletionPhrases...).Phrases())
}
