package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/roundtable/internal/config"
	"github.com/Iron-Ham/roundtable/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "roundtable",
	Short: "Multi-agent iterative project builder",
	Long: `Roundtable has a roster of AI agents take turns working on a software
project. Each agent sees the current project files and the conversation so
far, and answers with file blocks that are written to disk. The run ends
when enough agents declare the project complete, or after the iteration cap.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode returns the process exit status for an error from Execute. Errors
// that no retry could fix, a bad configuration or an unusable project root,
// exit with 2. Everything else exits with 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsFatal(err):
		return 2
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/roundtable/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/roundtable")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ROUNDTABLE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., ROUNDTABLE_RUN_MAX_ITERATIONS for run.max_iterations
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// bindFlags binds each named flag of cmd to its config key. Binding happens
// when the command runs so commands sharing a key do not override each other.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}
