package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View roundtable configuration",
	Long: `View roundtable configuration or create a config file.

Use 'config show' to print the effective configuration, after defaults,
the config file and ROUNDTABLE_* environment variables are applied.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(w, "# Config file: (none - using defaults)")
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize roundtable's behavior.")
	return nil
}

func defaultConfigYAML() ([]byte, error) {
	body, err := yaml.Marshal(config.Default())
	if err != nil {
		return nil, err
	}
	header := "# Roundtable Configuration\n" +
		"# Every key can also be set with a ROUNDTABLE_ environment variable,\n" +
		"# e.g. ROUNDTABLE_RUN_MAX_ITERATIONS for run.max_iterations.\n" +
		"# An empty agents list uses the built-in roster.\n\n"
	return append([]byte(header), body...), nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(w, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(w, "\nSearch paths:")
	fmt.Fprintf(w, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(w, "  2. $HOME/.config/roundtable/config.yaml")
	fmt.Fprintln(w, "  3. ./config.yaml (current directory)")
	fmt.Fprintln(w, "\nEnvironment variables: ROUNDTABLE_* (e.g., ROUNDTABLE_RUN_MAX_ITERATIONS)")
	return nil
}
