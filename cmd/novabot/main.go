package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/novatra/novabot/internal/banner"
	"github.com/novatra/novabot/internal/config"
)

var version = "0.1.0"

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "novabot",
		Short:         "Turn Discord conversations into reviewed Linear issues",
		Long:          `novabot reads channel history, asks a language model for each member's action items, and lets a human review them before they are exported to Linear.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.novabot/config.yaml)")

	rootCmd.AddCommand(
		newStartCmd(),
		newTasksCmd(),
		newReviewCmd(),
		newLinearCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads and validates the configuration file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show novabot version",
		Run: func(cmd *cobra.Command, args []string) {
			banner.PrintWithVersion(cmd.OutOrStdout(), version)
		},
	}
}
