package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novatra/novabot/internal/config"
	"github.com/novatra/novabot/internal/health"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and optional features",
		Long: `Run the startup health checks without connecting to Discord.

Examples:
  novabot doctor
  novabot doctor --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				cfg = config.DefaultConfig()
			}
			report := health.RunChecks(cfg)
			w := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(w, "Dependencies:")
			for _, d := range report.Dependencies {
				_, _ = fmt.Fprintf(w, "  %s %-12s %s\n", d.Status.Symbol(), d.Name, d.Message)
				if verbose && d.Fix != "" && d.Status != health.StatusOK {
					_, _ = fmt.Fprintf(w, "                 → %s\n", d.Fix)
				}
			}
			_, _ = fmt.Fprintln(w, "\nFeatures:")
			for _, f := range report.Features {
				note := ""
				if f.Note != "" {
					note = " (" + f.Note + ")"
				}
				_, _ = fmt.Fprintf(w, "  %s %-12s%s\n", f.Status.Symbol(), f.Name, note)
			}

			if !report.OK() {
				return errors.New("health check failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show how to fix failed checks")
	return cmd
}
