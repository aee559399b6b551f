package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/novatra/novabot/internal/adapters/linear"
)

func newLinearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linear",
		Short: "Linear integration helpers",
	}
	cmd.AddCommand(newLinearIDsCmd())
	return cmd
}

func newLinearIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "Print the team, project, state and label ids",
		Long: `Query Linear for the ids the exporter needs and print them as
environment lines. Only LINEAR_API_KEY is required; with LINEAR_TEAM_ID set
the team's projects, states and labels are listed too.

Examples:
  LINEAR_API_KEY=lin_api_... novabot linear ids
  novabot linear ids >> .env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Linear.APIKey == "" {
				return errors.New("linear api key is required (set LINEAR_API_KEY)")
			}
			return printLinearIDs(cmd, linear.NewClient(cfg.Linear.APIKey), cfg.Linear.TeamID)
		},
	}
}

func printLinearIDs(cmd *cobra.Command, client *linear.Client, teamID string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	teams, err := client.GetTeams(ctx)
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	_, _ = fmt.Fprintln(w, "# Teams")
	for _, t := range teams {
		_, _ = fmt.Fprintf(w, "# %s (%s)\n", t.Name, t.Key)
		envLine(w, "LINEAR_TEAM_ID", t.ID, t.ID != teamID)
	}
	if teamID == "" {
		_, _ = fmt.Fprintln(w, "\n# Set LINEAR_TEAM_ID and run again for projects, states and labels.")
		return nil
	}

	projects, err := client.GetProjects(ctx, teamID)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	_, _ = fmt.Fprintln(w, "\n# Projects")
	for _, p := range projects {
		_, _ = fmt.Fprintf(w, "# %s\n", p.Name)
		envLine(w, "LINEAR_PROJECT_ID", p.ID, true)
	}

	data, err := client.GetTeamStatesAndLabels(ctx, teamID)
	if err != nil {
		return fmt.Errorf("list states and labels: %w", err)
	}
	_, _ = fmt.Fprintln(w, "\n# Workflow states")
	for _, s := range data.States {
		_, _ = fmt.Fprintf(w, "# %s (%s)\n", s.Name, s.Type)
		envLine(w, stateKey(s), s.ID, stateKey(s) == "LINEAR_STATE_ID")
	}
	_, _ = fmt.Fprintln(w, "\n# Labels")
	for _, l := range data.Labels {
		_, _ = fmt.Fprintf(w, "# %s\n", l.Name)
		envLine(w, labelKey(l), l.ID, labelKey(l) == "LINEAR_LABEL_ID")
	}
	return nil
}

// envLine prints KEY=value, commented out when it is only a candidate.
func envLine(w io.Writer, key, value string, commented bool) {
	prefix := ""
	if commented {
		prefix = "# "
	}
	_, _ = fmt.Fprintf(w, "%s%s=%s\n", prefix, key, value)
}

func stateKey(s linear.State) string {
	switch {
	case s.Type == "backlog":
		return "LINEAR_STATE_BACKLOG_ID"
	case s.Type == "unstarted" && strings.EqualFold(s.Name, "todo"):
		return "LINEAR_STATE_TODO_ID"
	default:
		return "LINEAR_STATE_ID"
	}
}

func labelKey(l linear.Label) string {
	switch strings.ToLower(strings.TrimSpace(l.Name)) {
	case "urgent":
		return "LINEAR_LABEL_URGENT_ID"
	case "high priority", "high":
		return "LINEAR_LABEL_HIGH_PRIORITY_ID"
	case "medium priority", "medium":
		return "LINEAR_LABEL_MEDIUM_PRIORITY_ID"
	case "low priority", "low":
		return "LINEAR_LABEL_LOW_PRIORITY_ID"
	default:
		return "LINEAR_LABEL_ID"
	}
}
