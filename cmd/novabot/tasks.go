package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novatra/novabot/internal/store"
	"github.com/novatra/novabot/internal/tasks"
	"github.com/novatra/novabot/internal/tui"
)

var validStatuses = []tasks.Status{
	tasks.StatusPending, tasks.StatusApproved, tasks.StatusRejected,
	tasks.StatusUploaded, tasks.StatusFailed, tasks.StatusCompleted,
}

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect stored tasks",
	}
	cmd.AddCommand(newTasksListCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var (
		batchID   int64
		userID    int64
		channelID int64
		status    string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extracted tasks",
		Long: `List tasks from the local store.

Examples:
  novabot tasks list --batch 12
  novabot tasks list --user 123456789012345678 --status approved
  novabot tasks list --channel 987654321098765432 --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.TaskFilter{BatchID: batchID, UserID: userID, ChannelID: channelID, Limit: limit}
			if status != "" {
				s, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = s
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			list, err := st.ListTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tui.RenderTaskTable(list))
			return err
		},
	}

	cmd.Flags().Int64Var(&batchID, "batch", 0, "only tasks of this batch")
	cmd.Flags().Int64Var(&userID, "user", 0, "only tasks assigned to this user id")
	cmd.Flags().Int64Var(&channelID, "channel", 0, "only tasks extracted from this channel id")
	cmd.Flags().StringVar(&status, "status", "", "only tasks in this status")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of tasks (0 for all)")
	return cmd
}

func parseStatus(v string) (tasks.Status, error) {
	for _, s := range validStatuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q (want one of %v)", v, validStatuses)
}
