package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/novatra/novabot/internal/tasks"
)

const textColumnWidth = 48

// RenderTaskTable renders stored tasks for the tasks list command.
func RenderTaskTable(list []tasks.Task) string {
	if len(list) == 0 {
		return dimStyle.Render("No tasks found.") + "\n"
	}

	header := fmt.Sprintf("%-6s %-6s %-8s %-*s %s", "ID", "BATCH", "PRIORITY", textColumnWidth, "TASK", "STATUS")
	var b strings.Builder
	b.WriteString(labelStyle.Bold(true).Render(header))
	b.WriteString("\n")

	for _, t := range list {
		text := padOrTruncate(t.Text, textColumnWidth)
		line := fmt.Sprintf("%-6d %-6d %-8s %s %s", t.ID, t.BatchID, t.Priority.Label(), text, statusBadge(t.Status))
		b.WriteString(line)
		b.WriteString("\n")
		if t.LinearIssueURL != "" {
			b.WriteString(dimStyle.Render(strings.Repeat(" ", 7) + "↳ " + t.LinearIssueURL))
			b.WriteString("\n")
		}
	}

	counts := make(map[tasks.Status]int)
	for _, t := range list {
		counts[t.Status]++
	}
	var parts []string
	for _, s := range []tasks.Status{
		tasks.StatusPending, tasks.StatusApproved, tasks.StatusRejected,
		tasks.StatusUploaded, tasks.StatusFailed, tasks.StatusCompleted,
	} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	b.WriteString(lipgloss.NewStyle().MarginTop(1).Render(dimStyle.Render(strings.Join(parts, " · "))))
	b.WriteString("\n")
	return b.String()
}
