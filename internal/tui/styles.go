package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/novatra/novabot/internal/tasks"
)

// Panel width (all panels same width)
const (
	panelTotalWidth = 72 // Total visual width including borders
	panelInnerWidth = 68 // panelTotalWidth - 4 (2 borders + 2 padding spaces)
)

// Styles (muted terminal aesthetic)
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7eb8da")) // steel blue

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3d4450")) // slate

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c9d1d9"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7eb8da"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a054")) // amber

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d48a8a")) // dusty rose
)

var statusStyles = map[tasks.Status]lipgloss.Style{
	tasks.StatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	tasks.StatusApproved:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7ec699")), // sage green
	tasks.StatusRejected:  lipgloss.NewStyle().Foreground(lipgloss.Color("#d48a8a")),
	tasks.StatusUploaded:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7eb8da")),
	tasks.StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#d4a054")),
	tasks.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#7ec699")).Bold(true),
}

var statusIcons = map[tasks.Status]string{
	tasks.StatusPending:   "○",
	tasks.StatusApproved:  "✓",
	tasks.StatusRejected:  "✗",
	tasks.StatusUploaded:  "↑",
	tasks.StatusFailed:    "!",
	tasks.StatusCompleted: "●",
}

func statusBadge(s tasks.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		style = dimStyle
	}
	icon := statusIcons[s]
	if icon == "" {
		icon = "?"
	}
	return style.Render(icon + " " + string(s))
}

// renderPanel builds a panel manually with guaranteed width
// Structure: ╭─ TITLE ─...─╮ / │ (space) content (space) │ / ╰─...─╯
func renderPanel(title string, content string) string {
	var lines []string
	lines = append(lines, buildTopBorder(title))
	lines = append(lines, buildEmptyLine())
	for _, line := range strings.Split(content, "\n") {
		lines = append(lines, buildContentLine(line))
	}
	lines = append(lines, buildEmptyLine())
	lines = append(lines, buildBottomBorder())
	return strings.Join(lines, "\n")
}

// buildTopBorder creates: ╭─ TITLE ─────...─────╮ with exact panelTotalWidth
func buildTopBorder(title string) string {
	prefix := "╭─ "
	prefixWidth := lipgloss.Width(prefix + title + " ")
	dashCount := max(panelTotalWidth-prefixWidth-1, 0)
	return borderStyle.Render(prefix) + labelStyle.Render(title) + borderStyle.Render(" "+strings.Repeat("─", dashCount)+"╮")
}

func buildBottomBorder() string {
	return borderStyle.Render("╰" + strings.Repeat("─", panelTotalWidth-2) + "╯")
}

func buildEmptyLine() string {
	border := borderStyle.Render("│")
	return border + strings.Repeat(" ", panelTotalWidth-2) + border
}

// buildContentLine creates: │ (space) content padded/truncated (space) │
func buildContentLine(content string) string {
	border := borderStyle.Render("│")
	return border + " " + padOrTruncate(content, panelInnerWidth) + " " + border
}

// padOrTruncate ensures content is exactly targetWidth visual chars
func padOrTruncate(s string, targetWidth int) string {
	visualWidth := lipgloss.Width(s)
	if visualWidth == targetWidth {
		return s
	}
	if visualWidth > targetWidth {
		return truncateVisual(s, targetWidth)
	}
	return s + strings.Repeat(" ", targetWidth-visualWidth)
}

// truncateVisual truncates plain text to targetWidth visual chars, ending
// with "..." when cut.
func truncateVisual(s string, targetWidth int) string {
	if lipgloss.Width(s) <= targetWidth {
		return s
	}
	if targetWidth <= 3 {
		return strings.Repeat(".", targetWidth)
	}

	var b strings.Builder
	width := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if width+rw > targetWidth-3 {
			break
		}
		b.WriteRune(r)
		width += rw
	}
	for width < targetWidth-3 {
		b.WriteByte(' ')
		width++
	}
	return b.String() + "..."
}
