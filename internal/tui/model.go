// Package tui is the terminal front end for reviewing an extraction batch.
// It drives the same review.Session as the Discord adapter.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/novatra/novabot/internal/review"
	"github.com/novatra/novabot/internal/tasks"
)

type uploadDoneMsg struct {
	view *review.View
	sum  review.UploadSummary
	err  error
}

// Model is the bubbletea model of one review.
type Model struct {
	ctx     context.Context
	session *review.Session
	view    *review.View

	busy     bool
	editing  bool
	draft    []rune
	status   string
	failed   bool
	quitting bool
}

// New creates a review model and focuses the first task.
func New(ctx context.Context, s *review.Session) Model {
	m := Model{ctx: ctx, session: s, view: s.View()}
	if s.Len() > 0 && s.Selected() == 0 {
		if v, err := s.Select(1); err == nil {
			m.view = v
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case uploadDoneMsg:
		m.busy = false
		if msg.view != nil {
			m.view = msg.view
		}
		m.setResult(uploadStatus(msg.sum), msg.err)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.busy {
				// The upload still owns the session.
				m.quitting = true
				return m, tea.Quit
			}
			return m.quit()
		}
		if m.busy {
			return m, nil
		}
		if m.editing {
			return m.updateEditor(msg)
		}
		return m.updateReview(msg)
	}
	return m, nil
}

func (m Model) updateReview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	switch msg.String() {
	case "q", "esc":
		return m.quit()
	case "left", "h":
		m.turnPage(s.PrevPage())
	case "right", "l":
		m.turnPage(s.NextPage())
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "a":
		m.apply(s.Approve(m.ctx, s.Selected()))
	case "r":
		m.apply(s.Reject(m.ctx, s.Selected()))
	case "A":
		m.apply(s.ApprovePage(m.ctx))
	case "R":
		m.apply(s.RejectPage(m.ctx))
	case "p":
		m.cyclePriority()
	case "e":
		t, err := s.Task(s.Selected())
		if err != nil {
			m.setResult("", err)
			return m, nil
		}
		if t.Status.IsTerminal() {
			m.setResult("", review.ErrLocked)
			return m, nil
		}
		m.editing = true
		m.draft = []rune(t.Text)
		m.status = ""
	case "u":
		if m.view.Counts[tasks.StatusApproved] == 0 {
			m.setResult("No approved tasks to upload.", nil)
			return m, nil
		}
		m.busy = true
		m.status = "Uploading approved tasks..."
		m.failed = false
		return m, m.uploadCmd()
	}
	return m, nil
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.draft = nil
		m.status = "Edit cancelled."
		m.failed = false
	case tea.KeyEnter:
		s := m.session
		v, err := s.Edit(m.ctx, s.Selected(), string(m.draft), "")
		if err != nil {
			m.setResult("", err)
			return m, nil
		}
		m.view = v
		m.editing = false
		m.draft = nil
		m.setResult("Task updated.", nil)
	case tea.KeyBackspace:
		if len(m.draft) > 0 {
			m.draft = m.draft[:len(m.draft)-1]
		}
	case tea.KeySpace:
		m.draft = append(m.draft, ' ')
	case tea.KeyRunes:
		m.draft = append(m.draft, msg.Runes...)
	}
	return m, nil
}

func (m *Model) apply(v *review.View, err error) {
	if err != nil {
		m.setResult("", err)
		return
	}
	m.view = v
	m.status = ""
	m.failed = false
}

// turnPage applies a page change and moves the selection onto the new page.
func (m *Model) turnPage(v *review.View, err error) {
	m.apply(v, err)
	if err != nil || len(m.view.Rows) == 0 {
		return
	}
	for _, r := range m.view.Rows {
		if r.Selected {
			return
		}
	}
	m.apply(m.session.Select(m.view.Rows[0].Position))
}

// moveCursor selects the previous or next task, crossing page boundaries.
func (m *Model) moveCursor(delta int) {
	pos := m.session.Selected() + delta
	if pos < 1 || pos > m.session.Len() {
		return
	}
	m.apply(m.session.Select(pos))
}

func (m *Model) cyclePriority() {
	s := m.session
	t, err := s.Task(s.Selected())
	if err != nil {
		m.setResult("", err)
		return
	}
	all := tasks.AllPriorities()
	next := all[0]
	for i, p := range all {
		if p == t.Priority {
			next = all[(i+1)%len(all)]
		}
	}
	m.apply(s.Edit(m.ctx, s.Selected(), t.Text, string(next)))
}

func (m Model) uploadCmd() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		v, sum, err := s.UploadApproved(ctx)
		return uploadDoneMsg{view: v, sum: sum, err: err}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.view = m.session.Close()
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) setResult(status string, err error) {
	m.failed = err != nil
	if err != nil {
		status = errorText(err)
	}
	m.status = status
}

func errorText(err error) string {
	switch {
	case errors.Is(err, review.ErrInvalidPosition):
		return "Select a task first."
	case errors.Is(err, review.ErrEmptyText):
		return "Task text cannot be empty."
	case errors.Is(err, review.ErrLocked):
		return "That task was already uploaded or completed and can't be changed."
	case errors.Is(err, review.ErrClosed):
		return "This review is closed."
	default:
		return "Error: " + err.Error()
	}
}

func uploadStatus(s review.UploadSummary) string {
	if s.Failed == 0 {
		return fmt.Sprintf("Uploaded %d task(s) to Linear.", s.Uploaded)
	}
	return fmt.Sprintf("Uploaded %d of %d task(s) to Linear; %d failed.", s.Uploaded, s.Attempted, s.Failed)
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Review closed.\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + m.view.Title))
	b.WriteString("\n\n")
	b.WriteString(m.renderTasks())
	b.WriteString("\n")

	if m.editing {
		b.WriteString(renderPanel("EDIT", "> "+string(m.draft)+"█"))
		b.WriteString("\n")
	}

	if m.status != "" {
		style := dimStyle
		switch {
		case m.failed:
			style = errorStyle
		case m.busy:
			style = warningStyle
		}
		b.WriteString("  " + style.Render(m.status))
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString(helpStyle.Render("  enter: save  esc: cancel"))
	} else {
		b.WriteString(helpStyle.Render("  ←/→: page  ↑/↓: select  a/r: approve/reject  A/R: page  e: edit  p: priority  u: upload  q: close"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderTasks() string {
	v := m.view
	var lines []string
	if v.Empty() {
		lines = append(lines, dimStyle.Render("No tasks in this batch."))
	}

	for _, r := range v.Rows {
		head := fmt.Sprintf("%2d. [%s] %s", r.Position, r.Priority.Label(), r.Text)
		head = truncateVisual(head, panelInnerWidth-2)
		if r.Selected {
			head = cursorStyle.Render("▸ " + head)
		} else {
			head = "  " + head
		}
		lines = append(lines, head)

		detail := "      " + statusBadge(r.Status)
		if r.IssueURL != "" {
			detail += dimStyle.Render("  " + truncateVisual(r.IssueURL, 40))
		}
		lines = append(lines, detail)
	}

	lines = append(lines, "")
	footer := v.Footer()
	if summary := v.CountSummary(); summary != "" {
		footer += " • " + summary
	}
	lines = append(lines, dimStyle.Render(truncateVisual(footer, panelInnerWidth)))

	return renderPanel("TASKS", strings.Join(lines, "\n"))
}
