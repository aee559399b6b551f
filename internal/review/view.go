package review

import (
	"fmt"

	"github.com/novatra/novabot/internal/tasks"
)

// Row is one visible task.
type Row struct {
	// Position is 1-based over the whole batch.
	Position   int
	TaskID     int64
	Text       string
	Priority   tasks.Priority
	Status     tasks.Status
	SourceLink string
	IssueURL   string
	Selected   bool
	Locked     bool
}

// View is a render-ready snapshot of a session.
type View struct {
	Title      string
	BatchID    int64
	Provider   string
	Rows       []Row
	Page       int // 1-based
	TotalPages int
	Total      int
	Counts     map[tasks.Status]int
	Selected   int
	Closed     bool
}

// Empty reports whether the batch has no tasks.
func (v *View) Empty() bool {
	return v.Total == 0
}

// Footer renders "Page p/n • N tasks".
func (v *View) Footer() string {
	footer := fmt.Sprintf("Page %d/%d • %d tasks", v.Page, v.TotalPages, v.Total)
	if v.Provider != "" {
		footer += " • Generated by " + v.Provider
	}
	return footer
}

// CountSummary renders the non-zero per-status counts in lifecycle order.
func (v *View) CountSummary() string {
	order := []tasks.Status{
		tasks.StatusPending, tasks.StatusApproved, tasks.StatusRejected,
		tasks.StatusUploaded, tasks.StatusFailed, tasks.StatusCompleted,
	}
	out := ""
	for _, st := range order {
		n := v.Counts[st]
		if n == 0 {
			continue
		}
		if out != "" {
			out += " · "
		}
		out += fmt.Sprintf("%d %s", n, st)
	}
	return out
}

// PageHasActionable reports whether any visible task can still change.
func (v *View) PageHasActionable() bool {
	for _, r := range v.Rows {
		if !r.Locked {
			return true
		}
	}
	return false
}

func (s *Session) render() *View {
	v := &View{
		Title:      fmt.Sprintf("📋 Task Review for %s", s.meta.UserName),
		BatchID:    s.meta.BatchID,
		Provider:   s.meta.Provider,
		Page:       s.page + 1,
		TotalPages: s.totalPages(),
		Total:      len(s.tasks),
		Counts:     make(map[tasks.Status]int),
		Selected:   s.selected,
		Closed:     s.closed,
	}
	for _, t := range s.tasks {
		v.Counts[t.Status]++
	}

	start, end := s.pageBounds()
	for i := start; i < end; i++ {
		t := s.tasks[i]
		v.Rows = append(v.Rows, Row{
			Position:   i + 1,
			TaskID:     t.ID,
			Text:       t.Text,
			Priority:   t.Priority,
			Status:     t.Status,
			SourceLink: t.SourceMessageLink,
			IssueURL:   t.LinearIssueURL,
			Selected:   s.selected == i+1,
			Locked:     t.Status.IsTerminal(),
		})
	}
	return v
}
