package linear

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/tasks"
)

// ErrUnavailable is returned when export is not configured: no API key, no
// team, or no workflow state for the task's priority.
var ErrUnavailable = errors.New("linear export unavailable")

const maxTitleLen = 80

// Exporter turns reviewed tasks into Linear issues.
type Exporter struct {
	client *Client
	cfg    Config
	log    *slog.Logger
}

// NewExporter creates an exporter. Client options are passed through.
func NewExporter(cfg *Config, opts ...Option) *Exporter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Exporter{
		client: NewClient(cfg.APIKey, opts...),
		cfg:    *cfg,
		log:    logging.WithComponent("linear"),
	}
}

// Client returns the underlying API client.
func (e *Exporter) Client() *Client {
	return e.client
}

// Available reports whether credentials and a team are configured.
func (e *Exporter) Available() bool {
	return e.cfg.APIKey != "" && e.cfg.TeamID != ""
}

// Mapping resolves the workflow state and label for a priority. Low
// priority goes to the backlog; everything else, and a low priority without
// a backlog state, goes to todo.
func (e *Exporter) Mapping(p tasks.Priority) (stateID, labelID string) {
	switch tasks.NormalizePriority(string(p)) {
	case tasks.PriorityUrgent:
		stateID, labelID = e.cfg.StateTodoID, e.cfg.LabelUrgentID
	case tasks.PriorityHigh:
		stateID, labelID = e.cfg.StateTodoID, e.cfg.LabelHighPriorityID
	case tasks.PriorityLow:
		stateID, labelID = e.cfg.StateBacklogID, e.cfg.LabelLowPriorityID
	default:
		stateID, labelID = e.cfg.StateTodoID, e.cfg.LabelMediumPriorityID
	}
	if stateID == "" {
		stateID = e.cfg.StateTodoID
	}
	return stateID, labelID
}

// Title returns the issue title for task text.
func Title(text string) string {
	return tasks.Truncate(strings.TrimSpace(text), maxTitleLen)
}

// Description returns the issue body.
func Description(t tasks.Task, requestedBy string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generated from Discord by %s.\n\n%s", requestedBy, strings.TrimSpace(t.Text))
	if t.SourceMessageLink != "" {
		fmt.Fprintf(&sb, "\n\nSource: %s", t.SourceMessageLink)
	}
	fmt.Fprintf(&sb, "\n\nChannel: <#%d>", t.ChannelID)
	return sb.String()
}

// BuildInput assembles the issueCreate input for a task.
func (e *Exporter) BuildInput(t tasks.Task, requestedBy string) (IssueInput, error) {
	if !e.Available() {
		return IssueInput{}, ErrUnavailable
	}
	stateID, labelID := e.Mapping(t.Priority)
	if stateID == "" {
		return IssueInput{}, fmt.Errorf("%w: no workflow state for %s", ErrUnavailable, t.Priority)
	}

	input := IssueInput{
		Title:       Title(t.Text),
		Description: Description(t, requestedBy),
		TeamID:      e.cfg.TeamID,
		StateID:     stateID,
		ProjectID:   e.cfg.ProjectID,
		Priority:    NativePriority(t.Priority),
	}
	if labelID != "" {
		input.LabelIDs = []string{labelID}
	}
	return input, nil
}

// ExportTask creates an issue for one task and returns its id and URL.
// Failures are returned as-is and never retried.
func (e *Exporter) ExportTask(ctx context.Context, t tasks.Task, requestedBy string) (string, string, error) {
	input, err := e.BuildInput(t, requestedBy)
	if err != nil {
		return "", "", err
	}

	issue, err := e.client.CreateIssue(ctx, input)
	if err != nil {
		e.log.Warn("Issue creation failed",
			slog.Int64("task_id", t.ID),
			slog.Any("error", err))
		return "", "", fmt.Errorf("create issue for task %d: %w", t.ID, err)
	}

	e.log.Info("Issue created",
		slog.Int64("task_id", t.ID),
		slog.String("issue", issue.Identifier),
		slog.String("url", issue.URL))
	return issue.ID, issue.URL, nil
}
