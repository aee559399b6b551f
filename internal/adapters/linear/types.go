package linear

import "github.com/novatra/novabot/internal/tasks"

// Config holds Linear export configuration. Ids come from
// `novabot linear ids`.
type Config struct {
	APIKey                string `yaml:"api_key"`
	TeamID                string `yaml:"team_id"`
	ProjectID             string `yaml:"project_id"`
	StateTodoID           string `yaml:"state_todo_id"`
	StateBacklogID        string `yaml:"state_backlog_id"`
	LabelUrgentID         string `yaml:"label_urgent_id"`
	LabelHighPriorityID   string `yaml:"label_high_priority_id"`
	LabelMediumPriorityID string `yaml:"label_medium_priority_id"`
	LabelLowPriorityID    string `yaml:"label_low_priority_id"`
}

// DefaultConfig returns an empty configuration; export stays unavailable
// until an API key and team are set.
func DefaultConfig() *Config {
	return &Config{}
}

// Linear's native priority levels.
const (
	PriorityNone   = 0
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityMedium = 3
	PriorityLow    = 4
)

// NativePriority maps a task priority onto Linear's priority field.
func NativePriority(p tasks.Priority) int {
	switch tasks.NormalizePriority(string(p)) {
	case tasks.PriorityUrgent:
		return PriorityUrgent
	case tasks.PriorityHigh:
		return PriorityHigh
	case tasks.PriorityMedium:
		return PriorityMedium
	case tasks.PriorityLow:
		return PriorityLow
	default:
		return PriorityNone
	}
}

// Team represents a Linear team
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Project represents a Linear project
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// State represents a workflow state
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Label represents a Linear label
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TeamData lists the states and labels of a team.
type TeamData struct {
	States []State
	Labels []Label
}

// IssueInput is the IssueCreateInput payload.
type IssueInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TeamID      string   `json:"teamId"`
	StateID     string   `json:"stateId,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	LabelIDs    []string `json:"labelIds,omitempty"`
	Priority    int      `json:"priority,omitempty"`
}

// Issue is the created issue as returned by issueCreate.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Number     int    `json:"number"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}
