// Package tasks holds the task domain types and the pure text, priority and
// identity helpers shared by the store, the extraction engine and the review
// session.
package tasks

import "time"

// Priority is a normalized task priority.
type Priority string

// Priority levels, in rank order.
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high_priority"
	PriorityMedium Priority = "medium_priority"
	PriorityLow    Priority = "low_priority"
)

// DefaultPriority is used for missing or unrecognized priorities.
const DefaultPriority = PriorityMedium

// Status is the lifecycle state of a stored task.
type Status string

// Task statuses.
const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// IsTerminal reports whether a task in this status can no longer be reviewed.
func (s Status) IsTerminal() bool {
	return s == StatusUploaded || s == StatusCompleted
}

// Batch statuses. Informational only.
const (
	BatchOpen   = "open"
	BatchClosed = "closed"
)

// Task is a stored candidate action item.
type Task struct {
	ID        int64
	BatchID   int64
	UserID    int64
	ChannelID int64
	Text      string
	Priority  Priority
	Status    Status
	DedupeKey string

	SourceMessageID   int64  // 0 when unknown
	SourceMessageLink string // empty when unknown
	SourceMessageTS   int64  // unix seconds, 0 when unknown

	LinearIssueID  string
	LinearIssueURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Candidate is a prepared, not yet persisted task.
type Candidate struct {
	Text              string
	Priority          Priority
	SourceMessageID   int64
	SourceMessageLink string
	SourceMessageTS   int64
	DedupeKey         string
}

// Batch is one extraction run.
type Batch struct {
	ID              int64
	UserID          int64
	SourceChannelID int64
	TargetChannelID int64
	MessageStartID  int64
	MessageEndID    int64
	MessageCount    int
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
