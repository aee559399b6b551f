package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/novatra/novabot/internal/tasks"
)

const taskColumns = `id, batch_id, user_id, channel_id, task_text, priority, status, dedupe_key,
	COALESCE(source_message_id, 0), COALESCE(source_message_link, ''), COALESCE(source_message_ts, 0),
	COALESCE(linear_issue_id, ''), COALESCE(linear_issue_url, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*tasks.Task, error) {
	var t tasks.Task
	var priority, status string
	var createdAt, updatedAt int64
	err := row.Scan(&t.ID, &t.BatchID, &t.UserID, &t.ChannelID, &t.Text, &priority, &status, &t.DedupeKey,
		&t.SourceMessageID, &t.SourceMessageLink, &t.SourceMessageTS,
		&t.LinearIssueID, &t.LinearIssueURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Priority = tasks.Priority(priority)
	t.Status = tasks.Status(status)
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

// SaveTasks inserts candidates as pending tasks of a batch. Candidates whose
// cleaned text is empty, or whose dedupe key is already stored (including
// earlier in the same call), are skipped silently. The inserted tasks are
// returned in the caller's order.
func (s *Store) SaveTasks(ctx context.Context, candidates []tasks.Candidate, batchID, channelID, userID int64) ([]tasks.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save tasks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (user_id, channel_id, batch_id, task_text, priority, status,
			source_message_id, source_message_link, source_message_ts, dedupe_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedupe_key) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert task: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now()
	saved := make([]tasks.Task, 0, len(candidates))
	for _, c := range candidates {
		text := tasks.CleanText(c.Text)
		if text == "" {
			continue
		}
		priority := tasks.NormalizePriority(string(c.Priority))
		key := c.DedupeKey
		if key == "" {
			key = tasks.DedupeKey(userID, c.SourceMessageID, text)
		}

		res, err := stmt.ExecContext(ctx, userID, channelID, batchID, text, string(priority),
			nullInt64(c.SourceMessageID), nullString(c.SourceMessageLink), nullInt64(c.SourceMessageTS),
			key, now.Unix(), now.Unix())
		if err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read task id: %w", err)
		}

		saved = append(saved, tasks.Task{
			ID:                id,
			BatchID:           batchID,
			UserID:            userID,
			ChannelID:         channelID,
			Text:              text,
			Priority:          priority,
			Status:            tasks.StatusPending,
			DedupeKey:         key,
			SourceMessageID:   c.SourceMessageID,
			SourceMessageLink: c.SourceMessageLink,
			SourceMessageTS:   c.SourceMessageTS,
			CreatedAt:         time.Unix(now.Unix(), 0),
			UpdatedAt:         time.Unix(now.Unix(), 0),
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save tasks: %w", err)
	}
	return saved, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, taskID int64) (*tasks.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// TasksForBatch returns every task of a batch in insertion order, which is
// the ranked order the extraction engine saved them in.
func (s *Store) TasksForBatch(ctx context.Context, batchID int64) ([]tasks.Task, error) {
	return s.ListTasks(ctx, TaskFilter{BatchID: batchID})
}

// TaskFilter narrows ListTasks. Zero values are ignored.
type TaskFilter struct {
	BatchID   int64
	UserID    int64
	ChannelID int64
	Status    tasks.Status
	Limit     int
}

// ListTasks returns tasks matching the filter ordered by id.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]tasks.Task, error) {
	var where []string
	var args []any
	if f.BatchID != 0 {
		where = append(where, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ChannelID != 0 {
		where = append(where, "channel_id = ?")
		args = append(args, f.ChannelID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of tasks per status in a batch.
func (s *Store) CountByStatus(ctx context.Context, batchID int64) (map[tasks.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE batch_id = ? GROUP BY status`, batchID)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[tasks.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[tasks.Status(status)] = n
	}
	return counts, rows.Err()
}

// UpdateTaskText replaces the text of a task after cleaning it.
func (s *Store) UpdateTaskText(ctx context.Context, taskID int64, text string) error {
	return s.exec(ctx, "update task text",
		`UPDATE tasks SET task_text = ?, updated_at = ? WHERE id = ?`,
		tasks.CleanText(text), s.now().Unix(), taskID)
}

// UpdateTaskPriority replaces the priority of a task after normalizing it.
func (s *Store) UpdateTaskPriority(ctx context.Context, taskID int64, priority string) error {
	return s.exec(ctx, "update task priority",
		`UPDATE tasks SET priority = ?, updated_at = ? WHERE id = ?`,
		string(tasks.NormalizePriority(priority)), s.now().Unix(), taskID)
}

// SetTaskStatus writes a status. Transitions are not validated here.
func (s *Store) SetTaskStatus(ctx context.Context, taskID int64, status tasks.Status) error {
	return s.exec(ctx, "set task status",
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().Unix(), taskID)
}

// SetTaskStatusBulk writes one status to many tasks.
func (s *Store) SetTaskStatusBulk(ctx context.Context, taskIDs []int64, status tasks.Status) error {
	if len(taskIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(taskIDs)), ",")
	args := make([]any, 0, len(taskIDs)+2)
	args = append(args, string(status), s.now().Unix())
	for _, id := range taskIDs {
		args = append(args, id)
	}
	return s.exec(ctx, "set task status bulk",
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id IN (`+placeholders+`)`, args...)
}

// MarkTaskUploaded records a successful export.
func (s *Store) MarkTaskUploaded(ctx context.Context, taskID int64, issueID, issueURL string) error {
	return s.exec(ctx, "mark task uploaded",
		`UPDATE tasks SET status = 'uploaded', linear_issue_id = ?, linear_issue_url = ?, updated_at = ? WHERE id = ?`,
		issueID, issueURL, s.now().Unix(), taskID)
}

// MarkTaskFailed records a failed export.
func (s *Store) MarkTaskFailed(ctx context.Context, taskID int64) error {
	return s.SetTaskStatus(ctx, taskID, tasks.StatusFailed)
}

// MarkChannelTasksCompleted moves every task of a channel that is neither
// rejected nor completed to completed, returning how many changed.
func (s *Store) MarkChannelTasksCompleted(ctx context.Context, channelID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'completed', updated_at = ?
		WHERE channel_id = ? AND status NOT IN ('rejected', 'completed')
	`, s.now().Unix(), channelID)
	if err != nil {
		return 0, fmt.Errorf("mark channel tasks completed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
