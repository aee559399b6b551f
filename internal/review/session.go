// Package review implements the paginated approve/edit/reject/upload state
// machine over one extraction batch. It is front-end agnostic: the Discord
// adapter and the terminal UI both drive the same Session.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/tasks"
)

// DefaultPageSize is the number of tasks shown per page.
const DefaultPageSize = 5

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("review session closed")
	// ErrInvalidPosition is returned for positions outside 1..n.
	ErrInvalidPosition = errors.New("invalid task position")
	// ErrEmptyText is returned when an edit would leave the task without text.
	ErrEmptyText = errors.New("task text cannot be empty")
	// ErrLocked is returned when acting on an uploaded or completed task.
	ErrLocked = errors.New("task is locked")
)

// Store is the task persistence a session writes through to.
type Store interface {
	TasksForBatch(ctx context.Context, batchID int64) ([]tasks.Task, error)
	SetTaskStatus(ctx context.Context, taskID int64, status tasks.Status) error
	SetTaskStatusBulk(ctx context.Context, taskIDs []int64, status tasks.Status) error
	UpdateTaskText(ctx context.Context, taskID int64, text string) error
	UpdateTaskPriority(ctx context.Context, taskID int64, priority string) error
	MarkTaskUploaded(ctx context.Context, taskID int64, issueID, issueURL string) error
	MarkTaskFailed(ctx context.Context, taskID int64) error
}

// Exporter creates a tracker issue for a task.
type Exporter interface {
	ExportTask(ctx context.Context, t tasks.Task, requestedBy string) (issueID, issueURL string, err error)
}

// Meta identifies what a session reviews and for whom.
type Meta struct {
	BatchID int64
	UserID  int64
	// UserName is the display name used in titles and issue attribution.
	UserName        string
	OutputChannelID int64
	// Provider labels the footer, e.g. the model provider.
	Provider string
}

// UploadSummary reports the outcome of UploadApproved.
type UploadSummary struct {
	Attempted int
	Uploaded  int
	Failed    int
}

// Session is one live review over a batch. It is not safe for concurrent
// use; callers serialize access.
type Session struct {
	store    Store
	exporter Exporter
	meta     Meta
	pageSize int
	log      *slog.Logger

	tasks    []tasks.Task
	page     int
	selected int
	closed   bool
}

// NewSession loads the batch and returns a session on its first page.
func NewSession(ctx context.Context, st Store, exp Exporter, meta Meta, pageSize int) (*Session, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &Session{
		store:    st,
		exporter: exp,
		meta:     meta,
		pageSize: pageSize,
		log: logging.WithComponent("review").With(
			slog.Int64("batch_id", meta.BatchID)),
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Meta returns the session's identity.
func (s *Session) Meta() Meta {
	return s.meta
}

// Len returns the number of tasks in the batch.
func (s *Session) Len() int {
	return len(s.tasks)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed
}

// Task returns the task at a 1-based position.
func (s *Session) Task(pos int) (tasks.Task, error) {
	if pos < 1 || pos > len(s.tasks) {
		return tasks.Task{}, fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}
	return s.tasks[pos-1], nil
}

// View renders the current state without changing it.
func (s *Session) View() *View {
	return s.render()
}

// Refresh reloads the batch from the store.
func (s *Session) Refresh(ctx context.Context) (*View, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s.render(), nil
}

// NextPage moves one page forward, clamped to the last page.
func (s *Session) NextPage() (*View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.page++
	s.clamp()
	return s.render(), nil
}

// PrevPage moves one page back, clamped to the first page.
func (s *Session) PrevPage() (*View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.page--
	s.clamp()
	return s.render(), nil
}

// Select focuses a task and jumps to its page.
func (s *Session) Select(pos int) (*View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if _, err := s.Task(pos); err != nil {
		return nil, err
	}
	s.selected = pos
	s.page = (pos - 1) / s.pageSize
	return s.render(), nil
}

// Selected returns the focused position, 0 when none.
func (s *Session) Selected() int {
	return s.selected
}

// Approve marks the task at pos approved.
func (s *Session) Approve(ctx context.Context, pos int) (*View, error) {
	return s.setStatus(ctx, pos, tasks.StatusApproved)
}

// Reject marks the task at pos rejected.
func (s *Session) Reject(ctx context.Context, pos int) (*View, error) {
	return s.setStatus(ctx, pos, tasks.StatusRejected)
}

func (s *Session) setStatus(ctx context.Context, pos int, status tasks.Status) (*View, error) {
	t, err := s.actionable(pos)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTaskStatus(ctx, t.ID, status); err != nil {
		return nil, err
	}
	s.selected = pos
	return s.Refresh(ctx)
}

// ApprovePage approves every unlocked task on the current page.
func (s *Session) ApprovePage(ctx context.Context) (*View, error) {
	return s.setPageStatus(ctx, tasks.StatusApproved)
}

// RejectPage rejects every unlocked task on the current page.
func (s *Session) RejectPage(ctx context.Context) (*View, error) {
	return s.setPageStatus(ctx, tasks.StatusRejected)
}

func (s *Session) setPageStatus(ctx context.Context, status tasks.Status) (*View, error) {
	if s.closed {
		return nil, ErrClosed
	}
	start, end := s.pageBounds()
	var ids []int64
	for _, t := range s.tasks[start:end] {
		if !t.Status.IsTerminal() {
			ids = append(ids, t.ID)
		}
	}
	if err := s.store.SetTaskStatusBulk(ctx, ids, status); err != nil {
		return nil, err
	}
	return s.Refresh(ctx)
}

// Edit replaces the text and, when priority is non-empty, the priority of
// the task at pos. An approved task goes back to pending.
func (s *Session) Edit(ctx context.Context, pos int, text, priority string) (*View, error) {
	t, err := s.actionable(pos)
	if err != nil {
		return nil, err
	}
	cleaned := tasks.CleanText(text)
	if cleaned == "" {
		return nil, ErrEmptyText
	}

	if cleaned != t.Text {
		if err := s.store.UpdateTaskText(ctx, t.ID, cleaned); err != nil {
			return nil, err
		}
	}
	if priority != "" {
		if p := tasks.NormalizePriority(priority); p != t.Priority {
			if err := s.store.UpdateTaskPriority(ctx, t.ID, string(p)); err != nil {
				return nil, err
			}
		}
	}
	if t.Status == tasks.StatusApproved {
		if err := s.store.SetTaskStatus(ctx, t.ID, tasks.StatusPending); err != nil {
			return nil, err
		}
	}
	s.selected = pos
	return s.Refresh(ctx)
}

// UploadApproved exports every approved task of the batch exactly once.
// A failed export marks that task failed and the sweep continues. Only
// storage errors are returned.
func (s *Session) UploadApproved(ctx context.Context) (*View, UploadSummary, error) {
	var sum UploadSummary
	if s.closed {
		return nil, sum, ErrClosed
	}
	if err := s.refresh(ctx); err != nil {
		return nil, sum, err
	}

	var errs []error
	for _, t := range s.tasks {
		if t.Status != tasks.StatusApproved {
			continue
		}
		sum.Attempted++

		issueID, issueURL, err := s.exporter.ExportTask(ctx, t, s.meta.UserName)
		if err != nil {
			sum.Failed++
			s.log.Warn("Export failed", slog.Int64("task_id", t.ID), slog.Any("error", err))
			if err := s.store.MarkTaskFailed(ctx, t.ID); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		sum.Uploaded++
		if err := s.store.MarkTaskUploaded(ctx, t.ID, issueID, issueURL); err != nil {
			errs = append(errs, err)
		}
	}

	s.log.Info("Upload finished",
		slog.Int("attempted", sum.Attempted),
		slog.Int("uploaded", sum.Uploaded),
		slog.Int("failed", sum.Failed))

	v, err := s.Refresh(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	return v, sum, errors.Join(errs...)
}

// Close disables the session. It is idempotent.
func (s *Session) Close() *View {
	s.closed = true
	return s.render()
}

func (s *Session) actionable(pos int) (tasks.Task, error) {
	if s.closed {
		return tasks.Task{}, ErrClosed
	}
	t, err := s.Task(pos)
	if err != nil {
		return t, err
	}
	if t.Status.IsTerminal() {
		return t, fmt.Errorf("%w: task %d is %s", ErrLocked, pos, t.Status)
	}
	return t, nil
}

func (s *Session) refresh(ctx context.Context) error {
	list, err := s.store.TasksForBatch(ctx, s.meta.BatchID)
	if err != nil {
		return fmt.Errorf("load batch %d: %w", s.meta.BatchID, err)
	}
	s.tasks = list
	if s.selected > len(s.tasks) {
		s.selected = 0
	}
	s.clamp()
	return nil
}

func (s *Session) totalPages() int {
	if len(s.tasks) == 0 {
		return 1
	}
	return (len(s.tasks) + s.pageSize - 1) / s.pageSize
}

func (s *Session) clamp() {
	if last := s.totalPages() - 1; s.page > last {
		s.page = last
	}
	if s.page < 0 {
		s.page = 0
	}
}

func (s *Session) pageBounds() (int, int) {
	start := s.page * s.pageSize
	end := min(start+s.pageSize, len(s.tasks))
	return start, end
}
