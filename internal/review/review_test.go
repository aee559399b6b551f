package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/novatra/novabot/internal/adapters/linear"
	"github.com/novatra/novabot/internal/store"
	"github.com/novatra/novabot/internal/tasks"
)

type fakeExporter struct {
	fail  map[string]bool
	calls []int64
}

func (f *fakeExporter) ExportTask(_ context.Context, t tasks.Task, _ string) (string, string, error) {
	f.calls = append(f.calls, t.ID)
	if f.fail[t.Text] {
		return "", "", errors.New("graphql error")
	}
	return fmt.Sprintf("issue-%d", t.ID), fmt.Sprintf("https://linear.app/x/issue/X-%d", t.ID), nil
}

func seed(t *testing.T, n int) (*store.Store, int64) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	batchID, err := s.CreateBatch(ctx, store.BatchInput{UserID: 42, SourceChannelID: 100, TargetChannelID: 100, MessageCount: n})
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	var candidates []tasks.Candidate
	for i := 1; i <= n; i++ {
		candidates = append(candidates, tasks.Candidate{Text: fmt.Sprintf("task %d", i)})
	}
	if _, err := s.SaveTasks(ctx, candidates, batchID, 100, 42); err != nil {
		t.Fatalf("SaveTasks failed: %v", err)
	}
	return s, batchID
}

func newSession(t *testing.T, st Store, exp Exporter, batchID int64) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), st, exp, Meta{BatchID: batchID, UserID: 42, UserName: "Alice"}, 5)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func TestPagination(t *testing.T) {
	st, batchID := seed(t, 12)
	s := newSession(t, st, &fakeExporter{}, batchID)

	v := s.View()
	if v.Page != 1 || v.TotalPages != 3 || v.Total != 12 || len(v.Rows) != 5 {
		t.Fatalf("initial view = page %d/%d total %d rows %d", v.Page, v.TotalPages, v.Total, len(v.Rows))
	}

	v, _ = s.PrevPage()
	if v.Page != 1 {
		t.Errorf("PrevPage on first page = %d, want 1", v.Page)
	}

	s.NextPage()
	v, _ = s.NextPage()
	if v.Page != 3 || len(v.Rows) != 2 {
		t.Errorf("last page = %d with %d rows, want 3 with 2", v.Page, len(v.Rows))
	}
	if v.Rows[0].Position != 11 || v.Rows[1].Position != 12 {
		t.Errorf("positions should be batch-wide, got %d and %d", v.Rows[0].Position, v.Rows[1].Position)
	}

	v, _ = s.NextPage()
	if v.Page != 3 {
		t.Errorf("NextPage past end = %d, want 3", v.Page)
	}
	if v.Footer() != "Page 3/3 • 12 tasks" {
		t.Errorf("Footer() = %q", v.Footer())
	}
}

func TestEmptyBatch(t *testing.T) {
	st, batchID := seed(t, 0)
	s := newSession(t, st, &fakeExporter{}, batchID)

	v, _ := s.NextPage()
	if !v.Empty() || v.Page != 1 || v.TotalPages != 1 || len(v.Rows) != 0 {
		t.Errorf("unexpected empty view: %+v", v)
	}
}

func TestSelect(t *testing.T) {
	st, batchID := seed(t, 12)
	s := newSession(t, st, &fakeExporter{}, batchID)

	v, err := s.Select(7)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if v.Page != 2 || v.Selected != 7 || !v.Rows[1].Selected {
		t.Errorf("Select(7) = page %d selected %d", v.Page, v.Selected)
	}

	for _, pos := range []int{0, 13, -1} {
		if _, err := s.Select(pos); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("Select(%d) error = %v, want ErrInvalidPosition", pos, err)
		}
	}
}

func TestApproveRejectAndPageBulk(t *testing.T) {
	ctx := context.Background()
	st, batchID := seed(t, 7)
	s := newSession(t, st, &fakeExporter{}, batchID)

	if _, err := s.Approve(ctx, 1); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	v, err := s.Reject(ctx, 2)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if v.Rows[0].Status != tasks.StatusApproved || v.Rows[1].Status != tasks.StatusRejected {
		t.Errorf("statuses = %s, %s", v.Rows[0].Status, v.Rows[1].Status)
	}

	s.NextPage()
	v, err = s.ApprovePage(ctx)
	if err != nil {
		t.Fatalf("ApprovePage failed: %v", err)
	}
	if v.Counts[tasks.StatusApproved] != 3 || v.Counts[tasks.StatusPending] != 3 {
		t.Errorf("counts after ApprovePage = %v", v.Counts)
	}

	s.PrevPage()
	v, _ = s.RejectPage(ctx)
	if v.Counts[tasks.StatusRejected] != 5 {
		t.Errorf("counts after RejectPage = %v", v.Counts)
	}

	if _, err := s.Approve(ctx, 8); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Approve(8) error = %v", err)
	}
}

func TestEdit(t *testing.T) {
	ctx := context.Background()
	st, batchID := seed(t, 3)
	s := newSession(t, st, &fakeExporter{}, batchID)

	s.Approve(ctx, 2)
	v, err := s.Edit(ctx, 2, "  rewrite   the docs ", "URGENT")
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	row := v.Rows[1]
	if row.Text != "rewrite the docs" || row.Priority != tasks.PriorityUrgent {
		t.Errorf("row after edit = %+v", row)
	}
	if row.Status != tasks.StatusPending {
		t.Errorf("editing an approved task should reset it to pending, got %s", row.Status)
	}

	before, _ := s.Task(1)
	if _, err := s.Edit(ctx, 1, "   ", "low"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Edit with empty text error = %v, want ErrEmptyText", err)
	}
	after, _ := s.Task(1)
	if before != after {
		t.Error("rejected edit must not change the task")
	}

	v, _ = s.Edit(ctx, 3, "task 3", "")
	if v.Rows[2].Priority != tasks.PriorityMedium {
		t.Errorf("empty priority should keep the current one, got %s", v.Rows[2].Priority)
	}
}

func TestUploadApprovedPartialFailure(t *testing.T) {
	ctx := context.Background()
	st, batchID := seed(t, 4)
	exp := &fakeExporter{fail: map[string]bool{"task 2": true}}
	s := newSession(t, st, exp, batchID)

	s.Approve(ctx, 1)
	s.Approve(ctx, 2)
	s.Approve(ctx, 3)
	s.Reject(ctx, 4)

	v, sum, err := s.UploadApproved(ctx)
	if err != nil {
		t.Fatalf("UploadApproved failed: %v", err)
	}
	if sum.Attempted != 3 || sum.Uploaded != 2 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	want := []tasks.Status{tasks.StatusUploaded, tasks.StatusFailed, tasks.StatusUploaded, tasks.StatusRejected}
	for i, status := range want {
		if v.Rows[i].Status != status {
			t.Errorf("row %d status = %s, want %s", i+1, v.Rows[i].Status, status)
		}
	}
	if v.Rows[0].IssueURL == "" || !v.Rows[0].Locked {
		t.Errorf("uploaded row = %+v", v.Rows[0])
	}

	// A second sweep finds nothing approved.
	_, sum, _ = s.UploadApproved(ctx)
	if sum.Attempted != 0 || len(exp.calls) != 3 {
		t.Errorf("second upload attempted %d, total calls %d", sum.Attempted, len(exp.calls))
	}

	if _, err := s.Approve(ctx, 1); !errors.Is(err, ErrLocked) {
		t.Errorf("approving an uploaded task error = %v, want ErrLocked", err)
	}
	if _, err := s.Edit(ctx, 1, "x", ""); !errors.Is(err, ErrLocked) {
		t.Errorf("editing an uploaded task error = %v, want ErrLocked", err)
	}
}

func TestUploadWithTrackerUnavailable(t *testing.T) {
	ctx := context.Background()
	st, batchID := seed(t, 3)
	s := newSession(t, st, linear.NewExporter(&linear.Config{}), batchID)

	s.Approve(ctx, 1)
	s.Approve(ctx, 2)
	s.Reject(ctx, 3)

	v, sum, err := s.UploadApproved(ctx)
	if err != nil {
		t.Fatalf("UploadApproved should not fail when the tracker is unavailable: %v", err)
	}
	if sum.Failed != 2 || sum.Uploaded != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if v.Rows[0].Status != tasks.StatusFailed || v.Rows[1].Status != tasks.StatusFailed {
		t.Errorf("approved tasks should be failed, got %s and %s", v.Rows[0].Status, v.Rows[1].Status)
	}
	if v.Rows[2].Status != tasks.StatusRejected {
		t.Errorf("rejected task should be untouched, got %s", v.Rows[2].Status)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	st, batchID := seed(t, 2)
	s := newSession(t, st, &fakeExporter{}, batchID)

	v := s.Close()
	if !v.Closed || !s.Closed() {
		t.Error("session should be closed")
	}

	checks := map[string]error{}
	_, checks["next"] = s.NextPage()
	_, checks["prev"] = s.PrevPage()
	_, checks["select"] = s.Select(1)
	_, checks["approve"] = s.Approve(ctx, 1)
	_, checks["reject"] = s.Reject(ctx, 1)
	_, checks["approve_page"] = s.ApprovePage(ctx)
	_, checks["reject_page"] = s.RejectPage(ctx)
	_, checks["edit"] = s.Edit(ctx, 1, "x", "")
	_, _, checks["upload"] = s.UploadApproved(ctx)
	for op, err := range checks {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s after Close error = %v, want ErrClosed", op, err)
		}
	}

	list, _ := st.TasksForBatch(ctx, batchID)
	for _, task := range list {
		if task.Status != tasks.StatusPending {
			t.Errorf("closed session mutated task %d", task.ID)
		}
	}
}

func TestRegistryExpiry(t *testing.T) {
	st, batchID := seed(t, 1)
	s := newSession(t, st, &fakeExporter{}, batchID)

	var evicted []int64
	r := NewRegistry(15*time.Minute, func(key int64, _ *Session) { evicted = append(evicted, key) })
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Put(900, s)
	if got, ok := r.Get(900); !ok || got != s {
		t.Fatal("session should be live right after Put")
	}

	now = now.Add(10 * time.Minute)
	if _, ok := r.Get(900); !ok {
		t.Fatal("session should still be live after 10m")
	}

	// Get refreshed the timer, so 10 more minutes is still inside the window.
	now = now.Add(10 * time.Minute)
	if r.Sweep() != 0 {
		t.Fatal("sweep evicted an active session")
	}

	now = now.Add(16 * time.Minute)
	if _, ok := r.Get(900); ok {
		t.Error("expired session must be rejected on lookup")
	}
	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if len(evicted) != 1 || evicted[0] != 900 {
		t.Errorf("evicted = %v", evicted)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after sweep", r.Len())
	}
}

func TestRegistryClosedSession(t *testing.T) {
	st, batchID := seed(t, 1)
	s := newSession(t, st, &fakeExporter{}, batchID)
	r := NewRegistry(0, nil)

	r.Put(1, s)
	s.Close()
	if _, ok := r.Get(1); ok {
		t.Error("closed session should not be returned")
	}
	r.Remove(1)
	if r.Len() != 0 {
		t.Error("Remove did not drop the session")
	}
}

func TestRegistryStartStop(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	r.Stop()
	r.Stop()
}
