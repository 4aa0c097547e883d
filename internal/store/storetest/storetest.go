// Package storetest is a behavioral test suite shared by the store
// implementations.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// NewTask returns a pending task ready to insert.
func NewTask(team, assignee string) *models.Task {
	now := time.Now().UTC().Truncate(time.Millisecond)
	deadline := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return &models.Task{
		TaskID:               uuid.NewString(),
		Title:                "task " + assignee,
		AssignedUserID:       assignee,
		CreatedByID:          "leader",
		TeamID:               team,
		Priority:             models.PriorityHigh,
		Deadline:             deadline,
		OriginalDeadline:     deadline,
		Status:               models.StatusPending,
		AcceptanceStatus:     models.AcceptancePending,
		EditRequestStatus:    models.EditRequestNone,
		AllowsFileUpload:     true,
		AllowsTextSubmission: true,
		MaxFiles:             2,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Run exercises st. Each subtest creates its own rows so st may be shared.
func Run(t *testing.T, st store.Store) {
	t.Run("TaskRoundTrip", func(t *testing.T) { testTaskRoundTrip(t, st) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, st) })
	t.Run("ListFilter", func(t *testing.T) { testListFilter(t, st) })
	t.Run("ListVisibleTo", func(t *testing.T) { testListVisibleTo(t, st) })
	t.Run("SubmissionUnique", func(t *testing.T) { testSubmissionUnique(t, st) })
	t.Run("FilesAndLock", func(t *testing.T) { testFilesAndLock(t, st) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, st) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, st) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, st) })
}

func mustInsertTask(t *testing.T, st store.Store, task *models.Task) {
	t.Helper()
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
}

func testTaskRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()
	task := NewTask("rt", "alice")
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	task.StartDate = &start
	mustInsertTask(t, st, task)

	got, err := st.GetTask(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != task.Title || got.Priority != models.PriorityHigh || got.MaxFiles != 2 {
		t.Fatalf("GetTask = %+v", got)
	}
	if !got.Deadline.Equal(task.Deadline) || got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Fatalf("dates: deadline %v start %v", got.Deadline, got.StartDate)
	}
	if !got.AllowsFileUpload || !got.AllowsTextSubmission {
		t.Fatal("flags lost")
	}
	if got.RequestedDeadline != nil || got.AcceptanceTimestamp != nil {
		t.Fatal("nullable fields should be nil")
	}
	if err := st.InsertTask(ctx, task); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate InsertTask: %v", err)
	}
}

func testCompareAndSwap(t *testing.T, st store.Store) {
	ctx := context.Background()
	task := NewTask("cas", "bob")
	mustInsertTask(t, st, task)

	prev := task.State()
	next := *task
	next.AcceptanceStatus = models.AcceptanceAccepted
	next.Status = models.StatusInProgress
	ts := time.Now().UTC().Truncate(time.Millisecond)
	next.AcceptanceTimestamp = &ts
	if err := st.UpdateTask(ctx, prev, &next); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if next.Version != prev.Version+1 {
		t.Fatalf("version = %d", next.Version)
	}

	// A second writer holding the old state loses.
	loser := *task
	loser.AcceptanceStatus = models.AcceptanceRejected
	if err := st.UpdateTask(ctx, prev, &loser); !errors.Is(err, store.ErrStale) {
		t.Fatalf("stale UpdateTask: %v", err)
	}
	got, _ := st.GetTask(ctx, task.TaskID)
	if got.AcceptanceStatus != models.AcceptanceAccepted || got.AcceptanceTimestamp == nil {
		t.Fatalf("after CAS: %+v", got)
	}

	// Concurrent writers from the same snapshot: exactly one wins.
	snap := got.State()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := *got
			cp.EditRequestStatus = models.EditRequestPending
			if err := st.UpdateTask(ctx, snap, &cp); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("concurrent CAS winners = %d, want 1", wins)
	}
}

func testListFilter(t *testing.T, st store.Store) {
	ctx := context.Background()
	team := "list-" + uuid.NewString()[:8]
	for _, who := range []string{"a", "b", "a"} {
		mustInsertTask(t, st, NewTask(team, who))
	}
	all, err := st.ListTasks(ctx, models.TaskFilter{TeamID: team})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("team tasks = %d", len(all))
	}
	mine, _ := st.ListTasks(ctx, models.TaskFilter{TeamID: team, AssignedUserID: "a"})
	if len(mine) != 2 {
		t.Fatalf("assignee filter = %d", len(mine))
	}
	limited, _ := st.ListTasks(ctx, models.TaskFilter{TeamID: team, Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("limit = %d", len(limited))
	}
	counts, err := st.CountTasksByStatus(ctx)
	if err != nil {
		t.Fatalf("CountTasksByStatus: %v", err)
	}
	if counts[models.StatusPending] < 3 {
		t.Fatalf("pending count = %d", counts[models.StatusPending])
	}
}

func testListVisibleTo(t *testing.T, st store.Store) {
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	team, other, viewer := "vis-"+suffix, "foreign-"+suffix, "viewer-"+suffix

	teamTask := NewTask(team, "a")
	mustInsertTask(t, st, teamTask)
	assigned := NewTask(other, viewer)
	mustInsertTask(t, st, assigned)
	created := NewTask(other, "b")
	created.CreatedByID = viewer
	mustInsertTask(t, st, created)
	// Newer foreign tasks outnumber the limit.
	for i := 0; i < 8; i++ {
		mustInsertTask(t, st, NewTask(other, "c"))
	}

	ids := func(tasks []models.Task) map[string]bool {
		m := make(map[string]bool, len(tasks))
		for _, task := range tasks {
			m[task.TaskID] = true
		}
		return m
	}
	got, err := st.ListTasks(ctx, models.TaskFilter{Limit: 3, VisibleTo: &models.Visibility{TeamID: team, UserID: viewer}})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	seen := ids(got)
	if len(got) != 3 || !seen[teamTask.TaskID] || !seen[assigned.TaskID] || !seen[created.TaskID] {
		t.Fatalf("leader view = %d tasks %v", len(got), seen)
	}

	got, err = st.ListTasks(ctx, models.TaskFilter{Limit: 5, VisibleTo: &models.Visibility{UserID: viewer}})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	seen = ids(got)
	if len(got) != 2 || !seen[assigned.TaskID] || !seen[created.TaskID] {
		t.Fatalf("user view = %d tasks %v", len(got), seen)
	}

	got, _ = st.ListTasks(ctx, models.TaskFilter{TeamID: other, VisibleTo: &models.Visibility{UserID: viewer}})
	if len(got) != 2 {
		t.Fatalf("team filter and visibility combine with AND: %d", len(got))
	}
}

func newSubmission(taskID, userID string) *models.Submission {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Submission{
		SubmissionID: uuid.NewString(),
		TaskID:       taskID,
		UserID:       userID,
		Status:       models.SubmissionDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testSubmissionUnique(t *testing.T, st store.Store) {
	ctx := context.Background()
	task := NewTask("sub", "carol")
	mustInsertTask(t, st, task)

	sub := newSubmission(task.TaskID, "carol")
	if err := st.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}
	if err := st.InsertSubmission(ctx, newSubmission(task.TaskID, "carol")); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second submission for pair: %v", err)
	}

	text := "done"
	now := time.Now().UTC().Truncate(time.Millisecond)
	sub.TextContent = &text
	sub.Status = models.SubmissionSubmitted
	sub.SubmittedAt = &now
	if err := st.UpdateSubmission(ctx, models.SubmissionDraft, sub); err != nil {
		t.Fatalf("UpdateSubmission: %v", err)
	}
	if err := st.UpdateSubmission(ctx, models.SubmissionDraft, sub); !errors.Is(err, store.ErrStale) {
		t.Fatalf("stale UpdateSubmission: %v", err)
	}
	got, err := st.GetSubmissionFor(ctx, task.TaskID, "carol")
	if err != nil {
		t.Fatalf("GetSubmissionFor: %v", err)
	}
	if got.Text() != "done" || got.SubmittedAt == nil || !got.SubmittedAt.Equal(now) {
		t.Fatalf("submission = %+v", got)
	}
}

func testFilesAndLock(t *testing.T, st store.Store) {
	ctx := context.Background()
	task := NewTask("files", "dave")
	mustInsertTask(t, st, task)
	sub := newSubmission(task.TaskID, "dave")
	if err := st.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}

	// Concurrent lock+count+insert never exceeds the quota.
	const quota = 2
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.InTx(ctx, func(q store.Queries) error {
				if err := q.LockSubmission(ctx, sub.SubmissionID); err != nil {
					return err
				}
				n, err := q.CountFiles(ctx, sub.SubmissionID)
				if err != nil {
					return err
				}
				if n >= quota {
					return errors.New("quota")
				}
				return q.InsertFile(ctx, &models.SubmissionFile{
					FileID:       uuid.NewString(),
					SubmissionID: sub.SubmissionID,
					FileName:     "a.pdf",
					FilePath:     "k/" + uuid.NewString(),
					FileType:     "application/pdf",
					FileSize:     10,
					UploadedBy:   "dave",
					UploadedAt:   time.Now().UTC(),
				})
			})
		}()
	}
	wg.Wait()

	files, err := st.ListFiles(ctx, sub.SubmissionID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != quota {
		t.Fatalf("files = %d, want %d", len(files), quota)
	}
	f, err := st.GetFile(ctx, files[0].FileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.FileType != "application/pdf" || f.FileSize != 10 {
		t.Fatalf("file = %+v", f)
	}
	if err := st.DeleteFile(ctx, f.FileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := st.DeleteFile(ctx, f.FileID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second DeleteFile: %v", err)
	}
	if n, _ := st.CountFiles(ctx, sub.SubmissionID); n != quota-1 {
		t.Fatalf("count after delete = %d", n)
	}
}

func testTxRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	task := NewTask("tx", "erin")
	boom := errors.New("boom")
	err := st.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertTask(ctx, task); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx: %v", err)
	}
	if _, err := st.GetTask(ctx, task.TaskID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rolled back task visible: %v", err)
	}
}

func testAudit(t *testing.T, st store.Store) {
	ctx := context.Background()
	task := NewTask("audit", "frank")
	mustInsertTask(t, st, task)
	for _, action := range []string{"create_task", "accept_task", "finalize_submission"} {
		e := &models.AuditEntry{
			AuditID:   uuid.NewString(),
			TaskID:    task.TaskID,
			ActorID:   "frank",
			Action:    action,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.InsertAudit(ctx, e); err != nil {
			t.Fatalf("InsertAudit: %v", err)
		}
	}
	entries, err := st.ListAudit(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 3 || entries[0].Action != "create_task" || entries[2].Action != "finalize_submission" {
		t.Fatalf("audit = %+v", entries)
	}
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()
	if _, err := st.GetTask(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetTask: %v", err)
	}
	if _, err := st.GetSubmission(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetSubmission: %v", err)
	}
	if _, err := st.GetFile(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetFile: %v", err)
	}
	err := st.InTx(ctx, func(q store.Queries) error { return q.LockSubmission(ctx, "missing") })
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("LockSubmission: %v", err)
	}
}
