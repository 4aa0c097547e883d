package workflow

import (
	"errors"
	"testing"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func acceptedTask(t *testing.T) models.Task {
	t.Helper()
	task, err := Accept(newTestTask(t), "2 days", testNow)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return task
}

func TestPolicy_Allows(t *testing.T) {
	t.Parallel()
	p := DefaultPolicy()
	for _, ok := range []string{"application/pdf", "text/plain; charset=utf-8", "IMAGE/PNG"} {
		if !p.Allows(ok) {
			t.Errorf("%q should be allowed", ok)
		}
	}
	for _, bad := range []string{"application/x-msdownload", "", "text/html"} {
		if p.Allows(bad) {
			t.Errorf("%q should be rejected", bad)
		}
	}
}

func TestCheckAttach(t *testing.T) {
	t.Parallel()
	task := acceptedTask(t)
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)
	p := DefaultPolicy()
	pdf := FileMeta{FileName: "a.pdf", FileType: "application/pdf", FileSize: 1 << 20}

	if err := CheckAttach(task, sub, pdf, 0, p); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := CheckAttach(task, sub, pdf, 2, p); !errors.Is(err, ErrFileConstraint) {
		t.Fatalf("over quota: %v", err)
	}
	exe := FileMeta{FileName: "a.exe", FileType: "application/x-msdownload", FileSize: 10}
	if err := CheckAttach(task, sub, exe, 0, p); !errors.Is(err, ErrFileConstraint) {
		t.Fatalf("bad type: %v", err)
	}
	huge := FileMeta{FileName: "a.pdf", FileType: "application/pdf", FileSize: p.MaxFileSize + 1}
	if err := CheckAttach(task, sub, huge, 0, p); !errors.Is(err, ErrFileConstraint) {
		t.Fatalf("too large: %v", err)
	}

	task.AllowsFileUpload = false
	if err := CheckAttach(task, sub, pdf, 0, p); !errors.Is(err, ErrFileConstraint) {
		t.Fatalf("uploads disabled: %v", err)
	}
}

func TestCheckAttach_quotaForEveryMax(t *testing.T) {
	t.Parallel()
	task := acceptedTask(t)
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)
	pdf := FileMeta{FileName: "a.pdf", FileType: "application/pdf", FileSize: 100}
	for limit := 0; limit <= 5; limit++ {
		task.MaxFiles = limit
		for count := 0; count <= limit+1; count++ {
			err := CheckAttach(task, sub, pdf, count, DefaultPolicy())
			if count < limit && err != nil {
				t.Errorf("max=%d count=%d: %v", limit, count, err)
			}
			if count >= limit && !errors.Is(err, ErrFileConstraint) {
				t.Errorf("max=%d count=%d: err = %v, want file constraint", limit, count, err)
			}
		}
	}
}

func TestSubmission_requiresAcceptedAssignment(t *testing.T) {
	t.Parallel()
	task, err := Reject(newTestTask(t), "overloaded", testNow)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)
	pdf := FileMeta{FileName: "a.pdf", FileType: "application/pdf", FileSize: 100}
	if err := CheckAttach(task, sub, pdf, 0, DefaultPolicy()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("attach after reject: %v", err)
	}
	if _, err := SaveText(task, sub, "done", 0, DefaultPolicy(), testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("text after reject: %v", err)
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()
	task := acceptedTask(t)
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)

	if _, _, err := Finalize(task, sub, 0, testNow); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("empty finalize: %v", err)
	}
	sub, err := SaveText(task, sub, "done", 0, DefaultPolicy(), testNow)
	if err != nil {
		t.Fatalf("SaveText: %v", err)
	}
	task, sub, err = Finalize(task, sub, 0, testNow)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if task.Status != models.StatusSubmitted || sub.Status != models.SubmissionSubmitted {
		t.Fatalf("state = %s/%s", task.Status, sub.Status)
	}
	first := *sub.SubmittedAt

	_, again, err := Finalize(task, sub, 0, testNow.Add(1))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second finalize: %v", err)
	}
	if !again.SubmittedAt.Equal(first) {
		t.Fatal("submittedAt changed")
	}
	if _, err := SaveText(task, sub, "late", 0, DefaultPolicy(), testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("text after submit: %v", err)
	}

	task.EditRequestStatus = models.EditRequestApproved
	if _, err := SaveText(task, sub, "amended", 0, DefaultPolicy(), testNow); err != nil {
		t.Fatalf("amend with approved edit: %v", err)
	}
}

func TestHasContent(t *testing.T) {
	t.Parallel()
	task := acceptedTask(t)
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)
	if HasContent(task, sub, 0) {
		t.Fatal("no content expected")
	}
	if !HasContent(task, sub, 1) {
		t.Fatal("file counts as content")
	}
	task.AllowsFileUpload = false
	if HasContent(task, sub, 1) {
		t.Fatal("files on a disabled channel do not count")
	}
	task.AllowsTextSubmission = false
	if !HasContent(task, sub, 0) {
		t.Fatal("no enabled channel means nothing to require")
	}
}

func TestReview(t *testing.T) {
	t.Parallel()
	task := acceptedTask(t)
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)
	if _, _, err := Review(task, sub, 0, "leader", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("review draft: %v", err)
	}
	sub, _ = SaveText(task, sub, "done", 0, DefaultPolicy(), testNow)
	task, sub, _ = Finalize(task, sub, 0, testNow)
	task, sub, err := Review(task, sub, 0, "leader", testNow)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if task.Status != models.StatusReviewed || sub.Status != models.SubmissionReviewed || sub.ReviewedBy != "leader" {
		t.Fatalf("after review: %s %s %s", task.Status, sub.Status, sub.ReviewedBy)
	}
	if _, _, err := Review(task, sub, 0, "leader", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second review: %v", err)
	}
}

func TestReopenedSubmission_keepsContent(t *testing.T) {
	t.Parallel()
	task := acceptedTask(t)
	sub := NewSubmission("s-1", task.TaskID, task.AssignedUserID, testNow)
	sub, _ = SaveText(task, sub, "done", 0, DefaultPolicy(), testNow)
	task, sub, err := Finalize(task, sub, 1, testNow)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	task.EditRequestStatus = models.EditRequestApproved

	if _, err := SaveText(task, sub, "", 0, DefaultPolicy(), testNow); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("clear last content: %v", err)
	}
	cleared, err := SaveText(task, sub, "", 1, DefaultPolicy(), testNow)
	if err != nil {
		t.Fatalf("clear text with a file left: %v", err)
	}
	if err := CheckDetach(task, cleared, 1); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("detach last file: %v", err)
	}
	if err := CheckDetach(task, sub, 1); err != nil {
		t.Fatalf("detach with text left: %v", err)
	}
	if _, _, err := Review(task, cleared, 0, "leader", testNow); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("review empty: %v", err)
	}

	// A draft may be emptied freely.
	draft := NewSubmission("s-2", task.TaskID, task.AssignedUserID, testNow)
	if _, err := SaveText(acceptedTask(t), draft, "", 0, DefaultPolicy(), testNow); err != nil {
		t.Fatalf("clear draft: %v", err)
	}
}
