package workflow

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// DefaultAllowedTypes is the upload whitelist used when none is configured.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/gif",
	"text/plain",
	"application/zip",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Policy is the file and text policy applied by the submission pipeline.
type Policy struct {
	MaxFileSize   int64
	AllowedTypes  []string
	MaxTextLength int
}

// DefaultPolicy returns the built-in limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxFileSize:   models.DefaultMaxFileSize,
		AllowedTypes:  DefaultAllowedTypes,
		MaxTextLength: models.DefaultMaxTextLength,
	}
}

// NormalizeType lower-cases a MIME type and drops its parameters.
func NormalizeType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	t, _, _ = strings.Cut(t, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// Allows reports whether the MIME type is whitelisted.
func (p Policy) Allows(fileType string) bool {
	ft := NormalizeType(fileType)
	for _, a := range p.AllowedTypes {
		if NormalizeType(a) == ft {
			return true
		}
	}
	return false
}

// FileMeta is the declared metadata of a file being attached.
type FileMeta struct {
	FileName string
	FileType string
	FileSize int64
}

// NewSubmission builds the lazily created draft for (task, user).
func NewSubmission(id, taskID, userID string, now time.Time) models.Submission {
	now = now.UTC()
	return models.Submission{
		SubmissionID: id,
		TaskID:       taskID,
		UserID:       userID,
		Status:       models.SubmissionDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CheckActive fails unless the task has an accepted assignment that is being
// worked on or already submitted.
func CheckActive(op Op, t models.Task) error {
	if t.AcceptanceStatus != models.AcceptanceAccepted {
		return InvalidTransition(string(op), "no accepted assignment (acceptance is %s)", t.AcceptanceStatus)
	}
	if t.Status != models.StatusInProgress && t.Status != models.StatusSubmitted {
		return InvalidTransition(string(op), "task is %s", t.Status)
	}
	return nil
}

// CheckMutable fails unless the submission content may change: it is a draft,
// or it was submitted and the owner approved an edit request.
func CheckMutable(op Op, t models.Task, s models.Submission) error {
	if err := CheckActive(op, t); err != nil {
		return err
	}
	switch s.Status {
	case models.SubmissionDraft:
		return nil
	case models.SubmissionSubmitted:
		if t.EditRequestStatus == models.EditRequestApproved {
			return nil
		}
	}
	return InvalidTransition(string(op), "submission is %s", s.Status)
}

// checkStillSubmittable keeps a reopened submission from losing all content.
// next is the submission after the change and fileCount its file count.
func checkStillSubmittable(op Op, t models.Task, next models.Submission, fileCount int) error {
	if next.Status == models.SubmissionSubmitted && !HasContent(t, next, fileCount) {
		return EmptySubmission(string(op))
	}
	return nil
}

// SaveText overwrites the text content. fileCount is the number of attached
// files, read under the submission lock.
func SaveText(t models.Task, s models.Submission, text string, fileCount int, p Policy, now time.Time) (models.Submission, error) {
	const op = OpSaveText
	if err := CheckMutable(op, t, s); err != nil {
		return s, err
	}
	if !t.AllowsTextSubmission {
		return s, Validation(string(op), "task does not accept text submissions")
	}
	if p.MaxTextLength > 0 && len(text) > p.MaxTextLength {
		return s, Validation(string(op), "text exceeds %d bytes", p.MaxTextLength)
	}
	next := s
	next.TextContent = &text
	if err := checkStillSubmittable(op, t, next, fileCount); err != nil {
		return s, err
	}
	next.UpdatedAt = now.UTC()
	return next, nil
}

// CheckAttach validates one more file against the policy and the task quota.
// count is the number of files already attached, read under the submission lock.
func CheckAttach(t models.Task, s models.Submission, f FileMeta, count int, p Policy) error {
	const op = OpAttachFile
	if err := CheckMutable(op, t, s); err != nil {
		return err
	}
	if !t.AllowsFileUpload {
		return FileConstraint(string(op), "task does not accept files")
	}
	if err := CheckFile(f, p); err != nil {
		return err
	}
	if count+1 > t.MaxFiles {
		return FileConstraint(string(op), "file limit %d reached", t.MaxFiles)
	}
	return nil
}

// CheckFile validates name, type and size of a single file.
func CheckFile(f FileMeta, p Policy) error {
	const op = string(OpAttachFile)
	name := filepath.Base(strings.TrimSpace(f.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Validation(op, "file name required")
	}
	if !p.Allows(f.FileType) {
		return FileConstraint(op, "file type %q not allowed", f.FileType)
	}
	if f.FileSize <= 0 {
		return FileConstraint(op, "empty file")
	}
	if p.MaxFileSize > 0 && f.FileSize > p.MaxFileSize {
		return FileConstraint(op, "file size %d exceeds limit %d", f.FileSize, p.MaxFileSize)
	}
	return nil
}

// CheckDetach validates removing one of fileCount attached files.
func CheckDetach(t models.Task, s models.Submission, fileCount int) error {
	if err := CheckMutable(OpDetachFile, t, s); err != nil {
		return err
	}
	return checkStillSubmittable(OpDetachFile, t, s, fileCount-1)
}

// HasContent reports whether at least one enabled channel carries content.
// A task with both channels disabled always has content.
func HasContent(t models.Task, s models.Submission, fileCount int) bool {
	if !t.AllowsTextSubmission && !t.AllowsFileUpload {
		return true
	}
	if t.AllowsTextSubmission && strings.TrimSpace(s.Text()) != "" {
		return true
	}
	return t.AllowsFileUpload && fileCount > 0
}

// Finalize submits the draft and advances the task to submitted. Both records
// must be persisted together.
func Finalize(t models.Task, s models.Submission, fileCount int, now time.Time) (models.Task, models.Submission, error) {
	const op = OpFinalize
	if err := CheckActive(op, t); err != nil {
		return t, s, err
	}
	if !s.Status.CanTransitionTo(models.SubmissionSubmitted) {
		return t, s, InvalidTransition(string(op), "submission is %s", s.Status)
	}
	if !HasContent(t, s, fileCount) {
		return t, s, EmptySubmission(string(op))
	}
	if err := setStatus(string(op), &t, models.StatusSubmitted); err != nil {
		return t, s, err
	}
	now = now.UTC()
	s.Status = models.SubmissionSubmitted
	s.SubmittedAt = &now
	s.UpdatedAt = now
	t.UpdatedAt = now
	return t, s, nil
}

// Review closes the task. The submission must still carry content. Both
// records must be persisted together.
func Review(t models.Task, s models.Submission, fileCount int, reviewerID string, now time.Time) (models.Task, models.Submission, error) {
	const op = OpReview
	if !s.Status.CanTransitionTo(models.SubmissionReviewed) {
		return t, s, InvalidTransition(string(op), "submission is %s", s.Status)
	}
	if !HasContent(t, s, fileCount) {
		return t, s, EmptySubmission(string(op))
	}
	if err := setStatus(string(op), &t, models.StatusReviewed); err != nil {
		return t, s, err
	}
	now = now.UTC()
	s.Status = models.SubmissionReviewed
	s.ReviewedAt = &now
	s.ReviewedBy = reviewerID
	s.UpdatedAt = now
	t.UpdatedAt = now
	return t, s, nil
}
