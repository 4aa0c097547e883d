// Package store defines the persistence interface of the task workflow and its
// SQLite implementation. Rows are mapped through the exported *Row types, which
// carry db tags understood by both sqlx and pgx.
package store

import (
	"database/sql"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// Timestamps and dates are stored as unix milliseconds in UTC.

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

// TaskColumns is the column list matching TaskRow, in insert order.
const TaskColumns = `task_id, title, description, assigned_user_id, created_by_id, team_id, priority,
	start_date, deadline, original_deadline, status, acceptance_status,
	requested_deadline, extension_reason, rejection_reason, estimated_time, acceptance_ts,
	edit_request_status, edit_request_reason, edit_request_details,
	allows_file_upload, allows_text_submission, max_files, version, created_at, updated_at`

// TaskRow is the tasks table row.
type TaskRow struct {
	TaskID               string        `db:"task_id"`
	Title                string        `db:"title"`
	Description          string        `db:"description"`
	AssignedUserID       string        `db:"assigned_user_id"`
	CreatedByID          string        `db:"created_by_id"`
	TeamID               string        `db:"team_id"`
	Priority             string        `db:"priority"`
	StartDate            sql.NullInt64 `db:"start_date"`
	Deadline             int64         `db:"deadline"`
	OriginalDeadline     int64         `db:"original_deadline"`
	Status               string        `db:"status"`
	AcceptanceStatus     string        `db:"acceptance_status"`
	RequestedDeadline    sql.NullInt64 `db:"requested_deadline"`
	ExtensionReason      string        `db:"extension_reason"`
	RejectionReason      string        `db:"rejection_reason"`
	EstimatedTime        string        `db:"estimated_time"`
	AcceptanceTS         sql.NullInt64 `db:"acceptance_ts"`
	EditRequestStatus    string        `db:"edit_request_status"`
	EditRequestReason    string        `db:"edit_request_reason"`
	EditRequestDetails   string        `db:"edit_request_details"`
	AllowsFileUpload     bool          `db:"allows_file_upload"`
	AllowsTextSubmission bool          `db:"allows_text_submission"`
	MaxFiles             int           `db:"max_files"`
	Version              int64         `db:"version"`
	CreatedAt            int64         `db:"created_at"`
	UpdatedAt            int64         `db:"updated_at"`
}

// NewTaskRow maps a task to its row.
func NewTaskRow(t *models.Task) TaskRow {
	return TaskRow{
		TaskID:               t.TaskID,
		Title:                t.Title,
		Description:          t.Description,
		AssignedUserID:       t.AssignedUserID,
		CreatedByID:          t.CreatedByID,
		TeamID:               t.TeamID,
		Priority:             string(t.Priority),
		StartDate:            nullMillis(t.StartDate),
		Deadline:             toMillis(t.Deadline),
		OriginalDeadline:     toMillis(t.OriginalDeadline),
		Status:               string(t.Status),
		AcceptanceStatus:     string(t.AcceptanceStatus),
		RequestedDeadline:    nullMillis(t.RequestedDeadline),
		ExtensionReason:      t.ExtensionReason,
		RejectionReason:      t.RejectionReason,
		EstimatedTime:        t.EstimatedTimeToComplete,
		AcceptanceTS:         nullMillis(t.AcceptanceTimestamp),
		EditRequestStatus:    string(t.EditRequestStatus),
		EditRequestReason:    t.EditRequestReason,
		EditRequestDetails:   t.EditRequestDetails,
		AllowsFileUpload:     t.AllowsFileUpload,
		AllowsTextSubmission: t.AllowsTextSubmission,
		MaxFiles:             t.MaxFiles,
		Version:              t.Version,
		CreatedAt:            toMillis(t.CreatedAt),
		UpdatedAt:            toMillis(t.UpdatedAt),
	}
}

// Task maps the row back to a task.
func (r TaskRow) Task() *models.Task {
	return &models.Task{
		TaskID:                  r.TaskID,
		Title:                   r.Title,
		Description:             r.Description,
		AssignedUserID:          r.AssignedUserID,
		CreatedByID:             r.CreatedByID,
		TeamID:                  r.TeamID,
		Priority:                models.Priority(r.Priority),
		StartDate:               timePtr(r.StartDate),
		Deadline:                fromMillis(r.Deadline),
		OriginalDeadline:        fromMillis(r.OriginalDeadline),
		Status:                  models.Status(r.Status),
		AcceptanceStatus:        models.AcceptanceStatus(r.AcceptanceStatus),
		RequestedDeadline:       timePtr(r.RequestedDeadline),
		ExtensionReason:         r.ExtensionReason,
		RejectionReason:         r.RejectionReason,
		EstimatedTimeToComplete: r.EstimatedTime,
		AcceptanceTimestamp:     timePtr(r.AcceptanceTS),
		EditRequestStatus:       models.EditRequestStatus(r.EditRequestStatus),
		EditRequestReason:       r.EditRequestReason,
		EditRequestDetails:      r.EditRequestDetails,
		AllowsFileUpload:        r.AllowsFileUpload,
		AllowsTextSubmission:    r.AllowsTextSubmission,
		MaxFiles:                r.MaxFiles,
		Version:                 r.Version,
		CreatedAt:               fromMillis(r.CreatedAt),
		UpdatedAt:               fromMillis(r.UpdatedAt),
	}
}

// SubmissionColumns is the column list matching SubmissionRow.
const SubmissionColumns = `submission_id, task_id, user_id, status, text_content, submitted_at, reviewed_at, reviewed_by, created_at, updated_at`

// SubmissionRow is the submissions table row.
type SubmissionRow struct {
	SubmissionID string         `db:"submission_id"`
	TaskID       string         `db:"task_id"`
	UserID       string         `db:"user_id"`
	Status       string         `db:"status"`
	TextContent  sql.NullString `db:"text_content"`
	SubmittedAt  sql.NullInt64  `db:"submitted_at"`
	ReviewedAt   sql.NullInt64  `db:"reviewed_at"`
	ReviewedBy   string         `db:"reviewed_by"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
}

func NewSubmissionRow(s *models.Submission) SubmissionRow {
	r := SubmissionRow{
		SubmissionID: s.SubmissionID,
		TaskID:       s.TaskID,
		UserID:       s.UserID,
		Status:       string(s.Status),
		SubmittedAt:  nullMillis(s.SubmittedAt),
		ReviewedAt:   nullMillis(s.ReviewedAt),
		ReviewedBy:   s.ReviewedBy,
		CreatedAt:    toMillis(s.CreatedAt),
		UpdatedAt:    toMillis(s.UpdatedAt),
	}
	if s.TextContent != nil {
		r.TextContent = sql.NullString{String: *s.TextContent, Valid: true}
	}
	return r
}

func (r SubmissionRow) Submission() *models.Submission {
	s := &models.Submission{
		SubmissionID: r.SubmissionID,
		TaskID:       r.TaskID,
		UserID:       r.UserID,
		Status:       models.SubmissionStatus(r.Status),
		SubmittedAt:  timePtr(r.SubmittedAt),
		ReviewedAt:   timePtr(r.ReviewedAt),
		ReviewedBy:   r.ReviewedBy,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
	if r.TextContent.Valid {
		text := r.TextContent.String
		s.TextContent = &text
	}
	return s
}

// FileColumns is the column list matching FileRow.
const FileColumns = `file_id, submission_id, file_name, file_path, file_type, file_size, uploaded_by, uploaded_at`

// FileRow is the submission_files table row.
type FileRow struct {
	FileID       string `db:"file_id"`
	SubmissionID string `db:"submission_id"`
	FileName     string `db:"file_name"`
	FilePath     string `db:"file_path"`
	FileType     string `db:"file_type"`
	FileSize     int64  `db:"file_size"`
	UploadedBy   string `db:"uploaded_by"`
	UploadedAt   int64  `db:"uploaded_at"`
}

func NewFileRow(f *models.SubmissionFile) FileRow {
	return FileRow{
		FileID:       f.FileID,
		SubmissionID: f.SubmissionID,
		FileName:     f.FileName,
		FilePath:     f.FilePath,
		FileType:     f.FileType,
		FileSize:     f.FileSize,
		UploadedBy:   f.UploadedBy,
		UploadedAt:   toMillis(f.UploadedAt),
	}
}

func (r FileRow) File() models.SubmissionFile {
	return models.SubmissionFile{
		FileID:       r.FileID,
		SubmissionID: r.SubmissionID,
		FileName:     r.FileName,
		FilePath:     r.FilePath,
		FileType:     r.FileType,
		FileSize:     r.FileSize,
		UploadedBy:   r.UploadedBy,
		UploadedAt:   fromMillis(r.UploadedAt),
	}
}

// AuditColumns is the column list matching AuditRow.
const AuditColumns = `audit_id, task_id, actor_id, action, from_status, to_status, from_acceptance, to_acceptance, detail, created_at`

// AuditRow is the task_audit table row.
type AuditRow struct {
	AuditID        string `db:"audit_id"`
	TaskID         string `db:"task_id"`
	ActorID        string `db:"actor_id"`
	Action         string `db:"action"`
	FromStatus     string `db:"from_status"`
	ToStatus       string `db:"to_status"`
	FromAcceptance string `db:"from_acceptance"`
	ToAcceptance   string `db:"to_acceptance"`
	Detail         string `db:"detail"`
	CreatedAt      int64  `db:"created_at"`
}

func NewAuditRow(e *models.AuditEntry) AuditRow {
	return AuditRow{
		AuditID:        e.AuditID,
		TaskID:         e.TaskID,
		ActorID:        e.ActorID,
		Action:         e.Action,
		FromStatus:     string(e.FromStatus),
		ToStatus:       string(e.ToStatus),
		FromAcceptance: string(e.FromAcceptance),
		ToAcceptance:   string(e.ToAcceptance),
		Detail:         e.Detail,
		CreatedAt:      toMillis(e.CreatedAt),
	}
}

func (r AuditRow) Entry() models.AuditEntry {
	return models.AuditEntry{
		AuditID:        r.AuditID,
		TaskID:         r.TaskID,
		ActorID:        r.ActorID,
		Action:         r.Action,
		FromStatus:     models.Status(r.FromStatus),
		ToStatus:       models.Status(r.ToStatus),
		FromAcceptance: models.AcceptanceStatus(r.FromAcceptance),
		ToAcceptance:   models.AcceptanceStatus(r.ToAcceptance),
		Detail:         r.Detail,
		CreatedAt:      fromMillis(r.CreatedAt),
	}
}
