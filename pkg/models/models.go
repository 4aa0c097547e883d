// Package models provides the task workflow records shared by the service, the
// HTTP API and pkg/client. The JSON tags are the wire format of the API.
package models

import "time"

// Task is a work item with an execution status and an independent negotiation track.
type Task struct {
	TaskID           string     `json:"task_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	AssignedUserID   string     `json:"assigned_user_id"`
	CreatedByID      string     `json:"created_by_id"`
	TeamID           string     `json:"team_id"`
	Priority         Priority   `json:"priority"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	Deadline         time.Time  `json:"deadline"`
	OriginalDeadline time.Time  `json:"original_deadline"`

	Status           Status           `json:"status"`
	AcceptanceStatus AcceptanceStatus `json:"acceptance_status"`

	RequestedDeadline       *time.Time `json:"requested_deadline,omitempty"`
	ExtensionReason         string     `json:"extension_reason,omitempty"`
	RejectionReason         string     `json:"rejection_reason,omitempty"`
	EstimatedTimeToComplete string     `json:"estimated_time_to_complete,omitempty"`
	AcceptanceTimestamp     *time.Time `json:"acceptance_timestamp,omitempty"`

	EditRequestStatus  EditRequestStatus `json:"edit_request_status"`
	EditRequestReason  string            `json:"edit_request_reason,omitempty"`
	EditRequestDetails string            `json:"edit_request_details,omitempty"`

	AllowsFileUpload     bool `json:"allows_file_upload"`
	AllowsTextSubmission bool `json:"allows_text_submission"`
	MaxFiles             int  `json:"max_files"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// State is the tuple of state fields a task mutation compares before it writes.
type State struct {
	Version     int64
	Status      Status
	Acceptance  AcceptanceStatus
	EditRequest EditRequestStatus
}

// State returns the compare-and-swap key of t.
func (t *Task) State() State {
	return State{
		Version:     t.Version,
		Status:      t.Status,
		Acceptance:  t.AcceptanceStatus,
		EditRequest: t.EditRequestStatus,
	}
}

// Submission is the assignee's deliverable for one task.
type Submission struct {
	SubmissionID string           `json:"submission_id"`
	TaskID       string           `json:"task_id"`
	UserID       string           `json:"user_id"`
	Status       SubmissionStatus `json:"status"`
	TextContent  *string          `json:"text_content,omitempty"`
	SubmittedAt  *time.Time       `json:"submitted_at,omitempty"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy   string           `json:"reviewed_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at,omitempty"`

	Files []SubmissionFile `json:"files,omitempty"`
}

// Text returns the text content or "" when unset.
func (s *Submission) Text() string {
	if s.TextContent == nil {
		return ""
	}
	return *s.TextContent
}

// SubmissionFile is the metadata of one stored file. FilePath is the storage key.
type SubmissionFile struct {
	FileID       string    `json:"file_id"`
	SubmissionID string    `json:"submission_id"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	FileType     string    `json:"file_type"`
	FileSize     int64     `json:"file_size"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// AuditEntry records one committed workflow mutation.
type AuditEntry struct {
	AuditID        string           `json:"audit_id"`
	TaskID         string           `json:"task_id"`
	ActorID        string           `json:"actor_id"`
	Action         string           `json:"action"`
	FromStatus     Status           `json:"from_status,omitempty"`
	ToStatus       Status           `json:"to_status,omitempty"`
	FromAcceptance AcceptanceStatus `json:"from_acceptance,omitempty"`
	ToAcceptance   AcceptanceStatus `json:"to_acceptance,omitempty"`
	Detail         string           `json:"detail,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Member is an entry of the user/team directory.
type Member struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	Role       Role   `json:"role" yaml:"role"`
	TeamID     string `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`
}

// SubmissionView is the /tasks/{id}/submission response: the submission with its
// files, plus the task it belongs to.
type SubmissionView struct {
	Task       Task        `json:"task"`
	Submission *Submission `json:"submission"`
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status         Status           `json:"status,omitempty"`
	Acceptance     AcceptanceStatus `json:"acceptance_status,omitempty"`
	TeamID         string           `json:"team_id,omitempty"`
	AssignedUserID string           `json:"assigned_user_id,omitempty"`
	CreatedByID    string           `json:"created_by_id,omitempty"`
	Limit          int              `json:"limit,omitempty"`
	// VisibleTo, when set, restricts the listing before Limit applies.
	VisibleTo *Visibility `json:"-"`
}

// Visibility matches tasks of TeamID plus tasks UserID is assigned to or
// created. An empty TeamID matches no team.
type Visibility struct {
	TeamID string
	UserID string
}
