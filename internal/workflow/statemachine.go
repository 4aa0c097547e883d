// Package workflow holds the task lifecycle rules: the status and acceptance
// state machines, the extension and edit-request negotiation, and the
// submission pipeline. Every function is pure; it takes a record by value and
// returns the next record or a typed error. Persistence and authorization live
// in internal/store and internal/guard.
package workflow

import (
	"strings"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// Op names a workflow operation. It keys the permission table, the audit log
// and the operation metrics.
type Op string

const (
	OpCreateTask       Op = "create_task"
	OpViewTask         Op = "view_task"
	OpUpdateTask       Op = "update_task"
	OpAcceptTask       Op = "accept_task"
	OpRejectTask       Op = "reject_task"
	OpRequestExtension Op = "request_extension"
	OpApproveExtension Op = "approve_extension"
	OpRejectExtension  Op = "reject_extension"
	OpRequestEdit      Op = "request_edit"
	OpApproveEdit      Op = "approve_edit"
	OpRejectEdit       Op = "reject_edit"
	OpReassignTask     Op = "reassign_task"
	OpCompleteTask     Op = "complete_task"
	OpSaveText         Op = "save_submission_text"
	OpAttachFile       Op = "attach_file"
	OpDetachFile       Op = "detach_file"
	OpFinalize         Op = "finalize_submission"
	OpReview           Op = "review_submission"
)

// Ops lists every operation, in table order.
var Ops = []Op{
	OpCreateTask, OpViewTask, OpUpdateTask,
	OpAcceptTask, OpRejectTask,
	OpRequestExtension, OpApproveExtension, OpRejectExtension,
	OpRequestEdit, OpApproveEdit, OpRejectEdit,
	OpReassignTask, OpCompleteTask,
	OpSaveText, OpAttachFile, OpDetachFile, OpFinalize, OpReview,
}

// Day truncates t to midnight UTC. Task dates have day precision.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := Day(*t)
	return &d
}

// NewTask describes a task to create.
type NewTask struct {
	Title                string
	Description          string
	AssignedUserID       string
	TeamID               string
	Priority             models.Priority
	StartDate            *time.Time
	Deadline             time.Time
	AllowsFileUpload     bool
	AllowsTextSubmission bool
	MaxFiles             int
}

// CreateTask builds a pending task. originalDeadline is fixed here.
func CreateTask(id, creatorID string, in NewTask, now time.Time) (models.Task, error) {
	const op = string(OpCreateTask)
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, Validation(op, "title required")
	}
	if in.AssignedUserID == "" {
		return models.Task{}, Validation(op, "assigned user required")
	}
	if in.TeamID == "" {
		return models.Task{}, Validation(op, "team required")
	}
	if in.Deadline.IsZero() {
		return models.Task{}, Validation(op, "deadline required")
	}
	if in.MaxFiles < 0 {
		return models.Task{}, Validation(op, "max files must be >= 0")
	}
	prio := in.Priority
	if prio == "" {
		prio = models.PriorityMedium
	}
	if !prio.Valid() {
		return models.Task{}, Validation(op, "unknown priority %q", prio)
	}
	deadline := Day(in.Deadline)
	start := dayPtr(in.StartDate)
	if start != nil && deadline.Before(*start) {
		return models.Task{}, Validation(op, "deadline before start date")
	}
	now = now.UTC()
	return models.Task{
		TaskID:               id,
		Title:                title,
		Description:          in.Description,
		AssignedUserID:       in.AssignedUserID,
		CreatedByID:          creatorID,
		TeamID:               in.TeamID,
		Priority:             prio,
		StartDate:            start,
		Deadline:             deadline,
		OriginalDeadline:     deadline,
		Status:               models.StatusPending,
		AcceptanceStatus:     models.AcceptancePending,
		EditRequestStatus:    models.EditRequestNone,
		AllowsFileUpload:     in.AllowsFileUpload,
		AllowsTextSubmission: in.AllowsTextSubmission,
		MaxFiles:             in.MaxFiles,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func setStatus(op string, t *models.Task, target models.Status) error {
	if !t.Status.CanTransitionTo(target) {
		return InvalidTransition(op, "status %s -> %s", t.Status, target)
	}
	if target == models.StatusCompleted && t.AcceptanceStatus != models.AcceptanceAccepted {
		return InvalidTransition(op, "cannot complete while acceptance is %s", t.AcceptanceStatus)
	}
	t.Status = target
	return nil
}

func setAcceptance(op string, t *models.Task, target models.AcceptanceStatus) error {
	if !t.AcceptanceStatus.CanTransitionTo(target) {
		return InvalidTransition(op, "acceptance %s -> %s", t.AcceptanceStatus, target)
	}
	t.AcceptanceStatus = target
	return nil
}

func setEditRequest(op string, t *models.Task, target models.EditRequestStatus) error {
	if !t.EditRequestStatus.CanTransitionTo(target) {
		return InvalidTransition(op, "edit request %s -> %s", t.EditRequestStatus, target)
	}
	t.EditRequestStatus = target
	return nil
}

// markAccepted moves the acceptance axis to accepted and starts execution.
func markAccepted(op string, t *models.Task, now time.Time) error {
	if err := setAcceptance(op, t, models.AcceptanceAccepted); err != nil {
		return err
	}
	if err := setStatus(op, t, models.StatusInProgress); err != nil {
		return err
	}
	ts := now.UTC()
	t.AcceptanceTimestamp = &ts
	return nil
}

// Complete marks a non-file task as done. Only in_progress and submitted tasks
// with an accepted assignment can complete.
func Complete(t models.Task, now time.Time) (models.Task, error) {
	if err := setStatus(string(OpCompleteTask), &t, models.StatusCompleted); err != nil {
		return t, err
	}
	t.UpdatedAt = now.UTC()
	return t, nil
}

// Reassign hands a pending task to a new assignee and restarts negotiation.
// originalDeadline is left untouched.
func Reassign(t models.Task, assigneeID string, deadline *time.Time, now time.Time) (models.Task, error) {
	const op = string(OpReassignTask)
	if assigneeID == "" {
		return t, Validation(op, "assignee required")
	}
	if t.Status != models.StatusPending {
		return t, InvalidTransition(op, "task is %s", t.Status)
	}
	switch t.AcceptanceStatus {
	case models.AcceptanceRejected:
		if err := setAcceptance(op, &t, models.AcceptancePending); err != nil {
			return t, err
		}
	case models.AcceptancePending:
	default:
		return t, InvalidTransition(op, "acceptance is %s", t.AcceptanceStatus)
	}
	if d := dayPtr(deadline); d != nil {
		if d.Before(Day(now)) {
			return t, Validation(op, "deadline in the past")
		}
		t.Deadline = *d
	}
	t.AssignedUserID = assigneeID
	t.RejectionReason = ""
	t.RequestedDeadline = nil
	t.ExtensionReason = ""
	t.UpdatedAt = now.UTC()
	return t, nil
}

// TaskUpdate holds the owner-editable fields. Nil fields are left unchanged.
type TaskUpdate struct {
	Title                *string
	Description          *string
	Priority             *models.Priority
	StartDate            *time.Time
	Deadline             *time.Time
	AllowsFileUpload     *bool
	AllowsTextSubmission *bool
	MaxFiles             *int
}

// ApplyUpdate applies an owner edit. fileCount is the current number of files
// on the assignee's submission. A resolved edit request returns to none.
func ApplyUpdate(t models.Task, u TaskUpdate, fileCount int, now time.Time) (models.Task, error) {
	const op = string(OpUpdateTask)
	if t.Status.Terminal() {
		return t, InvalidTransition(op, "task is %s", t.Status)
	}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return t, Validation(op, "title required")
		}
		t.Title = title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Priority != nil {
		if !u.Priority.Valid() {
			return t, Validation(op, "unknown priority %q", *u.Priority)
		}
		t.Priority = *u.Priority
	}
	if u.StartDate != nil {
		t.StartDate = dayPtr(u.StartDate)
	}
	if u.Deadline != nil {
		if u.Deadline.IsZero() {
			return t, Validation(op, "deadline required")
		}
		t.Deadline = Day(*u.Deadline)
	}
	if t.StartDate != nil && t.Deadline.Before(*t.StartDate) {
		return t, Validation(op, "deadline before start date")
	}
	if t.AcceptanceStatus == models.AcceptanceExtensionRequested && t.RequestedDeadline != nil && t.RequestedDeadline.Before(t.Deadline) {
		return t, Validation(op, "deadline after the outstanding extension request")
	}
	if u.AllowsFileUpload != nil {
		t.AllowsFileUpload = *u.AllowsFileUpload
	}
	if u.AllowsTextSubmission != nil {
		t.AllowsTextSubmission = *u.AllowsTextSubmission
	}
	if u.MaxFiles != nil {
		if *u.MaxFiles < 0 {
			return t, Validation(op, "max files must be >= 0")
		}
		if *u.MaxFiles < fileCount {
			return t, Validation(op, "max files %d below current file count %d", *u.MaxFiles, fileCount)
		}
		t.MaxFiles = *u.MaxFiles
	}
	if t.EditRequestStatus == models.EditRequestApproved || t.EditRequestStatus == models.EditRequestRejected {
		if err := setEditRequest(op, &t, models.EditRequestNone); err != nil {
			return t, err
		}
		t.EditRequestReason = ""
		t.EditRequestDetails = ""
	}
	t.UpdatedAt = now.UTC()
	return t, nil
}
