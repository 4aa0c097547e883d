package workflow

import (
	"strings"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// Accept records the assignee's agreement and starts the task.
func Accept(t models.Task, estimate string, now time.Time) (models.Task, error) {
	const op = string(OpAcceptTask)
	if t.AcceptanceStatus != models.AcceptancePending {
		return t, InvalidTransition(op, "acceptance is %s", t.AcceptanceStatus)
	}
	estimate = strings.TrimSpace(estimate)
	if estimate == "" {
		return t, Validation(op, "estimated time to complete required")
	}
	if err := markAccepted(op, &t, now); err != nil {
		return t, err
	}
	t.EstimatedTimeToComplete = estimate
	t.UpdatedAt = now.UTC()
	return t, nil
}

// Reject declines the assignment. Only reassignment recovers from it.
func Reject(t models.Task, reason string, now time.Time) (models.Task, error) {
	const op = string(OpRejectTask)
	if t.AcceptanceStatus != models.AcceptancePending {
		return t, InvalidTransition(op, "acceptance is %s", t.AcceptanceStatus)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return t, Validation(op, "reason required")
	}
	if err := setAcceptance(op, &t, models.AcceptanceRejected); err != nil {
		return t, err
	}
	t.RejectionReason = reason
	t.UpdatedAt = now.UTC()
	return t, nil
}

// RequestExtension opens an extension negotiation. Only one negotiation can be
// outstanding, so the task must still be pending acceptance.
func RequestExtension(t models.Task, reason string, requested time.Time, now time.Time) (models.Task, error) {
	const op = string(OpRequestExtension)
	if t.AcceptanceStatus != models.AcceptancePending {
		return t, InvalidTransition(op, "acceptance is %s", t.AcceptanceStatus)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return t, Validation(op, "reason required")
	}
	if requested.IsZero() {
		return t, Validation(op, "requested deadline required")
	}
	req := Day(requested)
	if req.Before(t.Deadline) {
		return t, Validation(op, "requested deadline %s before deadline %s", req.Format(time.DateOnly), t.Deadline.Format(time.DateOnly))
	}
	if err := setAcceptance(op, &t, models.AcceptanceExtensionRequested); err != nil {
		return t, err
	}
	t.RequestedDeadline = &req
	t.ExtensionReason = reason
	t.UpdatedAt = now.UTC()
	return t, nil
}

// ApproveExtension accepts the task under a new deadline. With a nil deadline
// the requested one is used. originalDeadline is not touched.
func ApproveExtension(t models.Task, deadline *time.Time, now time.Time) (models.Task, error) {
	const op = string(OpApproveExtension)
	if t.AcceptanceStatus != models.AcceptanceExtensionRequested {
		return t, InvalidTransition(op, "acceptance is %s", t.AcceptanceStatus)
	}
	next := dayPtr(deadline)
	if next == nil {
		next = t.RequestedDeadline
	}
	if next == nil {
		return t, Validation(op, "no deadline to approve")
	}
	if next.Before(t.Deadline) {
		return t, Validation(op, "approved deadline %s before deadline %s", next.Format(time.DateOnly), t.Deadline.Format(time.DateOnly))
	}
	if err := markAccepted(op, &t, now); err != nil {
		return t, err
	}
	t.Deadline = *next
	t.RequestedDeadline = nil
	t.ExtensionReason = ""
	t.UpdatedAt = now.UTC()
	return t, nil
}

// RejectExtension refuses the request; the assignment ends in rejected.
func RejectExtension(t models.Task, now time.Time) (models.Task, error) {
	const op = string(OpRejectExtension)
	if t.AcceptanceStatus != models.AcceptanceExtensionRequested {
		return t, InvalidTransition(op, "acceptance is %s", t.AcceptanceStatus)
	}
	if err := setAcceptance(op, &t, models.AcceptanceRejected); err != nil {
		return t, err
	}
	t.RequestedDeadline = nil
	t.ExtensionReason = ""
	t.UpdatedAt = now.UTC()
	return t, nil
}

// RequestEdit asks the owner to change the task definition.
func RequestEdit(t models.Task, reason, details string, now time.Time) (models.Task, error) {
	const op = string(OpRequestEdit)
	if t.Status.Terminal() {
		return t, InvalidTransition(op, "task is %s", t.Status)
	}
	if t.EditRequestStatus != models.EditRequestNone {
		return t, InvalidTransition(op, "edit request is %s", t.EditRequestStatus)
	}
	reason = strings.TrimSpace(reason)
	details = strings.TrimSpace(details)
	if reason == "" {
		return t, Validation(op, "reason required")
	}
	if details == "" {
		return t, Validation(op, "details required")
	}
	if err := setEditRequest(op, &t, models.EditRequestPending); err != nil {
		return t, err
	}
	t.EditRequestReason = reason
	t.EditRequestDetails = details
	t.UpdatedAt = now.UTC()
	return t, nil
}

// ApproveEdit signals that the owner will apply the edit. No task field other
// than the edit request status changes.
func ApproveEdit(t models.Task, now time.Time) (models.Task, error) {
	return resolveEdit(string(OpApproveEdit), t, models.EditRequestApproved, now)
}

// RejectEdit declines the edit request.
func RejectEdit(t models.Task, now time.Time) (models.Task, error) {
	return resolveEdit(string(OpRejectEdit), t, models.EditRequestRejected, now)
}

func resolveEdit(op string, t models.Task, target models.EditRequestStatus, now time.Time) (models.Task, error) {
	if t.EditRequestStatus != models.EditRequestPending {
		return t, InvalidTransition(op, "edit request is %s", t.EditRequestStatus)
	}
	if err := setEditRequest(op, &t, target); err != nil {
		return t, err
	}
	t.UpdatedAt = now.UTC()
	return t, nil
}
