package models

// Status is the execution state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusCompleted  Status = "completed"
	StatusReviewed   Status = "reviewed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSubmitted, StatusCompleted, StatusReviewed:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusReviewed
}

// CanTransitionTo checks the forward-only status graph.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusInProgress
	case StatusInProgress:
		return target == StatusSubmitted || target == StatusCompleted
	case StatusSubmitted:
		return target == StatusReviewed || target == StatusCompleted
	}
	return false
}

// AcceptanceStatus is the negotiation state of a task, independent of Status.
type AcceptanceStatus string

const (
	AcceptancePending            AcceptanceStatus = "pending"
	AcceptanceAccepted           AcceptanceStatus = "accepted"
	AcceptanceRejected           AcceptanceStatus = "rejected"
	AcceptanceExtensionRequested AcceptanceStatus = "extension_requested"
)

func (a AcceptanceStatus) Valid() bool {
	switch a {
	case AcceptancePending, AcceptanceAccepted, AcceptanceRejected, AcceptanceExtensionRequested:
		return true
	}
	return false
}

// CanTransitionTo checks the negotiation graph. rejected -> pending is the
// reassignment path and is only taken by an approver.
func (a AcceptanceStatus) CanTransitionTo(target AcceptanceStatus) bool {
	switch a {
	case AcceptancePending:
		return target == AcceptanceAccepted || target == AcceptanceRejected || target == AcceptanceExtensionRequested
	case AcceptanceExtensionRequested:
		return target == AcceptanceAccepted || target == AcceptanceRejected
	case AcceptanceRejected:
		return target == AcceptancePending
	}
	return false
}

// EditRequestStatus tracks the single outstanding edit request on a task.
type EditRequestStatus string

const (
	EditRequestNone     EditRequestStatus = "none"
	EditRequestPending  EditRequestStatus = "pending"
	EditRequestApproved EditRequestStatus = "approved"
	EditRequestRejected EditRequestStatus = "rejected"
)

func (e EditRequestStatus) Valid() bool {
	switch e {
	case EditRequestNone, EditRequestPending, EditRequestApproved, EditRequestRejected:
		return true
	}
	return false
}

// CanTransitionTo checks the edit request graph. Resolved requests return to
// none when the owner applies an update.
func (e EditRequestStatus) CanTransitionTo(target EditRequestStatus) bool {
	switch e {
	case EditRequestNone:
		return target == EditRequestPending
	case EditRequestPending:
		return target == EditRequestApproved || target == EditRequestRejected
	case EditRequestApproved, EditRequestRejected:
		return target == EditRequestNone
	}
	return false
}

// SubmissionStatus is the state of an assignee's deliverable.
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionReviewed  SubmissionStatus = "reviewed"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionDraft, SubmissionSubmitted, SubmissionReviewed:
		return true
	}
	return false
}

func (s SubmissionStatus) CanTransitionTo(target SubmissionStatus) bool {
	switch s {
	case SubmissionDraft:
		return target == SubmissionSubmitted
	case SubmissionSubmitted:
		return target == SubmissionReviewed
	}
	return false
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Role of an actor.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTeamLeader Role = "team_leader"
	RoleUser       Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeamLeader || r == RoleUser
}

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultMaxFileSize         = 10 << 20
	DefaultMaxTextLength       = 100000
	DefaultTaskListLimit       = 1000
	DefaultSSEChannelBuffer    = 256
	DefaultConflictRetries     = 3
)
