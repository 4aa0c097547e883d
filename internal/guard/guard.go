// Package guard is the permission table of the task workflow. It maps
// (role, operation) to a rule and evaluates the rule against the actor and the
// task's ownership fields. It never mutates anything.
//
// Admin overrides cover creation, editing and every approver operation.
// Assignee operations (accept, reject, extension and edit requests, submission
// work) stay with the assignee for every role, admins included: an admin acts
// on them only for a task assigned to that admin.
package guard

import (
	"fmt"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// Actor is the caller of a workflow operation, as resolved by the identity
// provider.
type Actor struct {
	ID     string      `json:"id"`
	Role   models.Role `json:"role"`
	TeamID string      `json:"team_id,omitempty"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s(%s)", a.ID, a.Role)
}

// Rule is the condition attached to a (role, operation) pair.
type Rule int

const (
	Deny Rule = iota
	Allow
	// Assignee: the actor is the task's assigned user.
	Assignee
	// Approver: admin, or a team leader of the task's team who is not its assignee.
	Approver
	// Owner: the task creator or an approver.
	Owner
	// OwnTeam: the task belongs to the actor's team.
	OwnTeam
	// Viewer: the actor may read the task.
	Viewer
)

func (r Rule) String() string {
	switch r {
	case Allow:
		return "allow"
	case Assignee:
		return "assignee"
	case Approver:
		return "approver"
	case Owner:
		return "owner"
	case OwnTeam:
		return "own_team"
	case Viewer:
		return "viewer"
	}
	return "deny"
}

var assigneeOps = []workflow.Op{
	workflow.OpAcceptTask, workflow.OpRejectTask,
	workflow.OpRequestExtension, workflow.OpRequestEdit,
	workflow.OpSaveText, workflow.OpAttachFile, workflow.OpDetachFile, workflow.OpFinalize,
}

var approverOps = []workflow.Op{
	workflow.OpApproveExtension, workflow.OpRejectExtension,
	workflow.OpApproveEdit, workflow.OpRejectEdit,
	workflow.OpReassignTask, workflow.OpCompleteTask, workflow.OpReview,
}

// table is the capability table. Operations missing for a role are denied.
var table = buildTable()

func buildTable() map[models.Role]map[workflow.Op]Rule {
	t := map[models.Role]map[workflow.Op]Rule{
		models.RoleAdmin: {
			workflow.OpCreateTask: Allow,
			workflow.OpViewTask:   Allow,
			workflow.OpUpdateTask: Allow,
		},
		models.RoleTeamLeader: {
			workflow.OpCreateTask: OwnTeam,
			workflow.OpViewTask:   Viewer,
			workflow.OpUpdateTask: Owner,
		},
		models.RoleUser: {
			workflow.OpViewTask: Viewer,
		},
	}
	for _, op := range assigneeOps {
		t[models.RoleAdmin][op] = Assignee
		t[models.RoleTeamLeader][op] = Assignee
		t[models.RoleUser][op] = Assignee
	}
	for _, op := range approverOps {
		t[models.RoleAdmin][op] = Allow
		t[models.RoleTeamLeader][op] = Approver
	}
	return t
}

// RuleFor returns the rule for role and op.
func RuleFor(role models.Role, op workflow.Op) Rule {
	return table[role][op]
}

// Check authorizes actor for op on task. For OpCreateTask the task is the one
// about to be created. A nil error means allowed; otherwise the error is a
// workflow PermissionDenied.
func Check(actor Actor, op workflow.Op, task *models.Task) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return workflow.Denied(string(op), "unknown actor")
	}
	rule := RuleFor(actor.Role, op)
	if eval(rule, actor, task) {
		return nil
	}
	return workflow.Denied(string(op), "%s is not allowed (%s)", actor, rule)
}

func eval(rule Rule, actor Actor, task *models.Task) bool {
	switch rule {
	case Allow:
		return true
	case Assignee:
		return task != nil && IsAssignee(actor, task)
	case Approver:
		return task != nil && IsApprover(actor, task)
	case Owner:
		return task != nil && (task.CreatedByID == actor.ID || IsApprover(actor, task))
	case OwnTeam:
		return task != nil && actor.TeamID != "" && task.TeamID == actor.TeamID
	case Viewer:
		return task != nil && CanView(actor, task)
	}
	return false
}

// IsAssignee reports whether actor is the task's assigned user.
func IsAssignee(actor Actor, task *models.Task) bool {
	return actor.ID != "" && actor.ID == task.AssignedUserID
}

// IsApprover reports whether actor has approval authority over the task's
// team. Team leaders cannot approve their own assignment.
func IsApprover(actor Actor, task *models.Task) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLeader:
		return actor.TeamID != "" && actor.TeamID == task.TeamID && !IsAssignee(actor, task)
	}
	return false
}

// CanView reports whether actor may read the task.
func CanView(actor Actor, task *models.Task) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLeader:
		if actor.TeamID != "" && actor.TeamID == task.TeamID {
			return true
		}
	}
	return task.AssignedUserID == actor.ID || task.CreatedByID == actor.ID
}

// Scope returns f restricted to what actor can view, so the store applies the
// limit to visible tasks only. Admins are not restricted.
func Scope(actor Actor, f models.TaskFilter) models.TaskFilter {
	switch actor.Role {
	case models.RoleAdmin:
		f.VisibleTo = nil
	case models.RoleTeamLeader:
		f.VisibleTo = &models.Visibility{TeamID: actor.TeamID, UserID: actor.ID}
	default:
		f.VisibleTo = &models.Visibility{UserID: actor.ID}
	}
	return f
}

// Visible filters tasks down to the ones actor can view. It backs up Scope
// for stores that ignore VisibleTo.
func Visible(actor Actor, tasks []models.Task) []models.Task {
	out := tasks[:0]
	for i := range tasks {
		if CanView(actor, &tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}
