package guard

import (
	"errors"
	"testing"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

var (
	admin      = Actor{ID: "root", Role: models.RoleAdmin}
	leaderA    = Actor{ID: "lena", Role: models.RoleTeamLeader, TeamID: "team-a"}
	leaderB    = Actor{ID: "boris", Role: models.RoleTeamLeader, TeamID: "team-b"}
	assignee   = Actor{ID: "alice", Role: models.RoleUser, TeamID: "team-a"}
	teammate   = Actor{ID: "tom", Role: models.RoleUser, TeamID: "team-a"}
	testActors = []Actor{admin, leaderA, leaderB, assignee, teammate}
)

func testTask() *models.Task {
	return &models.Task{TaskID: "t-1", AssignedUserID: "alice", CreatedByID: "lena", TeamID: "team-a"}
}

func TestCheck_assigneeOpsOnlyForAssignee(t *testing.T) {
	t.Parallel()
	task := testTask()
	for _, op := range assigneeOps {
		for _, a := range testActors {
			err := Check(a, op, task)
			if a.ID == task.AssignedUserID {
				if err != nil {
					t.Errorf("%s by assignee: %v", op, err)
				}
				continue
			}
			if !errors.Is(err, workflow.ErrPermissionDenied) {
				t.Errorf("%s by %s: err = %v, want denied", op, a, err)
			}
		}
	}
}

func TestCheck_approverOps(t *testing.T) {
	t.Parallel()
	task := testTask()
	allowed := map[string]bool{"root": true, "lena": true}
	for _, op := range approverOps {
		for _, a := range testActors {
			err := Check(a, op, task)
			if allowed[a.ID] && err != nil {
				t.Errorf("%s by %s: %v", op, a, err)
			}
			if !allowed[a.ID] && !errors.Is(err, workflow.ErrPermissionDenied) {
				t.Errorf("%s by %s: err = %v, want denied", op, a, err)
			}
		}
	}
}

func TestCheck_leaderCannotApproveOwnAssignment(t *testing.T) {
	t.Parallel()
	task := testTask()
	task.AssignedUserID = leaderA.ID
	task.CreatedByID = admin.ID
	if err := Check(leaderA, workflow.OpApproveExtension, task); !errors.Is(err, workflow.ErrPermissionDenied) {
		t.Fatalf("self approval: %v", err)
	}
	if err := Check(leaderA, workflow.OpAcceptTask, task); err != nil {
		t.Fatalf("leader accepting own assignment: %v", err)
	}
	if err := Check(admin, workflow.OpApproveExtension, task); err != nil {
		t.Fatalf("admin approval: %v", err)
	}
}

func TestCheck_createTask(t *testing.T) {
	t.Parallel()
	task := testTask()
	if err := Check(admin, workflow.OpCreateTask, task); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if err := Check(leaderA, workflow.OpCreateTask, task); err != nil {
		t.Fatalf("own team leader: %v", err)
	}
	if err := Check(leaderB, workflow.OpCreateTask, task); !errors.Is(err, workflow.ErrPermissionDenied) {
		t.Fatalf("other team leader: %v", err)
	}
	if err := Check(assignee, workflow.OpCreateTask, task); !errors.Is(err, workflow.ErrPermissionDenied) {
		t.Fatalf("user: %v", err)
	}
}

func TestCheck_unknownActor(t *testing.T) {
	t.Parallel()
	if err := Check(Actor{ID: "x", Role: "guest"}, workflow.OpViewTask, testTask()); !errors.Is(err, workflow.ErrPermissionDenied) {
		t.Fatalf("unknown role: %v", err)
	}
	if err := Check(Actor{Role: models.RoleAdmin}, workflow.OpViewTask, testTask()); !errors.Is(err, workflow.ErrPermissionDenied) {
		t.Fatalf("empty id: %v", err)
	}
}

func TestVisible(t *testing.T) {
	t.Parallel()
	tasks := []models.Task{
		{TaskID: "1", TeamID: "team-a", AssignedUserID: "alice"},
		{TaskID: "2", TeamID: "team-b", AssignedUserID: "bob"},
		{TaskID: "3", TeamID: "team-b", AssignedUserID: "lena"},
	}
	got := Visible(leaderA, append([]models.Task(nil), tasks...))
	if len(got) != 2 || got[0].TaskID != "1" || got[1].TaskID != "3" {
		t.Fatalf("leader sees %+v", got)
	}
	got = Visible(teammate, append([]models.Task(nil), tasks...))
	if len(got) != 0 {
		t.Fatalf("teammate sees %+v", got)
	}
	if f := Scope(assignee, models.TaskFilter{}); f.VisibleTo == nil || *f.VisibleTo != (models.Visibility{UserID: "alice"}) {
		t.Fatalf("user scope = %+v", f)
	}
	if f := Scope(leaderA, models.TaskFilter{Limit: 5}); f.VisibleTo == nil || f.VisibleTo.TeamID != "team-a" || f.VisibleTo.UserID != leaderA.ID || f.Limit != 5 {
		t.Fatalf("leader scope = %+v", f)
	}
	if f := Scope(Actor{ID: "root", Role: models.RoleAdmin}, models.TaskFilter{VisibleTo: &models.Visibility{UserID: "x"}}); f.VisibleTo != nil {
		t.Fatalf("admin scope = %+v", f)
	}
}

func TestTable_everyOpHasAnEntryForAdmin(t *testing.T) {
	t.Parallel()
	for _, op := range workflow.Ops {
		if RuleFor(models.RoleAdmin, op) == Deny {
			t.Errorf("admin has no rule for %s", op)
		}
	}
}
