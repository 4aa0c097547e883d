package service

import (
	"context"
	"errors"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// CreateTaskInput is the input of CreateTask.
type CreateTaskInput struct {
	Title                string          `validate:"required,max=200"`
	Description          string          `validate:"max=20000"`
	AssignedUserID       string          `validate:"required,max=128"`
	TeamID               string          `validate:"required,max=128"`
	Priority             models.Priority `validate:"omitempty,oneof=low medium high"`
	StartDate            *time.Time
	Deadline             time.Time
	AllowsFileUpload     bool
	AllowsTextSubmission bool
	MaxFiles             int `validate:"gte=0,lte=100"`
}

// CreateTask creates a pending task owned by actor.
func (s *Service) CreateTask(ctx context.Context, actor guard.Actor, in CreateTaskInput) (t models.Task, err error) {
	const op = workflow.OpCreateTask
	defer s.observe(ctx, op, time.Now(), &err)

	if err := guard.Check(actor, op, &models.Task{TeamID: in.TeamID, CreatedByID: actor.ID}); err != nil {
		return models.Task{}, err
	}
	if err := s.validate(op, in); err != nil {
		return models.Task{}, err
	}
	task, err := workflow.CreateTask(s.newID(), actor.ID, workflow.NewTask{
		Title:                in.Title,
		Description:          in.Description,
		AssignedUserID:       in.AssignedUserID,
		TeamID:               in.TeamID,
		Priority:             in.Priority,
		StartDate:            in.StartDate,
		Deadline:             in.Deadline,
		AllowsFileUpload:     in.AllowsFileUpload,
		AllowsTextSubmission: in.AllowsTextSubmission,
		MaxFiles:             in.MaxFiles,
	}, s.now())
	if err != nil {
		return models.Task{}, err
	}
	if err := s.checkMember(op, task.AssignedUserID); err != nil {
		return models.Task{}, err
	}
	err = s.st.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertTask(ctx, &task); err != nil {
			return translate(op, err, "task %s", task.TaskID)
		}
		return q.InsertAudit(ctx, s.auditEntry(actor, op, models.Task{}, task, "assigned to "+task.AssignedUserID, task.CreatedAt))
	})
	if err != nil {
		return models.Task{}, err
	}
	s.afterCommit(ctx, actor, op, task, "")
	return task, nil
}

// GetTask returns the task if actor may view it.
func (s *Service) GetTask(ctx context.Context, actor guard.Actor, taskID string) (t models.Task, err error) {
	const op = workflow.OpViewTask
	defer s.observe(ctx, op, time.Now(), &err)
	task, err := s.loadVisible(ctx, s.st, actor, op, taskID)
	if err != nil {
		return models.Task{}, err
	}
	return *task, nil
}

// ListTasks returns the tasks matching f that actor may view, newest first.
func (s *Service) ListTasks(ctx context.Context, actor guard.Actor, f models.TaskFilter) ([]models.Task, error) {
	const op = workflow.OpViewTask
	if actor.ID == "" || !actor.Role.Valid() {
		return nil, workflow.Denied(string(op), "unknown actor")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, workflow.Validation(string(op), "unknown status %q", f.Status)
	}
	if f.Acceptance != "" && !f.Acceptance.Valid() {
		return nil, workflow.Validation(string(op), "unknown acceptance status %q", f.Acceptance)
	}
	tasks, err := s.st.ListTasks(ctx, guard.Scope(actor, f))
	if err != nil {
		return nil, translate(op, err, "list")
	}
	return guard.Visible(actor, tasks), nil
}

// UpdateTask applies an owner edit to a non-terminal task.
func (s *Service) UpdateTask(ctx context.Context, actor guard.Actor, taskID string, u workflow.TaskUpdate) (t models.Task, err error) {
	const op = workflow.OpUpdateTask
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(q store.Queries, cur models.Task, now time.Time) (change, error) {
		count, err := s.assigneeFileCount(ctx, q, cur)
		if err != nil {
			return change{}, err
		}
		next, err := workflow.ApplyUpdate(cur, u, count, now)
		return change{task: next}, err
	})
}

// assigneeFileCount returns the number of files on the assignee's submission.
func (s *Service) assigneeFileCount(ctx context.Context, q store.Queries, t models.Task) (int, error) {
	sub, err := q.GetSubmissionFor(ctx, t.TaskID, t.AssignedUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return q.CountFiles(ctx, sub.SubmissionID)
}

// AcceptTask accepts the assignment and starts execution.
func (s *Service) AcceptTask(ctx context.Context, actor guard.Actor, taskID, estimate string) (t models.Task, err error) {
	const op = workflow.OpAcceptTask
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.Accept(cur, estimate, now)
		return change{task: next, detail: estimate}, err
	})
}

// RejectTask declines the assignment.
func (s *Service) RejectTask(ctx context.Context, actor guard.Actor, taskID, reason string) (t models.Task, err error) {
	const op = workflow.OpRejectTask
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.Reject(cur, reason, now)
		return change{task: next, detail: reason}, err
	})
}

// RequestExtension asks for a later deadline before accepting.
func (s *Service) RequestExtension(ctx context.Context, actor guard.Actor, taskID, reason string, requested time.Time) (t models.Task, err error) {
	const op = workflow.OpRequestExtension
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.RequestExtension(cur, reason, requested, now)
		return change{task: next, detail: reason}, err
	})
}

// ApproveExtension grants the extension; deadline overrides the requested one.
func (s *Service) ApproveExtension(ctx context.Context, actor guard.Actor, taskID string, deadline *time.Time) (t models.Task, err error) {
	const op = workflow.OpApproveExtension
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.ApproveExtension(cur, deadline, now)
		return change{task: next, detail: "deadline " + next.Deadline.Format(time.DateOnly)}, err
	})
}

// RejectExtension declines the extension, which rejects the assignment.
func (s *Service) RejectExtension(ctx context.Context, actor guard.Actor, taskID string) (t models.Task, err error) {
	const op = workflow.OpRejectExtension
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.RejectExtension(cur, now)
		return change{task: next}, err
	})
}

// RequestEdit asks the owner to change the task definition.
func (s *Service) RequestEdit(ctx context.Context, actor guard.Actor, taskID, reason, details string) (t models.Task, err error) {
	const op = workflow.OpRequestEdit
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.RequestEdit(cur, reason, details, now)
		return change{task: next, detail: reason}, err
	})
}

// ApproveEdit approves the pending edit request.
func (s *Service) ApproveEdit(ctx context.Context, actor guard.Actor, taskID string) (t models.Task, err error) {
	const op = workflow.OpApproveEdit
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.ApproveEdit(cur, now)
		return change{task: next}, err
	})
}

// RejectEdit rejects the pending edit request.
func (s *Service) RejectEdit(ctx context.Context, actor guard.Actor, taskID string) (t models.Task, err error) {
	const op = workflow.OpRejectEdit
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.RejectEdit(cur, now)
		return change{task: next}, err
	})
}

// ReassignTask hands a pending or rejected task to another member.
func (s *Service) ReassignTask(ctx context.Context, actor guard.Actor, taskID, assigneeID string, deadline *time.Time) (t models.Task, err error) {
	const op = workflow.OpReassignTask
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.Reassign(cur, assigneeID, deadline, now)
		if err != nil {
			return change{}, err
		}
		if err := s.checkMember(op, assigneeID); err != nil {
			return change{}, err
		}
		return change{task: next, detail: cur.AssignedUserID + " -> " + assigneeID}, nil
	})
}

// CompleteTask closes an accepted task without a review.
func (s *Service) CompleteTask(ctx context.Context, actor guard.Actor, taskID string) (t models.Task, err error) {
	const op = workflow.OpCompleteTask
	defer s.observe(ctx, op, time.Now(), &err)
	return s.mutate(ctx, actor, op, taskID, func(_ store.Queries, cur models.Task, now time.Time) (change, error) {
		next, err := workflow.Complete(cur, now)
		return change{task: next}, err
	})
}

// ListAudit returns the task's audit trail, oldest first.
func (s *Service) ListAudit(ctx context.Context, actor guard.Actor, taskID string) ([]models.AuditEntry, error) {
	const op = workflow.OpViewTask
	if _, err := s.loadVisible(ctx, s.st, actor, op, taskID); err != nil {
		return nil, err
	}
	entries, err := s.st.ListAudit(ctx, taskID)
	if err != nil {
		return nil, translate(op, err, "audit %s", taskID)
	}
	return entries, nil
}

// TaskCounts returns the number of tasks per status. Unauthenticated; used by
// the metrics gauge.
func (s *Service) TaskCounts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.st.CountTasksByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(counts))
	for st, n := range counts {
		out[string(st)] = n
	}
	return out, nil
}
