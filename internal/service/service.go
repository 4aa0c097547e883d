// Package service is the workflow service: it authorizes each operation with
// internal/guard, computes the next state with internal/workflow and commits it
// through internal/store with a compare-and-swap on the task's state fields.
// After commit it publishes an invalidation event and, for negotiation and
// review events, a notification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/blob"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/notify"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/otel"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// EventTaskUpdate is the type of the invalidation event published after every
// committed mutation.
const EventTaskUpdate = "task_update"

// Event tells subscribers that a task changed and should be re-fetched. The
// team and user fields let a publisher decide who may see it.
type Event struct {
	Type           string `json:"type"`
	TaskID         string `json:"task_id"`
	Op             string `json:"op,omitempty"`
	Version        int64  `json:"version,omitempty"`
	Status         string `json:"status,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
	AssignedUserID string `json:"assigned_user_id,omitempty"`
	CreatedByID    string `json:"-"`
}

// Publisher fans events out to subscribers. *httpapi.SSEHub implements it.
type Publisher interface {
	Publish(ev Event)
}

// Options configures a Service. Store and Blobs are required.
type Options struct {
	Store store.Store
	Blobs blob.Storage
	// Directory, when set, rejects assignees that are not members.
	Directory       *identity.Directory
	Policy          workflow.Policy
	ConflictRetries int
	Publisher       Publisher
	Notifier        *notify.Registry
	Now             func() time.Time
	NewID           func() string
	Logger          *slog.Logger
}

// Service runs workflow operations. It is safe for concurrent use.
type Service struct {
	st        store.Store
	blobs     blob.Storage
	dir       *identity.Directory
	policy    workflow.Policy
	retries   int
	pub       Publisher
	notifier  *notify.Registry
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
	validator *validator.Validate
}

// New builds a Service, filling defaults for unset options.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("service: store is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("service: blob storage is required")
	}
	s := &Service{
		st:        opts.Store,
		blobs:     opts.Blobs,
		dir:       opts.Directory,
		policy:    opts.Policy,
		retries:   opts.ConflictRetries,
		pub:       opts.Publisher,
		notifier:  opts.Notifier,
		now:       opts.Now,
		newID:     opts.NewID,
		log:       opts.Logger,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
	def := workflow.DefaultPolicy()
	if s.policy.MaxFileSize <= 0 {
		s.policy.MaxFileSize = def.MaxFileSize
	}
	if len(s.policy.AllowedTypes) == 0 {
		s.policy.AllowedTypes = def.AllowedTypes
	}
	if s.policy.MaxTextLength <= 0 {
		s.policy.MaxTextLength = def.MaxTextLength
	}
	if s.retries <= 0 {
		s.retries = models.DefaultConflictRetries
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Policy returns the effective file and text policy.
func (s *Service) Policy() workflow.Policy {
	return s.policy
}

// observe records the outcome of op. Use with defer and a named error.
func (s *Service) observe(ctx context.Context, op workflow.Op, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = string(workflow.KindOf(*err))
		if result == "" {
			result = "error"
		}
	}
	otel.RecordWorkflowOp(ctx, string(op), result, time.Since(start))
}

// change is what a mutation computes from the current task.
type change struct {
	task   models.Task
	detail string
	// apply runs inside the transaction after the task compare-and-swap
	// succeeded.
	apply func(q store.Queries) error
}

// mutateFunc computes a change. It may read (and lock) rows through q.
type mutateFunc func(q store.Queries, cur models.Task, now time.Time) (change, error)

// mutate loads taskID, authorizes op and commits fn's change with a
// compare-and-swap on the task state. A stale write re-reads and re-evaluates
// everything up to s.retries times before surfacing Conflict.
func (s *Service) mutate(ctx context.Context, actor guard.Actor, op workflow.Op, taskID string, fn mutateFunc) (models.Task, error) {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			otel.RecordConflictRetry(ctx, string(op))
		}
		var committed models.Task
		var detail string
		err := s.st.InTx(ctx, func(q store.Queries) error {
			cur, err := q.GetTask(ctx, taskID)
			if err != nil {
				return translate(op, err, "task %s", taskID)
			}
			if err := guard.Check(actor, op, cur); err != nil {
				return err
			}
			now := s.now().UTC()
			ch, err := fn(q, *cur, now)
			if err != nil {
				return err
			}
			next := ch.task
			next.UpdatedAt = now
			if err := q.UpdateTask(ctx, cur.State(), &next); err != nil {
				return err
			}
			if ch.apply != nil {
				if err := ch.apply(q); err != nil {
					return err
				}
			}
			if err := q.InsertAudit(ctx, s.auditEntry(actor, op, *cur, next, ch.detail, now)); err != nil {
				return fmt.Errorf("%s: audit: %w", op, err)
			}
			committed, detail = next, ch.detail
			return nil
		})
		if err == nil {
			s.afterCommit(ctx, actor, op, committed, detail)
			return committed, nil
		}
		if !errors.Is(err, store.ErrStale) {
			return models.Task{}, err
		}
		lastErr = err
		s.log.Debug("stale write, retrying", "op", op, "task_id", taskID, "attempt", attempt+1)
	}
	return models.Task{}, workflow.Conflict(string(op), lastErr)
}

func (s *Service) auditEntry(actor guard.Actor, op workflow.Op, prev, next models.Task, detail string, now time.Time) *models.AuditEntry {
	return &models.AuditEntry{
		AuditID:        s.newID(),
		TaskID:         next.TaskID,
		ActorID:        actor.ID,
		Action:         string(op),
		FromStatus:     prev.Status,
		ToStatus:       next.Status,
		FromAcceptance: prev.AcceptanceStatus,
		ToAcceptance:   next.AcceptanceStatus,
		Detail:         detail,
		CreatedAt:      now,
	}
}

// notifyOps are the operations that produce a notification.
var notifyOps = map[workflow.Op]bool{
	workflow.OpRejectTask:       true,
	workflow.OpRequestExtension: true,
	workflow.OpApproveExtension: true,
	workflow.OpRejectExtension:  true,
	workflow.OpRequestEdit:      true,
	workflow.OpApproveEdit:      true,
	workflow.OpRejectEdit:       true,
	workflow.OpReassignTask:     true,
	workflow.OpFinalize:         true,
	workflow.OpReview:           true,
}

func (s *Service) afterCommit(ctx context.Context, actor guard.Actor, op workflow.Op, t models.Task, detail string) {
	if s.pub != nil {
		s.pub.Publish(Event{
			Type:           EventTaskUpdate,
			TaskID:         t.TaskID,
			Op:             string(op),
			Version:        t.Version,
			Status:         string(t.Status),
			TeamID:         t.TeamID,
			AssignedUserID: t.AssignedUserID,
			CreatedByID:    t.CreatedByID,
		})
	}
	if s.notifier != nil && notifyOps[op] {
		e := notify.Event{Op: string(op), TaskID: t.TaskID, TaskTitle: t.Title, ActorID: actor.ID, Detail: detail}
		if err := s.notifier.Notify(ctx, e); err != nil {
			s.log.Warn("notification failed", "op", op, "task_id", t.TaskID, "err", err)
		}
	}
}

// translate maps store errors to workflow errors for op.
func translate(op workflow.Op, err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return workflow.NotFound(string(op), format, args...)
	case errors.Is(err, store.ErrStale), errors.Is(err, store.ErrDuplicate):
		return err
	case workflow.KindOf(err) != "":
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validate runs struct tag validation and reports the first failure as a
// ValidationError.
func (s *Service) validate(op workflow.Op, v any) error {
	err := s.validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return workflow.Validation(string(op), "%s: %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return workflow.Validation(string(op), "%s: %s", fe.Field(), fe.Tag())
	}
	return workflow.Validation(string(op), "%v", err)
}

// checkMember rejects ids unknown to the directory, when one is configured.
func (s *Service) checkMember(op workflow.Op, id string) error {
	if s.dir == nil {
		return nil
	}
	if _, ok := s.dir.Lookup(id); !ok {
		return workflow.Validation(string(op), "unknown member %q", id)
	}
	return nil
}

// loadVisible reads taskID and fails unless actor may view it.
func (s *Service) loadVisible(ctx context.Context, q store.Queries, actor guard.Actor, op workflow.Op, taskID string) (*models.Task, error) {
	t, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, translate(op, err, "task %s", taskID)
	}
	if err := guard.Check(actor, workflow.OpViewTask, t); err != nil {
		return nil, workflow.Denied(string(op), "%s cannot view task %s", actor, taskID)
	}
	return t, nil
}
