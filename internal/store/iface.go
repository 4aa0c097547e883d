package store

import (
	"context"
	"errors"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrStale is returned by compare-and-swap updates when the row changed
	// since it was read.
	ErrStale = errors.New("store: stale write")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// Queries is the set of record operations available on the store and inside a
// transaction. Implementations: the SQLite store in this package and
// *postgres.Store.
type Queries interface {
	// Tasks
	InsertTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	// UpdateTask writes t only if the stored row still matches prev. On success
	// t.Version is prev.Version+1; otherwise ErrStale.
	UpdateTask(ctx context.Context, prev models.State, t *models.Task) error
	CountTasksByStatus(ctx context.Context) (map[models.Status]int64, error)

	// Submissions
	GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error)
	GetSubmissionFor(ctx context.Context, taskID, userID string) (*models.Submission, error)
	InsertSubmission(ctx context.Context, s *models.Submission) error
	// LockSubmission holds the submission row until the transaction ends.
	LockSubmission(ctx context.Context, submissionID string) error
	// UpdateSubmission writes s only if the stored status is still prev.
	UpdateSubmission(ctx context.Context, prev models.SubmissionStatus, s *models.Submission) error

	// Submission files
	ListFiles(ctx context.Context, submissionID string) ([]models.SubmissionFile, error)
	CountFiles(ctx context.Context, submissionID string) (int, error)
	GetFile(ctx context.Context, fileID string) (*models.SubmissionFile, error)
	InsertFile(ctx context.Context, f *models.SubmissionFile) error
	DeleteFile(ctx context.Context, fileID string) error

	// Audit
	InsertAudit(ctx context.Context, e *models.AuditEntry) error
	ListAudit(ctx context.Context, taskID string) ([]models.AuditEntry, error)
}

// Store is the persistence interface of the workflow service.
type Store interface {
	Queries
	// InTx runs fn in one transaction. fn's error rolls back and is returned as is.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}
