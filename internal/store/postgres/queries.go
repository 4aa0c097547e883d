package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db   dbtx
	inTx bool
}

const uniqueViolation = "23505"

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

func getOne[T any](ctx context.Context, db dbtx, query string, args ...any) (T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	return v, mapErr(err)
}

func getAll[T any](ctx context.Context, db dbtx, query string, args ...any) ([]T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

func (q *queries) InsertTask(ctx context.Context, t *models.Task) error {
	r := store.NewTaskRow(t)
	_, err := q.db.Exec(ctx, `INSERT INTO tasks(`+store.TaskColumns+`) VALUES(
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		r.TaskID, r.Title, r.Description, r.AssignedUserID, r.CreatedByID, r.TeamID, r.Priority,
		r.StartDate, r.Deadline, r.OriginalDeadline, r.Status, r.AcceptanceStatus,
		r.RequestedDeadline, r.ExtensionReason, r.RejectionReason, r.EstimatedTime, r.AcceptanceTS,
		r.EditRequestStatus, r.EditRequestReason, r.EditRequestDetails,
		r.AllowsFileUpload, r.AllowsTextSubmission, r.MaxFiles, r.Version, r.CreatedAt, r.UpdatedAt)
	return mapErr(err)
}

func (q *queries) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	row, err := getOne[store.TaskRow](ctx, q.db, `SELECT `+store.TaskColumns+` FROM tasks WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, err
	}
	return row.Task(), nil
}

func (q *queries) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  = pgx.NamedArgs{}
	)
	add := func(col, name string, v any) {
		where = append(where, fmt.Sprintf("%s = @%s", col, name))
		args[name] = v
	}
	if f.Status != "" {
		add("status", "status", string(f.Status))
	}
	if f.Acceptance != "" {
		add("acceptance_status", "acceptance", string(f.Acceptance))
	}
	if f.TeamID != "" {
		add("team_id", "team", f.TeamID)
	}
	if f.AssignedUserID != "" {
		add("assigned_user_id", "assignee", f.AssignedUserID)
	}
	if f.CreatedByID != "" {
		add("created_by_id", "creator", f.CreatedByID)
	}
	if v := f.VisibleTo; v != nil {
		clause := "assigned_user_id = @viewer OR created_by_id = @viewer"
		args["viewer"] = v.UserID
		if v.TeamID != "" {
			clause += " OR team_id = @viewer_team"
			args["viewer_team"] = v.TeamID
		}
		where = append(where, "("+clause+")")
	}
	query := `SELECT ` + store.TaskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > models.DefaultTaskListLimit {
		limit = models.DefaultTaskListLimit
	}
	query += " ORDER BY created_at DESC, task_id LIMIT @limit"
	args["limit"] = limit

	rows, err := getAll[store.TaskRow](ctx, q.db, query, args)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.Task())
	}
	return out, nil
}

// UpdateTask is the compare-and-swap on (version, status, acceptance, edit request).
func (q *queries) UpdateTask(ctx context.Context, prev models.State, t *models.Task) error {
	r := store.NewTaskRow(t)
	r.Version = prev.Version + 1
	tag, err := q.db.Exec(ctx, `UPDATE tasks SET
		title = @title, description = @description, assigned_user_id = @assignee, priority = @priority,
		start_date = @start_date, deadline = @deadline, status = @status, acceptance_status = @acceptance,
		requested_deadline = @requested_deadline, extension_reason = @extension_reason, rejection_reason = @rejection_reason,
		estimated_time = @estimated_time, acceptance_ts = @acceptance_ts, edit_request_status = @edit_status,
		edit_request_reason = @edit_reason, edit_request_details = @edit_details,
		allows_file_upload = @allows_file_upload, allows_text_submission = @allows_text_submission,
		max_files = @max_files, version = @version, updated_at = @updated_at
		WHERE task_id = @task_id AND version = @prev_version AND status = @prev_status
		  AND acceptance_status = @prev_acceptance AND edit_request_status = @prev_edit`,
		pgx.NamedArgs{
			"title":                  r.Title,
			"description":            r.Description,
			"assignee":               r.AssignedUserID,
			"priority":               r.Priority,
			"start_date":             r.StartDate,
			"deadline":               r.Deadline,
			"status":                 r.Status,
			"acceptance":             r.AcceptanceStatus,
			"requested_deadline":     r.RequestedDeadline,
			"extension_reason":       r.ExtensionReason,
			"rejection_reason":       r.RejectionReason,
			"estimated_time":         r.EstimatedTime,
			"acceptance_ts":          r.AcceptanceTS,
			"edit_status":            r.EditRequestStatus,
			"edit_reason":            r.EditRequestReason,
			"edit_details":           r.EditRequestDetails,
			"allows_file_upload":     r.AllowsFileUpload,
			"allows_text_submission": r.AllowsTextSubmission,
			"max_files":              r.MaxFiles,
			"version":                r.Version,
			"updated_at":             r.UpdatedAt,
			"task_id":                r.TaskID,
			"prev_version":           prev.Version,
			"prev_status":            string(prev.Status),
			"prev_acceptance":        string(prev.Acceptance),
			"prev_edit":              string(prev.EditRequest),
		})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrStale
	}
	t.Version = r.Version
	return nil
}

func (q *queries) CountTasksByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[models.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[models.Status(status)] = n
	}
	return out, rows.Err()
}

func (q *queries) GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error) {
	row, err := getOne[store.SubmissionRow](ctx, q.db, `SELECT `+store.SubmissionColumns+` FROM submissions WHERE submission_id = $1`, submissionID)
	if err != nil {
		return nil, err
	}
	return row.Submission(), nil
}

func (q *queries) GetSubmissionFor(ctx context.Context, taskID, userID string) (*models.Submission, error) {
	row, err := getOne[store.SubmissionRow](ctx, q.db, `SELECT `+store.SubmissionColumns+` FROM submissions WHERE task_id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return nil, err
	}
	return row.Submission(), nil
}

func (q *queries) InsertSubmission(ctx context.Context, s *models.Submission) error {
	r := store.NewSubmissionRow(s)
	_, err := q.db.Exec(ctx, `INSERT INTO submissions(`+store.SubmissionColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.SubmissionID, r.TaskID, r.UserID, r.Status, r.TextContent, r.SubmittedAt, r.ReviewedAt, r.ReviewedBy, r.CreatedAt, r.UpdatedAt)
	return mapErr(err)
}

// LockSubmission takes the row lock with SELECT ... FOR UPDATE.
func (q *queries) LockSubmission(ctx context.Context, submissionID string) error {
	if !q.inTx {
		return errors.New("LockSubmission requires a transaction")
	}
	var id string
	err := q.db.QueryRow(ctx, `SELECT submission_id FROM submissions WHERE submission_id = $1 FOR UPDATE`, submissionID).Scan(&id)
	return mapErr(err)
}

func (q *queries) UpdateSubmission(ctx context.Context, prev models.SubmissionStatus, s *models.Submission) error {
	r := store.NewSubmissionRow(s)
	tag, err := q.db.Exec(ctx, `UPDATE submissions SET status = $1, text_content = $2, submitted_at = $3, reviewed_at = $4, reviewed_by = $5, updated_at = $6
		WHERE submission_id = $7 AND status = $8`,
		r.Status, r.TextContent, r.SubmittedAt, r.ReviewedAt, r.ReviewedBy, r.UpdatedAt, r.SubmissionID, string(prev))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrStale
	}
	return nil
}

func (q *queries) ListFiles(ctx context.Context, submissionID string) ([]models.SubmissionFile, error) {
	rows, err := getAll[store.FileRow](ctx, q.db, `SELECT `+store.FileColumns+` FROM submission_files WHERE submission_id = $1 ORDER BY uploaded_at, file_id`, submissionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.SubmissionFile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.File())
	}
	return out, nil
}

func (q *queries) CountFiles(ctx context.Context, submissionID string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM submission_files WHERE submission_id = $1`, submissionID).Scan(&n)
	return n, err
}

func (q *queries) GetFile(ctx context.Context, fileID string) (*models.SubmissionFile, error) {
	row, err := getOne[store.FileRow](ctx, q.db, `SELECT `+store.FileColumns+` FROM submission_files WHERE file_id = $1`, fileID)
	if err != nil {
		return nil, err
	}
	f := row.File()
	return &f, nil
}

func (q *queries) InsertFile(ctx context.Context, f *models.SubmissionFile) error {
	r := store.NewFileRow(f)
	_, err := q.db.Exec(ctx, `INSERT INTO submission_files(`+store.FileColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.FileID, r.SubmissionID, r.FileName, r.FilePath, r.FileType, r.FileSize, r.UploadedBy, r.UploadedAt)
	return mapErr(err)
}

func (q *queries) DeleteFile(ctx context.Context, fileID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM submission_files WHERE file_id = $1`, fileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) InsertAudit(ctx context.Context, e *models.AuditEntry) error {
	r := store.NewAuditRow(e)
	_, err := q.db.Exec(ctx, `INSERT INTO task_audit(`+store.AuditColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.AuditID, r.TaskID, r.ActorID, r.Action, r.FromStatus, r.ToStatus, r.FromAcceptance, r.ToAcceptance, r.Detail, r.CreatedAt)
	return err
}

func (q *queries) ListAudit(ctx context.Context, taskID string) ([]models.AuditEntry, error) {
	rows, err := getAll[store.AuditRow](ctx, q.db, `SELECT `+store.AuditColumns+` FROM task_audit WHERE task_id = $1 ORDER BY seq`, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Entry())
	}
	return out, nil
}
