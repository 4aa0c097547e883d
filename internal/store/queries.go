package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// sqliteQueries runs Queries against either the pool or an open transaction.
type sqliteQueries struct {
	db   sqlx.ExtContext
	inTx bool
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (q *sqliteQueries) InsertTask(ctx context.Context, t *models.Task) error {
	row := NewTaskRow(t)
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO tasks(`+TaskColumns+`) VALUES(
		:task_id, :title, :description, :assigned_user_id, :created_by_id, :team_id, :priority,
		:start_date, :deadline, :original_deadline, :status, :acceptance_status,
		:requested_deadline, :extension_reason, :rejection_reason, :estimated_time, :acceptance_ts,
		:edit_request_status, :edit_request_reason, :edit_request_details,
		:allows_file_upload, :allows_text_submission, :max_files, :version, :created_at, :updated_at)`, row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (q *sqliteQueries) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var row TaskRow
	if err := sqlx.GetContext(ctx, q.db, &row, `SELECT `+TaskColumns+` FROM tasks WHERE task_id = ?`, taskID); err != nil {
		return nil, notFound(err)
	}
	return row.Task(), nil
}

func (q *sqliteQueries) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Acceptance != "" {
		where = append(where, "acceptance_status = ?")
		args = append(args, string(f.Acceptance))
	}
	if f.TeamID != "" {
		where = append(where, "team_id = ?")
		args = append(args, f.TeamID)
	}
	if f.AssignedUserID != "" {
		where = append(where, "assigned_user_id = ?")
		args = append(args, f.AssignedUserID)
	}
	if f.CreatedByID != "" {
		where = append(where, "created_by_id = ?")
		args = append(args, f.CreatedByID)
	}
	if v := f.VisibleTo; v != nil {
		clause := "assigned_user_id = ? OR created_by_id = ?"
		args = append(args, v.UserID, v.UserID)
		if v.TeamID != "" {
			clause += " OR team_id = ?"
			args = append(args, v.TeamID)
		}
		where = append(where, "("+clause+")")
	}
	query := `SELECT ` + TaskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > models.DefaultTaskListLimit {
		limit = models.DefaultTaskListLimit
	}
	query += " ORDER BY created_at DESC, task_id LIMIT ?"
	args = append(args, limit)

	var rows []TaskRow
	if err := sqlx.SelectContext(ctx, q.db, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.Task())
	}
	return out, nil
}

// UpdateTask is the compare-and-swap on (version, status, acceptance, edit request).
func (q *sqliteQueries) UpdateTask(ctx context.Context, prev models.State, t *models.Task) error {
	row := NewTaskRow(t)
	row.Version = prev.Version + 1
	res, err := q.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, description = ?, assigned_user_id = ?, priority = ?, start_date = ?, deadline = ?,
		status = ?, acceptance_status = ?, requested_deadline = ?, extension_reason = ?, rejection_reason = ?,
		estimated_time = ?, acceptance_ts = ?, edit_request_status = ?, edit_request_reason = ?, edit_request_details = ?,
		allows_file_upload = ?, allows_text_submission = ?, max_files = ?, version = ?, updated_at = ?
		WHERE task_id = ? AND version = ? AND status = ? AND acceptance_status = ? AND edit_request_status = ?`,
		row.Title, row.Description, row.AssignedUserID, row.Priority, row.StartDate, row.Deadline,
		row.Status, row.AcceptanceStatus, row.RequestedDeadline, row.ExtensionReason, row.RejectionReason,
		row.EstimatedTime, row.AcceptanceTS, row.EditRequestStatus, row.EditRequestReason, row.EditRequestDetails,
		row.AllowsFileUpload, row.AllowsTextSubmission, row.MaxFiles, row.Version, row.UpdatedAt,
		row.TaskID, prev.Version, string(prev.Status), string(prev.Acceptance), string(prev.EditRequest))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	t.Version = row.Version
	return nil
}

func (q *sqliteQueries) CountTasksByStatus(ctx context.Context) (map[models.Status]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, q.db, &rows, `SELECT status, COUNT(*) AS n FROM tasks GROUP BY status`); err != nil {
		return nil, err
	}
	out := make(map[models.Status]int64, len(rows))
	for _, r := range rows {
		out[models.Status(r.Status)] = r.N
	}
	return out, nil
}

func (q *sqliteQueries) GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error) {
	var row SubmissionRow
	if err := sqlx.GetContext(ctx, q.db, &row, `SELECT `+SubmissionColumns+` FROM submissions WHERE submission_id = ?`, submissionID); err != nil {
		return nil, notFound(err)
	}
	return row.Submission(), nil
}

func (q *sqliteQueries) GetSubmissionFor(ctx context.Context, taskID, userID string) (*models.Submission, error) {
	var row SubmissionRow
	if err := sqlx.GetContext(ctx, q.db, &row, `SELECT `+SubmissionColumns+` FROM submissions WHERE task_id = ? AND user_id = ?`, taskID, userID); err != nil {
		return nil, notFound(err)
	}
	return row.Submission(), nil
}

func (q *sqliteQueries) InsertSubmission(ctx context.Context, s *models.Submission) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO submissions(`+SubmissionColumns+`) VALUES(
		:submission_id, :task_id, :user_id, :status, :text_content, :submitted_at, :reviewed_at, :reviewed_by, :created_at, :updated_at)`,
		NewSubmissionRow(s))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// LockSubmission touches the row so the transaction holds the database write
// lock before any count is read.
func (q *sqliteQueries) LockSubmission(ctx context.Context, submissionID string) error {
	if !q.inTx {
		return errors.New("LockSubmission requires a transaction")
	}
	res, err := q.db.ExecContext(ctx, `UPDATE submissions SET lock_seq = lock_seq + 1 WHERE submission_id = ?`, submissionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *sqliteQueries) UpdateSubmission(ctx context.Context, prev models.SubmissionStatus, s *models.Submission) error {
	row := NewSubmissionRow(s)
	res, err := q.db.ExecContext(ctx, `UPDATE submissions SET status = ?, text_content = ?, submitted_at = ?, reviewed_at = ?, reviewed_by = ?, updated_at = ?
		WHERE submission_id = ? AND status = ?`,
		row.Status, row.TextContent, row.SubmittedAt, row.ReviewedAt, row.ReviewedBy, row.UpdatedAt,
		row.SubmissionID, string(prev))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (q *sqliteQueries) ListFiles(ctx context.Context, submissionID string) ([]models.SubmissionFile, error) {
	var rows []FileRow
	if err := sqlx.SelectContext(ctx, q.db, &rows, `SELECT `+FileColumns+` FROM submission_files WHERE submission_id = ? ORDER BY uploaded_at, file_id`, submissionID); err != nil {
		return nil, err
	}
	out := make([]models.SubmissionFile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.File())
	}
	return out, nil
}

func (q *sqliteQueries) CountFiles(ctx context.Context, submissionID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n, `SELECT COUNT(*) FROM submission_files WHERE submission_id = ?`, submissionID)
	return n, err
}

func (q *sqliteQueries) GetFile(ctx context.Context, fileID string) (*models.SubmissionFile, error) {
	var row FileRow
	if err := sqlx.GetContext(ctx, q.db, &row, `SELECT `+FileColumns+` FROM submission_files WHERE file_id = ?`, fileID); err != nil {
		return nil, notFound(err)
	}
	f := row.File()
	return &f, nil
}

func (q *sqliteQueries) InsertFile(ctx context.Context, f *models.SubmissionFile) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO submission_files(`+FileColumns+`) VALUES(
		:file_id, :submission_id, :file_name, :file_path, :file_type, :file_size, :uploaded_by, :uploaded_at)`,
		NewFileRow(f))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (q *sqliteQueries) DeleteFile(ctx context.Context, fileID string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM submission_files WHERE file_id = ?`, fileID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *sqliteQueries) InsertAudit(ctx context.Context, e *models.AuditEntry) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `INSERT INTO task_audit(`+AuditColumns+`) VALUES(
		:audit_id, :task_id, :actor_id, :action, :from_status, :to_status, :from_acceptance, :to_acceptance, :detail, :created_at)`,
		NewAuditRow(e))
	return err
}

func (q *sqliteQueries) ListAudit(ctx context.Context, taskID string) ([]models.AuditEntry, error) {
	var rows []AuditRow
	if err := sqlx.SelectContext(ctx, q.db, &rows, `SELECT `+AuditColumns+` FROM task_audit WHERE task_id = ? ORDER BY seq`, taskID); err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Entry())
	}
	return out, nil
}
