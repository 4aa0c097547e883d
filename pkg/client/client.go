// Package client provides a Go SDK for the taskhub HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// Client calls the taskhub HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3548"
	Token      string       // optional bearer token; takes precedence over ActorID
	ActorID    string       // sent as X-Actor-ID when Token is empty
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL acting as actorID.
func New(baseURL, actorID string) *Client {
	return &Client{BaseURL: baseURL, ActorID: actorID}
}

// WithToken returns a copy of c that authenticates with a bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.Token = token
	return &cp
}

// APIError is a non-2xx response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.Status)
	}
	if e.Kind != "" {
		return fmt.Sprintf("api %s %s: %s: %s", e.Method, e.Path, e.Kind, e.Message)
	}
	return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	} else if c.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.ActorID)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client().Do(req)
}

func checkResponse(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var errBody models.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errBody)
	return &APIError{Method: method, Path: path, Status: resp.StatusCode, Kind: errBody.Kind, Message: errBody.Error}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp, method, path); err != nil {
		return err
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func taskPath(taskID string, rest ...string) string {
	p := "/tasks/" + url.PathEscape(taskID)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Me returns the member the server authenticated the caller as.
func (c *Client) Me(ctx context.Context) (*models.Member, error) {
	var out models.Member
	err := c.doJSON(ctx, http.MethodGet, "/me", nil, &out)
	return &out, err
}

// ListMembers returns the directory, optionally limited to one team.
func (c *Client) ListMembers(ctx context.Context, teamID string) ([]models.Member, error) {
	path := "/members"
	if teamID != "" {
		path += "?team_id=" + url.QueryEscape(teamID)
	}
	var out []models.Member
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ListTasks returns the tasks visible to the caller that match f.
func (c *Client) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Acceptance != "" {
		q.Set("acceptance_status", string(f.Acceptance))
	}
	if f.TeamID != "" {
		q.Set("team_id", f.TeamID)
	}
	if f.AssignedUserID != "" {
		q.Set("assigned_user_id", f.AssignedUserID)
	}
	if f.CreatedByID != "" {
		q.Set("created_by_id", f.CreatedByID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateTask creates a task and returns it.
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks", req, &out)
	return &out, err
}

// GetTask returns a task by ID.
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, taskPath(taskID), nil, &out)
	return &out, err
}

// UpdateTask applies a partial update; nil fields are left unchanged.
func (c *Client) UpdateTask(ctx context.Context, taskID string, req models.UpdateTaskRequest) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPatch, taskPath(taskID), req, &out)
	return &out, err
}

func (c *Client) taskAction(ctx context.Context, taskID, action string, body any) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, action), body, &out)
	return &out, err
}

// AcceptTask accepts an assignment with an estimate such as "3 days".
func (c *Client) AcceptTask(ctx context.Context, taskID, estimate string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "accept", models.AcceptRequest{EstimatedTimeToComplete: estimate})
}

// RejectTask declines an assignment.
func (c *Client) RejectTask(ctx context.Context, taskID, reason string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "reject", models.RejectRequest{Reason: reason})
}

// RequestExtension asks for a later deadline ("2006-01-02" or RFC 3339).
func (c *Client) RequestExtension(ctx context.Context, taskID, reason, deadline string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "extension", models.ExtensionRequest{Reason: reason, RequestedDeadline: deadline})
}

// ApproveExtension grants the requested deadline, or deadline when non-empty.
func (c *Client) ApproveExtension(ctx context.Context, taskID, deadline string) (*models.Task, error) {
	var body any
	if deadline != "" {
		body = models.ApproveExtensionRequest{Deadline: deadline}
	}
	return c.taskAction(ctx, taskID, "extension/approve", body)
}

// RejectExtension declines the pending extension request.
func (c *Client) RejectExtension(ctx context.Context, taskID string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "extension/reject", nil)
}

// RequestEdit asks the approver to reopen the task for changes.
func (c *Client) RequestEdit(ctx context.Context, taskID, reason, details string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "edit", models.EditRequest{Reason: reason, Details: details})
}

// ApproveEdit approves the pending edit request.
func (c *Client) ApproveEdit(ctx context.Context, taskID string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "edit/approve", nil)
}

// RejectEdit rejects the pending edit request.
func (c *Client) RejectEdit(ctx context.Context, taskID string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "edit/reject", nil)
}

// ReassignTask hands the task to another member. deadline may be empty.
func (c *Client) ReassignTask(ctx context.Context, taskID, assigneeID, deadline string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "reassign", models.ReassignRequest{AssignedUserID: assigneeID, Deadline: deadline})
}

// CompleteTask marks the task completed.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "complete", nil)
}

// ListAudit returns the task's audit trail, oldest first.
func (c *Client) ListAudit(ctx context.Context, taskID string) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "audit"), nil, &out)
	return out, err
}

// GetSubmission returns the task with the current assignee's submission.
func (c *Client) GetSubmission(ctx context.Context, taskID string) (*models.SubmissionView, error) {
	var out models.SubmissionView
	err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "submission"), nil, &out)
	return &out, err
}

// SaveText replaces the submission's text content.
func (c *Client) SaveText(ctx context.Context, taskID, text string) (*models.Submission, error) {
	var out models.Submission
	err := c.doJSON(ctx, http.MethodPut, taskPath(taskID, "submission/text"), models.TextRequest{Text: text}, &out)
	return &out, err
}

// FinalizeSubmission submits the draft.
func (c *Client) FinalizeSubmission(ctx context.Context, taskID string) (*models.SubmissionView, error) {
	var out models.SubmissionView
	err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "submission/finalize"), nil, &out)
	return &out, err
}

// ReviewSubmission marks the submitted work reviewed.
func (c *Client) ReviewSubmission(ctx context.Context, taskID string) (*models.SubmissionView, error) {
	var out models.SubmissionView
	err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "submission/review"), nil, &out)
	return &out, err
}

// AttachFile uploads content as a submission file. fileType is the declared
// MIME type and size the declared byte count.
func (c *Client) AttachFile(ctx context.Context, taskID, fileName, fileType string, size int64, content io.Reader) (*models.SubmissionFile, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUpload(mw, fileName, fileType, size, content)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	path := taskPath(taskID, "submission/files")
	req, err := c.newRequest(ctx, http.MethodPost, path, pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp, http.MethodPost, path); err != nil {
		return nil, err
	}
	var out models.SubmissionFile
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeUpload(mw *multipart.Writer, fileName, fileType string, size int64, content io.Reader) error {
	if err := mw.WriteField("size", strconv.FormatInt(size, 10)); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if fileType != "" {
		h.Set("Content-Type", fileType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, content)
	return err
}

// DownloadFile streams a stored file into w and returns its metadata from
// the response headers.
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer) (contentType string, n int64, err error) {
	path := "/files/" + url.PathEscape(fileID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp, http.MethodGet, path); err != nil {
		return "", 0, err
	}
	n, err = io.Copy(w, resp.Body)
	return resp.Header.Get("Content-Type"), n, err
}

// DetachFile removes a file from the caller's draft submission.
func (c *Client) DetachFile(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil)
}
