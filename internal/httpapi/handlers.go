package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/service"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// multipart framing and headers.
const multipartOverhead = 1 << 20

func (a *App) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if a.dir == nil {
		writeJSON(w, []models.Member{})
		return
	}
	if team := r.URL.Query().Get("team_id"); team != "" {
		writeJSON(w, a.dir.TeamMembers(team))
		return
	}
	writeJSON(w, a.dir.List())
}

// /tasks
func (a *App) handleTasks(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		f := models.TaskFilter{
			Status:         models.Status(q.Get("status")),
			Acceptance:     models.AcceptanceStatus(q.Get("acceptance_status")),
			TeamID:         q.Get("team_id"),
			AssignedUserID: q.Get("assigned_user_id"),
			CreatedByID:    q.Get("created_by_id"),
		}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			f.Limit = n
		}
		tasks, err := a.Service.ListTasks(r.Context(), actor, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		writeJSON(w, tasks)
	case http.MethodPost:
		var body models.CreateTaskRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		in := service.CreateTaskInput{
			Title:                body.Title,
			Description:          body.Description,
			AssignedUserID:       body.AssignedUserID,
			TeamID:               body.TeamID,
			Priority:             body.Priority,
			AllowsFileUpload:     body.AllowsFileUpload,
			AllowsTextSubmission: body.AllowsTextSubmission,
			MaxFiles:             body.MaxFiles,
		}
		var err error
		if body.Deadline != "" {
			if in.Deadline, err = parseDate("deadline", body.Deadline); err != nil {
				writeError(w, r, err)
				return
			}
		}
		if in.StartDate, err = parseOptionalDate("start_date", body.StartDate); err != nil {
			writeError(w, r, err)
			return
		}
		task, err := a.Service.CreateTask(r.Context(), actor, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, task)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /tasks/{id}[/...]
func (a *App) handleTask(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/")
	parts := strings.Split(rest, "/")
	taskID := parts[0]
	if taskID == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	actor := actorFrom(r.Context())
	ctx := r.Context()
	action := strings.Join(parts[1:], "/")

	// Reads and the PATCH/PUT routes first; everything else is a POST action.
	switch {
	case action == "":
		switch r.Method {
		case http.MethodGet:
			task, err := a.Service.GetTask(ctx, actor, taskID)
			respond(w, r, task, err)
		case http.MethodPatch:
			var body models.UpdateTaskRequest
			if !decodeJSON(w, r, &body) {
				return
			}
			u, err := taskUpdate(body)
			if err != nil {
				writeError(w, r, err)
				return
			}
			task, err := a.Service.UpdateTask(ctx, actor, taskID, u)
			respond(w, r, task, err)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	case action == "audit":
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		entries, err := a.Service.ListAudit(ctx, actor, taskID)
		if entries == nil {
			entries = []models.AuditEntry{}
		}
		respond(w, r, entries, err)
		return
	case action == "submission":
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		view, err := a.Service.GetSubmission(ctx, actor, taskID)
		respond(w, r, view, err)
		return
	case action == "submission/text":
		if r.Method != http.MethodPut {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body models.TextRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		sub, err := a.Service.SaveSubmissionText(ctx, actor, taskID, body.Text)
		respond(w, r, sub, err)
		return
	case action == "submission/files":
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		a.handleUpload(w, r, taskID)
		return
	}

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "accept":
		var body models.AcceptRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		task, err := a.Service.AcceptTask(ctx, actor, taskID, body.EstimatedTimeToComplete)
		respond(w, r, task, err)
	case "reject":
		var body models.RejectRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		task, err := a.Service.RejectTask(ctx, actor, taskID, body.Reason)
		respond(w, r, task, err)
	case "extension":
		var body models.ExtensionRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		requested, err := parseDate("requested_deadline", body.RequestedDeadline)
		if err != nil {
			writeError(w, r, err)
			return
		}
		task, err := a.Service.RequestExtension(ctx, actor, taskID, body.Reason, requested)
		respond(w, r, task, err)
	case "extension/approve":
		var body models.ApproveExtensionRequest
		if !decodeOptionalJSON(w, r, &body) {
			return
		}
		deadline, err := parseOptionalDate("deadline", body.Deadline)
		if err != nil {
			writeError(w, r, err)
			return
		}
		task, err := a.Service.ApproveExtension(ctx, actor, taskID, deadline)
		respond(w, r, task, err)
	case "extension/reject":
		task, err := a.Service.RejectExtension(ctx, actor, taskID)
		respond(w, r, task, err)
	case "edit":
		var body models.EditRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		task, err := a.Service.RequestEdit(ctx, actor, taskID, body.Reason, body.Details)
		respond(w, r, task, err)
	case "edit/approve":
		task, err := a.Service.ApproveEdit(ctx, actor, taskID)
		respond(w, r, task, err)
	case "edit/reject":
		task, err := a.Service.RejectEdit(ctx, actor, taskID)
		respond(w, r, task, err)
	case "reassign":
		var body models.ReassignRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		deadline, err := parseOptionalDate("deadline", body.Deadline)
		if err != nil {
			writeError(w, r, err)
			return
		}
		task, err := a.Service.ReassignTask(ctx, actor, taskID, body.AssignedUserID, deadline)
		respond(w, r, task, err)
	case "complete":
		task, err := a.Service.CompleteTask(ctx, actor, taskID)
		respond(w, r, task, err)
	case "submission/finalize":
		view, err := a.Service.FinalizeSubmission(ctx, actor, taskID)
		respond(w, r, view, err)
	case "submission/review":
		view, err := a.Service.ReviewSubmission(ctx, actor, taskID)
		respond(w, r, view, err)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

// handleUpload streams the multipart "file" part into AttachFile. The part's
// Content-Type is the declared type; a "size" field before the file, when
// present, is the declared size.
func (a *App) handleUpload(w http.ResponseWriter, r *http.Request, taskID string) {
	limitBody(w, r, a.Service.Policy().MaxFileSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "multipart body required")
		return
	}
	var size int64
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "file part required")
			return
		}
		if err != nil {
			if statusFor(err) == http.StatusRequestEntityTooLarge {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read multipart: %v", err))
			return
		}
		switch part.FormName() {
		case "size":
			b, err := io.ReadAll(io.LimitReader(part, 32))
			_ = part.Close()
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid size")
				return
			}
			size, err = strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
			if err != nil || size < 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid size")
				return
			}
		case "file":
			defer func() { _ = part.Close() }()
			fileType := part.Header.Get("Content-Type")
			if fileType == "" {
				fileType = mime.TypeByExtension(extOf(part.FileName()))
			}
			file, err := a.Service.AttachFile(r.Context(), actorFrom(r.Context()), taskID, service.AttachFileInput{
				FileName: part.FileName(),
				FileType: fileType,
				Size:     size,
				Content:  part,
			})
			respond(w, r, file, err)
			return
		default:
			_ = part.Close()
		}
	}
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// /files/{id}
func (a *App) handleFile(w http.ResponseWriter, r *http.Request) {
	fileID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/files/"), "/")
	if fileID == "" || strings.Contains(fileID, "/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	actor := actorFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		f, rc, err := a.Service.OpenFile(r.Context(), actor, fileID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer func() { _ = rc.Close() }()
		w.Header().Set("Content-Type", f.FileType)
		w.Header().Set("Content-Length", strconv.FormatInt(f.FileSize, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.FileName}))
		_, _ = io.Copy(w, rc)
	case http.MethodDelete:
		if err := a.Service.DetachFile(r.Context(), actor, fileID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// respond writes v, or the error when err is set.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, v)
}

// decodeOptionalJSON is decodeJSON for bodies that may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decodeJSON(w, r, v)
}

func taskUpdate(body models.UpdateTaskRequest) (workflow.TaskUpdate, error) {
	u := workflow.TaskUpdate{
		Title:                body.Title,
		Description:          body.Description,
		Priority:             body.Priority,
		AllowsFileUpload:     body.AllowsFileUpload,
		AllowsTextSubmission: body.AllowsTextSubmission,
		MaxFiles:             body.MaxFiles,
	}
	if body.StartDate != nil {
		d, err := parseDate("start_date", *body.StartDate)
		if err != nil {
			return u, err
		}
		u.StartDate = &d
	}
	if body.Deadline != nil {
		d, err := parseDate("deadline", *body.Deadline)
		if err != nil {
			return u, err
		}
		u.Deadline = &d
	}
	return u, nil
}
