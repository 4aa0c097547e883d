package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/blob"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/service"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

var testMembers = []models.Member{
	{ID: "root", Name: "Root", Role: models.RoleAdmin},
	{ID: "lena", Name: "Lena", Role: models.RoleTeamLeader, TeamID: "team-a"},
	{ID: "alice", Name: "Alice", Role: models.RoleUser, TeamID: "team-a"},
	{ID: "bob", Name: "Bob", Role: models.RoleUser, TeamID: "team-a"},
}

type testServer struct {
	*httptest.Server
	app   *App
	blobs *blob.Memory
}

func newTestServer(t *testing.T, secret []byte, policy workflow.Policy) *testServer {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	dir := identity.NewDirectory(t.TempDir(), testMembers...)
	hub := NewSSEHub()
	blobs := blob.NewMemory()
	svc, err := service.New(service.Options{
		Store:     st,
		Blobs:     blobs,
		Directory: dir,
		Policy:    policy,
		Publisher: hub,
	})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	app, err := NewApp(ServerOptions{Addr: "127.0.0.1:0", Service: svc, Hub: hub, Directory: dir, JWTSecret: secret})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, app: app, blobs: blobs}
}

// call sends a JSON request as actor and returns the response. The caller
// closes the body.
func (ts *testServer) call(t *testing.T, method, path, actor string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// expect checks the status and decodes the body into out when set.
func (ts *testServer) expect(t *testing.T, method, path, actor string, body any, status int, out any) {
	t.Helper()
	resp := ts.call(t, method, path, actor, body)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != status {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status=%d want %d body=%s", method, path, resp.StatusCode, status, b)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func (ts *testServer) upload(t *testing.T, taskID, actor, name, contentType, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("size", strconv.Itoa(len(content))); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	pw, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = pw.Write([]byte(content))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/tasks/"+taskID+"/submission/files", &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Actor-ID", actor)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func newTaskBody() models.CreateTaskRequest {
	return models.CreateTaskRequest{
		Title:                "Quarterly report",
		AssignedUserID:       "alice",
		TeamID:               "team-a",
		Priority:             models.PriorityHigh,
		Deadline:             "2099-06-01",
		AllowsFileUpload:     true,
		AllowsTextSubmission: true,
		MaxFiles:             2,
	}
}

func TestServerSmoke(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, workflow.Policy{})

	resp := ts.call(t, http.MethodGet, "/health", "", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status=%d", resp.StatusCode)
	}
	ts.expect(t, http.MethodGet, "/tasks", "", nil, http.StatusUnauthorized, nil)
	ts.expect(t, http.MethodGet, "/tasks", "mallory", nil, http.StatusUnauthorized, nil)

	var me map[string]any
	ts.expect(t, http.MethodGet, "/me", "lena", nil, http.StatusOK, &me)
	if me["id"] != "lena" || me["role"] != "team_leader" {
		t.Fatalf("/me = %v", me)
	}
	var members []models.Member
	ts.expect(t, http.MethodGet, "/members?team_id=team-a", "alice", nil, http.StatusOK, &members)
	if len(members) != 3 {
		t.Fatalf("team-a members = %d, want 3", len(members))
	}
	var tasks []models.Task
	ts.expect(t, http.MethodGet, "/tasks", "alice", nil, http.StatusOK, &tasks)
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("tasks = %v, want empty list", tasks)
	}
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, workflow.Policy{})

	var task models.Task
	ts.expect(t, http.MethodPost, "/tasks", "lena", newTaskBody(), http.StatusOK, &task)
	if task.Status != models.StatusPending || task.Deadline.Format(time.DateOnly) != "2099-06-01" {
		t.Fatalf("created: %+v", task)
	}
	base := "/tasks/" + task.TaskID

	ts.expect(t, http.MethodPost, base+"/extension", "alice",
		models.ExtensionRequest{Reason: "travel", RequestedDeadline: "2099-06-10"}, http.StatusOK, &task)
	if task.AcceptanceStatus != models.AcceptanceExtensionRequested {
		t.Fatalf("after extension request: %s", task.AcceptanceStatus)
	}
	ts.expect(t, http.MethodPost, base+"/extension/approve", "lena", nil, http.StatusOK, &task)
	if task.Status != models.StatusInProgress || task.Deadline.Format(time.DateOnly) != "2099-06-10" {
		t.Fatalf("after approve: %+v", task)
	}

	var sub models.Submission
	ts.expect(t, http.MethodPut, base+"/submission/text", "alice", models.TextRequest{Text: "summary"}, http.StatusOK, &sub)
	if sub.Text() != "summary" {
		t.Fatalf("text = %q", sub.Text())
	}

	resp := ts.upload(t, task.TaskID, "alice", "notes.txt", "text/plain", "hello world")
	var file models.SubmissionFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || file.FileSize != 11 || file.FileName != "notes.txt" {
		t.Fatalf("upload: status=%d file=%+v", resp.StatusCode, file)
	}

	dl := ts.call(t, http.MethodGet, "/files/"+file.FileID, "lena", nil)
	data, _ := io.ReadAll(dl.Body)
	_ = dl.Body.Close()
	if dl.StatusCode != http.StatusOK || string(data) != "hello world" {
		t.Fatalf("download: status=%d body=%q", dl.StatusCode, data)
	}
	if cd := dl.Header.Get("Content-Disposition"); !strings.Contains(cd, "notes.txt") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	var view models.SubmissionView
	ts.expect(t, http.MethodPost, base+"/submission/finalize", "alice", nil, http.StatusOK, &view)
	if view.Task.Status != models.StatusSubmitted || view.Submission.Status != models.SubmissionSubmitted {
		t.Fatalf("after finalize: %+v", view)
	}
	ts.expect(t, http.MethodPost, base+"/submission/review", "lena", nil, http.StatusOK, &view)
	if view.Task.Status != models.StatusCompleted || view.Submission.ReviewedBy != "lena" {
		t.Fatalf("after review: %+v", view)
	}

	ts.expect(t, http.MethodGet, base+"/submission", "alice", nil, http.StatusOK, &view)
	if view.Submission == nil || len(view.Submission.Files) != 1 {
		t.Fatalf("submission view: %+v", view)
	}
	var audit []models.AuditEntry
	ts.expect(t, http.MethodGet, base+"/audit", "lena", nil, http.StatusOK, &audit)
	if len(audit) != 7 {
		t.Fatalf("audit entries = %d, want 7", len(audit))
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, workflow.Policy{})

	var errBody models.ErrorResponse
	ts.expect(t, http.MethodPost, "/tasks", "alice", newTaskBody(), http.StatusForbidden, &errBody)
	if errBody.Kind != string(workflow.KindPermissionDenied) {
		t.Fatalf("kind = %q", errBody.Kind)
	}
	bad := newTaskBody()
	bad.Deadline = "next week"
	ts.expect(t, http.MethodPost, "/tasks", "lena", bad, http.StatusBadRequest, nil)
	ts.expect(t, http.MethodPost, "/tasks/missing/accept", "alice",
		models.AcceptRequest{EstimatedTimeToComplete: "1d"}, http.StatusNotFound, nil)

	var task models.Task
	ts.expect(t, http.MethodPost, "/tasks", "lena", newTaskBody(), http.StatusOK, &task)
	base := "/tasks/" + task.TaskID
	ts.expect(t, http.MethodPost, base+"/accept", "bob",
		models.AcceptRequest{EstimatedTimeToComplete: "1d"}, http.StatusForbidden, nil)
	ts.expect(t, http.MethodPost, base+"/accept", "alice",
		models.AcceptRequest{EstimatedTimeToComplete: "1d"}, http.StatusOK, nil)
	ts.expect(t, http.MethodPost, base+"/accept", "alice",
		models.AcceptRequest{EstimatedTimeToComplete: "1d"}, http.StatusConflict, &errBody)
	if errBody.Kind != string(workflow.KindInvalidTransition) {
		t.Fatalf("kind = %q", errBody.Kind)
	}
	ts.expect(t, http.MethodPost, base+"/submission/finalize", "alice", nil, http.StatusUnprocessableEntity, &errBody)
	if errBody.Kind != string(workflow.KindEmptySubmission) {
		t.Fatalf("kind = %q", errBody.Kind)
	}

	resp := ts.upload(t, task.TaskID, "alice", "fake.pdf", "application/pdf", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("mismatched upload status=%d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/tasks", strings.NewReader("{"))
	req.Header.Set("X-Actor-ID", "lena")
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /tasks: %v", err)
	}
	_ = r2.Body.Close()
	if r2.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid json status=%d", r2.StatusCode)
	}
	ts.expect(t, http.MethodDelete, base, "lena", nil, http.StatusMethodNotAllowed, nil)
	ts.expect(t, http.MethodPost, base+"/unknown", "lena", nil, http.StatusNotFound, nil)
}

func TestDetachOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, workflow.Policy{})
	var task models.Task
	ts.expect(t, http.MethodPost, "/tasks", "lena", newTaskBody(), http.StatusOK, &task)
	ts.expect(t, http.MethodPost, "/tasks/"+task.TaskID+"/accept", "alice",
		models.AcceptRequest{EstimatedTimeToComplete: "1d"}, http.StatusOK, nil)

	resp := ts.upload(t, task.TaskID, "alice", "notes.txt", "text/plain", "hello world")
	var file models.SubmissionFile
	_ = json.NewDecoder(resp.Body).Decode(&file)
	_ = resp.Body.Close()
	if file.FileID == "" {
		t.Fatalf("upload status=%d", resp.StatusCode)
	}
	ts.expect(t, http.MethodDelete, "/files/"+file.FileID, "bob", nil, http.StatusForbidden, nil)
	ts.expect(t, http.MethodDelete, "/files/"+file.FileID, "alice", nil, http.StatusOK, nil)
	ts.expect(t, http.MethodGet, "/files/"+file.FileID, "alice", nil, http.StatusNotFound, nil)
	if ts.blobs.Len() != 0 {
		t.Fatalf("stored objects = %d, want 0", ts.blobs.Len())
	}
}

func TestUploadTooLarge(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, workflow.Policy{MaxFileSize: 8, AllowedTypes: []string{"text/plain"}})
	var task models.Task
	ts.expect(t, http.MethodPost, "/tasks", "lena", newTaskBody(), http.StatusOK, &task)
	ts.expect(t, http.MethodPost, "/tasks/"+task.TaskID+"/accept", "alice",
		models.AcceptRequest{EstimatedTimeToComplete: "1d"}, http.StatusOK, nil)
	resp := ts.upload(t, task.TaskID, "alice", "notes.txt", "text/plain", "hello world")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	ts := newTestServer(t, secret, workflow.Policy{})

	ts.expect(t, http.MethodGet, "/tasks", "lena", nil, http.StatusUnauthorized, nil)

	token, err := identity.IssueToken(secret, testMembers[1], time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var me map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&me)
	if resp.StatusCode != http.StatusOK || me["id"] != "lena" {
		t.Fatalf("GET /me: status=%d body=%v", resp.StatusCode, me)
	}

	forged, err := identity.IssueToken([]byte("other"), testMembers[0], time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /tasks: %v", err)
	}
	_ = r2.Body.Close()
	if r2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token status=%d", r2.StatusCode)
	}
}

func TestMutationPublishesEvent(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, workflow.Policy{})
	lena := ts.app.Hub.Subscribe(guard.Actor{ID: "lena", Role: models.RoleTeamLeader, TeamID: "team-a"}, "")
	defer ts.app.Hub.Unsubscribe(lena)
	bob := ts.app.Hub.Subscribe(guard.Actor{ID: "bob", Role: models.RoleUser, TeamID: "team-a"}, "")
	defer ts.app.Hub.Unsubscribe(bob)

	var task models.Task
	ts.expect(t, http.MethodPost, "/tasks", "lena", newTaskBody(), http.StatusOK, &task)

	select {
	case ev := <-lena.ch:
		if ev.Type != service.EventTaskUpdate || ev.TaskID != task.TaskID || ev.Op != "create_task" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
	select {
	case ev := <-bob.ch:
		t.Fatalf("bob received an event for a task assigned to alice: %+v", ev)
	default:
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"2024-06-01", "2024-06-01T10:00:00Z", " 2024-06-01 "} {
		if _, err := parseDate("deadline", s); err != nil {
			t.Errorf("parseDate(%q): %v", s, err)
		}
	}
	if _, err := parseDate("deadline", "06/01/2024"); workflow.KindOf(err) != workflow.KindValidation {
		t.Errorf("parseDate(bad) = %v", err)
	}
	if d, err := parseOptionalDate("deadline", ""); d != nil || err != nil {
		t.Errorf("parseOptionalDate(empty) = %v, %v", d, err)
	}
}

func TestNewApp_requiresService(t *testing.T) {
	t.Parallel()
	if _, err := NewApp(ServerOptions{}); err == nil {
		t.Fatal("expected error without service")
	}
}
