package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/daemon"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "start", "stop", "status", "member", "token", "secret", "task", "submission", "daemon"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestTaskCmd_hasActions(t *testing.T) {
	task := newTaskCmd()
	names := make(map[string]bool)
	for _, c := range task.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"create", "list", "show", "update", "audit", "accept", "reject", "extend",
		"approve-extension", "reject-extension", "request-edit", "approve-edit",
		"reject-edit", "reassign", "complete",
	} {
		if !names[want] {
			t.Errorf("expected task subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasPersistentFlags(t *testing.T) {
	root := NewRootCmd("")
	for _, name := range []string{"home", "env-file", "log-format"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag", name)
		}
	}
}

// run executes the CLI against home and returns stdout.
func run(t *testing.T, ctx context.Context, home string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func mustRun(t *testing.T, ctx context.Context, home string, args ...string) string {
	t.Helper()
	out, err := run(t, ctx, home, args...)
	if err != nil {
		t.Fatalf("taskhub %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestSecretGenerate(t *testing.T) {
	out := mustRun(t, context.Background(), t.TempDir(), "secret", "generate")
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex secret on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "TASKHUB_AUTH_JWT_SECRET") {
		t.Errorf("output should mention TASKHUB_AUTH_JWT_SECRET")
	}
}

func TestSecretGenerate_envFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	mustRun(t, context.Background(), t.TempDir(), "secret", "generate", "--env", envFile)
	b, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !regexp.MustCompile(`^TASKHUB_AUTH_JWT_SECRET=[a-f0-9]{64}\n$`).Match(b) {
		t.Errorf("env file: %q", b)
	}
}

func TestInitAndMembers(t *testing.T) {
	ctx := context.Background()
	home := filepath.Join(t.TempDir(), "home")

	out := mustRun(t, ctx, home, "init", "--admin", "root")
	if !strings.Contains(out, "Added admin") {
		t.Errorf("init output: %s", out)
	}
	if _, err := os.Stat(config.Path(home)); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "protected", "db.sqlite")); err != nil {
		t.Fatalf("database not created: %v", err)
	}
	// Running init again keeps the existing config.
	mustRun(t, ctx, home, "init")

	mustRun(t, ctx, home, "member", "add", "--id", "lena", "--role", "team_leader", "--team", "team-a")
	mustRun(t, ctx, home, "member", "add", "--id", "alice", "--team", "team-a")
	if _, err := run(t, ctx, home, "member", "add", "--id", "x", "--role", "boss"); err == nil {
		t.Error("member add with invalid role: expected error")
	}

	out = mustRun(t, ctx, home, "member", "list", "--team", "team-a")
	if !strings.Contains(out, "lena") || !strings.Contains(out, "alice") || strings.Contains(out, "root") {
		t.Errorf("member list --team: %s", out)
	}
	m, err := identity.LoadMember(home, "lena")
	if err != nil || m == nil || m.Role != models.RoleTeamLeader {
		t.Fatalf("LoadMember(lena) = %+v, %v", m, err)
	}

	out = mustRun(t, ctx, home, "doctor")
	if strings.TrimSpace(out) != "ok" {
		t.Errorf("doctor: %s", out)
	}
}

func TestToken(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	mustRun(t, ctx, home, "member", "add", "--id", "root", "--role", "admin")

	t.Setenv("TASKHUB_AUTH_JWT_SECRET", "")
	if _, err := run(t, ctx, home, "token", "root"); err == nil {
		t.Fatal("token without secret: expected error")
	}

	t.Setenv("TASKHUB_AUTH_JWT_SECRET", "test-secret")
	out := mustRun(t, ctx, home, "token", "root")
	tok := strings.TrimSpace(out)
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("token: %q", tok)
	}
	actor, err := identity.VerifyToken([]byte("test-secret"), tok)
	if err != nil || actor.ID != "root" || actor.Role != models.RoleAdmin {
		t.Errorf("VerifyToken = %+v, %v", actor, err)
	}
	if _, err := run(t, ctx, home, "token", "ghost"); err == nil {
		t.Error("token for unknown member: expected error")
	}
}

func TestStatus_notRunning(t *testing.T) {
	out := mustRun(t, context.Background(), t.TempDir(), "status")
	if !strings.Contains(out, "not running") {
		t.Errorf("status: %s", out)
	}
}

func TestTaskCommands_requireActor(t *testing.T) {
	t.Setenv("TASKHUB_ACTOR", "")
	t.Setenv("TASKHUB_TOKEN", "")
	if _, err := run(t, context.Background(), t.TempDir(), "task", "list", "--server", "http://127.0.0.1:1"); err == nil {
		t.Fatal("task list without --as: expected error")
	}
}

func TestWorkflowOverCLI(t *testing.T) {
	t.Setenv("TASKHUB_SERVER_ADDR", "127.0.0.1:0")
	t.Setenv("TASKHUB_OTEL_ENABLED", "false")
	t.Setenv("TASKHUB_SERVER", "")
	ctx := context.Background()
	home := filepath.Join(t.TempDir(), "home")
	mustRun(t, ctx, home, "init", "--admin", "root")
	mustRun(t, ctx, home, "member", "add", "--id", "lena", "--role", "team_leader", "--team", "team-a")
	mustRun(t, ctx, home, "member", "add", "--id", "alice", "--team", "team-a")

	dctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- daemon.StartForeground(dctx, daemon.StartOptions{Home: home}) }()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	}()
	for i := 0; i < 100; i++ {
		if st, _ := daemon.Status(ctx, home); st.Running && st.Addr != "unknown" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if out := mustRun(t, ctx, home, "status"); !strings.Contains(out, "taskhub running") {
		t.Fatalf("status: %s", out)
	}

	out := mustRun(t, ctx, home, "task", "create", "--as", "lena",
		"--title", "Quarterly report", "--assignee", "alice", "--deadline", "2099-06-01", "--max-files", "2")
	m := regexp.MustCompile(`Created task (\S+)`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("task create output: %s", out)
	}
	id := m[1]

	if _, err := run(t, ctx, home, "task", "accept", id, "--as", "lena", "--estimate", "1 day"); err == nil {
		t.Error("accept by leader: expected permission error")
	}
	out = mustRun(t, ctx, home, "task", "accept", id, "--as", "alice", "--estimate", "2 days")
	if !strings.Contains(out, "status=in_progress acceptance=accepted") {
		t.Errorf("accept: %s", out)
	}

	mustRun(t, ctx, home, "submission", "text", id, "--as", "alice", "--text", "summary attached")
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("numbers and notes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out = mustRun(t, ctx, home, "submission", "attach", id, path, "--as", "alice")
	if !strings.Contains(out, "Attached notes.txt") {
		t.Errorf("attach: %s", out)
	}

	out = mustRun(t, ctx, home, "submission", "finalize", id, "--as", "alice")
	if !strings.Contains(out, "status=submitted") {
		t.Errorf("finalize: %s", out)
	}
	out = mustRun(t, ctx, home, "submission", "review", id, "--as", "lena")
	if !strings.Contains(out, "reviewed") {
		t.Errorf("review: %s", out)
	}

	out = mustRun(t, ctx, home, "task", "list", "--as", "alice")
	if !strings.Contains(out, id) {
		t.Errorf("task list: %s", out)
	}
	out = mustRun(t, ctx, home, "task", "audit", id, "--as", "lena")
	for _, action := range []string{"create_task", "accept_task", "attach_file", "finalize_submission", "review_submission"} {
		if !strings.Contains(out, action) {
			t.Errorf("audit missing %s:\n%s", action, out)
		}
	}
}
