package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func TestMembersDir(t *testing.T) {
	t.Parallel()
	got := MembersDir("/home")
	if got != filepath.Join("/home", "members") {
		t.Fatalf("MembersDir: got %q", got)
	}
}

func TestMemberPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		home       string
		id         string
		wantSuffix string
	}{
		{"/home", "alice", "alice.yaml"},
		{"/home", "Alice Bob", "alice_bob.yaml"},
		{"/home", "  default  ", "default.yaml"},
		{"/home", "", "default.yaml"},
		{"/home", "../x", "__x.yaml"},
	}
	for _, tt := range tests {
		got := MemberPath(tt.home, tt.id)
		if filepath.Base(got) != tt.wantSuffix {
			t.Errorf("MemberPath(%q, %q) base = %q, want %q", tt.home, tt.id, filepath.Base(got), tt.wantSuffix)
		}
		if filepath.Dir(got) != MembersDir(tt.home) {
			t.Errorf("MemberPath(%q) escaped members dir: %q", tt.id, got)
		}
	}
}

func TestSaveMember_LoadMember(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	m := models.Member{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: models.RoleUser, TeamID: "team-a"}
	if err := SaveMember(dir, m); err != nil {
		t.Fatalf("SaveMember: %v", err)
	}
	loaded, err := LoadMember(dir, "alice")
	if err != nil {
		t.Fatalf("LoadMember: %v", err)
	}
	if loaded == nil || *loaded != m {
		t.Fatalf("LoadMember: got %+v", loaded)
	}
}

func TestSaveMember_invalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, m := range []models.Member{
		{ID: "", Role: models.RoleUser},
		{ID: "x", Role: "owner"},
		{ID: "lead", Role: models.RoleTeamLeader},
	} {
		if err := SaveMember(dir, m); err == nil {
			t.Errorf("SaveMember(%+v): expected error", m)
		}
	}
}

func TestLoadMember_missingFile(t *testing.T) {
	t.Parallel()
	loaded, err := LoadMember(t.TempDir(), "nonexistent")
	if err != nil {
		t.Fatalf("LoadMember: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil, got %+v", loaded)
	}
}

func TestDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(empty): %v", err)
	}
	if len(d.List()) != 0 {
		t.Fatal("expected empty directory")
	}
	for _, m := range []models.Member{
		{ID: "root", Role: models.RoleAdmin},
		{ID: "lena", Role: models.RoleTeamLeader, TeamID: "team-a"},
		{ID: "alice", Role: models.RoleUser, TeamID: "team-a"},
		{ID: "boris", Role: models.RoleUser, TeamID: "team-b"},
	} {
		if err := d.Add(m); err != nil {
			t.Fatalf("Add(%s): %v", m.ID, err)
		}
	}

	// A fresh load sees what Add persisted.
	d2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(d2.List()); got != 4 {
		t.Fatalf("List: got %d members", got)
	}
	team := d2.TeamMembers("team-a")
	if len(team) != 2 || team[0].ID != "alice" || team[1].ID != "lena" {
		t.Fatalf("TeamMembers: %+v", team)
	}
	a, err := d2.Actor("lena")
	if err != nil || a.Role != models.RoleTeamLeader || a.TeamID != "team-a" {
		t.Fatalf("Actor(lena) = %+v, %v", a, err)
	}
	if _, err := d2.Actor("ghost"); err == nil {
		t.Fatal("Actor(ghost): expected error")
	}
}

func TestDirectory_invalidYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.MkdirAll(MembersDir(dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(MembersDir(dir), "bad.yaml"), []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestToken(t *testing.T) {
	t.Parallel()
	secret := []byte("s3cret")
	m := models.Member{ID: "lena", Role: models.RoleTeamLeader, TeamID: "team-a"}
	now := time.Now()

	tok, err := IssueToken(secret, m, time.Hour, now)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	a, err := VerifyToken(secret, tok)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if a != ActorOf(m) {
		t.Fatalf("actor = %+v", a)
	}

	if _, err := VerifyToken([]byte("other"), tok); err == nil {
		t.Fatal("wrong secret accepted")
	}
	expired, err := IssueToken(secret, m, time.Hour, now.Add(-2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken(secret, expired); err == nil {
		t.Fatal("expired token accepted")
	}
	if _, err := IssueToken(nil, m, time.Hour, now); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestDirectory_lookupPicksUpNewFiles(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	d, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := d.Lookup("carol"); ok {
		t.Fatal("Lookup(carol): found before save")
	}
	// Written by another process, e.g. `taskhub member add`.
	if err := SaveMember(home, models.Member{ID: "carol", Role: models.RoleUser, TeamID: "team-b"}); err != nil {
		t.Fatalf("SaveMember: %v", err)
	}
	m, ok := d.Lookup("carol")
	if !ok || m.TeamID != "team-b" {
		t.Fatalf("Lookup(carol) = %+v, %v", m, ok)
	}
	if got := len(d.List()); got != 1 {
		t.Errorf("List after lookup: got %d members", got)
	}
}
