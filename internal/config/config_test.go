package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom(t *testing.T) {
	t.Parallel()
	ctx := WithHome(context.Background(), "/taskhub")
	if got := MustHomeFrom(ctx); got != "/taskhub" {
		t.Fatalf("MustHomeFrom: got %q", got)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome_override(t *testing.T) {
	t.Parallel()
	got, err := ResolveHome("/custom/home")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/custom/home") {
		t.Fatalf("ResolveHome: got %q", got)
	}
}

func TestResolveHome_env(t *testing.T) {
	t.Setenv("TASKHUB_HOME", "/env/home")
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/env/home") {
		t.Fatalf("ResolveHome from env: got %q", got)
	}
}

func TestResolveHome_default(t *testing.T) {
	t.Setenv("TASKHUB_HOME", "")
	// Override empty so we use UserHomeDir
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	want := filepath.Join(home, ".taskhub")
	if got != want {
		t.Fatalf("ResolveHome default: got %q, want %q", got, want)
	}
}

func TestLoad_defaults(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.DatabaseDriver != "sqlite" || cfg.ConflictRetries != 3 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.MaxFileSize != 10<<20 || cfg.MaxTextLength != 100000 || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("limits: %+v", cfg)
	}
	if got := cfg.Viper.GetString("storage.folder"); got != filepath.Join(home, "files") {
		t.Fatalf("storage.folder = %q", got)
	}
}

func TestLoad_fileAndEnv(t *testing.T) {
	home := t.TempDir()
	if created, err := WriteDefault(home); err != nil || !created {
		t.Fatalf("WriteDefault: %v, %v", created, err)
	}
	if created, err := WriteDefault(home); err != nil || created {
		t.Fatalf("WriteDefault again: %v, %v", created, err)
	}
	data := []byte("server:\n  addr: 0.0.0.0:9000\nlimits:\n  max_file_size: 2048\n  allowed_types: [application/pdf]\n")
	if err := os.WriteFile(Path(home), data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKHUB_SERVICE_CONFLICT_RETRIES", "7")
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" || cfg.MaxFileSize != 2048 {
		t.Fatalf("file values: %+v", cfg)
	}
	if len(cfg.AllowedTypes) != 1 || cfg.AllowedTypes[0] != "application/pdf" {
		t.Fatalf("allowed types: %v", cfg.AllowedTypes)
	}
	if cfg.ConflictRetries != 7 {
		t.Fatalf("env override: %d", cfg.ConflictRetries)
	}
}

func TestLoad_invalid(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	if err := os.WriteFile(Path(home), []byte("database:\n  driver: mysql\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(home); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if err := os.WriteFile(Path(home), []byte("log: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(home); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
