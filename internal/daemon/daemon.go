// Package daemon runs the taskhub HTTP server in the foreground or as a
// detached background process, guarded by a lock file under <home>/protected.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/blob"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/httpapi"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/notify"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/otel"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/service"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store/postgres"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
)

var errNotRunning = errors.New("taskhub is not running")

// OpenStore opens the configured store. An empty postgres URL falls back to
// DATABASE_URL.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseDriver == "postgres" {
		pg, err := postgres.OpenContext(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	return store.Open(cfg.Home)
}

// buildApp wires store, file storage, directory, notifiers and metrics into
// the HTTP app. The returned func stops metrics and closes the store.
func buildApp(ctx context.Context, cfg *config.Config) (*httpapi.App, func(), error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closeStore := func() { _ = st.Close() }

	blobs, err := blob.NewStorage(blob.GetConfig(cfg.Viper))
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("open file storage: %w", err)
	}
	dir, err := identity.Load(cfg.Home)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("load members: %w", err)
	}

	reg := notify.NewRegistry()
	if cfg.SlackWebhookURL != "" {
		reg.Register(notify.SlackWebhook{WebhookURL: cfg.SlackWebhookURL, Username: "taskhub"})
	}
	if cfg.Dev {
		reg.Register(notify.Log{})
	}

	var metricsHandler http.Handler
	if cfg.OtelEnabled {
		mp, err := otel.InitMeterProvider(ctx, "taskhub", cfg.Home)
		if err != nil {
			slog.Warn("otel init failed, /metrics disabled", "err", err)
		} else {
			metricsHandler = mp.Handler
			stopStore := closeStore
			closeStore = func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := mp.Shutdown(sctx); err != nil {
					slog.Warn("otel shutdown", "err", err)
				}
				stopStore()
			}
		}
	}

	hub := httpapi.NewSSEHub()
	svc, err := service.New(service.Options{
		Store:     st,
		Blobs:     blobs,
		Directory: dir,
		Policy: workflow.Policy{
			MaxFileSize:   cfg.MaxFileSize,
			AllowedTypes:  cfg.AllowedTypes,
			MaxTextLength: cfg.MaxTextLength,
		},
		ConflictRetries: cfg.ConflictRetries,
		Publisher:       hub,
		Notifier:        reg,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if metricsHandler != nil {
		if err := otel.InitMetricsWithTaskCount(ctx, svc.TaskCounts); err != nil {
			slog.Warn("otel instruments failed", "err", err)
		}
	}

	app, err := httpapi.NewApp(httpapi.ServerOptions{
		Addr:           cfg.Addr,
		Dev:            cfg.Dev,
		Service:        svc,
		Hub:            hub,
		Directory:      dir,
		JWTSecret:      []byte(cfg.JWTSecret),
		MetricsHandler: metricsHandler,
		UseOtelHTTP:    metricsHandler != nil,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return app, closeStore, nil
}

// StartForeground serves until ctx is cancelled or the server fails.
func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.Home); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}
	// Singleton lock, released on exit.
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	startPprof(opts.PprofAddr)

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	addr := ln.Addr().String()

	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = ln.Close()
		return err
	}
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	slog.Info("daemon starting", "addr", addr, "home", opts.Home, "db", cfg.DatabaseDriver)
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// StartBackground re-executes the binary as a detached daemon and waits
// briefly for it to report running.
func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("taskhub already running (pid %d)", st.PID)
	}

	logFile := LogPath(opts.Home)
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for the child's lifetime.

	args := []string{"daemon", "--home", opts.Home}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cmd.Process.Pid, nil
}

// Stop signals the running daemon and waits up to 15s before killing it.
func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = proc.Kill()
	return true, nil
}

// Status reads the pid and addr files. A stale pid file is removed.
func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pb)))
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}
	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}
	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}
