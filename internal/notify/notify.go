// Package notify delivers best-effort messages about workflow events to
// external channels such as Slack.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Event is a committed workflow change worth telling people about.
type Event struct {
	Op        string
	TaskID    string
	TaskTitle string
	ActorID   string
	Detail    string
}

// Message renders e as a one-line message.
func (e Event) Message() string {
	msg := fmt.Sprintf("[%s] %s on %q (%s)", e.Op, e.ActorID, e.TaskTitle, e.TaskID)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Notifier is a delivery channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, message string) error
}

// Registry holds notifiers by name.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[n.Name()] = n
}

func (r *Registry) Get(name string) Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notifiers[name]
}

// Names returns the registered notifier names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Notify sends e to every notifier and joins their errors.
func (r *Registry) Notify(ctx context.Context, e Event) error {
	if r == nil {
		return nil
	}
	msg := e.Message()
	var errs []error
	for _, name := range r.Names() {
		if err := r.Get(name).Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// SlackWebhook sends messages to a Slack channel via incoming webhook URL.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
	Client     *http.Client
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Log writes messages to slog; registered in dev mode.
type Log struct {
	Logger *slog.Logger
}

func (Log) Name() string { return "log" }

func (l Log) Notify(ctx context.Context, message string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "message", message)
	return nil
}
