package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recorder struct {
	name string
	msgs []string
	err  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Notify(_ context.Context, message string) error {
	r.msgs = append(r.msgs, message)
	return r.err
}

func TestRegistry_RegisterGet(t *testing.T) {
	reg := NewRegistry()
	c := SlackWebhook{WebhookURL: "https://example.com"}
	reg.Register(c)
	if got := reg.Get("slack"); got != c {
		t.Fatalf("Get(slack): got %+v", got)
	}
	if reg.Get("nonexistent") != nil {
		t.Fatal("Get(nonexistent) should be nil")
	}
}

func TestRegistry_Notify(t *testing.T) {
	ok := &recorder{name: "a"}
	bad := &recorder{name: "b", err: errors.New("down")}
	reg := NewRegistry()
	reg.Register(ok)
	reg.Register(bad)

	e := Event{Op: "request_extension", TaskID: "t1", TaskTitle: "Report", ActorID: "alice", Detail: "need more time"}
	err := reg.Notify(context.Background(), e)
	if err == nil || !strings.Contains(err.Error(), "b: down") {
		t.Fatalf("Notify error = %v", err)
	}
	if len(ok.msgs) != 1 || len(bad.msgs) != 1 {
		t.Fatalf("every notifier must be tried: %v %v", ok.msgs, bad.msgs)
	}
	want := `[request_extension] alice on "Report" (t1): need more time`
	if ok.msgs[0] != want {
		t.Fatalf("message = %q, want %q", ok.msgs[0], want)
	}

	var nilReg *Registry
	if err := nilReg.Notify(context.Background(), e); err != nil {
		t.Fatalf("nil registry: %v", err)
	}
}

func TestSlackWebhook_Notify_mockHTTP(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := SlackWebhook{WebhookURL: srv.URL, Channel: "#tasks"}
	if err := c.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if payload["text"] != "hello" || payload["channel"] != "#tasks" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSlackWebhook_Notify_errorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	if err := (SlackWebhook{WebhookURL: srv.URL}).Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected error for 500")
	}
}

func TestSlackWebhook_Notify_emptyURL(t *testing.T) {
	if err := (SlackWebhook{}).Notify(context.Background(), "msg"); err == nil {
		t.Fatal("expected error when webhook URL empty")
	}
}

func TestLog_Notify(t *testing.T) {
	if err := (Log{}).Notify(context.Background(), "msg"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
