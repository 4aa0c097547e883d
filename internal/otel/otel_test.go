package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitMeterProvider(t *testing.T) {
	ctx := context.Background()
	p, err := InitMeterProvider(ctx, "test-service", "/tmp/home-a")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	defer func() { _ = p.Shutdown(ctx) }()
	if p.Handler == nil {
		t.Fatal("InitMeterProvider: expected non-nil handler")
	}
	rec := httptest.NewRecorder()
	p.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status=%d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "go_goroutines") {
		t.Errorf("GET /metrics: missing Go runtime metrics:\n%.400s", body)
	}
}

func TestInitMeterProvider_emptyServiceName(t *testing.T) {
	ctx := context.Background()
	p, err := InitMeterProvider(ctx, "", "")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestProvider_nilShutdown(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}

func TestAttributeKeys(t *testing.T) {
	if kv := AttrOp.String("accept_task"); kv.Value.AsString() != "accept_task" {
		t.Fatalf("AttrOp: %v", kv)
	}
	if kv := AttrStatus.String("pending"); string(kv.Key) != "status" {
		t.Fatalf("AttrStatus: %v", kv)
	}
}
