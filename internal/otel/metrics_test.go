package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitMetrics_RecordWorkflowOp(t *testing.T) {
	ctx := context.Background()
	_, err := InitMeterProvider(ctx, "metrics-test", "")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordWorkflowOp(ctx, "accept_task", "ok", 3*time.Millisecond)
	RecordWorkflowOp(ctx, "accept_task", "invalid_transition", time.Millisecond)
	RecordConflictRetry(ctx, "accept_task")
	RecordFileBytes(ctx, 1024)
	RecordFileBytes(ctx, 0)
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
	sseConnectionsMu.Lock()
	n := sseConnections
	sseConnectionsMu.Unlock()
	if n != 0 {
		t.Fatalf("sseConnections = %d", n)
	}
}

func TestRecordSSEEvent(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "record-test", "")
	_ = InitMetrics(ctx)
	RecordSSEEvent(ctx)
}

func TestInitMetricsWithTaskCount(t *testing.T) {
	ctx := context.Background()
	p, err := InitMeterProvider(ctx, "taskcount-test", "")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	defer func() { _ = p.Shutdown(ctx) }()
	err = InitMetricsWithTaskCount(ctx, func(context.Context) (map[string]int64, error) {
		return map[string]int64{"pending": 2, "in_progress": 1}, nil
	})
	if err != nil {
		t.Fatalf("InitMetricsWithTaskCount: %v", err)
	}
	rec := httptest.NewRecorder()
	p.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "taskhub_tasks") {
		t.Fatalf("taskhub_tasks missing from /metrics:\n%s", rec.Body.String())
	}
}

func TestInitMetricsWithTaskCount_errorAndNil(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "taskcount-nil-test", "")
	if err := InitMetricsWithTaskCount(ctx, nil); err != nil {
		t.Fatalf("InitMetricsWithTaskCount(nil): %v", err)
	}
	err := InitMetricsWithTaskCount(ctx, func(context.Context) (map[string]int64, error) {
		return nil, errors.New("db closed")
	})
	if err != nil {
		t.Fatalf("registration should succeed even if the callback fails later: %v", err)
	}
}
