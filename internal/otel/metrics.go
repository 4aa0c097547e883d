package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	workflowOpsCounter  metric.Int64Counter
	workflowOpDuration  metric.Float64Histogram
	conflictRetries     metric.Int64Counter
	fileBytesCounter    metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		workflowOpsCounter, err = m.Int64Counter("taskhub_workflow_ops_total", metric.WithDescription("Workflow operations by op and result"))
		if err != nil {
			return
		}
		workflowOpDuration, err = m.Float64Histogram("taskhub_workflow_op_duration_seconds", metric.WithDescription("Workflow operation duration in seconds"))
		if err != nil {
			return
		}
		conflictRetries, err = m.Int64Counter("taskhub_conflict_retries_total", metric.WithDescription("Compare-and-swap retries after a concurrent update"))
		if err != nil {
			return
		}
		fileBytesCounter, err = m.Int64Counter("taskhub_file_bytes_total", metric.WithDescription("Bytes of submission files stored"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("taskhub_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("taskhub_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
	})
	return err
}

// RecordWorkflowOp records one workflow operation. result is "ok" or an error kind.
func RecordWorkflowOp(ctx context.Context, op, result string, duration time.Duration) {
	attrs := metric.WithAttributes(AttrOp.String(op), AttrResult.String(result))
	if workflowOpsCounter != nil {
		workflowOpsCounter.Add(ctx, 1, attrs)
	}
	if workflowOpDuration != nil {
		workflowOpDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordConflictRetry records a retried compare-and-swap for op.
func RecordConflictRetry(ctx context.Context, op string) {
	if conflictRetries != nil {
		conflictRetries.Add(ctx, 1, metric.WithAttributes(AttrOp.String(op)))
	}
}

// RecordFileBytes records n stored bytes.
func RecordFileBytes(ctx context.Context, n int64) {
	if fileBytesCounter != nil && n > 0 {
		fileBytesCounter.Add(ctx, n)
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// TaskCountFunc returns task counts keyed by status. Used for the taskhub_tasks gauge.
type TaskCountFunc func(ctx context.Context) (map[string]int64, error)

// InitMetricsWithTaskCount creates instruments and optionally registers a callback for task gauges.
// Call after InitMeterProvider. If taskCount is nil, task gauges are not reported.
func InitMetricsWithTaskCount(ctx context.Context, taskCount TaskCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if taskCount == nil {
		return nil
	}
	m := Meter()
	tasksGauge, err := m.Int64ObservableGauge("taskhub_tasks", metric.WithDescription("Number of tasks by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := taskCount(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			o.ObserveInt64(tasksGauge, n, metric.WithAttributes(AttrStatus.String(status)))
		}
		return nil
	}, tasksGauge)
	return err
}
