// Package telemetry provides OpenTelemetry instruments for the task queues.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TaskMetricsMeterName is the name used for the task queue meter.
const TaskMetricsMeterName = "github.com/NSSimpleApps/TestToDoList/task"

// Outcome labels recorded for terminal tasks.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// TaskMetrics holds the instruments recorded by task queues.
type TaskMetrics struct {
	tasksTotal   metric.Int64Counter
	taskDuration metric.Float64Histogram
}

// NewTaskMetrics creates a TaskMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewTaskMetrics(provider metric.MeterProvider) (*TaskMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TaskMetricsMeterName)

	tasksTotal, err := meter.Int64Counter(
		"todo_tasks_total",
		metric.WithDescription("Number of tasks that reached a terminal state"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(
		"todo_task_duration_seconds",
		metric.WithDescription("Time a task occupied its queue's execution slot"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30),
	)
	if err != nil {
		return nil, err
	}

	return &TaskMetrics{
		tasksTotal:   tasksTotal,
		taskDuration: taskDuration,
	}, nil
}

// RecordTask records one terminal task on the named queue.
func (m *TaskMetrics) RecordTask(ctx context.Context, queue, outcome string, duration time.Duration) {
	if m == nil || m.tasksTotal == nil {
		return
	}

	m.tasksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("outcome", outcome),
	))
	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("queue", queue),
	))
}
