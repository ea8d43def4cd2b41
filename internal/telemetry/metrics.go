// Package telemetry provides OpenTelemetry metrics for course reconciliation.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter.
const SyncMetricsMeterName = "github.com/JonMunkholm/coursehub/sync"

// SyncMetrics holds the instruments recorded by sync runs and sync jobs.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	items       metric.Int64Counter
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	activeJobs  metric.Int64UpDownCounter
}

// NewSyncMetrics creates SyncMetrics from provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	items, err := meter.Int64Counter(
		"coursehub_sync_items_total",
		metric.WithDescription("Create and update calls made by sync runs"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter(
		"coursehub_sync_runs_total",
		metric.WithDescription("Completed or cancelled sync runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"coursehub_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	activeJobs, err := meter.Int64UpDownCounter(
		"coursehub_sync_jobs_active",
		metric.WithDescription("Server-side sync jobs currently running"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		items:       items,
		runs:        runs,
		runDuration: runDuration,
		activeJobs:  activeJobs,
	}, nil
}

// RecordItem counts one create or update call by outcome ("ok", "error").
func (m *SyncMetrics) RecordItem(ctx context.Context, action, outcome string) {
	if m == nil || m.items == nil {
		return
	}

	m.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// RecordRun records the duration and totals of one sync run.
func (m *SyncMetrics) RecordRun(ctx context.Context, source string, duration time.Duration, created, updated, failed int) {
	if m == nil || m.runs == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("success", failed == 0),
	)

	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}

// JobStarted increments the active job gauge.
func (m *SyncMetrics) JobStarted(ctx context.Context) {
	if m == nil || m.activeJobs == nil {
		return
	}
	m.activeJobs.Add(ctx, 1)
}

// JobFinished decrements the active job gauge.
func (m *SyncMetrics) JobFinished(ctx context.Context) {
	if m == nil || m.activeJobs == nil {
		return
	}
	m.activeJobs.Add(ctx, -1)
}
