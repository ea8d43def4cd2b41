package core

// sync.go applies a DeltaAnalysis through a CourseService.
//
// The work list is every missing record (create) followed by every name
// conflict (update with the CSV name). Entries are processed strictly one at
// a time so at most one remote call is outstanding per run. A failed entry is
// recorded and the run moves on; only context cancellation stops it early.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/coursehub/internal/logging"
	"github.com/JonMunkholm/coursehub/internal/telemetry"
)

// Failure reasons recorded when the service answers without an error but
// the response does not signal success.
const (
	ReasonCreateFailed = "Failed to create course"
	ReasonUpdateFailed = "Failed to update course name"
)

type workKind int

const (
	workCreate workKind = iota
	workUpdate
)

func (k workKind) String() string {
	if k == workUpdate {
		return "update"
	}
	return "create"
}

type workItem struct {
	kind   workKind
	record CourseRecord
}

// buildWorkList returns creates followed by updates, in analysis order.
func buildWorkList(analysis DeltaAnalysis) []workItem {
	work := make([]workItem, 0, analysis.WorkCount())
	for _, rec := range analysis.Missing {
		work = append(work, workItem{kind: workCreate, record: rec})
	}
	for _, c := range analysis.NameConflicts {
		work = append(work, workItem{
			kind:   workUpdate,
			record: CourseRecord{Code: c.Code, Name: c.CSVName},
		})
	}
	return work
}

// Executor runs the sync step of the reconciliation workflow.
type Executor struct {
	service CourseService
	metrics *telemetry.SyncMetrics
	source  string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMetrics records per-item and per-run metrics. A nil value disables them.
func WithMetrics(m *telemetry.SyncMetrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithSource labels metrics and logs with the caller ("cli", "server").
func WithSource(source string) ExecutorOption {
	return func(e *Executor) { e.source = source }
}

// NewExecutor creates an Executor that applies changes through service.
func NewExecutor(service CourseService, opts ...ExecutorOption) *Executor {
	e := &Executor{service: service, source: "unknown"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run applies analysis and returns the accumulated result.
//
// records is the full parsed list and is only used for reporting. progress
// may be nil; it is invoked with (0, 0) once for an empty work list and with
// (processed, total) after every entry otherwise. Run checks ctx between
// entries and returns the partial result with the context error when the
// context is done.
func (e *Executor) Run(ctx context.Context, records []CourseRecord, analysis DeltaAnalysis, progress ProgressFunc) (SyncResult, error) {
	logger := logging.WithFields(ctx, "sync_run", uuid.NewString(), "source", e.source)
	result := newSyncResult()

	work := buildWorkList(analysis)
	total := len(work)

	if total == 0 {
		report(logger, progress, 0, 0)
		logger.Info("sync has nothing to do",
			"records", len(records),
			"unchanged", len(analysis.Unchanged),
		)
		return result, nil
	}

	logger.Info("sync started",
		"records", len(records),
		"creates", len(analysis.Missing),
		"updates", len(analysis.NameConflicts),
		"unchanged", len(analysis.Unchanged),
	)
	start := time.Now()

	for i, item := range work {
		if err := ctx.Err(); err != nil {
			logger.Warn("sync cancelled", "processed", i, "total", total)
			e.metrics.RecordRun(ctx, e.source, time.Since(start), len(result.Created), len(result.Updated), len(result.Errors))
			return result, fmt.Errorf("sync cancelled after %d of %d: %w", i, total, err)
		}

		e.apply(ctx, logger, item, &result)
		report(logger, progress, i+1, total)
	}

	logger.Info("sync completed",
		"created", len(result.Created),
		"updated", len(result.Updated),
		"errors", len(result.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	e.metrics.RecordRun(ctx, e.source, time.Since(start), len(result.Created), len(result.Updated), len(result.Errors))

	return result, nil
}

// apply performs one remote call and files the record into a bucket.
func (e *Executor) apply(ctx context.Context, logger *slog.Logger, item workItem, result *SyncResult) {
	rec := item.record

	var err error
	switch item.kind {
	case workCreate:
		var res CreateResult
		res, err = e.service.Create(ctx, rec.Code, rec.Name)
		if err == nil && res.Status != Created {
			logger.Debug("create not accepted", "code", rec.Code, "status", res.Status.String(), "message", res.Message)
			err = errors.New(ReasonCreateFailed)
		}
		if err == nil {
			result.Created = append(result.Created, rec)
		}

	case workUpdate:
		var res UpdateResult
		res, err = e.service.Update(ctx, rec.Code, rec.Name)
		if err == nil && !res.Updated {
			err = errors.New(ReasonUpdateFailed)
		}
		if err == nil {
			result.Updated = append(result.Updated, rec)
		}
	}

	if err != nil {
		remoteErr := &RemoteError{Op: item.kind.String(), Record: rec, Err: err}
		logger.Warn("sync item failed", "error", remoteErr)
		result.Errors = append(result.Errors, SyncError{Record: rec, Error: err.Error()})
		e.metrics.RecordItem(ctx, item.kind.String(), "error")
		return
	}

	e.metrics.RecordItem(ctx, item.kind.String(), "ok")
}

// report invokes progress, recovering from a panicking callback so a broken
// observer cannot abort the batch.
func report(logger *slog.Logger, progress ProgressFunc, current, total int) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("progress callback panicked", "panic", r, "current", current, "total", total)
		}
	}()
	progress(current, total)
}
