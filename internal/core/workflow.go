package core

import (
	"context"
	"fmt"
)

// Plan is the analyzed state of an upload, ready for confirmation.
type Plan struct {
	Records  []CourseRecord
	Analysis DeltaAnalysis
	Snapshot Snapshot
}

// NeedsSync reports whether executing the plan would make any remote call.
func (p Plan) NeedsSync() bool {
	return p.Analysis.WorkCount() > 0
}

// Report is the outcome of executing a Plan.
type Report struct {
	Result   SyncResult
	Snapshot Snapshot // refreshed after the run; nil if the refresh failed

	// RefreshErr is set when the post-run snapshot could not be fetched.
	// The sync itself completed.
	RefreshErr error
}

// Workflow ties parsing, analysis and execution together for one course
// service. The snapshot is fetched fresh for every Prepare and every Execute;
// nothing is cached between calls.
type Workflow struct {
	service  CourseService
	executor *Executor
}

// NewWorkflow creates a Workflow. Executor options are passed through.
func NewWorkflow(service CourseService, opts ...ExecutorOption) *Workflow {
	return &Workflow{
		service:  service,
		executor: NewExecutor(service, opts...),
	}
}

// Prepare parses csvText with the strict policy, fetches the snapshot and
// analyzes the delta. No mutation happens here.
func (w *Workflow) Prepare(ctx context.Context, csvText string) (Plan, error) {
	records, err := ParseCSV(csvText)
	if err != nil {
		return Plan{}, err
	}
	return w.PrepareRecords(ctx, records)
}

// PrepareRecords is Prepare for records that were already parsed.
func (w *Workflow) PrepareRecords(ctx context.Context, records []CourseRecord) (Plan, error) {
	snapshot, err := w.service.FetchAll(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch courses: %w", err)
	}

	return Plan{
		Records:  records,
		Analysis: Analyze(records, snapshot),
		Snapshot: snapshot,
	}, nil
}

// Execute runs the plan and refetches the snapshot. The returned error is
// non-nil only when the run was cut short by ctx; the partial result is
// still returned. A failed refresh is reported in Report.RefreshErr.
func (w *Workflow) Execute(ctx context.Context, plan Plan, progress ProgressFunc) (Report, error) {
	result, err := w.executor.Run(ctx, plan.Records, plan.Analysis, progress)
	if err != nil {
		return Report{Result: result}, err
	}

	report := Report{Result: result}
	report.Snapshot, err = w.service.FetchAll(ctx)
	if err != nil {
		report.Snapshot = nil
		report.RefreshErr = fmt.Errorf("refresh courses: %w", err)
	}

	return report, nil
}
