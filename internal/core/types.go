package core

import (
	"context"
	"time"
)

// CourseRecord is a single course as read from a CSV upload or a snapshot.
// Code is always stored in normalized form (see NormalizeCode).
type CourseRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Snapshot is the ordered list of courses known to the course service at
// the start of an analysis. It is owned by the caller and never cached.
type Snapshot []CourseRecord

// NameConflict records a course whose CSV name differs from the stored name.
type NameConflict struct {
	Code    string `json:"code"`
	CSVName string `json:"csvName"`
	DBName  string `json:"dbName"`
}

// DeltaAnalysis classifies parsed records against a snapshot.
type DeltaAnalysis struct {
	Missing       []CourseRecord `json:"missing"`
	NameConflicts []NameConflict `json:"nameConflicts"`
	Unchanged     []CourseRecord `json:"unchanged"`
}

// WorkCount returns the number of remote calls a sync of this analysis needs.
func (a DeltaAnalysis) WorkCount() int {
	return len(a.Missing) + len(a.NameConflicts)
}

// SyncError pairs a record with the reason its remote call failed.
type SyncError struct {
	Record CourseRecord `json:"record"`
	Error  string       `json:"error"`
}

// SyncResult accumulates the outcome of every work list entry.
// Skipped is part of the result shape but is not populated by Executor:
// unchanged records never enter the work list.
type SyncResult struct {
	Created []CourseRecord `json:"created"`
	Updated []CourseRecord `json:"updated"`
	Skipped []CourseRecord `json:"skipped"`
	Errors  []SyncError    `json:"errors"`
}

// newSyncResult returns a result with non-nil buckets so JSON encodes [] not null.
func newSyncResult() SyncResult {
	return SyncResult{
		Created: []CourseRecord{},
		Updated: []CourseRecord{},
		Skipped: []CourseRecord{},
		Errors:  []SyncError{},
	}
}

// ProgressFunc is called after every processed work list entry.
type ProgressFunc func(current, total int)

// CreateStatus is the tagged outcome of a create call.
type CreateStatus int

const (
	CreateFailed CreateStatus = iota
	Created
	AlreadyExists
)

// String returns the lowercase name of the status.
func (s CreateStatus) String() string {
	switch s {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "failed"
	}
}

// CreateResult is the response of CourseService.Create.
type CreateResult struct {
	Status  CreateStatus
	Message string
	Code    string
}

// UpdateResult is the response of CourseService.Update.
// Updated is true when the service echoed back the course code.
type UpdateResult struct {
	Updated bool
	Code    string
	Name    string
}

// CourseService is the remote course collaborator consumed by the
// reconciliation workflow. Implementations: client.Client over HTTP and
// store.CourseService over PostgreSQL.
//
//go:generate mockgen -destination=mocks/mock_course_service.go -package=mocks github.com/JonMunkholm/coursehub/internal/core CourseService
type CourseService interface {
	FetchAll(ctx context.Context) (Snapshot, error)
	Create(ctx context.Context, code, name string) (CreateResult, error)
	Update(ctx context.Context, code, name string) (UpdateResult, error)
}

// SyncPhase indicates the current stage of a server-side sync job.
type SyncPhase string

const (
	PhaseStarting  SyncPhase = "starting"
	PhaseAnalyzing SyncPhase = "analyzing"
	PhaseSyncing   SyncPhase = "syncing"
	PhaseComplete  SyncPhase = "complete"
	PhaseFailed    SyncPhase = "failed"
	PhaseCancelled SyncPhase = "cancelled"
)

// SyncProgress represents the current state of a sync job.
type SyncProgress struct {
	JobID    string    `json:"jobId"`
	Phase    SyncPhase `json:"phase"`
	FileName string    `json:"fileName,omitempty"`
	Current  int       `json:"current"`
	Total    int       `json:"total"`
	Error    string    `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
// A job with an empty work list reports 100 once it is complete.
func (p SyncProgress) Percent() int {
	if p.Total > 0 {
		return (p.Current * 100) / p.Total
	}
	if p.Phase == PhaseComplete {
		return 100
	}
	return 0
}

// SyncJobResult is the final result of a server-side sync job.
type SyncJobResult struct {
	JobID    string        `json:"jobId"`
	FileName string        `json:"fileName,omitempty"`
	Analysis DeltaAnalysis `json:"analysis"`
	Result   SyncResult    `json:"result"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}
