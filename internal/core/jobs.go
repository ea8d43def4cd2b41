package core

// jobs.go runs reconciliation in the background for the HTTP server.
//
// A job is started with already parsed records. It fetches the snapshot,
// analyzes the delta and runs the executor, broadcasting SyncProgress to
// subscribers as it goes. Finished jobs stay queryable for jobRetention so a
// client that reconnects can still read the result.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/coursehub/internal/logging"
	"github.com/JonMunkholm/coursehub/internal/telemetry"
)

var (
	// ErrJobNotFound is returned for unknown or expired job IDs.
	ErrJobNotFound = errors.New("sync job not found")

	// ErrShuttingDown is returned by StartSync after Close.
	ErrShuttingDown = errors.New("sync service is shutting down")
)

// SyncTimeout bounds a single sync job.
var SyncTimeout = 10 * time.Minute

const jobRetention = 5 * time.Minute

// SyncService owns the background sync jobs of one server.
type SyncService struct {
	workflow *Workflow
	limiter  *SyncLimiter
	metrics  *telemetry.SyncMetrics

	mu     sync.RWMutex
	jobs   map[string]*activeSync
	closed bool
}

type activeSync struct {
	ID       string
	FileName string
	Cancel   context.CancelFunc
	Done     chan struct{}

	mu        sync.Mutex
	progress  SyncProgress
	result    *SyncJobResult
	listeners []chan SyncProgress
	closed    bool
}

// NewSyncService creates a SyncService that reconciles through service.
func NewSyncService(service CourseService, limiter *SyncLimiter, metrics *telemetry.SyncMetrics) *SyncService {
	if limiter == nil {
		limiter = NewSyncLimiter(DefaultMaxConcurrentSyncs, DefaultMaxSyncWait)
	}
	return &SyncService{
		workflow: NewWorkflow(service, WithMetrics(metrics), WithSource("server")),
		limiter:  limiter,
		metrics:  metrics,
		jobs:     make(map[string]*activeSync),
	}
}

// StartSync begins an asynchronous sync of records and returns the job ID.
// It waits for a limiter slot using ctx and fails with ErrTooManySyncs when
// none frees up in time. The job itself is not bound to ctx.
func (s *SyncService) StartSync(ctx context.Context, fileName string, records []CourseRecord) (string, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return "", ErrShuttingDown
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithTimeout(context.Background(), SyncTimeout)
	if reqID := logging.RequestID(ctx); reqID != "" {
		jobCtx = logging.WithRequestID(jobCtx, reqID)
	}

	job := &activeSync{
		ID:       jobID,
		FileName: fileName,
		Cancel:   cancel,
		Done:     make(chan struct{}),
		progress: SyncProgress{
			JobID:    jobID,
			Phase:    PhaseStarting,
			FileName: fileName,
		},
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		s.limiter.Release()
		return "", ErrShuttingDown
	}
	s.jobs[jobID] = job
	s.mu.Unlock()

	s.metrics.JobStarted(ctx)
	go s.run(jobCtx, job, records)

	return jobID, nil
}

// run executes one job and always releases its limiter slot.
func (s *SyncService) run(ctx context.Context, job *activeSync, records []CourseRecord) {
	start := time.Now()
	logger := logging.WithFields(ctx, "job_id", job.ID, "file", job.FileName)

	defer func() {
		job.Cancel()
		job.closeListeners()
		close(job.Done)
		s.limiter.Release()
		s.metrics.JobFinished(context.Background())
		s.cleanup(job.ID, jobRetention)
	}()

	result := &SyncJobResult{
		JobID:    job.ID,
		FileName: job.FileName,
		Result:   newSyncResult(),
	}

	job.update(func(p *SyncProgress) { p.Phase = PhaseAnalyzing })

	plan, err := s.workflow.PrepareRecords(ctx, records)
	if err != nil {
		logger.Error("sync analysis failed", "error", err)
		s.finish(job, result, start, err)
		return
	}
	result.Analysis = plan.Analysis

	job.update(func(p *SyncProgress) {
		p.Phase = PhaseSyncing
		p.Total = plan.Analysis.WorkCount()
	})

	report, err := s.workflow.Execute(ctx, plan, func(current, total int) {
		job.update(func(p *SyncProgress) {
			p.Current = current
			p.Total = total
		})
	})
	result.Result = report.Result
	if err != nil {
		logger.Warn("sync ended early", "error", err)
	}
	s.finish(job, result, start, err)
}

// finish stores the result and publishes the terminal phase.
func (s *SyncService) finish(job *activeSync, result *SyncJobResult, start time.Time, err error) {
	result.Duration = time.Since(start)

	phase := PhaseComplete
	switch {
	case errors.Is(err, context.Canceled):
		phase = PhaseCancelled
		result.Error = "cancelled"
	case err != nil:
		phase = PhaseFailed
		result.Error = err.Error()
	}

	job.mu.Lock()
	job.result = result
	job.mu.Unlock()

	job.finalize(func(p *SyncProgress) {
		p.Phase = phase
		p.Error = result.Error
	})
}

func (s *SyncService) lookup(jobID string) (*activeSync, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// SubscribeProgress returns a channel that receives progress updates. The
// current state is sent immediately. The channel is closed when the job ends;
// subscribing to a finished job yields its final state and a closed channel.
func (s *SyncService) SubscribeProgress(jobID string) (<-chan SyncProgress, error) {
	job, err := s.lookup(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan SyncProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()

	ch <- job.progress
	if job.closed {
		close(ch)
	} else {
		job.listeners = append(job.listeners, ch)
	}

	return ch, nil
}

// CancelSync cancels a running job. Items already applied stay applied.
func (s *SyncService) CancelSync(jobID string) error {
	job, err := s.lookup(jobID)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// GetSyncResult blocks until the job finishes or ctx is done.
func (s *SyncService) GetSyncResult(ctx context.Context, jobID string) (*SyncJobResult, error) {
	job, err := s.lookup(jobID)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.result, nil
}

// GetSyncProgress returns the current progress without blocking.
func (s *SyncService) GetSyncProgress(jobID string) (SyncProgress, error) {
	job, err := s.lookup(jobID)
	if err != nil {
		return SyncProgress{}, err
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress, nil
}

// LimiterStatus reports the job limiter state.
func (s *SyncService) LimiterStatus() SyncLimiterStatus {
	return s.limiter.Status()
}

// CancelAll cancels every running job.
func (s *SyncService) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		job.Cancel()
	}
}

// Close rejects new jobs with ErrShuttingDown and cancels the running ones.
func (s *SyncService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.CancelAll()
}

// WaitForJobs blocks until no job is running or ctx is done.
func (s *SyncService) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// update mutates the progress and broadcasts it to listeners. A listener
// whose buffer is full misses the update.
func (job *activeSync) update(fn func(*SyncProgress)) {
	job.publish(fn, false)
}

// finalize is update for the terminal phase. A full listener drops its oldest
// pending update so the terminal state always reaches it.
func (job *activeSync) finalize(fn func(*SyncProgress)) {
	job.publish(fn, true)
}

// publish sends under job.mu, so this is the only sender on each listener.
func (job *activeSync) publish(fn func(*SyncProgress), terminal bool) {
	job.mu.Lock()
	defer job.mu.Unlock()

	fn(&job.progress)
	for _, ch := range job.listeners {
		select {
		case ch <- job.progress:
			continue
		default:
		}
		if !terminal {
			continue
		}
		select {
		case <-ch:
		default:
		}
		ch <- job.progress
	}
}

func (job *activeSync) closeListeners() {
	job.mu.Lock()
	defer job.mu.Unlock()

	for _, ch := range job.listeners {
		close(ch)
	}
	job.listeners = nil
	job.closed = true
}

// cleanup forgets the job after delay.
func (s *SyncService) cleanup(jobID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}
