package core

// sync_limiter.go caps the number of sync jobs running at once.
//
// Each job holds one semaphore slot for its whole lifetime. When all slots
// are taken, StartSync waits up to maxWait before failing with
// ErrTooManySyncs. WaitForDrain lets shutdown block until every job is done.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySyncs is returned when no sync slot frees up within the wait time.
var ErrTooManySyncs = errors.New("too many concurrent syncs, please try again later")

// DefaultMaxConcurrentSyncs is the default limit for parallel sync jobs.
const DefaultMaxConcurrentSyncs = 2

// DefaultMaxSyncWait is how long to wait for a slot before rejecting.
const DefaultMaxSyncWait = 10 * time.Second

// SyncLimiter is a counting semaphore for sync jobs.
type SyncLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewSyncLimiter creates a limiter allowing maxConcurrent jobs. Non-positive
// arguments fall back to the defaults.
func NewSyncLimiter(maxConcurrent int, maxWait time.Duration) *SyncLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSyncs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxSyncWait
	}

	return &SyncLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a slot. The caller must Release it when the job ends.
func (l *SyncLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManySyncs
	}
}

// Release frees a slot taken by Acquire.
func (l *SyncLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of running jobs.
func (l *SyncLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no job holds a slot or ctx is done.
func (l *SyncLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncLimiterStatus is a point-in-time view of the limiter.
type SyncLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *SyncLimiter) Status() SyncLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return SyncLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
