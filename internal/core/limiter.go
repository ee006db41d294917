package core

// limiter.go bounds how many ingestions run at once. Parsing a workbook
// holds the whole file plus its grid in memory, so the service admits a
// fixed number of jobs and makes the rest wait up to maxWait for a slot.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyIngestions is returned when no slot frees up within the wait
// window. Clients should retry after a short delay.
var ErrTooManyIngestions = errors.New("too many ingestions in progress, please try again later")

// Limiter defaults.
const (
	DefaultMaxConcurrentIngestions = 4
	DefaultMaxIngestWait           = 15 * time.Second
)

// drainPoll is how often WaitForDrain rechecks the active count.
const drainPoll = 50 * time.Millisecond

// IngestLimiter is a counting semaphore over ingestion jobs.
type IngestLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewIngestLimiter admits at most maxConcurrent jobs. Waiters give up
// after maxWait. Non-positive arguments take the defaults.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngestions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxIngestWait
	}
	return &IngestLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, ctx is done, or maxWait passes.
// Callers must Release after a nil return.
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyIngestions
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *IngestLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *IngestLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of running jobs.
func (l *IngestLimiter) ActiveCount() int { return int(l.active.Load()) }

// MaxConcurrent returns the slot count.
func (l *IngestLimiter) MaxConcurrent() int { return cap(l.slots) }

// Available returns the number of free slots.
func (l *IngestLimiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until no job is running or ctx is done. Used on
// shutdown after the listener stops accepting requests.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter for health output.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status snapshots the limiter.
func (l *IngestLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}
