package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// jobQueueSize bounds the job queue. The refreshers enqueue at most a few
// jobs per credential per cycle, so the queue only fills when the dispatcher
// is stalled on a slow remote call; in that case new demand is dropped and
// re-derived on the next cycle.
const jobQueueSize = 512

// Submitter enqueues jobs for the dispatcher. It is a small value type that
// can be copied freely; all copies share the same queue.
type Submitter struct {
	jobs chan<- ApiJob
}

// NewSubmitter wraps a job channel. Exposed so tests can drive a dispatcher
// with their own channel.
func NewSubmitter(jobs chan<- ApiJob) Submitter {
	return Submitter{jobs: jobs}
}

// Submit enqueues a job without blocking. It reports false and logs a
// warning when the queue is full; the periodic refreshers will re-derive the
// same demand on their next cycle.
func (s Submitter) Submit(job ApiJob) bool {
	select {
	case s.jobs <- job:
		return true
	default:
		slog.Warn("job queue full, dropping job", "job", jobName(job))
		return false
	}
}

// NextWakeup is the shared "next scheduled refresh" instant, published by the
// clears refresher and read by the status API for countdown display.
type NextWakeup struct {
	mu sync.Mutex
	at time.Time
}

// Set records the next wakeup instant.
func (n *NextWakeup) Set(at time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.at = at
}

// Get returns the next wakeup instant, zero if no cycle has run yet.
func (n *NextWakeup) Get() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.at
}

// Workers is the handle the engine exposes outward: a cloneable job
// submitter and the shared next-wakeup instant.
type Workers struct {
	submitter  Submitter
	nextWakeup *NextWakeup
	clears     *ClearsRefresher
}

// NewWorkers assembles a handle from its parts without spawning the loops.
// StartWorkers is the production entry point; this constructor exists for
// callers that drive the refreshers themselves.
func NewWorkers(submitter Submitter, nextWakeup *NextWakeup, clears *ClearsRefresher) *Workers {
	return &Workers{
		submitter:  submitter,
		nextWakeup: nextWakeup,
		clears:     clears,
	}
}

// Refresh runs one clears refresher cycle immediately, enqueuing the same
// jobs a scheduled wakeup would. The periodic schedule is unaffected.
func (w *Workers) Refresh() {
	w.clears.Cycle()
}

// Submitter returns a job submitter. The returned value may be copied and
// used from any goroutine.
func (w *Workers) Submitter() Submitter {
	return w.submitter
}

// NextRefreshAt returns the instant of the next scheduled clears refresh.
func (w *Workers) NextRefreshAt() time.Time {
	return w.nextWakeup.Get()
}

// StartWorkers spawns the three long-running goroutines -- the job
// dispatcher, the clears refresher, and the friend refresher -- and returns
// the handle used to submit jobs and observe the refresh schedule. All three
// loops stop when ctx is canceled.
func StartWorkers(
	ctx context.Context,
	settings *Settings,
	data *Data,
	api driven.ProgressionClient,
	friends driven.FriendsClient,
	clearsInterval time.Duration,
) *Workers {
	jobs := make(chan ApiJob, jobQueueSize)
	submitter := NewSubmitter(jobs)
	nextWakeup := &NextWakeup{}

	dispatcher := NewDispatcher(settings, data, api, friends, submitter)
	go dispatcher.Run(ctx, jobs)

	clears := NewClearsRefresher(settings, data, submitter, clearsInterval, nextWakeup)
	go clears.Run(ctx)

	friendRefresher := NewFriendRefresher(settings, data, submitter)
	go friendRefresher.Run(ctx)

	return &Workers{
		submitter:  submitter,
		nextWakeup: nextWakeup,
		clears:     clears,
	}
}
