package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/logging"
	"github.com/anstrom/portscout/internal/metrics"
	"github.com/anstrom/portscout/internal/probe"
)

// exhaustionBackoff is how long dispatch pauses after a worker reports
// file descriptor exhaustion.
const exhaustionBackoff = 100 * time.Millisecond

// prober abstracts the single-port probe for the scheduler.
type prober interface {
	Probe(ctx context.Context, host string, port int) probe.Result
}

// Scheduler fans tasks out across a fixed pool of probe workers. Each
// task is dispatched at most once. Canceling the run context stops
// dispatch of queued tasks while probes already in flight run on to
// their own timeouts.
type Scheduler struct {
	workers int
	prober  prober

	completed atomic.Int64
	total     atomic.Int64
	exhausted atomic.Bool
}

// NewScheduler creates a scheduler with the given worker count.
func NewScheduler(workers int, p prober) (*Scheduler, error) {
	if workers < MinWorkers || workers > MaxWorkers {
		return nil, errors.ErrWorkerBounds(workers, MinWorkers, MaxWorkers)
	}
	if p == nil {
		return nil, errors.NewScanError(errors.CodeValidation, "prober must not be nil")
	}
	return &Scheduler{workers: workers, prober: p}, nil
}

// Run dispatches every task across the pool and returns the channel
// results arrive on. The channel closes once all dispatched probes
// have finished, so a full drain observes every outcome exactly once.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) <-chan probe.Result {
	s.total.Store(int64(len(tasks)))
	s.completed.Store(0)

	jobs := make(chan Task)
	results := make(chan probe.Result, s.workers)

	// Only dispatch observes cancellation. Workers probe with a
	// detached context so in-flight attempts finish naturally.
	probeCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.runWorker(probeCtx, id, jobs, results)
		}(i)
	}
	metrics.SetWorkersActive(s.workers)

	go s.dispatch(ctx, tasks, jobs)

	go func() {
		wg.Wait()
		metrics.SetWorkersActive(0)
		close(results)
	}()

	return results
}

// Progress reports completed and total task counts for the current run.
func (s *Scheduler) Progress() (completed, total int64) {
	return s.completed.Load(), s.total.Load()
}

// dispatch feeds tasks to workers until the list is drained or the
// context is canceled. No task enters the queue twice.
func (s *Scheduler) dispatch(ctx context.Context, tasks []Task, jobs chan<- Task) {
	defer close(jobs)

	for i, task := range tasks {
		if s.exhausted.Swap(false) {
			logging.Warn("File descriptors exhausted, slowing dispatch",
				"backoff", exhaustionBackoff)
			time.Sleep(exhaustionBackoff)
		}

		if !s.send(ctx, task, jobs) {
			logging.Info("Scan canceled, stopping dispatch",
				"dispatched", i,
				"remaining", len(tasks)-i)
			return
		}
	}
}

// send hands one task to a worker. It returns false once the context
// is done, checking before the handoff so a canceled run never
// dispatches another task.
func (s *Scheduler) send(ctx context.Context, task Task, jobs chan<- Task) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case jobs <- task:
		return true
	case <-ctx.Done():
		return false
	}
}

// runWorker executes probes until the job queue closes.
func (s *Scheduler) runWorker(ctx context.Context, id int, jobs <-chan Task, results chan<- probe.Result) {
	logging.Debug("Probe worker started", "worker_id", id)
	defer logging.Debug("Probe worker stopped", "worker_id", id)

	for task := range jobs {
		result := s.prober.Probe(ctx, task.Host, task.Port)
		if result.Exhausted {
			s.exhausted.Store(true)
		}
		s.completed.Add(1)
		results <- result
	}
}
