// Package jobs runs the service's periodic maintenance work: the expiry
// sweep and the idempotency record cleanup. Jobs are queued on their
// intervals and executed by a small worker pool so one slow job cannot
// starve the others.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic maintenance task. Run returns how many rows it
// touched so progress can be inspected and logged.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// JobProgress captures the outcome of the most recent run of a job.
type JobProgress struct {
	LastRun     time.Time `json:"last_run"`
	LastCount   int64     `json:"last_count"`
	LastError   string    `json:"last_error,omitempty"`
	TotalRuns   int64     `json:"total_runs"`
	TotalErrors int64     `json:"total_errors"`
}

// Scheduler dispatches jobs to a fixed pool of workers on their intervals.
type Scheduler struct {
	jobs    []Job
	workers int
	logger  *slog.Logger

	queue chan Job

	mu       sync.Mutex
	progress map[string]JobProgress

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler with the given worker count.
func NewScheduler(workers int, logger *slog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		workers:  workers,
		logger:   logger,
		queue:    make(chan Job),
		progress: make(map[string]JobProgress),
	}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches the worker pool and one ticker per job. Each job also runs
// once immediately so a restart does not delay overdue maintenance by a
// full interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.tick(ctx, job)
	}

	s.logger.Info("job scheduler started",
		"workers", s.workers,
		"jobs", len(s.jobs))
}

// Stop cancels all tickers and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("job scheduler stopped")
}

// Progress returns a copy of the progress table.
func (s *Scheduler) Progress() map[string]JobProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobProgress, len(s.progress))
	for name, p := range s.progress {
		out[name] = p
	}
	return out
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	defer s.wg.Done()

	s.enqueue(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx, job)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, job Job) {
	select {
	case <-ctx.Done():
	case s.queue <- job:
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	count, err := job.Run(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	p := s.progress[job.Name]
	p.LastRun = start.UTC()
	p.LastCount = count
	p.TotalRuns++
	if err != nil {
		p.LastError = err.Error()
		p.TotalErrors++
	} else {
		p.LastError = ""
	}
	s.progress[job.Name] = p
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job run failed",
			"job", job.Name,
			"duration", duration,
			"error", err)
		return
	}

	s.logger.Debug("job run complete",
		"job", job.Name,
		"count", count,
		"duration", duration)
}
