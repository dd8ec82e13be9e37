package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
)

// Scheduler is the single entry point creating new job runs: a periodic
// tick queries due jobs and dispatches them to a bounded worker pool.
// Per-job serialization is the executor's concern.
type Scheduler struct {
	store    database.Storage
	executor *Executor
	interval time.Duration
	workers  int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler ticking at the given interval with a
// bounded pool of workers per tick.
func NewScheduler(store database.Storage, executor *Executor, interval time.Duration, workers int) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		interval: interval,
		workers:  workers,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop in the background
func (s *Scheduler) Start() {
	log.Printf("[SCHEDULER] Starting, tick interval %s, %d workers", s.interval, s.workers)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Tick(context.Background(), time.Now())
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit. In-flight jobs finish
// on their own; their records seal normally.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	log.Println("[SCHEDULER] Stopped")
}

// Tick runs one scheduling pass: every enabled job whose next run time has
// been reached is executed on the worker pool. The call returns when all
// jobs dispatched by this tick have finished and reports how many were
// dispatched.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	due, err := s.store.ListDueJobs(now)
	if err != nil {
		log.Printf("[SCHEDULER] Failed to query due jobs: %v", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	log.Printf("[SCHEDULER] Tick at %s: %d job(s) due", now.Format(time.RFC3339), len(due))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i := range due {
		job := due[i]
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := s.executor.Run(ctx, &job)
			switch {
			case errors.Is(err, ErrJobAlreadyRunning):
				// Single-flight rejection, the job keeps its slot for the
				// next tick
				log.Printf("[SCHEDULER] Job %d still running, tick skipped", job.ID)
			case err != nil:
				log.Printf("[SCHEDULER] Job %d rejected: %v", job.ID, err)
			default:
				log.Printf("[SCHEDULER] Job %d finished with status %s (attempt %d)", job.ID, rec.Status, rec.Attempt)
			}
		}()
	}

	wg.Wait()
	return len(due)
}
