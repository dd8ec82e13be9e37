// Package jobs owns cron job execution: the executor running a single job
// definition with timeout and retry semantics, and the scheduler ticking
// over due jobs.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/cronexpr"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/cache"
	"github.com/google/uuid"
)

var (
	// ErrJobDisabled is returned when a disabled job is handed to Run
	ErrJobDisabled = errors.New("job is disabled")

	// ErrJobAlreadyRunning is returned when a run for the same job id is
	// in flight. Invocations are rejected, never queued.
	ErrJobAlreadyRunning = errors.New("job is already running")
)

const (
	backoffBase = 1 * time.Second
	backoffCap  = 60 * time.Second

	// depNotSatisfiedMessage is the error message recorded when a
	// dependency's most recent run did not succeed.
	depNotSatisfiedMessage = "dependency not satisfied"

	// redisLockTTL bounds how long a crashed instance can hold a job lock
	redisLockTTL = 15 * time.Minute
)

// Executor runs one job definition per invocation, writing one
// JobExecutionRecord per attempt. Execution of a single job id is
// serialized; independent jobs run concurrently.
type Executor struct {
	store   database.Storage
	invoker action.Invoker
	cache   *cache.RedisCache // optional cross-instance lock

	mu       sync.Mutex
	inflight map[uint]bool

	backoff func(attempt int) time.Duration
}

// NewExecutor creates a job executor. redisCache may be nil; the in-process
// lock alone then guards single-flight.
func NewExecutor(store database.Storage, invoker action.Invoker, redisCache *cache.RedisCache) *Executor {
	return &Executor{
		store:    store,
		invoker:  invoker,
		cache:    redisCache,
		inflight: make(map[uint]bool),
		backoff:  defaultBackoff,
	}
}

// defaultBackoff returns the delay before the given retry attempt:
// exponential with base 1s, factor 2, capped at 60s.
func defaultBackoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}

// Run executes a job once, honoring its timeout and retry policy, and
// returns the record of the terminal attempt. A rejected invocation
// (disabled job, run already in flight) returns an error and writes nothing.
func (e *Executor) Run(ctx context.Context, job *model.CronJobDefinition) (*model.JobExecutionRecord, error) {
	if !job.Enabled {
		return nil, fmt.Errorf("%w: job %d", ErrJobDisabled, job.ID)
	}

	if err := e.acquire(ctx, job.ID); err != nil {
		return nil, err
	}
	defer e.release(job.ID)

	if unsatisfied := e.unsatisfiedDependency(job); unsatisfied != 0 {
		// nextRunAt stays untouched so the job is still due and the next
		// tick re-evaluates the dependency.
		rec := e.recordSkip(job, fmt.Sprintf("%s: job %d has not succeeded", depNotSatisfiedMessage, unsatisfied))
		return rec, nil
	}

	payload := decodePayload(job.Payload)
	runID := uuid.NewString()
	maxAttempts := job.RetryCount + 1

	var rec *model.JobExecutionRecord
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec = e.attempt(ctx, job, runID, attempt, payload)

		if rec.Status == model.ExecutionStatusSuccess {
			e.rescheduleAfterSuccess(job)
			return rec, nil
		}

		if attempt < maxAttempts {
			log.Printf("[SCHEDULER] Job %d attempt %d/%d %s, retrying in %s",
				job.ID, attempt, maxAttempts, rec.Status, e.backoff(attempt))
			select {
			case <-time.After(e.backoff(attempt)):
			case <-ctx.Done():
				e.rescheduleOnly(job)
				return rec, nil
			}
		}
	}

	e.rescheduleOnly(job)
	return rec, nil
}

// attempt runs one execution attempt under the job's timeout and seals its
// record. A timeout means the external action's outcome is unknown; it is
// recorded as timed_out and a late success is never applied.
func (e *Executor) attempt(ctx context.Context, job *model.CronJobDefinition, runID string, attempt int, payload map[string]any) *model.JobExecutionRecord {
	started := time.Now()
	rec := &model.JobExecutionRecord{
		JobID:     job.ID,
		RunID:     runID,
		Attempt:   attempt,
		Status:    model.ExecutionStatusRunning,
		StartedAt: started,
	}
	if err := e.store.CreateExecutionRecord(rec); err != nil {
		log.Printf("[SCHEDULER] Failed to create execution record for job %d: %v", job.ID, err)
	}

	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	actionCtx, cancel := context.WithTimeout(ctx, timeout)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.invoker.Invoke(actionCtx, action.Request{Name: job.ActionName, Payload: payload})
		errCh <- err
	}()

	// The record seals at the deadline even when the action ignores
	// cancellation; a late result is never applied. ctxErr must be read
	// before cancel(), which would overwrite it with context.Canceled.
	var err error
	select {
	case err = <-errCh:
	case <-actionCtx.Done():
		err = actionCtx.Err()
	}
	ctxErr := actionCtx.Err()
	cancel()

	finished := time.Now()
	rec.FinishedAt = &finished
	rec.DurationMs = finished.Sub(started).Milliseconds()

	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		rec.Status = model.ExecutionStatusTimedOut
		rec.ErrorMessage = fmt.Sprintf("action %q timed out after %ds", job.ActionName, job.TimeoutSeconds)
	case err == nil && ctxErr == nil:
		rec.Status = model.ExecutionStatusSuccess
	case ctxErr != nil:
		// Parent context cancelled (shutdown) before the deadline
		rec.Status = model.ExecutionStatusFailed
		rec.ErrorMessage = "execution cancelled"
	default:
		rec.Status = model.ExecutionStatusFailed
		rec.ErrorMessage = err.Error()
	}

	if err := e.store.SealExecutionRecord(rec); err != nil {
		log.Printf("[SCHEDULER] Failed to seal execution record %d: %v", rec.ID, err)
	}
	return rec
}

// acquire takes the per-job single-flight lock. The lock is held for the
// whole run including retries and released as soon as the terminal record
// is sealed.
func (e *Executor) acquire(ctx context.Context, jobID uint) error {
	e.mu.Lock()
	if e.inflight[jobID] {
		e.mu.Unlock()
		return fmt.Errorf("%w: job %d", ErrJobAlreadyRunning, jobID)
	}
	e.inflight[jobID] = true
	e.mu.Unlock()

	running, err := e.store.HasRunningExecution(jobID)
	if err == nil && running {
		e.release(jobID)
		return fmt.Errorf("%w: job %d has an open running record", ErrJobAlreadyRunning, jobID)
	}

	if e.cache != nil {
		key := fmt.Sprintf(model.RedisKeyJobLock, jobID)
		ok, err := e.cache.SetNX(ctx, key, "1", redisLockTTL)
		if err == nil && !ok {
			e.release(jobID)
			return fmt.Errorf("%w: job %d is locked by another instance", ErrJobAlreadyRunning, jobID)
		}
	}

	return nil
}

func (e *Executor) release(jobID uint) {
	if e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		key := fmt.Sprintf(model.RedisKeyJobLock, jobID)
		if err := e.cache.Delete(ctx, key); err != nil {
			log.Printf("[SCHEDULER] Failed to release lock for job %d: %v", jobID, err)
		}
		cancel()
	}

	e.mu.Lock()
	delete(e.inflight, jobID)
	e.mu.Unlock()
}

// unsatisfiedDependency returns the first dependency whose most recent
// record is not a success, or 0 when all dependencies are satisfied.
func (e *Executor) unsatisfiedDependency(job *model.CronJobDefinition) uint {
	for _, dep := range job.Dependencies {
		depID := uint(dep)
		latest, err := e.store.LatestExecutionRecord(depID)
		if err != nil || latest.Status != model.ExecutionStatusSuccess {
			return depID
		}
	}
	return 0
}

// recordSkip writes a single failed record without invoking the action.
// Skipped jobs are not retried until the next tick re-evaluates them.
func (e *Executor) recordSkip(job *model.CronJobDefinition, message string) *model.JobExecutionRecord {
	now := time.Now()
	rec := &model.JobExecutionRecord{
		JobID:        job.ID,
		RunID:        uuid.NewString(),
		Attempt:      1,
		Status:       model.ExecutionStatusFailed,
		StartedAt:    now,
		FinishedAt:   &now,
		ErrorMessage: message,
	}
	if err := e.store.CreateExecutionRecord(rec); err != nil {
		log.Printf("[SCHEDULER] Failed to record skip for job %d: %v", job.ID, err)
	}
	log.Printf("[SCHEDULER] Job %d skipped: %s", job.ID, message)
	return rec
}

// rescheduleAfterSuccess stamps lastRunAt and advances nextRunAt.
// Dependency-waiting jobs pick the success up at the next tick; there is no
// cascading execution within a tick.
func (e *Executor) rescheduleAfterSuccess(job *model.CronJobDefinition) {
	now := time.Now()
	next := e.nextRun(job, now)
	if err := e.store.SetJobRunTimes(job.ID, now, next); err != nil {
		log.Printf("[SCHEDULER] Failed to update run times for job %d: %v", job.ID, err)
	}
}

// rescheduleOnly advances nextRunAt after a terminal failure so the same
// occurrence does not fire again; lastRunAt is only stamped on success.
func (e *Executor) rescheduleOnly(job *model.CronJobDefinition) {
	next := e.nextRun(job, time.Now())
	if err := e.store.SetJobNextRun(job.ID, next); err != nil {
		log.Printf("[SCHEDULER] Failed to update next run for job %d: %v", job.ID, err)
	}
}

func (e *Executor) nextRun(job *model.CronJobDefinition, after time.Time) *time.Time {
	next, err := cronexpr.NextOccurrence(job.CronExpression, after)
	if err != nil {
		// Expressions are validated at definition time; a failure here
		// leaves the job unscheduled for an operator to fix.
		log.Printf("[SCHEDULER] Job %d has no upcoming occurrence: %v", job.ID, err)
		return nil
	}
	return &next
}

func decodePayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
