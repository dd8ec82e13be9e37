package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
)

func newTestExecutor(store database.Storage, registry *action.Registry) *Executor {
	e := NewExecutor(store, registry, nil)
	e.backoff = func(int) time.Duration { return 0 } // no waiting in tests
	return e
}

func createTestJob(t *testing.T, store database.Storage, job *model.CronJobDefinition) *model.CronJobDefinition {
	t.Helper()
	if job.CronExpression == "" {
		job.CronExpression = "* * * * *"
	}
	if job.TimeoutSeconds == 0 {
		job.TimeoutSeconds = 30
	}
	job.Enabled = true
	if err := store.CreateJob(job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	return job
}

func TestRunSuccessWritesSingleRecord(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	registry.Register("ping", func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{}, nil
	})

	e := newTestExecutor(store, registry)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "ping", ActionName: "ping", RetryCount: 3})

	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Status != model.ExecutionStatusSuccess {
		t.Errorf("status = %q, want success", rec.Status)
	}
	if rec.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", rec.Attempt)
	}
	if rec.FinishedAt == nil {
		t.Errorf("record not sealed")
	}

	records, _ := store.ListExecutionRecords(job.ID, 0)
	if len(records) != 1 {
		t.Errorf("records = %d, want 1 (no retries on success)", len(records))
	}

	updated, _ := store.GetJob(job.ID)
	if updated.LastRunAt == nil {
		t.Errorf("LastRunAt not stamped on success")
	}
	if updated.NextRunAt == nil || !updated.NextRunAt.After(time.Now()) {
		t.Errorf("NextRunAt not advanced: %v", updated.NextRunAt)
	}
}

func TestRunRetriesAreBoundedAndAudited(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	var invocations int32
	registry.Register("flaky", func(ctx context.Context, req action.Request) (*action.Result, error) {
		atomic.AddInt32(&invocations, 1)
		return nil, errors.New("generator unavailable")
	})

	e := newTestExecutor(store, registry)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "flaky", ActionName: "flaky", RetryCount: 2})

	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Status != model.ExecutionStatusFailed {
		t.Errorf("terminal status = %q, want failed", rec.Status)
	}
	if got := atomic.LoadInt32(&invocations); got != 3 {
		t.Errorf("invocations = %d, want 3 (retryCount+1)", got)
	}

	records, _ := store.ListExecutionRecords(job.ID, 0)
	if len(records) != 3 {
		t.Fatalf("records = %d, want one per attempt", len(records))
	}
	runID := records[0].RunID
	for _, r := range records {
		if r.RunID != runID {
			t.Errorf("attempts do not share a run id: %q vs %q", r.RunID, runID)
		}
		if r.Status != model.ExecutionStatusFailed {
			t.Errorf("attempt %d status = %q, want failed", r.Attempt, r.Status)
		}
	}

	updated, _ := store.GetJob(job.ID)
	if updated.LastRunAt != nil {
		t.Errorf("LastRunAt must only be stamped on success")
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	var invocations int32
	registry.Register("flaky", func(ctx context.Context, req action.Request) (*action.Result, error) {
		if atomic.AddInt32(&invocations, 1) < 3 {
			return nil, errors.New("transient")
		}
		return &action.Result{}, nil
	})

	e := newTestExecutor(store, registry)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "flaky", ActionName: "flaky", RetryCount: 5})

	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Status != model.ExecutionStatusSuccess {
		t.Errorf("terminal status = %q, want success", rec.Status)
	}
	if rec.Attempt != 3 {
		t.Errorf("terminal attempt = %d, want 3", rec.Attempt)
	}

	records, _ := store.ListExecutionRecords(job.ID, 0)
	if len(records) != 3 {
		t.Errorf("records = %d, want 3 (stop retrying after success)", len(records))
	}
}

func TestRunTimeoutSealsTimedOut(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	registry.Register("slow", func(ctx context.Context, req action.Request) (*action.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	e := newTestExecutor(store, registry)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "slow", ActionName: "slow", TimeoutSeconds: 1})

	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Status != model.ExecutionStatusTimedOut {
		t.Errorf("status = %q, want timed_out", rec.Status)
	}
	if rec.ErrorMessage == "" {
		t.Errorf("timed out record should carry an error message")
	}
}

func TestRunTimeoutSealsWhenActionIgnoresCancellation(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()

	release := make(chan struct{})
	registry.Register("stubborn", func(ctx context.Context, req action.Request) (*action.Result, error) {
		// Ignores ctx.Done() entirely
		<-release
		return &action.Result{}, nil
	})

	e := newTestExecutor(store, registry)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "stubborn", ActionName: "stubborn", TimeoutSeconds: 1})

	start := time.Now()
	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(release)

	if rec.Status != model.ExecutionStatusTimedOut {
		t.Errorf("status = %q, want timed_out", rec.Status)
	}
	if rec.FinishedAt == nil {
		t.Errorf("record not sealed at the deadline")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run blocked %s on an action that ignores cancellation", elapsed)
	}
}

func TestRunRejectsDisabledJob(t *testing.T) {
	store := database.NewMemoryStore()
	e := newTestExecutor(store, action.NewRegistry())

	job := createTestJob(t, store, &model.CronJobDefinition{Name: "off", ActionName: "ping"})
	job.Enabled = false

	if _, err := e.Run(context.Background(), job); !errors.Is(err, ErrJobDisabled) {
		t.Errorf("Run on disabled job = %v, want ErrJobDisabled", err)
	}

	records, _ := store.ListExecutionRecords(job.ID, 0)
	if len(records) != 0 {
		t.Errorf("disabled job must not write records")
	}
}

func TestRunSingleFlightPerJob(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()

	entered := make(chan struct{})
	release := make(chan struct{})
	registry.Register("hold", func(ctx context.Context, req action.Request) (*action.Result, error) {
		close(entered)
		<-release
		return &action.Result{}, nil
	})

	e := newTestExecutor(store, registry)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "hold", ActionName: "hold"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.Run(context.Background(), job); err != nil {
			t.Errorf("first Run failed: %v", err)
		}
	}()

	<-entered

	if _, err := e.Run(context.Background(), job); !errors.Is(err, ErrJobAlreadyRunning) {
		t.Errorf("concurrent Run = %v, want ErrJobAlreadyRunning", err)
	}

	running, _ := store.HasRunningExecution(job.ID)
	if !running {
		t.Errorf("expected exactly one running record while in flight")
	}

	close(release)
	wg.Wait()

	records, _ := store.ListExecutionRecords(job.ID, 0)
	if len(records) != 1 {
		t.Errorf("records = %d, want 1 (rejected invocation writes nothing)", len(records))
	}
}

func TestRunSkipsWhenDependencyNotSatisfied(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	var invoked int32
	registry.Register("publish", func(ctx context.Context, req action.Request) (*action.Result, error) {
		atomic.AddInt32(&invoked, 1)
		return &action.Result{}, nil
	})

	e := newTestExecutor(store, registry)
	dep := createTestJob(t, store, &model.CronJobDefinition{Name: "generate", ActionName: "generate"})
	job := createTestJob(t, store, &model.CronJobDefinition{
		Name:         "publish",
		ActionName:   "publish",
		Dependencies: []int64{int64(dep.ID)},
	})
	due := time.Now().Add(-time.Minute)
	store.SetJobNextRun(job.ID, &due)

	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Status != model.ExecutionStatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
	if !strings.Contains(rec.ErrorMessage, depNotSatisfiedMessage) {
		t.Errorf("error message = %q, want it to mention %q", rec.ErrorMessage, depNotSatisfiedMessage)
	}
	if atomic.LoadInt32(&invoked) != 0 {
		t.Errorf("action must not be invoked when a dependency is unsatisfied")
	}

	// The slot is kept so the next tick re-evaluates the dependency
	updated, _ := store.GetJob(job.ID)
	if updated.NextRunAt == nil || !updated.NextRunAt.Equal(due) {
		t.Errorf("NextRunAt = %v, want unchanged %v after a dependency skip", updated.NextRunAt, due)
	}
}

func TestRunProceedsWhenDependencySucceeded(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	ok := func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{}, nil
	}
	registry.Register("generate", ok)
	registry.Register("publish", ok)

	e := newTestExecutor(store, registry)
	dep := createTestJob(t, store, &model.CronJobDefinition{Name: "generate", ActionName: "generate"})
	job := createTestJob(t, store, &model.CronJobDefinition{
		Name:         "publish",
		ActionName:   "publish",
		Dependencies: []int64{int64(dep.ID)},
	})

	if _, err := e.Run(context.Background(), dep); err != nil {
		t.Fatalf("dependency Run failed: %v", err)
	}

	rec, err := e.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Status != model.ExecutionStatusSuccess {
		t.Errorf("status = %q, want success once dependency succeeded", rec.Status)
	}
}
