package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
)

func TestTickDispatchesOnlyDueJobs(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	var ran int32
	registry.Register("ping", func(ctx context.Context, req action.Request) (*action.Result, error) {
		atomic.AddInt32(&ran, 1)
		return &action.Result{}, nil
	})

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := createTestJob(t, store, &model.CronJobDefinition{Name: "due", ActionName: "ping"})
	store.SetJobNextRun(due.ID, &past)

	notDue := createTestJob(t, store, &model.CronJobDefinition{Name: "later", ActionName: "ping"})
	store.SetJobNextRun(notDue.ID, &future)

	disabled := createTestJob(t, store, &model.CronJobDefinition{Name: "off", ActionName: "ping"})
	store.SetJobNextRun(disabled.ID, &past)
	disabled.Enabled = false
	store.UpdateJob(disabled)

	s := NewScheduler(store, newTestExecutor(store, registry), time.Minute, 3)
	dispatched := s.Tick(context.Background(), now)

	if dispatched != 1 {
		t.Errorf("dispatched = %d, want 1", dispatched)
	}
	if got := atomic.LoadInt32(&ran); got != 1 {
		t.Errorf("ran = %d, want 1", got)
	}
}

func TestTickAdvancesNextRun(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	registry.Register("ping", func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{}, nil
	})

	now := time.Now()
	past := now.Add(-time.Minute)
	job := createTestJob(t, store, &model.CronJobDefinition{Name: "due", ActionName: "ping"})
	store.SetJobNextRun(job.ID, &past)

	s := NewScheduler(store, newTestExecutor(store, registry), time.Minute, 3)
	s.Tick(context.Background(), now)

	updated, _ := store.GetJob(job.ID)
	if updated.NextRunAt == nil || !updated.NextRunAt.After(now) {
		t.Errorf("NextRunAt = %v, want a future instant", updated.NextRunAt)
	}

	// The same occurrence must not fire twice
	if dispatched := s.Tick(context.Background(), now); dispatched != 0 {
		t.Errorf("second tick dispatched %d job(s), want 0", dispatched)
	}
}

func TestDependentJobRunsOnLaterTick(t *testing.T) {
	store := database.NewMemoryStore()
	registry := action.NewRegistry()
	ok := func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{}, nil
	}
	registry.Register("generate", ok)
	registry.Register("publish", ok)

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	dep := createTestJob(t, store, &model.CronJobDefinition{Name: "generate", ActionName: "generate"})
	store.SetJobNextRun(dep.ID, &future)

	dependent := createTestJob(t, store, &model.CronJobDefinition{
		Name:         "publish",
		ActionName:   "publish",
		Dependencies: []int64{int64(dep.ID)},
	})
	store.SetJobNextRun(dependent.ID, &past)

	s := NewScheduler(store, newTestExecutor(store, registry), time.Minute, 1)

	// First tick: only the dependent is due; its dependency has never
	// succeeded, so it is skipped and keeps its slot.
	s.Tick(context.Background(), now)

	latest, err := store.LatestExecutionRecord(dependent.ID)
	if err != nil {
		t.Fatalf("no record for dependent job: %v", err)
	}
	if latest.Status != model.ExecutionStatusFailed {
		t.Errorf("skipped dependent status = %q, want failed", latest.Status)
	}
	afterSkip, _ := store.GetJob(dependent.ID)
	if afterSkip.NextRunAt == nil || afterSkip.NextRunAt.After(now) {
		t.Fatalf("NextRunAt = %v, dependent must stay due after a skip", afterSkip.NextRunAt)
	}

	// Second tick: the dependency is due and runs first (single worker,
	// id order), then the dependent passes its gate.
	store.SetJobNextRun(dep.ID, &past)
	s.Tick(context.Background(), now)

	latest, err = store.LatestExecutionRecord(dependent.ID)
	if err != nil {
		t.Fatalf("no record for dependent job: %v", err)
	}
	if latest.Status != model.ExecutionStatusSuccess {
		t.Errorf("dependent job status = %q, want success after dependency succeeded", latest.Status)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	store := database.NewMemoryStore()
	s := NewScheduler(store, newTestExecutor(store, action.NewRegistry()), 10*time.Millisecond, 2)

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	// Stop is idempotent
	s.Stop()
}
