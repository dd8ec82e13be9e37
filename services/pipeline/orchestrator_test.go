package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
)

func testPipelineDef(t *testing.T, stages ...string) *model.PipelineDefinition {
	t.Helper()

	defs := make([]model.StageDefinition, len(stages))
	for i, name := range stages {
		defs[i] = model.StageDefinition{ID: name, Name: name, ActionName: name}
	}
	raw, err := json.Marshal(defs)
	if err != nil {
		t.Fatalf("marshal stages: %v", err)
	}

	return &model.PipelineDefinition{
		ID:               1,
		Name:             "content-production",
		Type:             "blog",
		Stages:           raw,
		BatchSize:        5,
		QualityThreshold: 70,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartRunsStagesInOrder(t *testing.T) {
	var mu sync.Mutex
	var calls []string

	registry := action.NewRegistry()
	for _, name := range []string{"trend_analysis", "generate_content", "publish"} {
		stage := name
		registry.Register(stage, func(ctx context.Context, req action.Request) (*action.Result, error) {
			mu.Lock()
			calls = append(calls, stage)
			mu.Unlock()
			return &action.Result{}, nil
		})
	}

	o := NewOrchestrator(nil, registry, nil)
	def := testPipelineDef(t, "trend_analysis", "generate_content", "publish")
	if err := o.Load(def); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "pipeline completion", func() bool {
		state, err := o.State(def.ID)
		return err == nil && state.Status == model.PipelineStatusIdle && state.Stages[2].Status == model.StageStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"trend_analysis", "generate_content", "publish"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}

	state, err := o.State(def.ID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Efficiency != 100 {
		t.Errorf("Efficiency = %v, want 100", state.Efficiency)
	}
	if state.Throughput <= 0 {
		t.Errorf("Throughput = %v, want > 0", state.Throughput)
	}
	if state.LastRunAt == nil {
		t.Errorf("LastRunAt not set")
	}
}

func TestStageFailureHaltsPipeline(t *testing.T) {
	registry := action.NewRegistry()
	ok := func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{}, nil
	}
	registry.Register("s1", ok)
	registry.Register("s2", func(ctx context.Context, req action.Request) (*action.Result, error) {
		return nil, errors.New("generator unavailable")
	})
	registry.Register("s3", ok)
	registry.Register("s4", ok)

	o := NewOrchestrator(nil, registry, nil)
	def := testPipelineDef(t, "s1", "s2", "s3", "s4")
	if err := o.Load(def); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "pipeline error", func() bool {
		state, err := o.State(def.ID)
		return err == nil && state.Status == model.PipelineStatusError
	})

	state, _ := o.State(def.ID)
	wantStatuses := []model.StageStatus{
		model.StageStatusCompleted,
		model.StageStatusFailed,
		model.StageStatusIdle,
		model.StageStatusIdle,
	}
	for i, want := range wantStatuses {
		if state.Stages[i].Status != want {
			t.Errorf("stage %d status = %q, want %q", i+1, state.Stages[i].Status, want)
		}
	}
	if state.Efficiency != 25 {
		t.Errorf("Efficiency = %v, want 25 (1 of 4 stages)", state.Efficiency)
	}
}

func TestStartWhileActiveIsSkipped(t *testing.T) {
	release := make(chan struct{})
	registry := action.NewRegistry()
	registry.Register("s1", func(ctx context.Context, req action.Request) (*action.Result, error) {
		select {
		case <-release:
			return &action.Result{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	o := NewOrchestrator(nil, registry, nil)
	def := testPipelineDef(t, "s1")
	if err := o.Load(def); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := o.Start(def.ID); !errors.Is(err, ErrPipelineActive) {
		t.Errorf("second Start = %v, want ErrPipelineActive", err)
	}

	close(release)
	waitFor(t, "pipeline completion", func() bool {
		state, _ := o.State(def.ID)
		return state.Status == model.PipelineStatusIdle
	})
}

func TestStopFreezesAndRestartResetsStageProgress(t *testing.T) {
	var mu sync.Mutex
	stage3Entries := 0
	entered := make(chan struct{}, 2)

	registry := action.NewRegistry()
	ok := func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{}, nil
	}
	registry.Register("s1", ok)
	registry.Register("s2", ok)
	registry.Register("s3", func(ctx context.Context, req action.Request) (*action.Result, error) {
		mu.Lock()
		stage3Entries++
		first := stage3Entries == 1
		mu.Unlock()

		if first {
			// Report some progress, then hang until the pause cancels us
			if err := req.Progress(42); err != nil {
				return nil, err
			}
			entered <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &action.Result{}, nil
	})
	registry.Register("s4", ok)

	o := NewOrchestrator(nil, registry, nil)
	def := testPipelineDef(t, "s1", "s2", "s3", "s4")
	if err := o.Load(def); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	<-entered
	if err := o.Stop(def.ID); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	state, _ := o.State(def.ID)
	if state.Status != model.PipelineStatusPaused {
		t.Fatalf("status after Stop = %q, want paused", state.Status)
	}
	if state.Stages[2].Status != model.StageStatusRunning {
		t.Errorf("frozen stage status = %q, want running (neither completed nor failed)", state.Stages[2].Status)
	}
	if state.Stages[2].Progress != 42 {
		t.Errorf("frozen stage progress = %d, want 42", state.Stages[2].Progress)
	}

	// Restart: stage 3 runs again from progress 0, not from 42
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	waitFor(t, "pipeline completion after resume", func() bool {
		state, _ := o.State(def.ID)
		return state.Status == model.PipelineStatusIdle && state.Stages[3].Status == model.StageStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	if stage3Entries != 2 {
		t.Errorf("stage 3 entries = %d, want 2 (restarted from scratch)", stage3Entries)
	}

	state, _ = o.State(def.ID)
	if state.Stages[0].Status != model.StageStatusCompleted || state.Stages[1].Status != model.StageStatusCompleted {
		t.Errorf("completed stages must stay completed across pause/resume")
	}
}

func TestResetReturnsAllStagesToIdle(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register("s1", func(ctx context.Context, req action.Request) (*action.Result, error) {
		return nil, errors.New("boom")
	})

	o := NewOrchestrator(nil, registry, nil)
	def := testPipelineDef(t, "s1", "s2")
	if err := o.Load(def); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "pipeline error", func() bool {
		state, _ := o.State(def.ID)
		return state.Status == model.PipelineStatusError
	})

	if err := o.Reset(def.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	state, _ := o.State(def.ID)
	if state.Status != model.PipelineStatusIdle {
		t.Errorf("status after Reset = %q, want idle", state.Status)
	}
	for i, stage := range state.Stages {
		if stage.Status != model.StageStatusIdle || stage.Progress != 0 {
			t.Errorf("stage %d after Reset = %+v, want idle/0", i, stage)
		}
	}
}

func TestContentFlowsBetweenStages(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register("generate", func(ctx context.Context, req action.Request) (*action.Result, error) {
		return &action.Result{Content: "# Hochbeet\n\nText.", Metadata: map[string]any{"topic": "hochbeet"}}, nil
	})

	var gotContent string
	var gotTopic any
	registry.Register("check", func(ctx context.Context, req action.Request) (*action.Result, error) {
		gotContent, _ = req.Payload[PayloadKeyContent].(string)
		gotTopic = req.Payload["topic"]
		return &action.Result{}, nil
	})

	o := NewOrchestrator(nil, registry, nil)
	def := testPipelineDef(t, "generate", "check")
	if err := o.Load(def); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := o.Start(def.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "pipeline completion", func() bool {
		state, _ := o.State(def.ID)
		return state.Status == model.PipelineStatusIdle && state.Stages[1].Status == model.StageStatusCompleted
	})

	if gotContent != "# Hochbeet\n\nText." {
		t.Errorf("downstream stage payload content = %q", gotContent)
	}
	if gotTopic != "hochbeet" {
		t.Errorf("downstream stage payload topic = %v", gotTopic)
	}
}
