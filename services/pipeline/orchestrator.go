// Package pipeline owns the content-production pipeline: an orchestrator
// advancing ordered stages one at a time and the quality gate deciding
// whether a generated article is auto-published.
package pipeline

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
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/cache"
)

var (
	// ErrPipelineActive is returned by Start when a run is already in
	// flight; the start is skipped, never queued.
	ErrPipelineActive = errors.New("pipeline is already active")

	// ErrPipelineNotFound is returned for unknown pipeline ids
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// snapshotTTL bounds how long a Redis state snapshot outlives its last update
const snapshotTTL = 24 * time.Hour

// Payload keys the orchestrator maintains across stages. Stage actions read
// them and extend the payload through their result metadata.
const (
	PayloadKeyContent          = "content"
	PayloadKeyBatchSize        = "batch_size"
	PayloadKeyQualityThreshold = "quality_threshold"
	PayloadKeyAutoPublish      = "auto_publish"
	PayloadKeyTargetCategory   = "target_category"
	PayloadKeyPipelineID       = "pipeline_id"
)

type run struct {
	def    *model.PipelineDefinition
	stages []model.StageDefinition
	cfg    model.PipelineConfig
	state  model.PipelineExecutionState

	cancel    context.CancelFunc
	paused    bool
	resumeAt  int
	startedAt time.Time
	elapsed   time.Duration // accumulated across pause/resume

	payload map[string]any
}

// Orchestrator advances pipelines one stage at a time. Execution state lives
// in an arena keyed by pipeline id and is only touched through the
// orchestrator's methods, which is what makes the single-stage-in-flight
// invariant enforceable. Independent pipelines run concurrently.
type Orchestrator struct {
	store   database.Storage
	invoker action.Invoker
	cache   *cache.RedisCache

	mu   sync.Mutex
	runs map[uint]*run
}

// NewOrchestrator creates an orchestrator. store and redisCache may be nil;
// without them state is held in memory only.
func NewOrchestrator(store database.Storage, invoker action.Invoker, redisCache *cache.RedisCache) *Orchestrator {
	return &Orchestrator{
		store:   store,
		invoker: invoker,
		cache:   redisCache,
		runs:    make(map[uint]*run),
	}
}

// Load registers a pipeline definition with the arena, replacing any idle
// prior registration. Configuration changes take effect on the next start.
func (o *Orchestrator) Load(def *model.PipelineDefinition) error {
	var stages []model.StageDefinition
	if err := json.Unmarshal(def.Stages, &stages); err != nil {
		return fmt.Errorf("pipeline %d has malformed stages: %w", def.ID, err)
	}
	if len(stages) == 0 {
		return fmt.Errorf("pipeline %d has no stages", def.ID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.runs[def.ID]; ok && existing.state.Status == model.PipelineStatusActive {
		return ErrPipelineActive
	}

	r := &run{
		def:    def,
		stages: stages,
		cfg: model.PipelineConfig{
			BatchSize:        def.BatchSize,
			QualityThreshold: def.QualityThreshold,
			AutoPublish:      def.AutoPublish,
			TargetCategory:   def.TargetCategory,
		},
	}
	r.state = model.PipelineExecutionState{
		ID:         fmt.Sprintf("%d_%d", def.ID, time.Now().Unix()),
		PipelineID: def.ID,
		Status:     model.PipelineStatusIdle,
		Stages:     idleStages(stages),
	}
	o.runs[def.ID] = r
	return nil
}

func idleStages(stages []model.StageDefinition) []model.StageState {
	states := make([]model.StageState, len(stages))
	for i, s := range stages {
		states[i] = model.StageState{ID: s.ID, Name: s.Name, Status: model.StageStatusIdle}
	}
	return states
}

// Start begins or resumes a pipeline run. A start on an active pipeline is
// skipped and returns ErrPipelineActive. A start on a paused pipeline
// restarts the stage that was running from progress 0; stages are not
// resumable mid-progress because partial stage side effects cannot be
// safely resumed.
func (o *Orchestrator) Start(pipelineID uint) error {
	o.mu.Lock()

	r, ok := o.runs[pipelineID]
	if !ok {
		o.mu.Unlock()
		if err := o.loadFromStore(pipelineID); err != nil {
			return err
		}
		o.mu.Lock()
		r = o.runs[pipelineID]
	}

	if r.state.Status == model.PipelineStatusActive {
		o.mu.Unlock()
		log.Printf("[PIPELINE] Start skipped, pipeline %d already active", pipelineID)
		return ErrPipelineActive
	}

	startIdx := 0
	if r.paused {
		// Resume: keep completed stages, restart the frozen one from 0
		startIdx = r.resumeAt
		r.state.Stages[startIdx].Progress = 0
	} else {
		// Fresh run: every stage back to idle/0 before the first starts,
		// and the configuration is re-read from the definition.
		r.state.Stages = idleStages(r.stages)
		r.cfg = model.PipelineConfig{
			BatchSize:        r.def.BatchSize,
			QualityThreshold: r.def.QualityThreshold,
			AutoPublish:      r.def.AutoPublish,
			TargetCategory:   r.def.TargetCategory,
		}
		r.payload = map[string]any{
			PayloadKeyPipelineID:       r.def.ID,
			PayloadKeyBatchSize:        r.cfg.BatchSize,
			PayloadKeyQualityThreshold: r.cfg.QualityThreshold,
			PayloadKeyAutoPublish:      r.cfg.AutoPublish,
			PayloadKeyTargetCategory:   r.cfg.TargetCategory,
		}
		r.elapsed = 0
		r.state.ID = fmt.Sprintf("%d_%d", pipelineID, time.Now().Unix())
	}

	now := time.Now()
	r.paused = false
	r.startedAt = now
	r.state.Status = model.PipelineStatusActive
	r.state.LastRunAt = &now

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	o.snapshotLocked(r)
	o.mu.Unlock()

	log.Printf("[PIPELINE] Pipeline %d started at stage %d", pipelineID, startIdx)
	go o.runLoop(ctx, r, startIdx)
	return nil
}

func (o *Orchestrator) loadFromStore(pipelineID uint) error {
	if o.store == nil {
		return fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
	}
	def, err := o.store.GetPipeline(pipelineID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
		}
		return err
	}
	return o.Load(def)
}

// Stop pauses an active pipeline. The running stage is frozen at its last
// observed progress; it is neither completed nor failed.
func (o *Orchestrator) Stop(pipelineID uint) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, ok := o.runs[pipelineID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
	}
	if r.state.Status != model.PipelineStatusActive {
		return nil
	}

	r.state.Status = model.PipelineStatusPaused
	r.paused = true
	r.elapsed += time.Since(r.startedAt)
	if r.cancel != nil {
		r.cancel()
	}
	o.snapshotLocked(r)

	log.Printf("[PIPELINE] Pipeline %d paused at stage %d", pipelineID, r.resumeAt)
	return nil
}

// Reset cancels any run and returns every stage to idle with zero progress
func (o *Orchestrator) Reset(pipelineID uint) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, ok := o.runs[pipelineID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
	}

	if r.cancel != nil {
		r.cancel()
	}
	r.paused = false
	r.resumeAt = 0
	r.elapsed = 0
	r.payload = nil
	r.state.Status = model.PipelineStatusIdle
	r.state.Stages = idleStages(r.stages)
	o.snapshotLocked(r)

	log.Printf("[PIPELINE] Pipeline %d reset", pipelineID)
	return nil
}

// State returns a copy of the current execution state
func (o *Orchestrator) State(pipelineID uint) (*model.PipelineExecutionState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, ok := o.runs[pipelineID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPipelineNotFound, pipelineID)
	}

	state := r.state
	state.Stages = make([]model.StageState, len(r.state.Stages))
	copy(state.Stages, r.state.Stages)
	return &state, nil
}

// runLoop drives stages strictly in definition order. It is the only
// goroutine mutating stage statuses while the run is active.
func (o *Orchestrator) runLoop(ctx context.Context, r *run, startIdx int) {
	for i := startIdx; i < len(r.stages); i++ {
		stage := r.stages[i]

		o.mu.Lock()
		if r.state.Status != model.PipelineStatusActive {
			o.mu.Unlock()
			return
		}
		r.resumeAt = i
		r.state.Stages[i].Status = model.StageStatusRunning
		r.state.Stages[i].Progress = 0
		payload := clonePayload(r.payload)
		o.snapshotLocked(r)
		o.mu.Unlock()

		result, err := o.invoker.Invoke(ctx, action.Request{
			Name:     stage.ActionName,
			Payload:  payload,
			Progress: o.progressFunc(ctx, r, i),
		})

		if ctx.Err() != nil {
			// Paused or reset while the stage was in flight; the stage was
			// frozen (or reset) by Stop/Reset, a late result is discarded.
			return
		}

		if err != nil {
			o.mu.Lock()
			r.state.Stages[i].Status = model.StageStatusFailed
			r.state.Status = model.PipelineStatusError
			o.updateMetricsLocked(r, i)
			o.snapshotLocked(r)
			o.mu.Unlock()
			log.Printf("[PIPELINE] Pipeline %d stage %q failed: %v", r.def.ID, stage.Name, err)
			return
		}

		o.mu.Lock()
		r.state.Stages[i].Progress = 100
		r.state.Stages[i].Status = model.StageStatusCompleted
		if result != nil {
			if result.Content != "" {
				r.payload[PayloadKeyContent] = result.Content
			}
			for k, v := range result.Metadata {
				r.payload[k] = v
			}
		}
		o.snapshotLocked(r)
		o.mu.Unlock()
	}

	o.mu.Lock()
	r.state.Status = model.PipelineStatusIdle
	r.paused = false
	r.resumeAt = 0
	o.updateMetricsLocked(r, len(r.stages))
	o.snapshotLocked(r)
	o.mu.Unlock()

	log.Printf("[PIPELINE] Pipeline %d completed all %d stages", r.def.ID, len(r.stages))
}

// progressFunc folds stage-action progress reports into the execution
// state. Progress only ever moves forward and is capped below 100; the
// completion transition belongs to the run loop.
func (o *Orchestrator) progressFunc(ctx context.Context, r *run, stageIdx int) action.ProgressFunc {
	return func(progress int) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		o.mu.Lock()
		defer o.mu.Unlock()

		if progress > 99 {
			progress = 99
		}
		if progress > r.state.Stages[stageIdx].Progress {
			r.state.Stages[stageIdx].Progress = progress
			o.snapshotLocked(r)
		}
		return nil
	}
}

// updateMetricsLocked recomputes the rolling aggregates after a run ends.
// completedThrough is the number of stages that completed in this run.
func (o *Orchestrator) updateMetricsLocked(r *run, completedThrough int) {
	total := len(r.stages)
	if total == 0 {
		return
	}
	r.state.Efficiency = float64(completedThrough) / float64(total) * 100

	if completedThrough == total {
		elapsed := r.elapsed + time.Since(r.startedAt)
		if elapsed > 0 {
			r.state.Throughput = float64(r.cfg.BatchSize) / elapsed.Hours()
		}
	}
	r.state.UpdatedAt = time.Now()
}

// snapshotLocked mirrors the state to Redis for UI polling. Callers hold o.mu.
func (o *Orchestrator) snapshotLocked(r *run) {
	r.state.UpdatedAt = time.Now()
	if o.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf(model.RedisKeyPipelineState, r.def.ID)
	if err := o.cache.SetJSON(ctx, key, r.state, snapshotTTL); err != nil {
		log.Printf("[PIPELINE] Failed to snapshot pipeline %d state: %v", r.def.ID, err)
	}
}

func clonePayload(payload map[string]any) map[string]any {
	clone := make(map[string]any, len(payload))
	for k, v := range payload {
		clone[k] = v
	}
	return clone
}
