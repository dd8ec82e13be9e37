package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/automation"
	pipeline_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/pipeline"
)

// Built-in action names. Stage actions run inside pipelines; run_pipeline is
// the bridge letting cron jobs and automation rules kick off a pipeline.
const (
	ActionRunPipeline     = "run_pipeline"
	ActionTrendAnalysis   = "trend_analysis"
	ActionGenerateContent = "generate_content"
	ActionQualityCheck    = "quality_check"
	ActionSEOOptimize     = "seo_optimize"
	ActionPublish         = "publish"
	ActionLogEvent        = "log_event"
)

// Payload keys produced by stage actions
const (
	payloadKeyTopic        = "topic"
	payloadKeyTitle        = "title"
	payloadKeySEOTitle     = "seo_title"
	payloadKeyQualityScore = "quality_score"
	payloadKeyWordCount    = "word_count"
)

// Per-category topic seeds for the trend analysis stage. A real deployment
// replaces this with an external trend source; the ranking contract stays
// the same.
var trendTopics = map[string][]string{
	"garten": {"Hochbeet im Herbst", "Tomaten überwintern", "Kompost richtig ansetzen"},
	"kueche": {"Fermentieren für Einsteiger", "Saisonale Suppen", "Brot ohne Kneten"},
}

// RegisterActions binds the built-in actions. The engine may be nil during
// tests; the publish action then skips event emission.
func RegisterActions(registry *action.Registry, store database.Storage, orchestrator *pipeline_service.Orchestrator, engine *automation.Engine) {
	registry.Register(ActionRunPipeline, runPipelineAction(orchestrator))
	registry.Register(ActionTrendAnalysis, trendAnalysisAction())
	registry.Register(ActionGenerateContent, generateContentAction())
	registry.Register(ActionQualityCheck, qualityCheckAction())
	registry.Register(ActionSEOOptimize, seoOptimizeAction())
	registry.Register(ActionPublish, publishAction(store, engine))
	registry.Register(ActionLogEvent, logEventAction())
}

// logEventAction is the notification stub used by automation rules. It logs
// the merged payload; a real notifier (mail, webhook) registers under the
// same name.
func logEventAction() action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		channel, _ := req.Payload["channel"].(string)
		if channel == "" {
			channel = "default"
		}
		log.Printf("[RULES] Event on channel %q: %v", channel, req.Payload)
		return &action.Result{}, nil
	}
}

// runPipelineAction starts the pipeline named in the payload. A start on an
// already active pipeline is a skip, not a failure, so scheduled triggers do
// not burn retries on overlap.
func runPipelineAction(orchestrator *pipeline_service.Orchestrator) action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		pipelineID := payloadUint(req.Payload, pipeline_service.PayloadKeyPipelineID)
		if pipelineID == 0 {
			return nil, fmt.Errorf("run_pipeline requires a pipeline_id")
		}

		err := orchestrator.Start(pipelineID)
		if errors.Is(err, pipeline_service.ErrPipelineActive) {
			log.Printf("[PIPELINE] run_pipeline skipped, pipeline %d already active", pipelineID)
			return &action.Result{Metadata: map[string]any{"skipped": true}}, nil
		}
		if err != nil {
			return nil, err
		}
		return &action.Result{Metadata: map[string]any{"started": true}}, nil
	}
}

// trendAnalysisAction picks the current topic for the target category
func trendAnalysisAction() action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		category, _ := req.Payload[pipeline_service.PayloadKeyTargetCategory].(string)
		topics, ok := trendTopics[category]
		if !ok || len(topics) == 0 {
			topics = trendTopics["garten"]
		}

		// Rotate through the seed list by day so consecutive runs vary
		topic := topics[time.Now().YearDay()%len(topics)]

		reportProgress(req, 100)
		return &action.Result{Metadata: map[string]any{payloadKeyTopic: topic}}, nil
	}
}

// generateContentAction produces the article body for the chosen topic.
// This is the placeholder generator; swapping in an external one only has to
// keep the content-in-result contract.
func generateContentAction() action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		topic, _ := req.Payload[payloadKeyTopic].(string)
		if topic == "" {
			topic = "Gartentipps für die Saison"
		}
		category, _ := req.Payload[pipeline_service.PayloadKeyTargetCategory].(string)

		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", topic)
		fmt.Fprintf(&b, "Ein praxisnaher Leitfaden rund um das Thema %s.\n\n", topic)

		sections := []string{"Vorbereitung", "Schritt für Schritt", "Pflege und Nachsorge"}
		for i, section := range sections {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fmt.Fprintf(&b, "## %s\n\n", section)
			for j := 0; j < 6; j++ {
				fmt.Fprintf(&b, "So gelingt %s auch bei wenig Zeit im Alltag zuverlässig und gut. ", topic)
			}
			b.WriteString("\n\n")
			b.WriteString("- Auf den richtigen Zeitpunkt achten\n")
			b.WriteString("- Werkzeug und Material bereitlegen\n\n")

			reportProgress(req, (i+1)*100/(len(sections)+1))
		}

		b.WriteString("## Häufige Fragen (FAQ)\n\n")
		fmt.Fprintf(&b, "Die wichtigsten Fragen unserer Leserinnen und Leser zu %s, kurz beantwortet.\n", topic)

		reportProgress(req, 100)
		return &action.Result{
			Content: b.String(),
			Metadata: map[string]any{
				payloadKeyTitle: topic,
				pipeline_service.PayloadKeyTargetCategory: category,
			},
		}, nil
	}
}

// qualityCheckAction scores the generated content and records the score in
// the payload for the publish stage.
func qualityCheckAction() action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		content, _ := req.Payload[pipeline_service.PayloadKeyContent].(string)
		if content == "" {
			return nil, fmt.Errorf("quality_check requires generated content")
		}

		score := pipeline_service.EvaluateQuality(content)
		log.Printf("[PIPELINE] Quality check scored %.1f (%d words)", score.Score, score.WordCount)

		reportProgress(req, 100)
		return &action.Result{Metadata: map[string]any{
			payloadKeyQualityScore: score.Score,
			payloadKeyWordCount:    score.WordCount,
		}}, nil
	}
}

// seoOptimizeAction derives the SEO title. Kept deliberately small; the
// stage exists so the pipeline shape matches the editorial process.
func seoOptimizeAction() action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		title, _ := req.Payload[payloadKeyTitle].(string)
		if title == "" {
			return nil, fmt.Errorf("seo_optimize requires a title")
		}

		reportProgress(req, 100)
		return &action.Result{Metadata: map[string]any{
			payloadKeySEOTitle: fmt.Sprintf("%s | Mien Tuun", title),
		}}, nil
	}
}

// publishAction persists the draft and applies the auto-publish decision.
// Content below the threshold is stored as a draft for manual review, never
// dropped.
func publishAction(store database.Storage, engine *automation.Engine) action.Func {
	return func(ctx context.Context, req action.Request) (*action.Result, error) {
		content, _ := req.Payload[pipeline_service.PayloadKeyContent].(string)
		if content == "" {
			return nil, fmt.Errorf("publish requires generated content")
		}

		title, _ := req.Payload[payloadKeyTitle].(string)
		if seoTitle, ok := req.Payload[payloadKeySEOTitle].(string); ok && seoTitle != "" {
			title = seoTitle
		}
		category, _ := req.Payload[pipeline_service.PayloadKeyTargetCategory].(string)

		cfg := model.PipelineConfig{
			QualityThreshold: int(payloadUint(req.Payload, pipeline_service.PayloadKeyQualityThreshold)),
			AutoPublish:      payloadBool(req.Payload, pipeline_service.PayloadKeyAutoPublish),
		}
		score := pipeline_service.EvaluateQuality(content)

		draft := &model.BlogDraft{
			Title:        title,
			Content:      content,
			Category:     category,
			Status:       model.DraftStatusDraft,
			WordCount:    score.WordCount,
			QualityScore: score.Score,
			PipelineID:   payloadUint(req.Payload, pipeline_service.PayloadKeyPipelineID),
		}
		if pipeline_service.ShouldPublish(score, cfg) {
			now := time.Now()
			draft.Status = model.DraftStatusPublished
			draft.PublishedAt = &now
		}

		if err := store.CreateDraft(draft); err != nil {
			return nil, fmt.Errorf("failed to persist draft: %w", err)
		}
		log.Printf("[PIPELINE] Draft %d stored as %s (score %.1f)", draft.ID, draft.Status, score.Score)

		if engine != nil {
			engine.Emit(ctx, model.TriggerContentCreated, map[string]any{
				"draft_id": draft.ID,
				"category": draft.Category,
				"status":   string(draft.Status),
			})
		}

		reportProgress(req, 100)
		return &action.Result{Metadata: map[string]any{
			"draft_id":  draft.ID,
			"published": draft.Status == model.DraftStatusPublished,
		}}, nil
	}
}

func reportProgress(req action.Request, progress int) {
	if req.Progress != nil {
		_ = req.Progress(progress)
	}
}

// payloadUint reads a numeric payload value regardless of whether it came
// from in-process wiring (uint/int) or a JSON roundtrip (float64).
func payloadUint(payload map[string]any, key string) uint {
	switch v := payload[key].(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case int64:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}

func payloadBool(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}
