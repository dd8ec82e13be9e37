package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/handlers"
	automation_handlers "github.com/Darkhey/mien-tuun-garden-bloom-sub001/handlers/automation"
	job_handlers "github.com/Darkhey/mien-tuun-garden-bloom-sub001/handlers/job"
	pipeline_handlers "github.com/Darkhey/mien-tuun-garden-bloom-sub001/handlers/pipeline"
	quality_handlers "github.com/Darkhey/mien-tuun-garden-bloom-sub001/handlers/quality"
	automation_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/automation"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/jobs"
	pipeline_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/pipeline"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/validation"
)

// Services bundles the automation core the routes are wired against
type Services struct {
	Executor     *jobs.Executor
	Orchestrator *pipeline_service.Orchestrator
	Engine       *automation_service.Engine
}

func SetupRoutes(app *fiber.App, store database.Storage, svc Services) {
	v := validation.NewValidator()

	healthHandler := handlers.NewHealthHandler(store)
	jobHandler := job_handlers.NewJobHandler(store, svc.Executor, v)
	pipelineHandler := pipeline_handlers.NewPipelineHandler(store, svc.Orchestrator, v)
	ruleHandler := automation_handlers.NewRuleHandler(store, svc.Engine, v)
	qualityHandler := quality_handlers.NewQualityHandler(v)

	// Health check endpoints (public)
	app.Get("/ping", healthHandler.Check)
	app.Get("/health", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Cron job definitions
	jobGroup := api.Group("/jobs")
	jobGroup.Post("/", jobHandler.CreateJob)
	jobGroup.Get("/", jobHandler.ListJobs)
	jobGroup.Get("/:id", jobHandler.GetJob)
	jobGroup.Put("/:id", jobHandler.UpdateJob)
	jobGroup.Post("/:id/toggle", jobHandler.ToggleJob)
	jobGroup.Post("/:id/run", jobHandler.RunJob)
	jobGroup.Get("/:id/executions", jobHandler.ListExecutions)

	// Content pipelines
	pipelineGroup := api.Group("/pipelines")
	pipelineGroup.Post("/", pipelineHandler.CreatePipeline)
	pipelineGroup.Get("/", pipelineHandler.ListPipelines)
	pipelineGroup.Get("/:id", pipelineHandler.GetPipeline)
	pipelineGroup.Post("/:id/start", pipelineHandler.StartPipeline)
	pipelineGroup.Post("/:id/stop", pipelineHandler.StopPipeline)
	pipelineGroup.Post("/:id/reset", pipelineHandler.ResetPipeline)
	pipelineGroup.Get("/:id/state", pipelineHandler.GetState)

	// Automation rules and event dispatch
	ruleGroup := api.Group("/rules")
	ruleGroup.Post("/", ruleHandler.CreateRule)
	ruleGroup.Get("/", ruleHandler.ListRules)
	ruleGroup.Get("/:id", ruleHandler.GetRule)
	ruleGroup.Put("/:id", ruleHandler.UpdateRule)
	ruleGroup.Post("/:id/toggle", ruleHandler.ToggleRule)
	ruleGroup.Get("/:id/logs", ruleHandler.ListLogs)

	api.Post("/events", ruleHandler.EmitEvent)

	// Quality gate dry run
	api.Post("/quality/evaluate", qualityHandler.Evaluate)
}
