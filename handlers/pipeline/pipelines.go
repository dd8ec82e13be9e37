package pipeline

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	pipeline_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/pipeline"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/response"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/validation"
)

// PipelineHandler handles pipeline definition and control endpoints
type PipelineHandler struct {
	store        database.Storage
	orchestrator *pipeline_service.Orchestrator
	validator    *validation.Validator
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(store database.Storage, orchestrator *pipeline_service.Orchestrator, v *validation.Validator) *PipelineHandler {
	return &PipelineHandler{
		store:        store,
		orchestrator: orchestrator,
		validator:    v,
	}
}

type stageRequest struct {
	ID                 string `json:"id" validate:"required"`
	Name               string `json:"name" validate:"required"`
	ActionName         string `json:"action_name" validate:"required"`
	ExpectedDurationMs int64  `json:"expected_duration_ms" validate:"gte=0"`
}

type createPipelineRequest struct {
	Name             string         `json:"name" validate:"required,max=100"`
	Type             string         `json:"type" validate:"required,max=50"`
	Stages           []stageRequest `json:"stages" validate:"required,min=1,dive"`
	BatchSize        int            `json:"batch_size" validate:"gte=1,max=100"`
	QualityThreshold int            `json:"quality_threshold" validate:"gte=0,max=100"`
	AutoPublish      bool           `json:"auto_publish"`
	TargetCategory   string         `json:"target_category" validate:"max=100"`
}

// CreatePipeline handles POST /api/v1/pipelines
func (h *PipelineHandler) CreatePipeline(c *fiber.Ctx) error {
	var req createPipelineRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if req.BatchSize == 0 {
		req.BatchSize = 5
	}
	if req.QualityThreshold == 0 {
		req.QualityThreshold = 70
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", "")
	}

	stages := make([]model.StageDefinition, len(req.Stages))
	for i, s := range req.Stages {
		stages[i] = model.StageDefinition{
			ID:                 s.ID,
			Name:               s.Name,
			ActionName:         s.ActionName,
			ExpectedDurationMs: s.ExpectedDurationMs,
		}
	}
	rawStages, err := json.Marshal(stages)
	if err != nil {
		return response.BadRequest(c, "Invalid stages", err.Error())
	}

	def := &model.PipelineDefinition{
		Name:             req.Name,
		Type:             req.Type,
		Stages:           rawStages,
		BatchSize:        req.BatchSize,
		QualityThreshold: req.QualityThreshold,
		AutoPublish:      req.AutoPublish,
		TargetCategory:   req.TargetCategory,
	}
	if err := h.store.CreatePipeline(def); err != nil {
		return response.InternalError(c, "Failed to create pipeline")
	}
	return response.Created(c, def)
}

// ListPipelines handles GET /api/v1/pipelines
func (h *PipelineHandler) ListPipelines(c *fiber.Ctx) error {
	list, err := h.store.ListPipelines()
	if err != nil {
		return response.InternalError(c, "Failed to list pipelines")
	}
	return response.Success(c, fiber.Map{
		"pipelines": list,
		"total":     len(list),
	})
}

// GetPipeline handles GET /api/v1/pipelines/:id
func (h *PipelineHandler) GetPipeline(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pipeline ID", "")
	}

	def, err := h.store.GetPipeline(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Pipeline not found")
		}
		return response.InternalError(c, "Failed to fetch pipeline")
	}
	return response.Success(c, def)
}

// StartPipeline handles POST /api/v1/pipelines/:id/start. Starting an
// already active pipeline is skipped with 409, never queued.
func (h *PipelineHandler) StartPipeline(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pipeline ID", "")
	}

	switch err := h.orchestrator.Start(id); {
	case errors.Is(err, pipeline_service.ErrPipelineActive):
		return response.Conflict(c, "Pipeline is already active")
	case errors.Is(err, pipeline_service.ErrPipelineNotFound):
		return response.NotFound(c, "Pipeline not found")
	case err != nil:
		return response.InternalError(c, "Failed to start pipeline")
	}
	return response.SuccessWithMessage(c, "Pipeline started", fiber.Map{"id": id})
}

// StopPipeline handles POST /api/v1/pipelines/:id/stop
func (h *PipelineHandler) StopPipeline(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pipeline ID", "")
	}

	switch err := h.orchestrator.Stop(id); {
	case errors.Is(err, pipeline_service.ErrPipelineNotFound):
		return response.NotFound(c, "Pipeline not found")
	case err != nil:
		return response.InternalError(c, "Failed to stop pipeline")
	}
	return response.SuccessWithMessage(c, "Pipeline paused", fiber.Map{"id": id})
}

// ResetPipeline handles POST /api/v1/pipelines/:id/reset
func (h *PipelineHandler) ResetPipeline(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pipeline ID", "")
	}

	switch err := h.orchestrator.Reset(id); {
	case errors.Is(err, pipeline_service.ErrPipelineNotFound):
		return response.NotFound(c, "Pipeline not found")
	case err != nil:
		return response.InternalError(c, "Failed to reset pipeline")
	}
	return response.SuccessWithMessage(c, "Pipeline reset", fiber.Map{"id": id})
}

// GetState handles GET /api/v1/pipelines/:id/state
func (h *PipelineHandler) GetState(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pipeline ID", "")
	}

	state, err := h.orchestrator.State(id)
	if err != nil {
		if errors.Is(err, pipeline_service.ErrPipelineNotFound) {
			return response.NotFound(c, "Pipeline not found")
		}
		return response.InternalError(c, "Failed to fetch pipeline state")
	}
	return response.Success(c, state)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	return uint(id), err
}
