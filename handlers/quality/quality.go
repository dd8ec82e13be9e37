package quality

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	pipeline_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/pipeline"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/response"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/validation"
)

// QualityHandler serves dry-run quality evaluations so editors can check
// content against the gate without running a pipeline.
type QualityHandler struct {
	validator *validation.Validator
}

// NewQualityHandler creates a new quality handler
func NewQualityHandler(v *validation.Validator) *QualityHandler {
	return &QualityHandler{validator: v}
}

type evaluateRequest struct {
	Content          string `json:"content" validate:"required"`
	QualityThreshold int    `json:"quality_threshold" validate:"gte=0,max=100"`
	AutoPublish      bool   `json:"auto_publish"`
}

// Evaluate handles POST /api/v1/quality/evaluate
func (h *QualityHandler) Evaluate(c *fiber.Ctx) error {
	var req evaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", "")
	}
	if req.QualityThreshold == 0 {
		req.QualityThreshold = 70
	}

	score := pipeline_service.EvaluateQuality(req.Content)
	publish := pipeline_service.ShouldPublish(score, model.PipelineConfig{
		QualityThreshold: req.QualityThreshold,
		AutoPublish:      req.AutoPublish,
	})

	return response.Success(c, fiber.Map{
		"score":         score,
		"would_publish": publish,
	})
}
