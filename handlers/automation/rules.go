package automation

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	automation_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/automation"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/response"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/validation"
)

// RuleHandler handles automation rule endpoints and event dispatch
type RuleHandler struct {
	store     database.Storage
	engine    *automation_service.Engine
	validator *validation.Validator
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(store database.Storage, engine *automation_service.Engine, v *validation.Validator) *RuleHandler {
	return &RuleHandler{
		store:     store,
		engine:    engine,
		validator: v,
	}
}

type ruleActionRequest struct {
	Name   string         `json:"name" validate:"required"`
	Params map[string]any `json:"params"`
}

type createRuleRequest struct {
	Name          string              `json:"name" validate:"required,max=100"`
	TriggerType   string              `json:"trigger_type" validate:"required,oneof=content_created schedule_reached"`
	TriggerParams map[string]any      `json:"trigger_params"`
	Actions       []ruleActionRequest `json:"actions" validate:"required,min=1,dive"`
}

// CreateRule handles POST /api/v1/rules
func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	var req createRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", "")
	}

	actions := make([]model.RuleAction, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = model.RuleAction{Name: a.Name, Params: a.Params}
	}
	rawActions, err := json.Marshal(actions)
	if err != nil {
		return response.BadRequest(c, "Invalid actions", err.Error())
	}

	rule := &model.AutomationRule{
		Name:        req.Name,
		TriggerType: req.TriggerType,
		Actions:     rawActions,
		Enabled:     true,
		SuccessRate: 100,
	}
	if req.TriggerParams != nil {
		rawParams, err := json.Marshal(req.TriggerParams)
		if err != nil {
			return response.BadRequest(c, "Invalid trigger params", err.Error())
		}
		rule.TriggerParams = rawParams
	}

	if err := h.store.CreateRule(rule); err != nil {
		return response.InternalError(c, "Failed to create rule")
	}
	return response.Created(c, rule)
}

// ListRules handles GET /api/v1/rules
func (h *RuleHandler) ListRules(c *fiber.Ctx) error {
	list, err := h.store.ListRules()
	if err != nil {
		return response.InternalError(c, "Failed to list rules")
	}
	return response.Success(c, fiber.Map{
		"rules": list,
		"total": len(list),
	})
}

// GetRule handles GET /api/v1/rules/:id
func (h *RuleHandler) GetRule(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid rule ID", "")
	}

	rule, err := h.store.GetRule(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Rule not found")
		}
		return response.InternalError(c, "Failed to fetch rule")
	}
	return response.Success(c, rule)
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *RuleHandler) UpdateRule(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid rule ID", "")
	}

	rule, err := h.store.GetRule(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Rule not found")
		}
		return response.InternalError(c, "Failed to fetch rule")
	}

	var req createRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", "")
	}

	actions := make([]model.RuleAction, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = model.RuleAction{Name: a.Name, Params: a.Params}
	}
	rawActions, err := json.Marshal(actions)
	if err != nil {
		return response.BadRequest(c, "Invalid actions", err.Error())
	}

	rule.Name = req.Name
	rule.TriggerType = req.TriggerType
	rule.Actions = rawActions
	rule.TriggerParams = nil
	if req.TriggerParams != nil {
		rawParams, err := json.Marshal(req.TriggerParams)
		if err != nil {
			return response.BadRequest(c, "Invalid trigger params", err.Error())
		}
		rule.TriggerParams = rawParams
	}

	if err := h.store.UpdateRule(rule); err != nil {
		return response.InternalError(c, "Failed to update rule")
	}
	return response.Success(c, rule)
}

// ToggleRule handles POST /api/v1/rules/:id/toggle
func (h *RuleHandler) ToggleRule(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid rule ID", "")
	}

	rule, err := h.store.GetRule(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Rule not found")
		}
		return response.InternalError(c, "Failed to fetch rule")
	}

	rule.Enabled = !rule.Enabled
	if err := h.store.UpdateRule(rule); err != nil {
		return response.InternalError(c, "Failed to update rule")
	}
	return response.Success(c, fiber.Map{
		"id":      rule.ID,
		"enabled": rule.Enabled,
	})
}

// ListLogs handles GET /api/v1/rules/:id/logs
func (h *RuleHandler) ListLogs(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid rule ID", "")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 200 {
		limit = 200
	}

	logs, err := h.store.ListRuleLogs(id, limit)
	if err != nil {
		return response.InternalError(c, "Failed to fetch rule logs")
	}
	return response.Success(c, fiber.Map{
		"logs":  logs,
		"total": len(logs),
	})
}

type emitEventRequest struct {
	Type    string         `json:"type" validate:"required"`
	Payload map[string]any `json:"payload"`
}

// EmitEvent handles POST /api/v1/events. The event is dispatched
// synchronously; matching rules have run when the response returns.
func (h *RuleHandler) EmitEvent(c *fiber.Ctx) error {
	var req emitEventRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", "")
	}

	h.engine.Emit(c.Context(), req.Type, req.Payload)

	return response.SuccessWithMessage(c, "Event dispatched", fiber.Map{
		"type": req.Type,
	})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	return uint(id), err
}
