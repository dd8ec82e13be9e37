package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/response"
)

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	store database.Storage
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store database.Storage) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check handles GET /ping
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.store.HealthCheck(); err != nil {
		return response.InternalError(c, "Database unreachable")
	}
	return response.Success(c, fiber.Map{
		"status": "ok",
	})
}
