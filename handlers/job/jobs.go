package job

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/cronexpr"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/jobs"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/response"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/validation"
)

// JobHandler handles cron job definition endpoints
type JobHandler struct {
	store     database.Storage
	executor  *jobs.Executor
	validator *validation.Validator
}

// NewJobHandler creates a new job handler
func NewJobHandler(store database.Storage, executor *jobs.Executor, v *validation.Validator) *JobHandler {
	return &JobHandler{
		store:     store,
		executor:  executor,
		validator: v,
	}
}

type createJobRequest struct {
	Name           string         `json:"name" validate:"required,max=100"`
	CronExpression string         `json:"cron_expression" validate:"required,cron"`
	ActionName     string         `json:"action_name" validate:"required,max=100"`
	Payload        map[string]any `json:"payload"`
	RetryCount     int            `json:"retry_count" validate:"gte=0,max=10"`
	TimeoutSeconds int            `json:"timeout_seconds" validate:"gte=0,max=3600"`
	Dependencies   []int64        `json:"dependencies"`
	Tags           []string       `json:"tags"`
}

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req createJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", formatErrors(err))
	}

	job := &model.CronJobDefinition{
		Name:           req.Name,
		CronExpression: req.CronExpression,
		ActionName:     req.ActionName,
		RetryCount:     req.RetryCount,
		TimeoutSeconds: req.TimeoutSeconds,
		Dependencies:   req.Dependencies,
		Tags:           req.Tags,
		Enabled:        true,
	}
	if job.TimeoutSeconds == 0 {
		job.TimeoutSeconds = 300
	}
	if req.Payload != nil {
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			return response.BadRequest(c, "Invalid payload", err.Error())
		}
		job.Payload = raw
	}

	// Seed the first occurrence so the next tick can pick the job up
	if next, err := cronexpr.NextOccurrence(job.CronExpression, time.Now()); err == nil {
		job.NextRunAt = &next
	}

	if err := h.store.CreateJob(job); err != nil {
		return response.InternalError(c, "Failed to create job")
	}
	return response.Created(c, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	list, err := h.store.ListJobs()
	if err != nil {
		return response.InternalError(c, "Failed to list jobs")
	}
	return response.Success(c, fiber.Map{
		"jobs":  list,
		"total": len(list),
	})
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID", "")
	}

	job, err := h.store.GetJob(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.InternalError(c, "Failed to fetch job")
	}
	return response.Success(c, job)
}

// UpdateJob handles PUT /api/v1/jobs/:id
func (h *JobHandler) UpdateJob(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID", "")
	}

	job, err := h.store.GetJob(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.InternalError(c, "Failed to fetch job")
	}

	var req createJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Validation failed", formatErrors(err))
	}

	rescheduled := req.CronExpression != job.CronExpression

	job.Name = req.Name
	job.CronExpression = req.CronExpression
	job.ActionName = req.ActionName
	job.RetryCount = req.RetryCount
	job.TimeoutSeconds = req.TimeoutSeconds
	job.Dependencies = req.Dependencies
	job.Tags = req.Tags
	if req.Payload != nil {
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			return response.BadRequest(c, "Invalid payload", err.Error())
		}
		job.Payload = raw
	}
	if rescheduled {
		if next, err := cronexpr.NextOccurrence(job.CronExpression, time.Now()); err == nil {
			job.NextRunAt = &next
		}
	}

	if err := h.store.UpdateJob(job); err != nil {
		return response.InternalError(c, "Failed to update job")
	}
	return response.Success(c, job)
}

// ToggleJob handles POST /api/v1/jobs/:id/toggle. Jobs referenced by
// execution history are disabled through this, never deleted.
func (h *JobHandler) ToggleJob(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID", "")
	}

	job, err := h.store.GetJob(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.InternalError(c, "Failed to fetch job")
	}

	job.Enabled = !job.Enabled
	if job.Enabled && job.NextRunAt == nil {
		if next, err := cronexpr.NextOccurrence(job.CronExpression, time.Now()); err == nil {
			job.NextRunAt = &next
		}
	}

	if err := h.store.UpdateJob(job); err != nil {
		return response.InternalError(c, "Failed to update job")
	}
	return response.Success(c, fiber.Map{
		"id":      job.ID,
		"enabled": job.Enabled,
	})
}

// RunJob handles POST /api/v1/jobs/:id/run. The job runs immediately with
// its full timeout and retry policy; the terminal record is returned.
func (h *JobHandler) RunJob(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID", "")
	}

	job, err := h.store.GetJob(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.InternalError(c, "Failed to fetch job")
	}

	rec, err := h.executor.Run(c.Context(), job)
	switch {
	case errors.Is(err, jobs.ErrJobAlreadyRunning):
		return response.Conflict(c, "Job is already running")
	case errors.Is(err, jobs.ErrJobDisabled):
		return response.BadRequest(c, "Job is disabled", "")
	case err != nil:
		return response.InternalError(c, "Failed to run job")
	}
	return response.Success(c, rec)
}

// ListExecutions handles GET /api/v1/jobs/:id/executions
func (h *JobHandler) ListExecutions(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID", "")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 200 {
		limit = 200
	}

	records, err := h.store.ListExecutionRecords(id, limit)
	if err != nil {
		return response.InternalError(c, "Failed to fetch execution records")
	}
	return response.Success(c, fiber.Map{
		"executions": records,
		"total":      len(records),
	})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	return uint(id), err
}

func formatErrors(err error) string {
	formatted := validation.FormatValidationErrors(err)
	raw, jsonErr := json.Marshal(formatted)
	if jsonErr != nil {
		return err.Error()
	}
	return string(raw)
}
