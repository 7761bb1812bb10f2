package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/runner"
)

// RunService starts and inspects runs.
type RunService interface {
	Start(ctx context.Context, req runner.RunRequest) (runner.RunStatus, error)
	Get(ctx context.Context, runID string) (runner.RunStatus, bool, error)
}

// RunHandler handles HTTP API requests for runs.
type RunHandler struct {
	logger  *zap.Logger
	service RunService
}

func NewRunHandler(logger *zap.Logger, service RunService) *RunHandler {
	return &RunHandler{logger: logger, service: service}
}

// CreateRun starts a run in the background and answers 202 with its status.
func (h *RunHandler) CreateRun(c *fiber.Ctx) error {
	var req CreateRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	st, err := h.service.Start(c.UserContext(), runner.RunRequest{Input: req.Input, Terms: req.Terms})
	switch {
	case errors.Is(err, runner.ErrRunActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, runner.ErrInvalidRun):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.logger.Error("api.create_run.failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Location("/api/v1/runs/" + st.RunID)
	return c.Status(fiber.StatusAccepted).JSON(st)
}

// GetRun returns the status of one run.
func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	st, ok, err := h.service.Get(c.UserContext(), runID)
	if err != nil {
		h.logger.Error("api.get_run.failed", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	return c.JSON(st)
}
