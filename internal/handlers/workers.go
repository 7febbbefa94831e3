package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/assignment"
)

// WorkerHandler exposes persona grant and release for a worker.
type WorkerHandler struct {
	assignments *assignment.Service
	logger      *slog.Logger
}

// GrantRequest asks for a persona grant. PersonaID empty means pick at random.
type GrantRequest struct {
	PersonaID string `json:"persona_id"`
	Primary   bool   `json:"primary"`
}

func NewWorkerHandler(assignments *assignment.Service, log *slog.Logger) *WorkerHandler {
	return &WorkerHandler{
		assignments: assignments,
		logger:      log.With(slog.String("handler", "workers")),
	}
}

func (h *WorkerHandler) Register(e *echo.Echo) {
	group := e.Group("/workers")
	group.POST("/:id/grant", h.Grant)
	group.POST("/:id/release", h.Release)
}

// Grant godoc
// @Summary Grant a persona to a worker
// @Description Grants the requested persona if free; 409 when already held elsewhere
// @Tags workers
// @Param id path string true "Worker ID"
// @Param payload body GrantRequest true "Grant payload"
// @Success 200 {object} assignment.Assignment
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /workers/{id}/grant [post]
func (h *WorkerHandler) Grant(c echo.Context) error {
	workerID := c.Param("id")
	if workerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "worker id is required")
	}
	var req GrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	granted, err := h.assignments.Grant(c.Request().Context(), workerID, req.PersonaID, req.Primary)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if granted == nil {
		return echo.NewHTTPError(http.StatusConflict, "persona is already assigned")
	}
	return c.JSON(http.StatusOK, granted)
}

// Release godoc
// @Summary Release all of a worker's assignments
// @Description Deactivates the worker's assignments, bindings, timers, and locks
// @Tags workers
// @Param id path string true "Worker ID"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /workers/{id}/release [post]
func (h *WorkerHandler) Release(c echo.Context) error {
	workerID := c.Param("id")
	if workerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "worker id is required")
	}
	if err := h.assignments.Release(c.Request().Context(), workerID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
