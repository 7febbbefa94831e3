package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/queue"
)

// QueueHandler exposes the wait queue.
type QueueHandler struct {
	waitQueue *queue.Service
	logger    *slog.Logger
}

// EnqueueRequest places a worker on the wait queue.
type EnqueueRequest struct {
	WorkerID string `json:"worker_id"`
	Priority int    `json:"priority"`
}

// QueueResponse lists current entries in position order.
type QueueResponse struct {
	Entries []queue.Entry `json:"entries"`
}

func NewQueueHandler(waitQueue *queue.Service, log *slog.Logger) *QueueHandler {
	return &QueueHandler{
		waitQueue: waitQueue,
		logger:    log.With(slog.String("handler", "queue")),
	}
}

func (h *QueueHandler) Register(e *echo.Echo) {
	group := e.Group("/queue")
	group.GET("", h.List)
	group.POST("", h.Enqueue)
	group.DELETE("/:worker_id", h.Leave)
}

// List godoc
// @Summary List wait queue entries
// @Tags queue
// @Success 200 {object} QueueResponse
// @Failure 500 {object} ErrorResponse
// @Router /queue [get]
func (h *QueueHandler) List(c echo.Context) error {
	entries, err := h.waitQueue.Entries(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, QueueResponse{Entries: entries})
}

// Enqueue godoc
// @Summary Add a worker to the wait queue
// @Description A worker already queued keeps its spot; priority only rises
// @Tags queue
// @Param payload body EnqueueRequest true "Enqueue payload"
// @Success 200 {object} queue.Entry
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /queue [post]
func (h *QueueHandler) Enqueue(c echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.WorkerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "worker_id is required")
	}
	entry, err := h.waitQueue.Enqueue(c.Request().Context(), req.WorkerID, req.Priority)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

// Leave godoc
// @Summary Remove a worker from the wait queue
// @Tags queue
// @Param worker_id path string true "Worker ID"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /queue/{worker_id} [delete]
func (h *QueueHandler) Leave(c echo.Context) error {
	workerID := c.Param("worker_id")
	if workerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "worker_id is required")
	}
	if err := h.waitQueue.Leave(c.Request().Context(), workerID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
