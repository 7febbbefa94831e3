package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/lock"
)

// LockHandler gives operators a view of resource locks and a way to break a
// stuck one.
type LockHandler struct {
	locks  *lock.Service
	logger *slog.Logger
}

// ForceReleaseRequest names the lock to break and why.
type ForceReleaseRequest struct {
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}

func NewLockHandler(locks *lock.Service, log *slog.Logger) *LockHandler {
	return &LockHandler{
		locks:  locks,
		logger: log.With(slog.String("handler", "locks")),
	}
}

func (h *LockHandler) Register(e *echo.Echo) {
	group := e.Group("/locks")
	group.GET("/:resource", h.Status)
	group.POST("/force-release", h.ForceRelease)
}

// Status godoc
// @Summary Report whether a resource is locked
// @Tags locks
// @Param resource path string true "Resource ID"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /locks/{resource} [get]
func (h *LockHandler) Status(c echo.Context) error {
	resource := c.Param("resource")
	if resource == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resource is required")
	}
	locked, err := h.locks.IsLocked(c.Request().Context(), resource)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"locked": locked})
}

// ForceRelease godoc
// @Summary Break a lock regardless of holder
// @Description For operators clearing a lock orphaned by a crashed worker
// @Tags locks
// @Param payload body ForceReleaseRequest true "Force release payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /locks/force-release [post]
func (h *LockHandler) ForceRelease(c echo.Context) error {
	var req ForceReleaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ResourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resource_id is required")
	}
	if req.Reason == "" {
		req.Reason = "forced by operator"
	}
	if err := h.locks.ForceRelease(c.Request().Context(), req.ResourceID, req.Reason); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
