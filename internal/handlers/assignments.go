package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/assignment"
)

// AssignmentHandler exposes client binding and activity tracking on an
// assignment.
type AssignmentHandler struct {
	assignments *assignment.Service
	logger      *slog.Logger
}

// BindRequest names the client to bind or unbind.
type BindRequest struct {
	ClientID string `json:"client_id"`
}

// ActivityRequest records one activity signal. Kind is one of activity,
// message, typing; empty means activity.
type ActivityRequest struct {
	Kind string `json:"kind"`
}

// ExtendRequest asks for extra minutes on an assignment's inactivity timer.
type ExtendRequest struct {
	Minutes int `json:"minutes"`
}

func NewAssignmentHandler(assignments *assignment.Service, log *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: assignments,
		logger:      log.With(slog.String("handler", "assignments")),
	}
}

func (h *AssignmentHandler) Register(e *echo.Echo) {
	group := e.Group("/assignments")
	group.POST("/:id/bind", h.Bind)
	group.POST("/:id/unbind", h.Unbind)
	group.POST("/:id/activity", h.Activity)
	group.POST("/:id/extend", h.Extend)
}

// Bind godoc
// @Summary Bind a client conversation to an assignment
// @Description 409 when the client is already engaged with the persona elsewhere
// @Tags assignments
// @Param id path string true "Assignment ID"
// @Param payload body BindRequest true "Bind payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /assignments/{id}/bind [post]
func (h *AssignmentHandler) Bind(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment id is required")
	}
	var req BindRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}
	bound, err := h.assignments.BindClient(c.Request().Context(), id, req.ClientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !bound {
		return echo.NewHTTPError(http.StatusConflict, "client is already engaged elsewhere")
	}
	return c.NoContent(http.StatusNoContent)
}

// Unbind godoc
// @Summary Unbind a client conversation from an assignment
// @Tags assignments
// @Param id path string true "Assignment ID"
// @Param payload body BindRequest true "Unbind payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /assignments/{id}/unbind [post]
func (h *AssignmentHandler) Unbind(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment id is required")
	}
	var req BindRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}
	if err := h.assignments.UnbindClient(c.Request().Context(), id, req.ClientID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Extend godoc
// @Summary Extend an assignment's inactivity timer
// @Description Grants extra minutes before the inactivity reclaim fires
// @Tags assignments
// @Param id path string true "Assignment ID"
// @Param payload body ExtendRequest true "Extension payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /assignments/{id}/extend [post]
func (h *AssignmentHandler) Extend(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment id is required")
	}
	var req ExtendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Minutes <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "minutes must be positive")
	}
	if err := h.assignments.ExtendTimer(c.Request().Context(), id, req.Minutes); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Activity godoc
// @Summary Record worker activity on an assignment
// @Description Refreshes activity timestamps and resets the inactivity timer
// @Tags assignments
// @Param id path string true "Assignment ID"
// @Param payload body ActivityRequest true "Activity payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /assignments/{id}/activity [post]
func (h *AssignmentHandler) Activity(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment id is required")
	}
	var req ActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	var err error
	switch req.Kind {
	case "", "activity":
		err = h.assignments.MarkActivity(ctx, id)
	case "message":
		err = h.assignments.MarkMessageSent(ctx, id)
	case "typing":
		err = h.assignments.MarkTyping(ctx, id)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be activity, message, or typing")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
