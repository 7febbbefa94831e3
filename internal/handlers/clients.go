package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/balance"
)

// ClientHandler routes incoming client conversations to workers.
type ClientHandler struct {
	assignments *assignment.Service
	balancer    *balance.Service
	logger      *slog.Logger
}

// AssignClientRequest asks for a worker to handle a client on a persona.
type AssignClientRequest struct {
	ClientID  string `json:"client_id"`
	PersonaID string `json:"persona_id"`
}

func NewClientHandler(assignments *assignment.Service, balancer *balance.Service, log *slog.Logger) *ClientHandler {
	return &ClientHandler{
		assignments: assignments,
		balancer:    balancer,
		logger:      log.With(slog.String("handler", "clients")),
	}
}

func (h *ClientHandler) Register(e *echo.Echo) {
	group := e.Group("/clients")
	group.POST("/assign", h.Assign)
	group.POST("/optimal", h.Optimal)
	group.POST("/pending", h.Pending)
}

// Pending godoc
// @Summary Flag an unanswered client message
// @Description Called by the message system; personas with waiting clients are handed out first
// @Tags clients
// @Param payload body AssignClientRequest true "Pending payload"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Router /clients/pending [post]
func (h *ClientHandler) Pending(c echo.Context) error {
	var req AssignClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClientID == "" || req.PersonaID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id and persona_id are required")
	}
	h.assignments.MarkClientMessagePending(req.PersonaID, req.ClientID)
	return c.NoContent(http.StatusNoContent)
}

// Assign godoc
// @Summary Assign a client conversation to a worker
// @Description Picks the least busy capable worker, granting the persona if needed
// @Tags clients
// @Param payload body AssignClientRequest true "Assign payload"
// @Success 200 {object} assignment.Worker
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /clients/assign [post]
func (h *ClientHandler) Assign(c echo.Context) error {
	var req AssignClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClientID == "" || req.PersonaID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id and persona_id are required")
	}
	worker, err := h.assignments.AssignClientToWorker(c.Request().Context(), req.ClientID, req.PersonaID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if worker == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no worker available")
	}
	return c.JSON(http.StatusOK, worker)
}

// Optimal godoc
// @Summary Suggest the best worker for a client without assigning
// @Description Prefers the worker who recently served this client, else the least loaded
// @Tags clients
// @Param payload body AssignClientRequest true "Candidate payload"
// @Success 200 {object} assignment.Worker
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /clients/optimal [post]
func (h *ClientHandler) Optimal(c echo.Context) error {
	var req AssignClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClientID == "" || req.PersonaID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id and persona_id are required")
	}
	worker, err := h.balancer.GetOptimalAssignment(c.Request().Context(), req.ClientID, req.PersonaID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if worker == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no worker available")
	}
	return c.JSON(http.StatusOK, worker)
}
