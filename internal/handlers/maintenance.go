package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/maintenance"
)

// MaintenanceHandler lets an external scheduler or operator trigger the
// periodic jobs between ticks.
type MaintenanceHandler struct {
	service *maintenance.Service
	logger  *slog.Logger
}

func NewMaintenanceHandler(service *maintenance.Service, log *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		service: service,
		logger:  log.With(slog.String("handler", "maintenance")),
	}
}

func (h *MaintenanceHandler) Register(e *echo.Echo) {
	group := e.Group("/maintenance")
	group.POST("/sweep", h.Sweep)
	group.POST("/process-queue", h.ProcessQueue)
	group.POST("/rebalance", h.Rebalance)
	group.POST("/validate", h.Validate)
}

// Sweep godoc
// @Summary Run the inactivity and lock sweep now
// @Tags maintenance
// @Success 200 {object} maintenance.SweepReport
// @Failure 500 {object} ErrorResponse
// @Router /maintenance/sweep [post]
func (h *MaintenanceHandler) Sweep(c echo.Context) error {
	report, err := h.service.RunSweep(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// ProcessQueue godoc
// @Summary Serve waiting workers from free capacity now
// @Tags maintenance
// @Success 200 {object} map[string]int
// @Failure 500 {object} ErrorResponse
// @Router /maintenance/process-queue [post]
func (h *MaintenanceHandler) ProcessQueue(c echo.Context) error {
	served, err := h.service.RunQueue(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"served": served})
}

// Rebalance godoc
// @Summary Run one rebalance pass now
// @Tags maintenance
// @Success 200 {object} map[string]bool
// @Failure 500 {object} ErrorResponse
// @Router /maintenance/rebalance [post]
func (h *MaintenanceHandler) Rebalance(c echo.Context) error {
	moved, err := h.service.RunRebalance(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"moved": moved})
}

// Validate godoc
// @Summary Repair integrity violations now
// @Tags maintenance
// @Success 200 {object} map[string]int
// @Failure 500 {object} ErrorResponse
// @Router /maintenance/validate [post]
func (h *MaintenanceHandler) Validate(c echo.Context) error {
	issues, err := h.service.RunIntegrity(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"issues": issues})
}
