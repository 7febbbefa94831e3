package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatfloor/dispatch/internal/balance"
)

// BalanceHandler exposes load visibility.
type BalanceHandler struct {
	balancer *balance.Service
	logger   *slog.Logger
}

// LoadsResponse lists per-worker load snapshots.
type LoadsResponse struct {
	Loads []balance.WorkerLoad `json:"loads"`
}

func NewBalanceHandler(balancer *balance.Service, log *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balancer: balancer,
		logger:   log.With(slog.String("handler", "balance")),
	}
}

func (h *BalanceHandler) Register(e *echo.Echo) {
	group := e.Group("/balance")
	group.GET("/loads", h.Loads)
	group.GET("/imbalance", h.Imbalance)
}

// Loads godoc
// @Summary List online worker loads with scores
// @Tags balance
// @Success 200 {object} LoadsResponse
// @Failure 500 {object} ErrorResponse
// @Router /balance/loads [get]
func (h *BalanceHandler) Loads(c echo.Context) error {
	loads, err := h.balancer.Loads(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, LoadsResponse{Loads: loads})
}

// Imbalance godoc
// @Summary Report the current load imbalance, if any
// @Tags balance
// @Success 200 {object} balance.Imbalance
// @Success 204 "No Content"
// @Failure 500 {object} ErrorResponse
// @Router /balance/imbalance [get]
func (h *BalanceHandler) Imbalance(c echo.Context) error {
	imbalance, err := h.balancer.DetectImbalance(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if imbalance == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, imbalance)
}
