package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(pool *pgxpool.Pool, log *slog.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, logger: log.With(slog.String("handler", "health"))}
}

// Register mounts GET /health and HEAD /health on the Echo instance.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

// Health pings the store and returns 200 when reachable.
func (h *HealthHandler) Health(c echo.Context) error {
	if h.pool != nil {
		if err := h.pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HealthHead returns 200 No Content for load balancer checks.
func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
