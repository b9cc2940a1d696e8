// Package api provides HTTP handlers for the investigation engine.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casepilot/casepilot/config"
	"github.com/casepilot/casepilot/service"
)

// Handler handles HTTP requests.
type Handler struct {
	svc    *service.Service
	config *config.Config
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, config *config.Config) *Handler {
	return &Handler{
		svc:    svc,
		config: config,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/issues", h.ListIssues)
	e.GET("/api/v1/issues/:issue_id", h.GetIssue)

	e.POST("/api/v1/investigate/:issue_id", h.Investigate)
	e.GET("/api/v1/runs/:trace_id", h.GetRunTrace)
	e.GET("/api/v1/issues/:issue_id/runs", h.ListRunTraces)

	e.POST("/api/v1/replay/:trace_id", h.Replay)
	e.GET("/api/v1/replay/:session_id", h.GetReplaySession)

	e.GET("/health", h.Health)
}

// Health returns health status plus cache counters.
func (h *Handler) Health(c echo.Context) error {
	stats := h.svc.CacheStats()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "0.1.0",
		"cache": map[string]interface{}{
			"hits":    stats.Hits,
			"misses":  stats.Misses,
			"expired": stats.Expired,
			"entries": stats.Entries,
		},
	})
}
