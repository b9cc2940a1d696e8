package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casepilot/casepilot/service"
)

// Investigate runs a full investigation for an issue and returns the trace.
// POST /api/v1/investigate/:issue_id
func (h *Handler) Investigate(c echo.Context) error {
	ctx := c.Request().Context()
	issueID := c.Param("issue_id")

	trace, err := h.svc.Investigate(ctx, issueID)
	if err != nil {
		if errors.Is(err, service.ErrIssueNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "issue not found"})
		}
		if errors.Is(err, service.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		log.Printf("ERROR: investigation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "investigation failed"})
	}

	return c.JSON(http.StatusOK, trace)
}

// GetRunTrace returns one investigation trace.
// GET /api/v1/runs/:trace_id
func (h *Handler) GetRunTrace(c echo.Context) error {
	ctx := c.Request().Context()
	traceID := c.Param("trace_id")

	trace, err := h.svc.GetRunTrace(ctx, traceID)
	if err != nil {
		if errors.Is(err, service.ErrTraceNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "trace not found"})
		}
		log.Printf("ERROR: failed to get trace: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get trace"})
	}

	return c.JSON(http.StatusOK, trace)
}

// ListRunTraces returns all traces for an issue, newest first.
// GET /api/v1/issues/:issue_id/runs
func (h *Handler) ListRunTraces(c echo.Context) error {
	ctx := c.Request().Context()
	issueID := c.Param("issue_id")

	traces, err := h.svc.ListRunTraces(ctx, issueID)
	if err != nil {
		log.Printf("ERROR: failed to list traces: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list traces"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"traces": traces,
		"count":  len(traces),
	})
}
