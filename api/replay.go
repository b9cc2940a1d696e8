package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casepilot/casepilot/service"
)

// ReplayRequest configures a replay session.
type ReplayRequest struct {
	N    int  `json:"n"`
	Seed *int `json:"seed,omitempty"`
}

// Replay reruns an investigation against paraphrased variants and scores
// verdict stability.
// POST /api/v1/replay/:trace_id
func (h *Handler) Replay(c echo.Context) error {
	ctx := c.Request().Context()
	traceID := c.Param("trace_id")

	req := ReplayRequest{N: 3}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.svc.Replay(ctx, traceID, req.N, req.Seed)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTraceNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "trace not found"})
		case errors.Is(err, service.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		log.Printf("ERROR: replay failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "replay failed"})
	}

	return c.JSON(http.StatusOK, session)
}

// GetReplaySession returns a replay session and its runs.
// GET /api/v1/replay/:session_id
func (h *Handler) GetReplaySession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	session, runs, err := h.svc.GetReplaySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrTraceNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "replay session not found"})
		}
		log.Printf("ERROR: failed to get replay session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get replay session"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session": session,
		"runs":    runs,
	})
}
