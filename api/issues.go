package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casepilot/casepilot/service"
)

// ListIssues returns all tracked issues.
// GET /api/v1/issues
func (h *Handler) ListIssues(c echo.Context) error {
	ctx := c.Request().Context()

	issues, err := h.svc.ListIssues(ctx)
	if err != nil {
		log.Printf("ERROR: failed to list issues: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list issues"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"issues": issues,
		"count":  len(issues),
	})
}

// GetIssue returns one issue.
// GET /api/v1/issues/:issue_id
func (h *Handler) GetIssue(c echo.Context) error {
	ctx := c.Request().Context()
	issueID := c.Param("issue_id")

	issue, err := h.svc.GetIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, service.ErrIssueNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "issue not found"})
		}
		log.Printf("ERROR: failed to get issue: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get issue"})
	}

	return c.JSON(http.StatusOK, issue)
}
