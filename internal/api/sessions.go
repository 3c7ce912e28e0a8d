package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ListSessions handles GET /api/v1/sessions?limit=n
func (c *Controller) ListSessions(ctx echo.Context) error {
	limit := 0
	if raw := ctx.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.HandleError(ctx, err, "limit must be a non-negative integer", http.StatusBadRequest)
		}
		limit = n
	}

	sessions, err := c.journal.ListSessions(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list sessions", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, sessions)
}

// GetSession handles GET /api/v1/sessions/:id
func (c *Controller) GetSession(ctx echo.Context) error {
	s, err := c.journal.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get session", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, s)
}
