package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/service"
)

type OpsHandler struct {
	cleanup *service.CleanupService
	name    string
}

func NewOpsHandler(cleanup *service.CleanupService) *OpsHandler {
	return &OpsHandler{cleanup: cleanup, name: "table-ordering-service"}
}

func (h *OpsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.name,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CleanupCarts runs the cart cleanup; ?force=true ignores the run interval.
func (h *OpsHandler) CleanupCarts(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("force"))
	res, err := h.cleanup.CleanupCarts(c.Request().Context(), force)
	if err != nil {
		return fail(c, err)
	}
	if !res.Ran {
		return okMessage(c, http.StatusOK, res, "cleanup ran recently, skipped")
	}
	return ok(c, http.StatusOK, res)
}

func (h *OpsHandler) SweepStaleSessions(c echo.Context) error {
	res, err := h.cleanup.SweepStaleSessions(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	if !res.Enabled {
		return okMessage(c, http.StatusOK, res, "stale session sweep is disabled")
	}
	return ok(c, http.StatusOK, res)
}
