package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) RequestHelp(c echo.Context) error {
	var req service.HelpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	res, err := h.notifications.RequestHelp(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return okMessage(c, http.StatusCreated, res, "a waiter is on the way")
}

// List takes an optional comma separated ?status= filter.
func (h *NotificationHandler) List(c echo.Context) error {
	var statuses []string
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}
	list, err := h.notifications.StaffNotifications(c.Request().Context(), staffID(c), statuses)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, list)
}

func (h *NotificationHandler) Acknowledge(c echo.Context) error {
	n, err := h.notifications.Acknowledge(c.Request().Context(), c.Param("id"), staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, n)
}

func (h *NotificationHandler) Resolve(c echo.Context) error {
	n, err := h.notifications.Resolve(c.Request().Context(), c.Param("id"), staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, n)
}

func (h *NotificationHandler) PaymentNotifications(c echo.Context) error {
	list, err := h.notifications.PaymentNotifications(c.Request().Context(), staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, list)
}
