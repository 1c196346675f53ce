package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Start(c echo.Context) error {
	var req service.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	view, err := h.sessions.Start(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	if view.Action == service.ActionJoin {
		return okMessage(c, http.StatusOK, view, "table already has an active session")
	}
	return ok(c, http.StatusCreated, view)
}

type joinRequest struct {
	PIN string `json:"pin"`
}

func (h *SessionHandler) Join(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	view, err := h.sessions.Join(c.Request().Context(), c.Param("id"), req.PIN)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, view)
}

func (h *SessionHandler) Get(c echo.Context) error {
	view, err := h.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, view)
}

func (h *SessionHandler) Total(c echo.Context) error {
	total, err := h.sessions.Total(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, total)
}

type paymentRequest struct {
	Method string `json:"method"`
}

func (h *SessionHandler) RequestPayment(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	res, err := h.sessions.RequestPayment(c.Request().Context(), c.Param("id"), req.Method)
	if err != nil {
		return fail(c, err)
	}
	return okMessage(c, http.StatusOK, res, "staff has been notified")
}

func (h *SessionHandler) CompletePayment(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	res, err := h.sessions.CompletePayment(c.Request().Context(), c.Param("id"), req.Method, staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, res)
}

func (h *SessionHandler) AssignStaff(c echo.Context) error {
	sess, err := h.sessions.AssignStaff(c.Request().Context(), c.Param("id"), staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, sess)
}

type closeRequest struct {
	Status string `json:"status"`
}

// Close ends a session as completed unless the body asks for cancelled.
func (h *SessionHandler) Close(c echo.Context) error {
	var req closeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	status := entity.SessionStatus(req.Status)
	if req.Status == "" {
		status = entity.SessionCompleted
	}
	view, err := h.sessions.Close(c.Request().Context(), c.Param("id"), status, staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, view)
}
