package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/service"
)

type StaffHandler struct {
	staff *service.StaffService
}

func NewStaffHandler(staff *service.StaffService) *StaffHandler {
	return &StaffHandler{staff: staff}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *StaffHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	res, err := h.staff.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, res)
}

func (h *StaffHandler) Me(c echo.Context) error {
	member, err := h.staff.Get(c.Request().Context(), staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, member)
}

func (h *StaffHandler) List(c echo.Context) error {
	members, err := h.staff.List(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, members)
}

func (h *StaffHandler) Create(c echo.Context) error {
	var req service.CreateStaffRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	member, err := h.staff.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, member)
}
