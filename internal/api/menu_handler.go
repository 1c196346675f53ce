package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/service"
)

type MenuHandler struct {
	menu *service.MenuService
}

func NewMenuHandler(menu *service.MenuService) *MenuHandler {
	return &MenuHandler{menu: menu}
}

// List filters by ?category= and hides unavailable items unless ?all=true.
func (h *MenuHandler) List(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	items, err := h.menu.List(c.Request().Context(), c.QueryParam("category"), all)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, items)
}

func (h *MenuHandler) Get(c echo.Context) error {
	item, err := h.menu.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, item)
}

func (h *MenuHandler) Create(c echo.Context) error {
	var req service.CreateMenuItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	item, err := h.menu.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, item)
}
