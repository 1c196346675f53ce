package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/service"
)

type TableHandler struct {
	tables *service.TableService
}

func NewTableHandler(tables *service.TableService) *TableHandler {
	return &TableHandler{tables: tables}
}

// GetTable accepts a table id or a table number.
func (h *TableHandler) GetTable(c echo.Context) error {
	tbl, err := h.tables.GetTable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, tbl)
}

type verifyPINRequest struct {
	TableID string `json:"tableId"`
	PIN     string `json:"pin"`
}

func (h *TableHandler) VerifyPIN(c echo.Context) error {
	var req verifyPINRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	res, err := h.tables.VerifyPIN(c.Request().Context(), req.TableID, req.PIN)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, res)
}

func (h *TableHandler) ListTables(c echo.Context) error {
	tables, err := h.tables.ListTables(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, tables)
}

func (h *TableHandler) StaffTables(c echo.Context) error {
	tables, err := h.tables.StaffTables(c.Request().Context(), staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, tables)
}

type createTableRequest struct {
	TableNumber int `json:"tableNumber"`
	Capacity    int `json:"capacity"`
}

type createdTable struct {
	Table any    `json:"table"`
	Link  string `json:"link"`
}

func (h *TableHandler) CreateTable(c echo.Context) error {
	var req createTableRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	tbl, err := h.tables.CreateTable(c.Request().Context(), req.TableNumber, req.Capacity)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, createdTable{Table: tbl, Link: h.tables.TableLink(tbl)})
}

func (h *TableHandler) AssignPIN(c echo.Context) error {
	pin, err := h.tables.AssignPIN(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, map[string]string{"pin": pin})
}

func (h *TableHandler) Transfer(c echo.Context) error {
	var req service.TransferRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.Actor = staffID(c)
	res, err := h.tables.Transfer(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	if len(res.Warnings) > 0 {
		return okMessage(c, http.StatusOK, res, "table transferred with warnings")
	}
	return okMessage(c, http.StatusOK, res, "table transferred")
}
