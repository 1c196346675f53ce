package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"table-ordering-service/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) LoadCart(c echo.Context) error {
	cart, err := h.orders.LoadCart(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}

func (h *OrderHandler) AddToCart(c echo.Context) error {
	var req service.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	order, err := h.orders.AddToCart(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, order)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *OrderHandler) UpdateCartItem(c echo.Context) error {
	var req quantityRequest
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return badRequest(c, "quantity is required")
	}
	order, err := h.orders.UpdateCartItem(c.Request().Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	if order == nil {
		return okMessage(c, http.StatusOK, nil, "item removed from cart")
	}
	return ok(c, http.StatusOK, order)
}

func (h *OrderHandler) RemoveCartItem(c echo.Context) error {
	if err := h.orders.RemoveCartItem(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return okMessage(c, http.StatusOK, nil, "item removed from cart")
}

// PlaceOrders honours an optional Idempotency-Key header.
func (h *OrderHandler) PlaceOrders(c echo.Context) error {
	key := c.Request().Header.Get("Idempotency-Key")
	res, err := h.orders.PlaceOrders(c.Request().Context(), c.Param("id"), key)
	if err != nil {
		return fail(c, err)
	}
	return okMessage(c, http.StatusCreated, res, "orders sent to the kitchen")
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	orders, err := h.orders.ListOrders(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, orders)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	order, err := h.orders.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status, staffID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, order)
}

type splitRequest struct {
	Participants []string `json:"participants"`
}

func (h *OrderHandler) SplitItem(c echo.Context) error {
	var req splitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	bill, err := h.orders.SplitItem(c.Request().Context(), c.Param("id"), req.Participants)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, bill)
}

func (h *OrderHandler) ResolveSplit(c echo.Context) error {
	bill, err := h.orders.ResolveSplit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, bill)
}
