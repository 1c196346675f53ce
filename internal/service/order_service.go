package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/metrics"
	"table-ordering-service/internal/repository"
)

const (
	maxQuantity        = 99
	minSplit, maxSplit = 2, 10
	idempotencyTTL     = 24 * time.Hour
	DefaultCartTTL     = 24 * time.Hour
)

var placedStatuses = []entity.OrderStatus{
	entity.OrderPlaced, entity.OrderWaiting, entity.OrderPreparing,
	entity.OrderReady, entity.OrderServed, entity.OrderCancelled,
}

type OrderService struct {
	deps    Deps
	effects sideEffects
	cartTTL time.Duration
}

func NewOrderService(deps Deps, cartTTL time.Duration) *OrderService {
	if cartTTL <= 0 {
		cartTTL = DefaultCartTTL
	}
	deps = deps.withCache()
	return &OrderService{deps: deps, effects: newSideEffects(deps), cartTTL: cartTTL}
}

// activeSession locks the session row for the rest of tx and checks it can still order.
func activeSession(ctx context.Context, tx repository.Store, sessionID string) (*entity.Session, error) {
	sess, err := tx.GetSessionForUpdate(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err, "session not found")
	}
	if !sess.IsActive() {
		return nil, apperr.Conflict("session is %s", sess.Status)
	}
	return sess, nil
}

// LoadCart drops this session's expired cart lines, then returns the rest with
// active split bills overlaid. Neither step mutates the remaining rows.
func (s *OrderService) LoadCart(ctx context.Context, sessionID string) (*entity.Cart, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	if _, err := s.deps.Store.GetSession(ctx, sessionID); err != nil {
		return nil, storeErr(err, "session not found")
	}

	cart := &entity.Cart{SessionID: sessionID, Items: []entity.CartItem{}, Subtotal: decimal.Zero}
	cutoff := s.deps.now().Add(-s.cartTTL)
	n, err := s.deps.Store.DeleteCartOrdersBefore(ctx, sessionID, cutoff)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("stale cart cleanup failed")
		cart.Warnings = append(cart.Warnings, "expired cart items could not be cleared")
	} else if n > 0 {
		metrics.CartOrdersDeleted.Add(float64(n))
		logger.Info().Str("session_id", sessionID).Int64("deleted", n).Msg("expired cart items removed")
	}

	lines, err := s.deps.Store.ListOrderLines(ctx, sessionID, entity.OrderCart)
	if err != nil {
		return nil, storeErr(err, "")
	}
	bills, err := s.deps.Store.ListSplitBills(ctx, sessionID, entity.SplitBillActive)
	if err != nil {
		return nil, storeErr(err, "")
	}
	active := make(map[string]*entity.SplitBill, len(bills))
	for i := range bills {
		active[bills[i].ID] = &bills[i]
	}

	for _, l := range lines {
		item := overlaySplit(l, active)
		if item.SplitWarning != "" {
			logger.Warn().Str("session_id", sessionID).Str("order_id", l.ID).Str("split_bill_id", *l.SplitBillID).Msg(item.SplitWarning)
			cart.Warnings = append(cart.Warnings, fmt.Sprintf("order %s: %s", l.ID, item.SplitWarning))
		}
		cart.Items = append(cart.Items, item)
		cart.ItemCount += item.Quantity
		cart.Subtotal = cart.Subtotal.Add(item.LineTotal)
	}
	return cart, nil
}

// overlaySplit builds the cart view of one line. Only a line that points at an
// active split bill is shown as split; a dangling pointer falls back to the plain
// price and says so.
func overlaySplit(l entity.OrderLine, active map[string]*entity.SplitBill) entity.CartItem {
	item := entity.CartItem{
		OrderID:    l.ID,
		MenuItemID: l.MenuItemID,
		Name:       l.MenuItemName,
		Price:      l.Price,
		Quantity:   l.Quantity,
		Notes:      l.Notes,
		LineTotal:  l.LineTotal(),
		AddedBy:    l.CreatedByName,
		CreatedAt:  l.CreatedAt,
	}
	if l.SplitBillID == nil {
		return item
	}
	bill, ok := active[*l.SplitBillID]
	if !ok {
		item.SplitWarning = "split bill is missing or no longer active, showing the full price"
		return item
	}
	split, original := bill.SplitPrice, bill.OriginalPrice
	item.IsSplit = true
	item.SplitBillID = &bill.ID
	item.SplitPrice = &split
	item.OriginalPrice = &original
	item.SplitCount = bill.SplitCount
	item.Participants = append([]string(nil), bill.Participants...)
	return item
}

type AddToCartRequest struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
	GuestName  string `json:"guestName"`
}

// AddToCart adds an item, merging with an unsplit line of the same item and notes.
func (s *OrderService) AddToCart(ctx context.Context, sessionID string, req AddToCartRequest) (*entity.Order, error) {
	if req.MenuItemID == "" {
		return nil, apperr.Validation("menuItemId is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > maxQuantity {
		return nil, apperr.Validation("quantity must be between 1 and %d", maxQuantity)
	}
	notes := strings.TrimSpace(req.Notes)
	name := strings.TrimSpace(req.GuestName)
	if name == "" {
		name = "Guest"
	}

	now := s.deps.now()
	var out *entity.Order
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := activeSession(ctx, tx, sessionID); err != nil {
			return err
		}
		item, err := tx.GetMenuItem(ctx, req.MenuItemID)
		if err != nil {
			return storeErr(err, "menu item not found")
		}
		if !item.IsAvailable {
			return apperr.Conflict("%s is not available right now", item.Name)
		}

		lines, err := tx.ListOrderLines(ctx, sessionID, entity.OrderCart)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if l.MenuItemID != item.ID || l.Notes != notes || l.SplitBillID != nil {
				continue
			}
			if l.Quantity+req.Quantity > maxQuantity {
				return apperr.Validation("quantity must be between 1 and %d", maxQuantity)
			}
			o := l.Order.Clone()
			o.Quantity += req.Quantity
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
			out = o
			return nil
		}

		o := &entity.Order{
			ID:            newID(),
			SessionID:     sessionID,
			MenuItemID:    item.ID,
			Quantity:      req.Quantity,
			Notes:         notes,
			Status:        entity.OrderCart,
			CreatedByName: name,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}
	return out, nil
}

// cartOrder loads an order that must still be in the cart of an active session.
func cartOrder(ctx context.Context, tx repository.Store, orderID string) (*entity.Order, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	if _, err := activeSession(ctx, tx, o.SessionID); err != nil {
		return nil, err
	}
	// re-read under the session lock
	o, err = tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	if o.Status != entity.OrderCart {
		return nil, apperr.Conflict("order is already %s", o.Status)
	}
	return o, nil
}

// UpdateCartItem changes the quantity of a cart line; zero removes it.
func (s *OrderService) UpdateCartItem(ctx context.Context, orderID string, quantity int) (*entity.Order, error) {
	if quantity < 0 || quantity > maxQuantity {
		return nil, apperr.Validation("quantity must be between 0 and %d", maxQuantity)
	}
	if quantity == 0 {
		return nil, s.RemoveCartItem(ctx, orderID)
	}
	var out *entity.Order
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		o, err := cartOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.SplitBillID != nil && quantity != o.Quantity {
			return apperr.Conflict("resolve the split bill before changing the quantity")
		}
		o.Quantity = quantity
		o.UpdatedAt = s.deps.now()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}
	return out, nil
}

// RemoveCartItem deletes a cart line and resolves any split bill attached to it.
func (s *OrderService) RemoveCartItem(ctx context.Context, orderID string) error {
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		o, err := cartOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.SplitBillID != nil {
			bill, err := tx.GetSplitBill(ctx, *o.SplitBillID)
			switch {
			case isNotFound(err):
			case err != nil:
				return err
			case bill.Status == entity.SplitBillActive:
				if err := resolveSplitBill(ctx, tx, bill.ID, s.deps.now()); err != nil {
					return err
				}
			}
		}
		return tx.DeleteOrder(ctx, o.ID)
	})
	return storeErr(err, "order not found")
}

type PlaceOrdersResult struct {
	SessionID string               `json:"session_id"`
	Placed    int64                `json:"placed"`
	Total     *entity.SessionTotal `json:"total"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// PlaceOrders sends every cart line of the session to the kitchen. A repeated
// idempotency key within a day is rejected unless the earlier attempt was
// refused before anything was placed.
func (s *OrderService) PlaceOrders(ctx context.Context, sessionID, idempotencyKey string) (*PlaceOrdersResult, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	var claimed string
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		claimed = "place:" + sessionID + ":" + key
		first, err := s.deps.Cache.Claim(ctx, claimed, idempotencyTTL)
		if err != nil {
			return nil, apperr.Internal(err, "failed to check idempotency key")
		}
		if !first {
			return nil, apperr.Conflict("these orders were already submitted")
		}
	}

	now := s.deps.now()
	result := &PlaceOrdersResult{SessionID: sessionID}
	var tableID string
	var tableNumber int
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		sess, err := activeSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if sess.PaymentStatus == entity.PaymentPaid {
			return apperr.Conflict("session is already paid")
		}
		n, err := tx.PromoteCartOrders(ctx, sessionID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Validation("cart is empty")
		}
		total, err := sessionTotal(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		tbl, err := tx.GetTable(ctx, sess.TableID)
		if err != nil {
			return storeErr(err, "table not found")
		}
		tableID, tableNumber = tbl.ID, tbl.TableNumber
		result.Placed, result.Total = n, total
		return nil
	})
	if err != nil {
		err = storeErr(err, "")
		// Only an internal error may hide a placement that went through; any
		// other refusal placed nothing and the same key may be retried.
		if claimed != "" && apperr.KindOf(err) != apperr.KindInternal {
			if rerr := s.deps.Cache.Release(ctx, claimed); rerr != nil {
				logger.Warn().Err(rerr).Str("session_id", sessionID).Msg("could not release idempotency key")
			}
		}
		return nil, err
	}
	metrics.OrdersPlaced.Add(float64(result.Placed))

	var w warnings
	s.effects.notify(ctx, &entity.Notification{
		SessionID: strPtr(sessionID),
		TableID:   strPtr(tableID),
		Type:      entity.NotificationNewOrder,
		Message:   fmt.Sprintf("Table %d placed %d new order(s)", tableNumber, result.Placed),
		Metadata:  entity.Metadata{"count": result.Placed},
		CreatedAt: now,
		UpdatedAt: now,
	}, &w)
	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventOrdersPlaced,
		SessionID:  sessionID,
		TableID:    tableID,
		Payload:    map[string]any{"count": result.Placed, "table_number": tableNumber},
		OccurredAt: now,
	}, &w)
	result.Warnings = w
	return result, nil
}

type PlacedOrder struct {
	entity.OrderLine
	LineTotal decimal.Decimal `json:"line_total"`
}

// ListOrders returns the session's orders that left the cart, cancelled ones included.
func (s *OrderService) ListOrders(ctx context.Context, sessionID string) ([]PlacedOrder, error) {
	if _, err := s.deps.Store.GetSession(ctx, sessionID); err != nil {
		return nil, storeErr(err, "session not found")
	}
	lines, err := s.deps.Store.ListOrderLines(ctx, sessionID, placedStatuses...)
	if err != nil {
		return nil, storeErr(err, "")
	}
	out := make([]PlacedOrder, 0, len(lines))
	for _, l := range lines {
		out = append(out, PlacedOrder{OrderLine: l, LineTotal: l.LineTotal()})
	}
	return out, nil
}

// UpdateStatus moves a placed order forward through the kitchen flow.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status, staffID string) (*entity.Order, error) {
	next, err := entity.ParseOrderStatus(status)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	now := s.deps.now()
	var out *entity.Order
	var prev entity.OrderStatus
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return storeErr(err, "order not found")
		}
		if _, err := tx.GetSessionForUpdate(ctx, o.SessionID); err != nil {
			return storeErr(err, "session not found")
		}
		if o, err = tx.GetOrder(ctx, orderID); err != nil {
			return storeErr(err, "order not found")
		}
		if o.Status == entity.OrderCart {
			return apperr.Conflict("order has not been placed yet")
		}
		if !o.Status.CanTransitionTo(next) {
			return apperr.Conflict("order cannot move from %s to %s", o.Status, next)
		}
		prev = o.Status
		o.Status = next
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}

	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventOrderStatus,
		SessionID:  out.SessionID,
		Payload:    map[string]any{"order_id": out.ID, "from": string(prev), "to": string(next), "staff_id": staffID},
		OccurredAt: now,
	}, nil)
	return out, nil
}

// SplitItem divides a cart line evenly between the named participants.
func (s *OrderService) SplitItem(ctx context.Context, orderID string, participants []string) (*entity.SplitBill, error) {
	names, err := splitParticipants(participants)
	if err != nil {
		return nil, err
	}
	now := s.deps.now()
	var out *entity.SplitBill
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		o, err := cartOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.SplitBillID != nil {
			existing, err := tx.GetSplitBill(ctx, *o.SplitBillID)
			if err == nil && existing.Status == entity.SplitBillActive {
				return apperr.Conflict("order is already split")
			}
			if err != nil && !isNotFound(err) {
				return err
			}
		}
		item, err := tx.GetMenuItem(ctx, o.MenuItemID)
		if err != nil {
			return storeErr(err, "menu item not found")
		}

		original := item.Price.Mul(decimal.NewFromInt(int64(o.Quantity))).Round(2)
		bill := &entity.SplitBill{
			ID:            newID(),
			SessionID:     o.SessionID,
			MenuItemID:    o.MenuItemID,
			OriginalPrice: original,
			SplitPrice:    original.DivRound(decimal.NewFromInt(int64(len(names))), 2),
			SplitCount:    len(names),
			Participants:  names,
			Status:        entity.SplitBillActive,
			CreatedAt:     now,
		}
		if err := tx.CreateSplitBill(ctx, bill); err != nil {
			return err
		}
		o.SplitBillID = &bill.ID
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = bill
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}
	return out, nil
}

func splitParticipants(in []string) (entity.StringList, error) {
	seen := make(map[string]bool, len(in))
	names := make(entity.StringList, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			return nil, apperr.Validation("participant %q is listed twice", p)
		}
		seen[key] = true
		names = append(names, p)
	}
	if len(names) < minSplit || len(names) > maxSplit {
		return nil, apperr.Validation("a split needs between %d and %d participants", minSplit, maxSplit)
	}
	return names, nil
}

// ResolveSplit closes an active split bill and turns its orders back into plain lines.
func (s *OrderService) ResolveSplit(ctx context.Context, splitBillID string) (*entity.SplitBill, error) {
	if splitBillID == "" {
		return nil, apperr.Validation("split bill id is required")
	}
	var out *entity.SplitBill
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		bill, err := tx.GetSplitBill(ctx, splitBillID)
		if err != nil {
			return storeErr(err, "split bill not found")
		}
		if _, err := tx.GetSessionForUpdate(ctx, bill.SessionID); err != nil {
			return storeErr(err, "session not found")
		}
		if err := resolveSplitBill(ctx, tx, splitBillID, s.deps.now()); err != nil {
			return err
		}
		out, err = tx.GetSplitBill(ctx, splitBillID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "split bill not found")
	}
	return out, nil
}

func resolveSplitBill(ctx context.Context, tx repository.Store, id string, now time.Time) error {
	bill, err := tx.GetSplitBill(ctx, id)
	if err != nil {
		return err
	}
	if bill.Status != entity.SplitBillActive {
		return apperr.Conflict("split bill is already %s", bill.Status)
	}
	bill.Status = entity.SplitBillResolved
	bill.ResolvedAt = &now
	if err := tx.UpdateSplitBill(ctx, bill); err != nil {
		return err
	}
	return tx.ClearSplitBill(ctx, id, now)
}
