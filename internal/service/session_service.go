package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

// VATRate is applied to the subtotal of billable orders.
var VATRate = decimal.RequireFromString("0.14")

var paymentMethods = map[string]bool{"cash": true, "card": true, "mobile": true}

type SessionService struct {
	deps    Deps
	effects sideEffects
}

func NewSessionService(deps Deps) *SessionService {
	return &SessionService{deps: deps, effects: newSideEffects(deps)}
}

type StartSessionRequest struct {
	TableID   string `json:"tableId"`
	PIN       string `json:"pin"`
	GuestName string `json:"guestName"`
}

type SessionView struct {
	Session  *entity.Session `json:"session"`
	Table    *entity.Table   `json:"table"`
	Action   string          `json:"action,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Start opens a session on a free table, or hands back the running one when the
// table is already in use.
func (s *SessionService) Start(ctx context.Context, req StartSessionRequest) (*SessionView, error) {
	verified, err := verifyPIN(ctx, s.deps.Store, req.TableID, req.PIN)
	if err != nil {
		return nil, err
	}
	if verified.Action == ActionJoin {
		return &SessionView{Session: verified.Session, Table: verified.Table, Action: ActionJoin}, nil
	}

	name := strings.TrimSpace(req.GuestName)
	if name == "" {
		name = "Guest"
	}
	now := s.deps.now()
	view := &SessionView{Action: ActionStart}
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		tbl, err := tx.GetTableForUpdate(ctx, verified.Table.ID)
		if err != nil {
			return storeErr(err, "table not found")
		}
		if !tbl.IsActive {
			return apperr.Conflict("table %d is not in service", tbl.TableNumber)
		}
		if tbl.Occupied && tbl.CurrentSessionID != nil {
			// started by someone else since the PIN check
			sess, err := tx.GetSession(ctx, *tbl.CurrentSessionID)
			if err != nil {
				return storeErr(err, "session not found")
			}
			view.Session, view.Table, view.Action = sess, tbl, ActionJoin
			return nil
		}

		sess := &entity.Session{
			ID:            newID(),
			TableID:       tbl.ID,
			Status:        entity.SessionActive,
			StartedByName: name,
			PaymentStatus: entity.PaymentUnpaid,
			StartedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateSession(ctx, sess); err != nil {
			return err
		}
		tbl.Occupy(sess.ID, tbl.CurrentPIN)
		tbl.UpdatedAt = now
		if err := tx.UpdateTable(ctx, tbl); err != nil {
			return err
		}
		view.Session, view.Table = sess, tbl
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}

	if view.Action == ActionStart {
		var w warnings
		s.effects.publish(ctx, entity.Event{
			Type:       entity.EventSessionStarted,
			SessionID:  view.Session.ID,
			TableID:    view.Table.ID,
			Payload:    map[string]any{"table_number": view.Table.TableNumber, "started_by": name},
			OccurredAt: now,
		}, &w)
		view.Warnings = w
		logger.Info().Str("session_id", view.Session.ID).Int("table_number", view.Table.TableNumber).Msg("session started")
	}
	return view, nil
}

// Join lets another guest into a running session with the table PIN.
func (s *SessionService) Join(ctx context.Context, sessionID, pin string) (*SessionView, error) {
	if sessionID == "" || pin == "" {
		return nil, apperr.Validation("session id and pin are required")
	}
	view, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !view.Session.IsActive() {
		return nil, apperr.Conflict("session is %s", view.Session.Status)
	}
	if !pinMatches(view.Table, pin) {
		return nil, apperr.Auth("invalid PIN")
	}
	view.Action = ActionJoin
	return view, nil
}

func (s *SessionService) Get(ctx context.Context, sessionID string) (*SessionView, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session id is required")
	}
	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err, "session not found")
	}
	tbl, err := s.deps.Store.GetTable(ctx, sess.TableID)
	if err != nil {
		return nil, storeErr(err, "table not found")
	}
	return &SessionView{Session: sess, Table: tbl}, nil
}

// Total recomputes the bill from the session's billable orders.
func (s *SessionService) Total(ctx context.Context, sessionID string) (*entity.SessionTotal, error) {
	if _, err := s.deps.Store.GetSession(ctx, sessionID); err != nil {
		return nil, storeErr(err, "session not found")
	}
	return sessionTotal(ctx, s.deps.Store, sessionID)
}

func sessionTotal(ctx context.Context, store repository.OrderStore, sessionID string) (*entity.SessionTotal, error) {
	lines, err := store.ListOrderLines(ctx, sessionID, entity.BillableOrderStatuses...)
	if err != nil {
		return nil, storeErr(err, "")
	}
	total := computeTotal(lines)
	total.SessionID = sessionID
	return &total, nil
}

func computeTotal(lines []entity.OrderLine) entity.SessionTotal {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		if !l.Status.Billable() {
			continue
		}
		subtotal = subtotal.Add(l.LineTotal())
		count += l.Quantity
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(VATRate).Round(2)
	return entity.SessionTotal{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		ItemCount: count,
	}
}

// AssignStaff makes staffID the server of the session.
func (s *SessionService) AssignStaff(ctx context.Context, sessionID, staffID string) (*entity.Session, error) {
	if sessionID == "" || staffID == "" {
		return nil, apperr.Validation("session id and staff id are required")
	}
	member, err := s.deps.Store.GetStaff(ctx, staffID)
	if err != nil {
		return nil, storeErr(err, "staff member not found")
	}
	if !member.IsActive {
		return nil, apperr.Conflict("staff member %s is inactive", member.Name)
	}

	var out *entity.Session
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		sess, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session not found")
		}
		if !sess.IsActive() {
			return apperr.Conflict("session is %s", sess.Status)
		}
		sess.ServedBy = strPtr(member.ID)
		sess.UpdatedAt = s.deps.now()
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}
	return out, nil
}

// endSession marks the session finished and frees its table inside tx.
func endSession(ctx context.Context, tx repository.Store, sess *entity.Session, status entity.SessionStatus, now time.Time) (*entity.Table, error) {
	if !sess.Status.CanTransitionTo(status) {
		return nil, apperr.Conflict("session is %s and cannot become %s", sess.Status, status)
	}
	tbl, err := tx.GetTableForUpdate(ctx, sess.TableID)
	if err != nil {
		return nil, storeErr(err, "table not found")
	}
	sess.Status = status
	sess.EndedAt = &now
	sess.UpdatedAt = now
	if err := tx.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	if tbl.CurrentSessionID != nil && *tbl.CurrentSessionID == sess.ID {
		tbl.Vacate()
		tbl.UpdatedAt = now
		if err := tx.UpdateTable(ctx, tbl); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// Close ends a session without payment bookkeeping, e.g. guests who left.
func (s *SessionService) Close(ctx context.Context, sessionID string, status entity.SessionStatus, actor string) (*SessionView, error) {
	if status != entity.SessionCompleted && status != entity.SessionCancelled {
		return nil, apperr.Validation("status must be completed or cancelled")
	}
	now := s.deps.now()
	view := &SessionView{}
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		sess, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session not found")
		}
		tbl, err := endSession(ctx, tx, sess, status, now)
		if err != nil {
			return err
		}
		view.Session, view.Table = sess, tbl
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}

	var w warnings
	s.effects.audit(ctx, &entity.AuditLog{
		Action:     "session_" + string(status),
		EntityType: "session",
		EntityID:   sessionID,
		Actor:      actor,
		Details:    entity.Metadata{"table_id": view.Table.ID},
		CreatedAt:  now,
	}, &w)
	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventSessionClosed,
		SessionID:  sessionID,
		TableID:    view.Table.ID,
		Payload:    map[string]any{"status": string(status)},
		OccurredAt: now,
	}, &w)
	view.Warnings = w
	return view, nil
}

type PaymentRequestResult struct {
	Total        *entity.SessionTotal        `json:"total"`
	Notification *entity.PaymentNotification `json:"notification"`
	Warnings     []string                    `json:"warnings,omitempty"`
}

func normalizeMethod(method string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(method))
	if m == "" {
		m = "cash"
	}
	if !paymentMethods[m] {
		return "", apperr.Validation("unsupported payment method %q", method)
	}
	return m, nil
}

// RequestPayment asks staff to bring the bill.
func (s *SessionService) RequestPayment(ctx context.Context, sessionID, method string) (*PaymentRequestResult, error) {
	m, err := normalizeMethod(method)
	if err != nil {
		return nil, err
	}
	now := s.deps.now()
	result := &PaymentRequestResult{}
	var tableNumber int
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		sess, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session not found")
		}
		if !sess.IsActive() {
			return apperr.Conflict("session is %s", sess.Status)
		}
		if sess.PaymentStatus == entity.PaymentPaid {
			return apperr.Conflict("session is already paid")
		}
		total, err := sessionTotal(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if total.ItemCount == 0 {
			return apperr.Validation("no orders have been placed yet")
		}
		tbl, err := tx.GetTable(ctx, sess.TableID)
		if err != nil {
			return storeErr(err, "table not found")
		}
		tableNumber = tbl.TableNumber

		sess.PaymentStatus = entity.PaymentRequested
		sess.PaymentMethod = &m
		sess.UpdatedAt = now
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		pn := &entity.PaymentNotification{
			ID:        newID(),
			SessionID: sess.ID,
			TableID:   sess.TableID,
			Amount:    total.Total,
			Method:    m,
			Status:    entity.NotificationPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreatePaymentNotification(ctx, pn); err != nil {
			return err
		}
		result.Total, result.Notification = total, pn
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}

	var w warnings
	s.effects.notify(ctx, &entity.Notification{
		SessionID: strPtr(sessionID),
		TableID:   strPtr(result.Notification.TableID),
		Type:      entity.NotificationPaymentRequest,
		Message:   fmt.Sprintf("Table %d requested the bill (%s, %s)", tableNumber, m, result.Total.Total.StringFixed(2)),
		Metadata:  entity.Metadata{"amount": result.Total.Total.StringFixed(2), "method": m},
		CreatedAt: now,
		UpdatedAt: now,
	}, &w)
	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventPaymentRequested,
		SessionID:  sessionID,
		TableID:    result.Notification.TableID,
		Payload:    map[string]any{"amount": result.Total.Total.StringFixed(2), "method": m},
		OccurredAt: now,
	}, &w)
	result.Warnings = w
	return result, nil
}

type PaymentResult struct {
	Session  *entity.Session      `json:"session"`
	Table    *entity.Table        `json:"table"`
	Total    *entity.SessionTotal `json:"total"`
	Warnings []string             `json:"warnings,omitempty"`
}

// CompletePayment settles the bill, stores the final total and frees the table.
func (s *SessionService) CompletePayment(ctx context.Context, sessionID, method, staffID string) (*PaymentResult, error) {
	m, err := normalizeMethod(method)
	if err != nil {
		return nil, err
	}
	now := s.deps.now()
	result := &PaymentResult{}
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		sess, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session not found")
		}
		if sess.PaymentStatus == entity.PaymentPaid {
			return apperr.Conflict("session is already paid")
		}
		total, err := sessionTotal(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		sess.FinalTotal = decimal.NewNullDecimal(total.Total)
		sess.PaymentStatus = entity.PaymentPaid
		sess.PaymentMethod = &m
		tbl, err := endSession(ctx, tx, sess, entity.SessionCompleted, now)
		if err != nil {
			return err
		}
		if _, err := tx.ResolvePaymentNotifications(ctx, sessionID, now); err != nil {
			return err
		}
		result.Session, result.Table, result.Total = sess, tbl, total
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "")
	}

	amount := result.Total.Total.StringFixed(2)
	var w warnings
	s.effects.audit(ctx, &entity.AuditLog{
		Action:     "payment_completed",
		EntityType: "session",
		EntityID:   sessionID,
		Actor:      staffID,
		Details:    entity.Metadata{"amount": amount, "method": m},
		CreatedAt:  now,
	}, &w)
	s.effects.notify(ctx, &entity.Notification{
		SessionID: strPtr(sessionID),
		TableID:   strPtr(result.Table.ID),
		Type:      entity.NotificationPaymentCompleted,
		Message:   fmt.Sprintf("Table %d paid %s by %s", result.Table.TableNumber, amount, m),
		Metadata:  entity.Metadata{"amount": amount, "method": m},
		CreatedAt: now,
		UpdatedAt: now,
	}, &w)
	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventPaymentCompleted,
		SessionID:  sessionID,
		TableID:    result.Table.ID,
		Payload:    map[string]any{"amount": amount, "method": m},
		OccurredAt: now,
	}, &w)
	result.Warnings = w
	logger.Info().Str("session_id", sessionID).Str("amount", amount).Msg("payment completed")
	return result, nil
}
