package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

var helpRequestTypes = map[string]bool{"assistance": true, "water": true, "bill": true, "cutlery": true, "other": true}

var openStatuses = []entity.NotificationStatus{entity.NotificationPending, entity.NotificationAcknowledged}

type NotificationService struct {
	deps    Deps
	effects sideEffects
	// retry builds the policy for the payment notification query.
	retry func() backoff.BackOff
}

func NewNotificationService(deps Deps) *NotificationService {
	return &NotificationService{deps: deps, effects: newSideEffects(deps), retry: paymentRetryPolicy}
}

// paymentRetryPolicy allows three attempts within five seconds.
func paymentRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 2)
}

type HelpRequest struct {
	RequestType string `json:"requestType"`
	Message     string `json:"message"`
}

type HelpResult struct {
	Request  *entity.WaiterRequest `json:"request"`
	Warnings []string              `json:"warnings,omitempty"`
}

// RequestHelp records a guest's call for a waiter.
func (s *NotificationService) RequestHelp(ctx context.Context, sessionID string, req HelpRequest) (*HelpResult, error) {
	kind := strings.ToLower(strings.TrimSpace(req.RequestType))
	if kind == "" {
		kind = "assistance"
	}
	if !helpRequestTypes[kind] {
		return nil, apperr.Validation("unknown request type %q", req.RequestType)
	}
	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err, "session not found")
	}
	if !sess.IsActive() {
		return nil, apperr.Conflict("session is %s", sess.Status)
	}
	tbl, err := s.deps.Store.GetTable(ctx, sess.TableID)
	if err != nil {
		return nil, storeErr(err, "table not found")
	}

	now := s.deps.now()
	wr := &entity.WaiterRequest{
		ID:          newID(),
		SessionID:   sess.ID,
		TableID:     tbl.ID,
		RequestType: kind,
		Message:     strings.TrimSpace(req.Message),
		Status:      entity.NotificationPending,
		CreatedAt:   now,
	}
	if err := s.deps.Store.CreateWaiterRequest(ctx, wr); err != nil {
		return nil, storeErr(err, "")
	}

	msg := fmt.Sprintf("Table %d needs %s", tbl.TableNumber, kind)
	if wr.Message != "" {
		msg += ": " + wr.Message
	}
	var w warnings
	s.effects.notify(ctx, &entity.Notification{
		SessionID: strPtr(sess.ID),
		TableID:   strPtr(tbl.ID),
		Type:      entity.NotificationHelpRequest,
		Message:   msg,
		Metadata:  entity.Metadata{"request_id": wr.ID, "request_type": kind},
		CreatedAt: now,
		UpdatedAt: now,
	}, &w)
	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventHelpRequested,
		SessionID:  sess.ID,
		TableID:    tbl.ID,
		Payload:    map[string]any{"request_type": kind, "table_number": tbl.TableNumber},
		OccurredAt: now,
	}, &w)
	return &HelpResult{Request: wr, Warnings: w}, nil
}

func parseNotificationStatuses(raw []string) ([]entity.NotificationStatus, error) {
	if len(raw) == 0 {
		return openStatuses, nil
	}
	out := make([]entity.NotificationStatus, 0, len(raw))
	for _, r := range raw {
		st := entity.NotificationStatus(strings.TrimSpace(r))
		if !st.Valid() {
			return nil, apperr.Validation("unknown notification status %q", r)
		}
		out = append(out, st)
	}
	return out, nil
}

// StaffNotifications lists notifications for sessions served by staffID or not yet
// assigned to anyone. By default only open ones are returned.
func (s *NotificationService) StaffNotifications(ctx context.Context, staffID string, statuses []string) ([]entity.Notification, error) {
	if staffID == "" {
		return nil, apperr.Auth("staff identity missing")
	}
	sts, err := parseNotificationStatuses(statuses)
	if err != nil {
		return nil, err
	}
	list, err := s.deps.Store.ListStaffNotifications(ctx, staffID, sts)
	return list, storeErr(err, "")
}

func (s *NotificationService) Acknowledge(ctx context.Context, id, staffID string) (*entity.Notification, error) {
	return s.transition(ctx, id, staffID, entity.NotificationAcknowledged)
}

func (s *NotificationService) Resolve(ctx context.Context, id, staffID string) (*entity.Notification, error) {
	return s.transition(ctx, id, staffID, entity.NotificationResolved)
}

// transition moves a notification forward. The write is conditional on the status
// just read, so of two racing staff members only one wins.
func (s *NotificationService) transition(ctx context.Context, id, staffID string, to entity.NotificationStatus) (*entity.Notification, error) {
	if id == "" {
		return nil, apperr.Validation("notification id is required")
	}
	n, err := s.deps.Store.GetNotification(ctx, id)
	if err != nil {
		return nil, storeErr(err, "notification not found")
	}
	if !n.Status.CanTransitionTo(to) {
		return nil, apperr.Conflict("notification is already %s", n.Status)
	}
	now := s.deps.now()
	err = s.deps.Store.TransitionNotification(ctx, id, n.Status, to, staffID, now)
	if errors.Is(err, repository.ErrStaleVersion) {
		return nil, apperr.Conflict("notification was updated by someone else")
	}
	if err != nil {
		return nil, storeErr(err, "notification not found")
	}
	updated, err := s.deps.Store.GetNotification(ctx, id)
	if err != nil {
		return nil, storeErr(err, "notification not found")
	}
	return updated, nil
}

// PaymentNotifications lists open payment requests visible to staffID. Database
// failures are retried; anything else is returned at once.
func (s *NotificationService) PaymentNotifications(ctx context.Context, staffID string) ([]entity.PaymentNotification, error) {
	if staffID == "" {
		return nil, apperr.Auth("staff identity missing")
	}
	var out []entity.PaymentNotification
	attempt := 0
	op := func() error {
		attempt++
		list, err := s.deps.Store.ListPaymentNotifications(ctx, staffID, openStatuses)
		if err != nil {
			err = storeErr(err, "")
			if apperr.KindOf(err) != apperr.KindDatabase {
				return backoff.Permanent(err)
			}
			logger.Warn().Err(err).Int("attempt", attempt).Str("staff_id", staffID).Msg("payment notification query failed")
			return err
		}
		out = list
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(s.retry(), ctx)); err != nil {
		return nil, err
	}
	return out, nil
}
