package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository/memory"
)

type flakyPayments struct {
	*memory.Store
	failures int
	calls    int
}

func (s *flakyPayments) ListPaymentNotifications(ctx context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.PaymentNotification, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("i/o timeout")
	}
	return s.Store.ListPaymentNotifications(ctx, staffID, statuses)
}

func TestRequestHelp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 7, "1111")
	f.session(t, "s1", "t1")
	svc := NewNotificationService(f.deps)

	res, err := svc.RequestHelp(ctx, "s1", HelpRequest{RequestType: "Water", Message: "two glasses"})
	require.NoError(t, err)
	assert.Equal(t, "water", res.Request.RequestType)
	assert.Empty(t, res.Warnings)

	list, err := svc.StaffNotifications(ctx, "w1", nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.NotificationHelpRequest, list[0].Type)
	assert.Equal(t, "Table 7 needs water: two glasses", list[0].Message)

	_, err = svc.RequestHelp(ctx, "s1", HelpRequest{RequestType: "dance"})
	requireKind(t, err, apperr.KindValidation)
	_, err = svc.RequestHelp(ctx, "missing", HelpRequest{})
	requireKind(t, err, apperr.KindNotFound)
}

func TestNotificationsHiddenFromOtherWaiters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	f.staff(t, "w1", entity.RoleWaiter)
	f.staff(t, "w2", entity.RoleWaiter)
	_, err := NewSessionService(f.deps).AssignStaff(ctx, "s1", "w1")
	require.NoError(t, err)
	svc := NewNotificationService(f.deps)
	_, err = svc.RequestHelp(ctx, "s1", HelpRequest{})
	require.NoError(t, err)

	mine, err := svc.StaffNotifications(ctx, "w1", nil)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.StaffNotifications(ctx, "w2", nil)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = svc.StaffNotifications(ctx, "w1", []string{"snoozed"})
	requireKind(t, err, apperr.KindValidation)
}

func TestNotificationLifecycleIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	svc := NewNotificationService(f.deps)
	_, err := svc.RequestHelp(ctx, "s1", HelpRequest{})
	require.NoError(t, err)
	list, _ := svc.StaffNotifications(ctx, "w1", nil)
	id := list[0].ID

	n, err := svc.Acknowledge(ctx, id, "w1")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationAcknowledged, n.Status)
	assert.Equal(t, "w1", *n.AcknowledgedBy)

	_, err = svc.Acknowledge(ctx, id, "w2")
	requireKind(t, err, apperr.KindConflict)

	n, err = svc.Resolve(ctx, id, "w2")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationResolved, n.Status)
	assert.Equal(t, "w1", *n.AcknowledgedBy)

	_, err = svc.Resolve(ctx, id, "w1")
	requireKind(t, err, apperr.KindConflict)
	_, err = svc.Resolve(ctx, "nope", "w1")
	requireKind(t, err, apperr.KindNotFound)

	resolved, err := svc.StaffNotifications(ctx, "w1", []string{"resolved"})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestPaymentNotificationsRetryTransientFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	require.NoError(t, f.store.CreatePaymentNotification(ctx, &entity.PaymentNotification{
		ID: "p1", SessionID: "s1", TableID: "t1", Amount: dec("11.40"), Method: "cash",
		Status: entity.NotificationPending, CreatedAt: f.now, UpdatedAt: f.now,
	}))

	fast := func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}

	flaky := &flakyPayments{Store: f.store, failures: 2}
	f.deps.Store = flaky
	svc := NewNotificationService(f.deps)
	svc.retry = fast
	list, err := svc.PaymentNotifications(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, flaky.calls)

	down := &flakyPayments{Store: f.store, failures: 10}
	f.deps.Store = down
	svc = NewNotificationService(f.deps)
	svc.retry = fast
	_, err = svc.PaymentNotifications(ctx, "w1")
	requireKind(t, err, apperr.KindDatabase)
	assert.Equal(t, 3, down.calls)

	_, err = svc.PaymentNotifications(ctx, "")
	requireKind(t, err, apperr.KindAuth)
}
