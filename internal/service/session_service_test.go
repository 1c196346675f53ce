package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
)

func TestStartThenJoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 3, "5150")
	svc := NewSessionService(f.deps)

	started, err := svc.Start(ctx, StartSessionRequest{TableID: "3", PIN: "5150", GuestName: " Ana "})
	require.NoError(t, err)
	assert.Equal(t, ActionStart, started.Action)
	assert.Equal(t, "Ana", started.Session.StartedByName)
	assert.True(t, started.Table.Occupied)
	assert.Equal(t, "5150", *started.Table.CurrentPIN)

	again, err := svc.Start(ctx, StartSessionRequest{TableID: "t1", PIN: "5150"})
	require.NoError(t, err)
	assert.Equal(t, ActionJoin, again.Action)
	assert.Equal(t, started.Session.ID, again.Session.ID)

	joined, err := svc.Join(ctx, started.Session.ID, "5150")
	require.NoError(t, err)
	assert.Equal(t, ActionJoin, joined.Action)

	_, err = svc.Join(ctx, started.Session.ID, "0000")
	requireKind(t, err, apperr.KindAuth)
	assert.Equal(t, []entity.EventType{entity.EventSessionStarted}, f.pub.types())
}

func TestStartWithWrongPINWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "5150")

	_, err := NewSessionService(f.deps).Start(ctx, StartSessionRequest{TableID: "t1", PIN: "5151"})
	requireKind(t, err, apperr.KindAuth)

	tbl, _ := f.store.GetTable(ctx, "t1")
	assert.False(t, tbl.Occupied)
	assert.Equal(t, 0, tbl.Version)
}

func TestTotalCountsOnlyBillableOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	f.menuItem(t, "burger", "Burger", "10.00")
	f.menuItem(t, "soup", "Soup", "5.50")
	f.menuItem(t, "steak", "Steak", "100.00")
	f.menuItem(t, "cake", "Cake", "7.00")
	f.order(t, "o1", "s1", "burger", 2, entity.OrderPlaced, f.now)
	f.order(t, "o2", "s1", "soup", 1, entity.OrderServed, f.now)
	f.order(t, "o3", "s1", "steak", 1, entity.OrderCart, f.now)
	f.order(t, "o4", "s1", "cake", 1, entity.OrderCancelled, f.now)

	total, err := NewSessionService(f.deps).Total(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, dec("25.50").Equal(total.Subtotal), total.Subtotal.String())
	assert.True(t, dec("3.57").Equal(total.Tax), total.Tax.String())
	assert.True(t, dec("29.07").Equal(total.Total), total.Total.String())
	assert.Equal(t, 3, total.ItemCount)

	_, err = NewSessionService(f.deps).Total(ctx, "missing")
	requireKind(t, err, apperr.KindNotFound)
}

func TestComputeTotalTaxIsRoundedShareOfSubtotal(t *testing.T) {
	for _, price := range []string{"0.35", "1.99", "12.34", "0.01", "333.33", "0"} {
		lines := []entity.OrderLine{{Order: entity.Order{Quantity: 3, Status: entity.OrderPreparing}, Price: dec(price)}}
		got := computeTotal(lines)
		wantTax := got.Subtotal.Mul(dec("0.14")).Round(2)
		assert.True(t, wantTax.Equal(got.Tax), "price %s", price)
		assert.True(t, got.Subtotal.Add(wantTax).Equal(got.Total), "price %s", price)
		assert.LessOrEqual(t, -got.Total.Exponent(), int32(2), "price %s", price)
	}
}

func TestAssignStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	f.staff(t, "w1", entity.RoleWaiter)
	svc := NewSessionService(f.deps)

	sess, err := svc.AssignStaff(ctx, "s1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", *sess.ServedBy)

	_, err = svc.AssignStaff(ctx, "s1", "ghost")
	requireKind(t, err, apperr.KindNotFound)
}

func TestCloseVacatesTableOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	svc := NewSessionService(f.deps)

	view, err := svc.Close(ctx, "s1", entity.SessionCancelled, "w1")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionCancelled, view.Session.Status)
	require.NotNil(t, view.Session.EndedAt)
	assert.False(t, view.Table.Occupied)
	assert.Nil(t, view.Table.CurrentPIN)

	_, err = svc.Close(ctx, "s1", entity.SessionCompleted, "w1")
	requireKind(t, err, apperr.KindConflict)
	_, err = svc.Close(ctx, "s1", entity.SessionActive, "w1")
	requireKind(t, err, apperr.KindValidation)
}

func TestPaymentFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.table(t, "t1", 1, "1111")
	f.session(t, "s1", "t1")
	f.menuItem(t, "burger", "Burger", "10.00")
	svc := NewSessionService(f.deps)

	_, err := svc.RequestPayment(ctx, "s1", "card")
	requireKind(t, err, apperr.KindValidation)

	f.order(t, "o1", "s1", "burger", 3, entity.OrderServed, f.now)
	_, err = svc.RequestPayment(ctx, "s1", "bitcoin")
	requireKind(t, err, apperr.KindValidation)

	req, err := svc.RequestPayment(ctx, "s1", "Card")
	require.NoError(t, err)
	assert.True(t, dec("34.20").Equal(req.Notification.Amount))
	assert.Equal(t, "card", req.Notification.Method)

	open, err := f.store.ListPaymentNotifications(ctx, "w1", openStatuses)
	require.NoError(t, err)
	require.Len(t, open, 1)

	f.now = f.now.Add(10 * time.Minute)
	paid, err := svc.CompletePayment(ctx, "s1", "card", "w1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentPaid, paid.Session.PaymentStatus)
	assert.Equal(t, entity.SessionCompleted, paid.Session.Status)
	require.True(t, paid.Session.FinalTotal.Valid)
	assert.True(t, dec("34.20").Equal(paid.Session.FinalTotal.Decimal))
	assert.False(t, paid.Table.Occupied)

	open, err = f.store.ListPaymentNotifications(ctx, "w1", openStatuses)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = svc.CompletePayment(ctx, "s1", "cash", "w1")
	requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, []entity.EventType{entity.EventPaymentRequested, entity.EventPaymentCompleted}, f.pub.types())
}
