package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

var now = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func seedTable(t *testing.T, s *Store, id string, number int) {
	t.Helper()
	require.NoError(t, s.CreateTable(context.Background(), &entity.Table{
		ID: id, TableNumber: number, Capacity: 4, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", 1)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.Store) error {
		tbl, err := tx.GetTableForUpdate(ctx, "t1")
		require.NoError(t, err)
		tbl.Occupy("s1", nil)
		require.NoError(t, tx.UpdateTable(ctx, tbl))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tbl, err := s.GetTable(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, tbl.Occupied)
	assert.Equal(t, 0, tbl.Version)
}

func TestWithTxCommitFailureKeepsOldData(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", 1)
	s.FailCommits(errors.New("connection reset"))

	err := s.WithTx(ctx, func(tx repository.Store) error {
		tbl, _ := tx.GetTable(ctx, "t1")
		tbl.Occupy("s1", nil)
		return tx.UpdateTable(ctx, tbl)
	})
	assert.ErrorIs(t, err, repository.ErrTxCommit)

	tbl, _ := s.GetTable(ctx, "t1")
	assert.False(t, tbl.Occupied)

	s.FailCommits(nil)
	err = s.WithTx(ctx, func(tx repository.Store) error {
		tbl, _ := tx.GetTable(ctx, "t1")
		tbl.Occupy("s1", nil)
		return tx.UpdateTable(ctx, tbl)
	})
	require.NoError(t, err)
	tbl, _ = s.GetTable(ctx, "t1")
	assert.True(t, tbl.Occupied)
}

func TestUpdateTableRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", 1)

	a, _ := s.GetTable(ctx, "t1")
	b, _ := s.GetTable(ctx, "t1")

	a.Capacity = 6
	require.NoError(t, s.UpdateTable(ctx, a))
	assert.Equal(t, 1, a.Version)

	b.Capacity = 2
	assert.ErrorIs(t, s.UpdateTable(ctx, b), repository.ErrStaleVersion)
}

func TestSetTablePINIfEmptyOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", 1)

	ok, err := s.SetTablePINIfEmpty(ctx, "t1", "1234", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetTablePINIfEmpty(ctx, "t1", "9999", now)
	require.NoError(t, err)
	assert.False(t, ok)

	tbl, _ := s.GetTable(ctx, "t1")
	assert.Equal(t, "1234", *tbl.CurrentPIN)
}

func TestDeleteCartOrdersBefore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateMenuItem(ctx, &entity.MenuItem{ID: "m1", Name: "Soup", Price: decimal.RequireFromString("4.50"), IsAvailable: true}))

	orders := []entity.Order{
		{ID: "old-cart", SessionID: "s1", MenuItemID: "m1", Quantity: 1, Status: entity.OrderCart, CreatedAt: now.Add(-25 * time.Hour)},
		{ID: "new-cart", SessionID: "s1", MenuItemID: "m1", Quantity: 1, Status: entity.OrderCart, CreatedAt: now.Add(-time.Hour)},
		{ID: "old-placed", SessionID: "s1", MenuItemID: "m1", Quantity: 1, Status: entity.OrderPlaced, CreatedAt: now.Add(-30 * time.Hour)},
		{ID: "other-session", SessionID: "s2", MenuItemID: "m1", Quantity: 1, Status: entity.OrderCart, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for i := range orders {
		require.NoError(t, s.CreateOrder(ctx, &orders[i]))
	}

	n, err := s.DeleteCartOrdersBefore(ctx, "s1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	lines, err := s.ListOrderLines(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "old-placed", lines[0].ID)
	assert.Equal(t, "new-cart", lines[1].ID)

	n, err = s.DeleteCartOrdersBefore(ctx, "", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTransitionNotificationRequiresExpectedStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateNotification(ctx, &entity.Notification{
		ID: "n1", Type: entity.NotificationHelpRequest, Status: entity.NotificationPending, CreatedAt: now,
	}))

	require.NoError(t, s.TransitionNotification(ctx, "n1", entity.NotificationPending, entity.NotificationAcknowledged, "staff-1", now))
	err := s.TransitionNotification(ctx, "n1", entity.NotificationPending, entity.NotificationAcknowledged, "staff-2", now)
	assert.ErrorIs(t, err, repository.ErrStaleVersion)

	n, _ := s.GetNotification(ctx, "n1")
	assert.Equal(t, entity.NotificationAcknowledged, n.Status)
	assert.Equal(t, "staff-1", *n.AcknowledgedBy)
}
