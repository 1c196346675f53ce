package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/cache"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository/memory"
)

var testNow = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e entity.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []entity.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// brokenSideEffects accepts the main writes but fails audit and notification rows.
type brokenSideEffects struct {
	*memory.Store
}

func (s brokenSideEffects) CreateAuditLog(context.Context, *entity.AuditLog) error {
	return errors.New("audit table unavailable")
}

func (s brokenSideEffects) CreateNotification(context.Context, *entity.Notification) error {
	return errors.New("notifications table unavailable")
}

type fixture struct {
	store *memory.Store
	pub   *recordingPublisher
	cache *cache.MemoryCache
	now   time.Time
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), pub: &recordingPublisher{}, now: testNow}
	clock := func() time.Time { return f.now }
	f.cache = cache.NewMemoryCache(clock)
	f.deps = Deps{Store: f.store, Publisher: f.pub, Cache: f.cache, Now: clock}
	return f
}

func (f *fixture) table(t *testing.T, id string, number int, pin string) *entity.Table {
	t.Helper()
	tbl := &entity.Table{ID: id, TableNumber: number, Capacity: 4, IsActive: true, CreatedAt: f.now, UpdatedAt: f.now}
	if pin != "" {
		tbl.CurrentPIN = &pin
	}
	require.NoError(t, f.store.CreateTable(context.Background(), tbl))
	return tbl
}

// session seats an active session at tableID.
func (f *fixture) session(t *testing.T, id, tableID string) *entity.Session {
	t.Helper()
	ctx := context.Background()
	sess := &entity.Session{
		ID: id, TableID: tableID, Status: entity.SessionActive, StartedByName: "Guest",
		PaymentStatus: entity.PaymentUnpaid, StartedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.store.CreateSession(ctx, sess))
	tbl, err := f.store.GetTable(ctx, tableID)
	require.NoError(t, err)
	tbl.Occupy(id, tbl.CurrentPIN)
	require.NoError(t, f.store.UpdateTable(ctx, tbl))
	return sess
}

func (f *fixture) menuItem(t *testing.T, id, name, price string) *entity.MenuItem {
	t.Helper()
	m := &entity.MenuItem{ID: id, Name: name, Category: "main", Price: decimal.RequireFromString(price), IsAvailable: true, CreatedAt: f.now}
	require.NoError(t, f.store.CreateMenuItem(context.Background(), m))
	return m
}

func (f *fixture) order(t *testing.T, id, sessionID, menuID string, qty int, status entity.OrderStatus, createdAt time.Time) *entity.Order {
	t.Helper()
	o := &entity.Order{
		ID: id, SessionID: sessionID, MenuItemID: menuID, Quantity: qty, Status: status,
		CreatedByName: "Guest", CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	require.NoError(t, f.store.CreateOrder(context.Background(), o))
	return o
}

func (f *fixture) staff(t *testing.T, id string, role entity.StaffRole) *entity.Staff {
	t.Helper()
	m := &entity.Staff{ID: id, Email: id + "@example.com", Name: id, Role: role, IsActive: true, CreatedAt: f.now}
	require.NoError(t, f.store.CreateStaff(context.Background(), m))
	return m
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
