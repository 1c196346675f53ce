package repository

import (
	"context"
	"errors"
	"time"

	"table-ordering-service/internal/entity"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrStaleVersion = errors.New("record was modified concurrently")
	ErrDuplicate    = errors.New("duplicate record")
	ErrTxCommit     = errors.New("transaction commit failed")
)

type TableStore interface {
	ListTables(ctx context.Context) ([]entity.Table, error)
	GetTable(ctx context.Context, id string) (*entity.Table, error)
	GetTableByNumber(ctx context.Context, number int) (*entity.Table, error)
	// GetTableForUpdate locks the row until the surrounding transaction ends.
	GetTableForUpdate(ctx context.Context, id string) (*entity.Table, error)
	CreateTable(ctx context.Context, t *entity.Table) error
	// UpdateTable writes t if its version is still current and bumps the version.
	UpdateTable(ctx context.Context, t *entity.Table) error
	// SetTablePINIfEmpty stores pin only when the table has none; it reports whether it did.
	SetTablePINIfEmpty(ctx context.Context, id, pin string, now time.Time) (bool, error)
	ListTablesServedBy(ctx context.Context, staffID string) ([]entity.Table, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *entity.Session) error
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	GetSessionForUpdate(ctx context.Context, id string) (*entity.Session, error)
	GetActiveSessionByTable(ctx context.Context, tableID string) (*entity.Session, error)
	UpdateSession(ctx context.Context, s *entity.Session) error
	ListIdleSessions(ctx context.Context, before time.Time) ([]entity.Session, error)
}

type MenuStore interface {
	ListMenuItems(ctx context.Context, category string, includeUnavailable bool) ([]entity.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*entity.MenuItem, error)
	CreateMenuItem(ctx context.Context, m *entity.MenuItem) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *entity.Order) error
	GetOrder(ctx context.Context, id string) (*entity.Order, error)
	UpdateOrder(ctx context.Context, o *entity.Order) error
	DeleteOrder(ctx context.Context, id string) error
	ListOrderLines(ctx context.Context, sessionID string, statuses ...entity.OrderStatus) ([]entity.OrderLine, error)
	// DeleteCartOrdersBefore removes cart rows created before the cutoff. An empty
	// sessionID sweeps every session.
	DeleteCartOrdersBefore(ctx context.Context, sessionID string, before time.Time) (int64, error)
	PromoteCartOrders(ctx context.Context, sessionID string, placedAt time.Time) (int64, error)
	ClearSplitBill(ctx context.Context, splitBillID string, now time.Time) error
}

type SplitBillStore interface {
	CreateSplitBill(ctx context.Context, b *entity.SplitBill) error
	GetSplitBill(ctx context.Context, id string) (*entity.SplitBill, error)
	UpdateSplitBill(ctx context.Context, b *entity.SplitBill) error
	ListSplitBills(ctx context.Context, sessionID string, status entity.SplitBillStatus) ([]entity.SplitBill, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *entity.Notification) error
	GetNotification(ctx context.Context, id string) (*entity.Notification, error)
	// TransitionNotification moves a notification from one status to the next only if
	// it is still in the expected status; otherwise it returns ErrStaleVersion.
	TransitionNotification(ctx context.Context, id string, from, to entity.NotificationStatus, staffID string, now time.Time) error
	ListStaffNotifications(ctx context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.Notification, error)
	CreateWaiterRequest(ctx context.Context, r *entity.WaiterRequest) error
	CreatePaymentNotification(ctx context.Context, p *entity.PaymentNotification) error
	ListPaymentNotifications(ctx context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.PaymentNotification, error)
	ResolvePaymentNotifications(ctx context.Context, sessionID string, now time.Time) (int64, error)
}

type StaffStore interface {
	CreateStaff(ctx context.Context, s *entity.Staff) error
	GetStaff(ctx context.Context, id string) (*entity.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (*entity.Staff, error)
	ListStaff(ctx context.Context) ([]entity.Staff, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, l *entity.AuditLog) error
}

// Store is the full persistence surface. WithTx runs fn against a transactional view;
// a non-nil error from fn rolls everything back. Calling WithTx on a transactional
// view reuses the running transaction.
type Store interface {
	TableStore
	SessionStore
	MenuStore
	OrderStore
	SplitBillStore
	NotificationStore
	StaffStore
	AuditStore

	WithTx(ctx context.Context, fn func(tx Store) error) error
}
