package entity

import "fmt"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a session may move from s to next.
// Only an active session can end, and it ends exactly once.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionActive:
		return next == SessionCompleted || next == SessionCancelled
	case SessionCompleted, SessionCancelled:
		return false
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentRequested PaymentStatus = "requested"
	PaymentPaid      PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentRequested, PaymentPaid:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderCart      OrderStatus = "cart"
	OrderPlaced    OrderStatus = "placed"
	OrderWaiting   OrderStatus = "waiting"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCancelled OrderStatus = "cancelled"
)

// BillableOrderStatuses are the statuses counted towards a session total.
var BillableOrderStatuses = []OrderStatus{OrderPlaced, OrderWaiting, OrderPreparing, OrderReady, OrderServed}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderCart, OrderPlaced, OrderWaiting, OrderPreparing, OrderReady, OrderServed, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Billable() bool {
	switch s {
	case OrderPlaced, OrderWaiting, OrderPreparing, OrderReady, OrderServed:
		return true
	case OrderCart, OrderCancelled:
		return false
	}
	return false
}

// CanTransitionTo only allows the kitchen flow to move forward.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderCart:
		return next == OrderPlaced || next == OrderCancelled
	case OrderPlaced:
		return next == OrderWaiting || next == OrderPreparing || next == OrderCancelled
	case OrderWaiting:
		return next == OrderPreparing || next == OrderCancelled
	case OrderPreparing:
		return next == OrderReady || next == OrderCancelled
	case OrderReady:
		return next == OrderServed
	case OrderServed, OrderCancelled:
		return false
	}
	return false
}

type SplitBillStatus string

const (
	SplitBillActive   SplitBillStatus = "active"
	SplitBillResolved SplitBillStatus = "resolved"
)

func (s SplitBillStatus) Valid() bool {
	switch s {
	case SplitBillActive, SplitBillResolved:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationPending      NotificationStatus = "pending"
	NotificationAcknowledged NotificationStatus = "acknowledged"
	NotificationResolved     NotificationStatus = "resolved"
)

func (s NotificationStatus) rank() int {
	switch s {
	case NotificationPending:
		return 1
	case NotificationAcknowledged:
		return 2
	case NotificationResolved:
		return 3
	}
	return 0
}

func (s NotificationStatus) Valid() bool {
	return s.rank() > 0
}

// CanTransitionTo enforces pending -> acknowledged -> resolved; steps may be skipped
// but never reversed.
func (s NotificationStatus) CanTransitionTo(next NotificationStatus) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

type NotificationType string

const (
	NotificationTableTransfer    NotificationType = "table_transfer"
	NotificationHelpRequest      NotificationType = "help_request"
	NotificationPaymentRequest   NotificationType = "payment_request"
	NotificationNewOrder         NotificationType = "new_order"
	NotificationPaymentCompleted NotificationType = "payment_completed"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTableTransfer, NotificationHelpRequest, NotificationPaymentRequest,
		NotificationNewOrder, NotificationPaymentCompleted:
		return true
	}
	return false
}

type StaffRole string

const (
	RoleWaiter  StaffRole = "waiter"
	RoleManager StaffRole = "manager"
	RoleAdmin   StaffRole = "admin"
)

func (r StaffRole) Valid() bool {
	switch r {
	case RoleWaiter, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// AtLeast reports whether r grants everything min grants.
func (r StaffRole) AtLeast(min StaffRole) bool {
	level := func(role StaffRole) int {
		switch role {
		case RoleWaiter:
			return 1
		case RoleManager:
			return 2
		case RoleAdmin:
			return 3
		}
		return 0
	}
	return level(r) > 0 && level(r) >= level(min)
}
