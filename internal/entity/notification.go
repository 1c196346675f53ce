package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Notification struct {
	ID             string             `json:"id" db:"id"`
	SessionID      *string            `json:"session_id" db:"session_id"`
	TableID        *string            `json:"table_id" db:"table_id"`
	Type           NotificationType   `json:"type" db:"type"`
	Status         NotificationStatus `json:"status" db:"status"`
	Message        string             `json:"message" db:"message"`
	Metadata       Metadata           `json:"metadata" db:"metadata"`
	AcknowledgedBy *string            `json:"acknowledged_by" db:"acknowledged_by"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

func (n Notification) Clone() *Notification {
	if n.Metadata != nil {
		md := make(Metadata, len(n.Metadata))
		for k, v := range n.Metadata {
			md[k] = v
		}
		n.Metadata = md
	}
	if n.AcknowledgedBy != nil {
		v := *n.AcknowledgedBy
		n.AcknowledgedBy = &v
	}
	return &n
}

// WaiterRequest is a guest asking for help at the table.
type WaiterRequest struct {
	ID          string             `json:"id" db:"id"`
	SessionID   string             `json:"session_id" db:"session_id"`
	TableID     string             `json:"table_id" db:"table_id"`
	RequestType string             `json:"request_type" db:"request_type"`
	Message     string             `json:"message" db:"message"`
	Status      NotificationStatus `json:"status" db:"status"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// PaymentNotification tells staff a table is waiting to pay.
type PaymentNotification struct {
	ID        string             `json:"id" db:"id"`
	SessionID string             `json:"session_id" db:"session_id"`
	TableID   string             `json:"table_id" db:"table_id"`
	Amount    decimal.Decimal    `json:"amount" db:"amount"`
	Method    string             `json:"method" db:"method"`
	Status    NotificationStatus `json:"status" db:"status"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}
