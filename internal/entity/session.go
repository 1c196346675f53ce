package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is one dining visit at a table, from PIN verification to payment.
type Session struct {
	ID            string              `json:"id" db:"id"`
	TableID       string              `json:"table_id" db:"table_id"`
	Status        SessionStatus       `json:"status" db:"status"`
	StartedByName string              `json:"started_by_name" db:"started_by_name"`
	ServedBy      *string             `json:"served_by" db:"served_by"`
	FinalTotal    decimal.NullDecimal `json:"final_total" db:"final_total"`
	PaymentStatus PaymentStatus       `json:"payment_status" db:"payment_status"`
	PaymentMethod *string             `json:"payment_method" db:"payment_method"`
	Version       int                 `json:"version" db:"version"`
	StartedAt     time.Time           `json:"started_at" db:"started_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
	EndedAt       *time.Time          `json:"ended_at" db:"ended_at"`
}

func (s *Session) IsActive() bool {
	return s.Status == SessionActive
}

func (s Session) Clone() *Session {
	if s.ServedBy != nil {
		v := *s.ServedBy
		s.ServedBy = &v
	}
	if s.PaymentMethod != nil {
		v := *s.PaymentMethod
		s.PaymentMethod = &v
	}
	if s.EndedAt != nil {
		v := *s.EndedAt
		s.EndedAt = &v
	}
	return &s
}

// SessionTotal is the bill for a session. Tax is applied to the subtotal of billable orders.
type SessionTotal struct {
	SessionID string          `json:"session_id"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}
