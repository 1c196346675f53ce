package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitBill divides one cart line evenly between named participants.
type SplitBill struct {
	ID            string          `json:"id" db:"id"`
	SessionID     string          `json:"session_id" db:"session_id"`
	MenuItemID    string          `json:"menu_item_id" db:"menu_item_id"`
	OriginalPrice decimal.Decimal `json:"original_price" db:"original_price"`
	SplitPrice    decimal.Decimal `json:"split_price" db:"split_price"`
	SplitCount    int             `json:"split_count" db:"split_count"`
	Participants  StringList      `json:"participants" db:"participants"`
	Status        SplitBillStatus `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at" db:"resolved_at"`
}

func (b SplitBill) Clone() *SplitBill {
	b.Participants = append(StringList(nil), b.Participants...)
	if b.ResolvedAt != nil {
		v := *b.ResolvedAt
		b.ResolvedAt = &v
	}
	return &b
}
