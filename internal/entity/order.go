package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string      `json:"id" db:"id"`
	SessionID     string      `json:"session_id" db:"session_id"`
	MenuItemID    string      `json:"menu_item_id" db:"menu_item_id"`
	Quantity      int         `json:"quantity" db:"quantity"`
	Notes         string      `json:"notes" db:"notes"`
	Status        OrderStatus `json:"status" db:"status"`
	SplitBillID   *string     `json:"split_bill_id" db:"split_bill_id"`
	CreatedByName string      `json:"created_by_name" db:"created_by_name"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
	PlacedAt      *time.Time  `json:"placed_at" db:"placed_at"`
}

func (o Order) Clone() *Order {
	if o.SplitBillID != nil {
		v := *o.SplitBillID
		o.SplitBillID = &v
	}
	if o.PlacedAt != nil {
		v := *o.PlacedAt
		o.PlacedAt = &v
	}
	return &o
}

// OrderLine is an order joined with the menu item it refers to.
type OrderLine struct {
	Order
	MenuItemName string          `json:"menu_item_name" db:"menu_item_name"`
	Price        decimal.Decimal `json:"price" db:"price"`
}

func (l OrderLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartItem is a cart line as shown to guests, with any split-bill overlay applied.
type CartItem struct {
	OrderID       string           `json:"order_id"`
	MenuItemID    string           `json:"menu_item_id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	Quantity      int              `json:"quantity"`
	Notes         string           `json:"notes"`
	LineTotal     decimal.Decimal  `json:"line_total"`
	AddedBy       string           `json:"added_by"`
	IsSplit       bool             `json:"is_split"`
	SplitBillID   *string          `json:"split_bill_id,omitempty"`
	SplitPrice    *decimal.Decimal `json:"split_price,omitempty"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	SplitCount    int              `json:"split_count,omitempty"`
	Participants  []string         `json:"participants,omitempty"`
	SplitWarning  string           `json:"split_warning,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

type Cart struct {
	SessionID string          `json:"session_id"`
	Items     []CartItem      `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Warnings  []string        `json:"warnings,omitempty"`
}
