package entity

import "time"

// Table is a physical restaurant table reachable through its QR code.
type Table struct {
	ID               string    `json:"id" db:"id"`
	TableNumber      int       `json:"table_number" db:"table_number"`
	Capacity         int       `json:"capacity" db:"capacity"`
	Occupied         bool      `json:"occupied" db:"occupied"`
	CurrentSessionID *string   `json:"current_session_id" db:"current_session_id"`
	CurrentPIN       *string   `json:"-" db:"current_pin"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	Version          int       `json:"version" db:"version"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Occupy binds the table to a session and the PIN its guests use.
func (t *Table) Occupy(sessionID string, pin *string) {
	t.Occupied = true
	t.CurrentSessionID = &sessionID
	t.CurrentPIN = pin
}

// Vacate frees the table and forgets its PIN.
func (t *Table) Vacate() {
	t.Occupied = false
	t.CurrentSessionID = nil
	t.CurrentPIN = nil
}

// HasPIN reports whether a PIN is currently issued.
func (t *Table) HasPIN() bool {
	return t.CurrentPIN != nil && *t.CurrentPIN != ""
}

// Clone returns a deep copy.
func (t Table) Clone() *Table {
	if t.CurrentSessionID != nil {
		v := *t.CurrentSessionID
		t.CurrentSessionID = &v
	}
	if t.CurrentPIN != nil {
		v := *t.CurrentPIN
		t.CurrentPIN = &v
	}
	return &t
}
