package entity

import "time"

type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventSessionClosed    EventType = "session.closed"
	EventTableTransferred EventType = "table.transferred"
	EventOrdersPlaced     EventType = "orders.placed"
	EventOrderStatus      EventType = "order.status_changed"
	EventHelpRequested    EventType = "help.requested"
	EventPaymentRequested EventType = "payment.requested"
	EventPaymentCompleted EventType = "payment.completed"
)

// Event is published to the message broker after a state change has committed.
type Event struct {
	Type       EventType      `json:"type"`
	SessionID  string         `json:"session_id,omitempty"`
	TableID    string         `json:"table_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
