package domain

import "time"

// OrderConfirmed is handed to the notification sink after settlement.
type OrderConfirmed struct {
	OrderID       string    `json:"order_id"`
	TenantID      string    `json:"tenant_id"`
	CustomerID    string    `json:"customer_id"`
	Total         string    `json:"total"`
	PaymentMethod string    `json:"payment_method"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// AuditEntry records who settled which order, for the platform audit log.
type AuditEntry struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	TenantID   string    `json:"tenant_id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
