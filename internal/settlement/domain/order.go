package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusPendingPrescription Status = "pending_prescription"
	StatusConfirmed           Status = "confirmed"
	StatusCancelled           Status = "cancelled"
	StatusRefunded            Status = "refunded"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid rejects a duplicate confirm; the first confirmation stands.
	ErrAlreadyPaid = errors.New("order is already paid")
	// ErrNotConfirmable rejects confirmation of a cancelled or refunded order.
	ErrNotConfirmable = errors.New("order is not in a confirmable state")
)

type Order struct {
	ID               string
	TenantID         string
	CustomerID       string
	Status           Status
	PaymentStatus    PaymentStatus
	PaymentMethod    string
	PaymentReference string
	Notes            string
	Total            decimal.Decimal
	Items            []OrderItem
	ConfirmedBy      string
	ConfirmedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Confirm records an externally completed payment and advances the order.
// The engine only moves orders forward: an order that is already paid or
// terminally cancelled/refunded is rejected, which is what makes a retried
// confirm safe.
func (o *Order) Confirm(by, method, reference, notes string, at time.Time) error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if o.Status == StatusCancelled || o.Status == StatusRefunded {
		return ErrNotConfirmable
	}

	o.PaymentStatus = PaymentPaid
	if o.Status == StatusPending || o.Status == StatusPendingPrescription {
		o.Status = StatusConfirmed
	}
	o.PaymentMethod = method
	o.PaymentReference = reference
	if notes != "" {
		o.Notes = notes
	}
	o.ConfirmedBy = by
	o.ConfirmedAt = &at
	o.UpdatedAt = at
	return nil
}
