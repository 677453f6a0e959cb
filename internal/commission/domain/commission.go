package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCalculated Status = "calculated"
	StatusInvoiced   Status = "invoiced"
	StatusPaid       Status = "paid"
	StatusWaived     Status = "waived"
	StatusAdjusted   Status = "adjusted"
)

// Commission is the platform's cut of one confirmed order. Exactly one
// exists per confirmed order.
type Commission struct {
	ID                   string
	OrderID              string
	CommissionableAmount decimal.Decimal
	CommissionAmount     decimal.Decimal
	Rate                 decimal.Decimal
	Status               Status
	CreatedAt            time.Time
}

// Calculate is the pure computation: commissionable amount is the sum of the
// order's line items, the commission is that amount times the tenant rate,
// rounded to cents.
func Calculate(id, orderID string, lineTotals []decimal.Decimal, rate decimal.Decimal, at time.Time) Commission {
	commissionable := decimal.Zero
	for _, t := range lineTotals {
		commissionable = commissionable.Add(t)
	}
	return Commission{
		ID:                   id,
		OrderID:              orderID,
		CommissionableAmount: commissionable.Round(2),
		CommissionAmount:     commissionable.Mul(rate).Round(2),
		Rate:                 rate,
		Status:               StatusCalculated,
		CreatedAt:            at,
	}
}
