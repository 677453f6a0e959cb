package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vetsaas/commerce-engine/internal/commission/domain"
)

type CommissionRepository interface {
	FindByOrder(ctx context.Context, orderID string) (*domain.Commission, error)

	// Create inserts the commission row, reporting created=false when a row
	// for the same order already exists (the unique-constraint safety net).
	Create(ctx context.Context, c domain.Commission) (created bool, err error)
}

// ScheduleProvider reads the tenant's commission rate from the platform's
// schedule configuration.
type ScheduleProvider interface {
	Rate(ctx context.Context, tenantID string) (decimal.Decimal, error)
}
