package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetsaas/commerce-engine/internal/commission/domain"
	settlement "github.com/vetsaas/commerce-engine/internal/settlement/domain"
)

type Service struct {
	log      *slog.Logger
	repo     CommissionRepository
	schedule ScheduleProvider
}

func NewService(log *slog.Logger, repo CommissionRepository, schedule ScheduleProvider) *Service {
	return &Service{log: log, repo: repo, schedule: schedule}
}

// Calculate produces the commission for a confirmed order. Safe to call
// again for the same order: an existing row short-circuits, and a lost
// insert race resolves to the row the winner wrote.
func (s *Service) Calculate(ctx context.Context, o settlement.Order) (domain.Commission, error) {
	if existing, err := s.repo.FindByOrder(ctx, o.ID); err != nil {
		return domain.Commission{}, err
	} else if existing != nil {
		return *existing, nil
	}

	rate, err := s.schedule.Rate(ctx, o.TenantID)
	if err != nil {
		return domain.Commission{}, err
	}

	lineTotals := make([]decimal.Decimal, 0, len(o.Items))
	for _, it := range o.Items {
		lineTotals = append(lineTotals, it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	c := domain.Calculate(uuid.NewString(), o.ID, lineTotals, rate, time.Now().UTC())
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return domain.Commission{}, err
	}
	if !created {
		// Lost the insert race; the winner's row is the commission.
		existing, err := s.repo.FindByOrder(ctx, o.ID)
		if err != nil {
			return domain.Commission{}, err
		}
		if existing == nil {
			return domain.Commission{}, errors.New("commission conflict without existing row")
		}
		return *existing, nil
	}
	s.log.Info("commission calculated",
		"tenant_id", o.TenantID, "order_id", o.ID,
		"commission_id", c.ID, "amount", c.CommissionAmount.StringFixed(2))
	return c, nil
}
