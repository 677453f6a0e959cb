package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vetsaas/commerce-engine/internal/settlement/domain"
	"github.com/vetsaas/commerce-engine/pkg/auth"
)

const (
	EventOrderConfirmed = "OrderConfirmed"
	EventAuditEntry     = "AuditEntry"
)

// CommissionOutcome reports whether the commission step of a settlement
// landed. A false Calculated never implies the confirmation failed.
type CommissionOutcome struct {
	Calculated   bool   `json:"calculated"`
	CommissionID string `json:"id,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Service struct {
	log        *slog.Logger
	repo       OrderRepository
	calculator CommissionCalculator
	guard      DuplicateGuard
}

func NewService(log *slog.Logger, repo OrderRepository, calculator CommissionCalculator, guard DuplicateGuard) *Service {
	return &Service{log: log, repo: repo, calculator: calculator, guard: guard}
}

// Confirm settles an order: records the externally completed payment,
// advances the status, writes the notification and audit requests to the
// outbox in the same transaction, then calculates the commission. The
// commission step is non-fatal; payment confirmation is never rolled back
// because of a downstream accounting failure.
func (s *Service) Confirm(ctx context.Context, ac auth.Context, orderID, method, reference, notes, traceparent string) (domain.Order, CommissionOutcome, error) {
	o, err := s.repo.Get(ctx, ac.TenantID, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			s.log.Error("order load failed", "tenant_id", ac.TenantID, "order_id", orderID, "err", err)
		}
		return domain.Order{}, CommissionOutcome{}, err
	}

	if s.guard != nil {
		if seen, gerr := s.guard.Seen(ctx, "confirm:"+ac.TenantID+":"+orderID); gerr == nil && seen {
			s.log.Info("duplicate confirm attempt", "tenant_id", ac.TenantID, "order_id", orderID)
		}
	}

	now := time.Now().UTC()
	if err := o.Confirm(ac.UserID, method, reference, notes, now); err != nil {
		return domain.Order{}, CommissionOutcome{}, err
	}

	msgs, err := settlementMessages(o, now)
	if err != nil {
		return domain.Order{}, CommissionOutcome{}, err
	}
	if err := s.repo.ConfirmWithOutbox(ctx, o, msgs, traceparent); err != nil {
		if errors.Is(err, domain.ErrAlreadyPaid) || errors.Is(err, domain.ErrNotConfirmable) {
			return domain.Order{}, CommissionOutcome{}, err
		}
		s.log.Error("confirm persist failed", "tenant_id", ac.TenantID, "order_id", orderID, "err", err)
		return domain.Order{}, CommissionOutcome{}, err
	}
	s.log.Info("order settled",
		"tenant_id", ac.TenantID, "order_id", orderID,
		"confirmed_by", ac.UserID, "payment_method", method)

	return o, s.calculateCommission(ctx, o), nil
}

func (s *Service) Get(ctx context.Context, ac auth.Context, orderID string) (domain.Order, error) {
	return s.repo.Get(ctx, ac.TenantID, orderID)
}

func (s *Service) calculateCommission(ctx context.Context, o domain.Order) CommissionOutcome {
	c, err := s.calculator.Calculate(ctx, o)
	if err != nil {
		// Non-fatal: the order stays confirmed and paid. The reconciliation
		// job retries commission calculation from this signal.
		s.log.Error("commission calculation failed",
			"tenant_id", o.TenantID, "order_id", o.ID, "err", err)
		return CommissionOutcome{Calculated: false, Error: "commission not calculated"}
	}
	return CommissionOutcome{Calculated: true, CommissionID: c.ID}
}

func settlementMessages(o domain.Order, at time.Time) ([]OutboxMessage, error) {
	notification, err := json.Marshal(domain.OrderConfirmed{
		OrderID:       o.ID,
		TenantID:      o.TenantID,
		CustomerID:    o.CustomerID,
		Total:         o.Total.StringFixed(2),
		PaymentMethod: o.PaymentMethod,
		ConfirmedAt:   at,
	})
	if err != nil {
		return nil, err
	}
	audit, err := json.Marshal(domain.AuditEntry{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		TenantID:   o.TenantID,
		Action:     "order.confirmed",
		ActorID:    o.ConfirmedBy,
		OccurredAt: at,
	})
	if err != nil {
		return nil, err
	}
	return []OutboxMessage{
		{Type: EventOrderConfirmed, Payload: notification},
		{Type: EventAuditEntry, Payload: audit},
	}, nil
}
