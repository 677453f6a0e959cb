package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/vetsaas/commerce-engine/internal/cart/domain"
	"github.com/vetsaas/commerce-engine/pkg/auth"
)

type Service struct {
	log  *slog.Logger
	repo ReservationRepository
}

func NewService(log *slog.Logger, repo ReservationRepository) *Service {
	return &Service{log: log, repo: repo}
}

// AddItem reserves stock for one product and mirrors the result into the
// cart's item list. Quantity is absolute; zero means remove and routes to
// Release.
func (s *Service) AddItem(ctx context.Context, ac auth.Context, productID string, quantity int) (domain.Cart, error) {
	if quantity < 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, ac, productID)
	}

	cart, err := s.repo.Reserve(ctx, ac.TenantID, ac.UserID, productID, quantity)
	if err != nil {
		if ise, ok := domain.AsInsufficientStock(err); ok {
			s.log.Info("reservation rejected",
				"tenant_id", ac.TenantID, "customer_id", ac.UserID,
				"product_id", productID, "requested", quantity, "available", ise.Available)
			return domain.Cart{}, err
		}
		s.log.Error("reserve failed",
			"tenant_id", ac.TenantID, "customer_id", ac.UserID,
			"product_id", productID, "err", err)
		return domain.Cart{}, err
	}
	return cart, nil
}

// AddItems is the all-or-nothing batch form: either every line item is
// reserved or none are. Items are lock-ordered by product id before the
// repository is asked to apply them.
func (s *Service) AddItems(ctx context.Context, ac auth.Context, items []domain.CartItem) (domain.Cart, error) {
	for _, it := range items {
		if it.Quantity <= 0 {
			return domain.Cart{}, domain.ErrInvalidQuantity
		}
	}
	sorted := make([]domain.CartItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	cart, err := s.repo.ReserveMany(ctx, ac.TenantID, ac.UserID, sorted)
	if err != nil {
		if ise, ok := domain.AsInsufficientStock(err); ok {
			s.log.Info("batch reservation rejected",
				"tenant_id", ac.TenantID, "customer_id", ac.UserID,
				"product_id", ise.ProductID, "available", ise.Available)
			return domain.Cart{}, err
		}
		s.log.Error("batch reserve failed", "tenant_id", ac.TenantID, "customer_id", ac.UserID, "err", err)
		return domain.Cart{}, err
	}
	return cart, nil
}

// RemoveItem releases the reservation and removes the line item. Idempotent.
func (s *Service) RemoveItem(ctx context.Context, ac auth.Context, productID string) (domain.Cart, error) {
	cart, err := s.repo.Release(ctx, ac.TenantID, ac.UserID, productID)
	if err != nil {
		s.log.Error("release failed",
			"tenant_id", ac.TenantID, "customer_id", ac.UserID,
			"product_id", productID, "err", err)
		return domain.Cart{}, err
	}
	return cart, nil
}

func (s *Service) GetCart(ctx context.Context, ac auth.Context) (domain.Cart, error) {
	return s.repo.GetCart(ctx, ac.TenantID, ac.UserID)
}

// ReleaseExpired releases reservations untouched for longer than ttl, one
// per-product transaction at a time. The trigger policy lives with the
// external scheduled job; this is just its entry point.
func (s *Service) ReleaseExpired(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	stale, err := s.repo.StaleReservations(ctx, time.Now().UTC().Add(-ttl), limit)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, r := range stale {
		if err := s.repo.ReleaseByCart(ctx, r.TenantID, r.CartID, r.ProductID); err != nil {
			s.log.Error("expiry release failed",
				"tenant_id", r.TenantID, "cart_id", r.CartID, "product_id", r.ProductID, "err", err)
			continue
		}
		released++
	}
	if released > 0 {
		s.log.Info("expired reservations released", "count", released)
	}
	return released, nil
}
