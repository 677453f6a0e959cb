package application

import (
	"context"
	"time"

	"github.com/vetsaas/commerce-engine/internal/cart/domain"
)

// ReservationRepository is the sole writer of the stock ledger, the
// reservation store and the cart item rows. Every mutation of one
// (tenant, product) ledger row happens under that row's lock, inside a
// single all-or-nothing transaction.
type ReservationRepository interface {
	// Reserve sets the reservation for (cart, product) to the absolute
	// quantity, adjusting the ledger by the delta against any existing
	// reservation. Returns domain.InsufficientStockError when the delta
	// exceeds available stock.
	Reserve(ctx context.Context, tenantID, customerID, productID string, quantity int) (domain.Cart, error)

	// ReserveMany applies all items or none, locking ledger rows in
	// product-id order.
	ReserveMany(ctx context.Context, tenantID, customerID string, items []domain.CartItem) (domain.Cart, error)

	// Release drops the reservation and credits its quantity back.
	// Idempotent: releasing a product that holds no reservation succeeds.
	Release(ctx context.Context, tenantID, customerID, productID string) (domain.Cart, error)

	// ReleaseByCart is Release keyed by cart id rather than customer id,
	// for callers that hold a reservation row (the expiry sweep).
	ReleaseByCart(ctx context.Context, tenantID, cartID, productID string) error

	GetCart(ctx context.Context, tenantID, customerID string) (domain.Cart, error)

	// StaleReservations lists reservations untouched since the cutoff, for
	// the external expiry sweep.
	StaleReservations(ctx context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error)
}
