package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetsaas/commerce-engine/internal/cart/domain"
)

// Repository owns every write to stock_ledger, reservations and cart_items.
// Each mutation locks the (tenant, product) ledger row first, so concurrent
// calls for the same product are totally ordered while different products
// proceed in parallel.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Reserve(ctx context.Context, tenantID, customerID, productID string, quantity int) (domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Cart{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cartID, err := ensureCart(ctx, tx, tenantID, customerID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := reserveOne(ctx, tx, tenantID, cartID, productID, quantity); err != nil {
		return domain.Cart{}, err
	}

	cart, err := readCart(ctx, tx, tenantID, customerID, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, tx.Commit(ctx)
}

func (r *Repository) ReserveMany(ctx context.Context, tenantID, customerID string, items []domain.CartItem) (domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Cart{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cartID, err := ensureCart(ctx, tx, tenantID, customerID)
	if err != nil {
		return domain.Cart{}, err
	}
	// Caller pre-sorts by product id; locks are therefore acquired in a
	// fixed order and two concurrent batches cannot deadlock.
	for _, it := range items {
		if err := reserveOne(ctx, tx, tenantID, cartID, it.ProductID, it.Quantity); err != nil {
			return domain.Cart{}, err
		}
	}

	cart, err := readCart(ctx, tx, tenantID, customerID, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, tx.Commit(ctx)
}

func (r *Repository) Release(ctx context.Context, tenantID, customerID, productID string) (domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Cart{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var cartID string
	err = tx.QueryRow(ctx, `SELECT id FROM carts WHERE customer_id=$1 AND tenant_id=$2`, customerID, tenantID).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		// No cart means no reservation to release.
		return domain.Cart{TenantID: tenantID, CustomerID: customerID}, tx.Commit(ctx)
	}
	if err != nil {
		return domain.Cart{}, err
	}

	if err := releaseOne(ctx, tx, tenantID, cartID, productID); err != nil {
		return domain.Cart{}, err
	}

	cart, err := readCart(ctx, tx, tenantID, customerID, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, tx.Commit(ctx)
}

func (r *Repository) ReleaseByCart(ctx context.Context, tenantID, cartID, productID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := releaseOne(ctx, tx, tenantID, cartID, productID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetCart(ctx context.Context, tenantID, customerID string) (domain.Cart, error) {
	var cartID string
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, created_at FROM carts WHERE customer_id=$1 AND tenant_id=$2`, customerID, tenantID).
		Scan(&cartID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{TenantID: tenantID, CustomerID: customerID}, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}

	cart := domain.Cart{ID: cartID, CustomerID: customerID, TenantID: tenantID, CreatedAt: createdAt}
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity FROM cart_items WHERE cart_id=$1 ORDER BY product_id`, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return domain.Cart{}, err
		}
		cart.Items = append(cart.Items, it)
	}
	return cart, rows.Err()
}

func (r *Repository) StaleReservations(ctx context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cart_id, product_id, tenant_id, quantity, created_at, updated_at
		FROM reservations
		WHERE updated_at < $1
		ORDER BY updated_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.CartID, &res.ProductID, &res.TenantID, &res.Quantity, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// reserveOne applies one absolute-quantity reservation under the product's
// ledger row lock. The ledger delta, the reservation upsert and the cart
// item upsert land together or not at all.
func reserveOne(ctx context.Context, tx pgx.Tx, tenantID, cartID, productID string, quantity int) error {
	var available, reserved int
	err := tx.QueryRow(ctx, `
		SELECT available_qty, reserved_qty FROM stock_ledger
		WHERE tenant_id=$1 AND product_id=$2
		FOR UPDATE`, tenantID, productID).Scan(&available, &reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		// Product was never stocked for this tenant.
		return &domain.InsufficientStockError{ProductID: productID, Available: 0}
	}
	if err != nil {
		return err
	}

	oldQty := 0
	err = tx.QueryRow(ctx, `SELECT quantity FROM reservations WHERE cart_id=$1 AND product_id=$2`, cartID, productID).Scan(&oldQty)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	delta := quantity - oldQty
	if delta > available {
		return &domain.InsufficientStockError{ProductID: productID, Available: available}
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_ledger
		SET available_qty = available_qty - $3, reserved_qty = reserved_qty + $3, updated_at = now()
		WHERE tenant_id=$1 AND product_id=$2`, tenantID, productID, delta)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (cart_id, product_id, tenant_id, quantity)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity=$4, updated_at=now()`,
		cartID, productID, tenantID, quantity)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1,$2,$3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity=$3`,
		cartID, productID, quantity)
	return err
}

// releaseOne credits a reservation back to the ledger under the same row
// lock discipline. Releasing a product with no live reservation is a no-op.
func releaseOne(ctx context.Context, tx pgx.Tx, tenantID, cartID, productID string) error {
	var available, reserved int
	err := tx.QueryRow(ctx, `
		SELECT available_qty, reserved_qty FROM stock_ledger
		WHERE tenant_id=$1 AND product_id=$2
		FOR UPDATE`, tenantID, productID).Scan(&available, &reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	var qty int
	err = tx.QueryRow(ctx, `
		DELETE FROM reservations WHERE cart_id=$1 AND product_id=$2
		RETURNING quantity`, cartID, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_ledger
		SET available_qty = available_qty + $3, reserved_qty = reserved_qty - $3, updated_at = now()
		WHERE tenant_id=$1 AND product_id=$2`, tenantID, productID, qty)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	return err
}

func ensureCart(ctx context.Context, tx pgx.Tx, tenantID, customerID string) (string, error) {
	var cartID string
	err := tx.QueryRow(ctx, `
		INSERT INTO carts (id, customer_id, tenant_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (customer_id, tenant_id) DO UPDATE SET customer_id=EXCLUDED.customer_id
		RETURNING id`, uuid.NewString(), customerID, tenantID).Scan(&cartID)
	return cartID, err
}

func readCart(ctx context.Context, tx pgx.Tx, tenantID, customerID, cartID string) (domain.Cart, error) {
	cart := domain.Cart{ID: cartID, CustomerID: customerID, TenantID: tenantID}
	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM cart_items WHERE cart_id=$1 ORDER BY product_id`, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return domain.Cart{}, err
		}
		cart.Items = append(cart.Items, it)
	}
	return cart, rows.Err()
}
