package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetsaas/commerce-engine/internal/settlement/application"
	"github.com/vetsaas/commerce-engine/internal/settlement/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	var o domain.Order
	var method, reference, notes, confirmedBy *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, customer_id, status, payment_status,
		       payment_method, payment_reference, notes, total,
		       confirmed_by, confirmed_at, created_at, updated_at
		FROM orders WHERE id=$1 AND tenant_id=$2`, orderID, tenantID).
		Scan(&o.ID, &o.TenantID, &o.CustomerID, &o.Status, &o.PaymentStatus,
			&method, &reference, &notes, &o.Total,
			&confirmedBy, &o.ConfirmedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.PaymentMethod = deref(method)
	o.PaymentReference = deref(reference)
	o.Notes = deref(notes)
	o.ConfirmedBy = deref(confirmedBy)

	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, unit_price FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repository) ConfirmWithOutbox(ctx context.Context, o domain.Order, msgs []application.OutboxMessage, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The WHERE clause re-asserts the precondition under the row's write
	// lock; a confirm that raced another writer updates zero rows.
	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$3, payment_status='paid', payment_method=$4,
		    payment_reference=$5, notes=$6, confirmed_by=$7, confirmed_at=$8, updated_at=$8
		WHERE id=$1 AND tenant_id=$2
		  AND payment_status='unpaid'
		  AND status NOT IN ('cancelled','refunded')`,
		o.ID, o.TenantID, o.Status, o.PaymentMethod,
		o.PaymentReference, o.Notes, o.ConfirmedBy, o.ConfirmedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.confirmConflict(ctx, o.ID, o.TenantID)
	}

	for _, m := range msgs {
		_, err = tx.Exec(ctx, `
			INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,'pending')`,
			"order", o.ID, m.Type, m.Payload, traceparent)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) confirmConflict(ctx context.Context, orderID, tenantID string) error {
	var status domain.Status
	var payment domain.PaymentStatus
	err := r.pool.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id=$1 AND tenant_id=$2`, orderID, tenantID).
		Scan(&status, &payment)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if payment == domain.PaymentPaid {
		return domain.ErrAlreadyPaid
	}
	return domain.ErrNotConfirmable
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
