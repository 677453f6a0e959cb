package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetsaas/commerce-engine/internal/commission/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) FindByOrder(ctx context.Context, orderID string) (*domain.Commission, error) {
	var c domain.Commission
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, commissionable_amount, commission_amount, rate, status, created_at
		FROM commissions WHERE order_id=$1`, orderID).
		Scan(&c.ID, &c.OrderID, &c.CommissionableAmount, &c.CommissionAmount, &c.Rate, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, c domain.Commission) (bool, error) {
	// order_id is unique; a concurrent calculation loses the insert and
	// reports created=false instead of an error.
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO commissions (id, order_id, commissionable_amount, commission_amount, rate, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (order_id) DO NOTHING`,
		c.ID, c.OrderID, c.CommissionableAmount, c.CommissionAmount, c.Rate, c.Status, c.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
