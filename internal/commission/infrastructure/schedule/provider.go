package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Provider reads per-tenant commission rates from the platform's schedule
// configuration table through a Redis read-through cache. Rates change
// rarely, so a short TTL is plenty; singleflight keeps a cold tenant from
// stampeding the table.
type Provider struct {
	log   *slog.Logger
	pool  *pgxpool.Pool
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

var ErrNoSchedule = errors.New("no commission schedule for tenant")

func NewProvider(log *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, ttl time.Duration) *Provider {
	return &Provider{log: log, pool: pool, rdb: rdb, ttl: ttl}
}

func (p *Provider) Rate(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	key := "commission:rate:" + tenantID

	if p.rdb != nil {
		cached, err := p.rdb.Get(ctx, key).Result()
		if err == nil {
			return decimal.NewFromString(cached)
		}
		if !errors.Is(err, redis.Nil) {
			p.log.Error("schedule cache read failed", "tenant_id", tenantID, "err", err)
		}
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		var rate decimal.Decimal
		err := p.pool.QueryRow(ctx, `SELECT rate FROM commission_schedules WHERE tenant_id=$1`, tenantID).Scan(&rate)
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrNoSchedule, tenantID)
		}
		if err != nil {
			return decimal.Decimal{}, err
		}
		if p.rdb != nil {
			if err := p.rdb.Set(ctx, key, rate.String(), p.ttl).Err(); err != nil {
				p.log.Error("schedule cache write failed", "tenant_id", tenantID, "err", err)
			}
		}
		return rate, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}
