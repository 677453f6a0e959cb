package application

import (
	"context"

	commission "github.com/vetsaas/commerce-engine/internal/commission/domain"
	"github.com/vetsaas/commerce-engine/internal/settlement/domain"
)

// OutboxMessage is a side-effect request written in the same transaction as
// the order update and delivered asynchronously by the outbox relay.
type OutboxMessage struct {
	Type    string
	Payload []byte
}

type OrderRepository interface {
	Get(ctx context.Context, tenantID, orderID string) (domain.Order, error)

	// ConfirmWithOutbox persists the confirmed order and its outbox messages
	// as one transaction. The update re-asserts the confirmable state in the
	// database, so a confirm that lost a race returns the same business
	// outcome a stale read would have.
	ConfirmWithOutbox(ctx context.Context, o domain.Order, msgs []OutboxMessage, traceparent string) error
}

type CommissionCalculator interface {
	Calculate(ctx context.Context, o domain.Order) (commission.Commission, error)
}

// DuplicateGuard is a fast-path duplicate-confirm detector. The database
// state check stays authoritative; this only short-cuts logging and metrics
// for obvious retries.
type DuplicateGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
}
