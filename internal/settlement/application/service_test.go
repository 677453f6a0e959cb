package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commission "github.com/vetsaas/commerce-engine/internal/commission/domain"
	"github.com/vetsaas/commerce-engine/internal/settlement/domain"
	"github.com/vetsaas/commerce-engine/pkg/auth"
)

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	outbox []OutboxMessage
}

func newMemOrderRepo(orders ...domain.Order) *memOrderRepo {
	m := &memOrderRepo{orders: map[string]domain.Order{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrderRepo) Get(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (m *memOrderRepo) ConfirmWithOutbox(_ context.Context, o domain.Order, msgs []OutboxMessage, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	// Same guard the SQL re-asserts.
	if stored.PaymentStatus == domain.PaymentPaid {
		return domain.ErrAlreadyPaid
	}
	if stored.Status == domain.StatusCancelled || stored.Status == domain.StatusRefunded {
		return domain.ErrNotConfirmable
	}
	m.orders[o.ID] = o
	m.outbox = append(m.outbox, msgs...)
	return nil
}

type fakeCalculator struct {
	mu       sync.Mutex
	calls    int
	failNext int
}

func (f *fakeCalculator) Calculate(_ context.Context, o domain.Order) (commission.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext > 0 {
		f.failNext--
		return commission.Commission{}, errors.New("schedule lookup timed out")
	}
	return commission.Commission{ID: "comm-" + o.ID, OrderID: o.ID}, nil
}

type fakeGuard struct{ keys map[string]bool }

func (f *fakeGuard) Seen(_ context.Context, key string) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	seen := f.keys[key]
	f.keys[key] = true
	return seen, nil
}

func staff() auth.Context {
	return auth.Context{UserID: "staff-1", TenantID: "clinic-1", Role: auth.RoleStaff}
}

func pendingOrder(id string) domain.Order {
	return domain.Order{
		ID:            id,
		TenantID:      "clinic-1",
		CustomerID:    "cust-1",
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentUnpaid,
		Total:         decimal.RequireFromString("42.50"),
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("21.25")},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func newTestService(repo *memOrderRepo, calc *fakeCalculator) *Service {
	return NewService(slog.Default(), repo, calc, &fakeGuard{})
}

func TestConfirmSettlesOrder(t *testing.T) {
	repo := newMemOrderRepo(pendingOrder("o1"))
	calc := &fakeCalculator{}
	svc := newTestService(repo, calc)

	order, outcome, err := svc.Confirm(context.Background(), staff(), "o1", "cash", "ref-9", "", "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "staff-1", order.ConfirmedBy)
	assert.True(t, outcome.Calculated)
	assert.Equal(t, "comm-o1", outcome.CommissionID)
	assert.Equal(t, 1, calc.calls)

	// Notification and audit requests landed with the order update.
	require.Len(t, repo.outbox, 2)
	assert.Equal(t, EventOrderConfirmed, repo.outbox[0].Type)
	assert.Equal(t, EventAuditEntry, repo.outbox[1].Type)
}

func TestConfirmTwiceConflictsOnce(t *testing.T) {
	repo := newMemOrderRepo(pendingOrder("o1"))
	calc := &fakeCalculator{}
	svc := newTestService(repo, calc)
	ctx := context.Background()

	_, _, err := svc.Confirm(ctx, staff(), "o1", "cash", "", "", "")
	require.NoError(t, err)

	_, _, err = svc.Confirm(ctx, staff(), "o1", "cash", "", "", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	// Payment confirmed once, commission calculated once, side effects once.
	assert.Equal(t, 1, calc.calls)
	assert.Len(t, repo.outbox, 2)
}

func TestConfirmWrongTenant(t *testing.T) {
	repo := newMemOrderRepo(pendingOrder("o1"))
	svc := newTestService(repo, &fakeCalculator{})

	other := auth.Context{UserID: "staff-2", TenantID: "clinic-2", Role: auth.RoleStaff}
	_, _, err := svc.Confirm(context.Background(), other, "o1", "cash", "", "", "")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestConfirmCancelledOrder(t *testing.T) {
	o := pendingOrder("o1")
	o.Status = domain.StatusCancelled
	repo := newMemOrderRepo(o)
	svc := newTestService(repo, &fakeCalculator{})

	_, _, err := svc.Confirm(context.Background(), staff(), "o1", "cash", "", "", "")
	assert.ErrorIs(t, err, domain.ErrNotConfirmable)
	assert.Empty(t, repo.outbox)
}

func TestCommissionFailureDoesNotUnsettle(t *testing.T) {
	repo := newMemOrderRepo(pendingOrder("o1"))
	calc := &fakeCalculator{failNext: 1}
	svc := newTestService(repo, calc)

	order, outcome, err := svc.Confirm(context.Background(), staff(), "o1", "insurance", "", "", "")
	require.NoError(t, err)

	// The order stays settled; the miss is reported for async retry.
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.False(t, outcome.Calculated)
	assert.Equal(t, "commission not calculated", outcome.Error)

	stored, err := repo.Get(context.Background(), "clinic-1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func TestConcurrentConfirmsPayExactlyOnce(t *testing.T) {
	repo := newMemOrderRepo(pendingOrder("o1"))
	calc := &fakeCalculator{}
	svc := newTestService(repo, calc)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Confirm(ctx, staff(), "o1", "cash", "", "", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyPaid):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, conflicts)
	assert.Equal(t, 1, calc.calls)
	assert.Len(t, repo.outbox, 2)
}
