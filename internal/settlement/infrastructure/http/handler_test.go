package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commission "github.com/vetsaas/commerce-engine/internal/commission/domain"
	"github.com/vetsaas/commerce-engine/internal/settlement/application"
	"github.com/vetsaas/commerce-engine/internal/settlement/domain"
	"github.com/vetsaas/commerce-engine/pkg/auth"
)

type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func (s *stubOrderRepo) Get(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubOrderRepo) ConfirmWithOutbox(_ context.Context, o domain.Order, _ []application.OutboxMessage, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[o.ID]
	if stored.PaymentStatus == domain.PaymentPaid {
		return domain.ErrAlreadyPaid
	}
	s.orders[o.ID] = o
	return nil
}

type stubCalculator struct{}

func (stubCalculator) Calculate(_ context.Context, o domain.Order) (commission.Commission, error) {
	return commission.Commission{ID: "comm-1", OrderID: o.ID}, nil
}

func newTestRouter(repo *stubOrderRepo) http.Handler {
	svc := application.NewService(slog.Default(), repo, stubCalculator{}, nil)
	h := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	r.Use(auth.Middleware)
	h.Register(r)
	return r
}

func pendingRepo() *stubOrderRepo {
	now := time.Now().UTC()
	return &stubOrderRepo{orders: map[string]domain.Order{
		"o1": {
			ID: "o1", TenantID: "clinic-1", CustomerID: "cust-1",
			Status: domain.StatusPending, PaymentStatus: domain.PaymentUnpaid,
			Total: decimal.RequireFromString("42.50"), CreatedAt: now,
		},
	}}
}

func doConfirm(t *testing.T, h http.Handler, orderID, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID+"/confirm", strings.NewReader(body))
	if role != "" {
		req.Header.Set("X-User-Id", "user-1")
		req.Header.Set("X-Tenant-Id", "clinic-1")
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConfirmEndpoint(t *testing.T) {
	h := newTestRouter(pendingRepo())
	rec := doConfirm(t, h, "o1", `{"payment_method":"cash"}`, "staff")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, `"payment_status":"paid"`)
	assert.Contains(t, body, `"status":"confirmed"`)
	assert.Contains(t, body, `"calculated":true`)
	assert.Contains(t, body, `"id":"comm-1"`)
}

func TestConfirmTwiceReturnsConflict(t *testing.T) {
	h := newTestRouter(pendingRepo())

	rec := doConfirm(t, h, "o1", `{"payment_method":"cash"}`, "staff")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doConfirm(t, h, "o1", `{"payment_method":"cash"}`, "staff")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already paid")
}

func TestConfirmUnknownOrder(t *testing.T) {
	h := newTestRouter(pendingRepo())
	rec := doConfirm(t, h, "nope", `{}`, "staff")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmRequiresStaff(t *testing.T) {
	h := newTestRouter(pendingRepo())

	rec := doConfirm(t, h, "o1", `{}`, "customer")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doConfirm(t, h, "o1", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	h := newTestRouter(pendingRepo())
	req := httptest.NewRequest(http.MethodGet, "/orders/o1", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Tenant-Id", "clinic-1")
	req.Header.Set("X-User-Role", "staff")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":"42.50"`)
}
