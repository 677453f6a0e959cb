package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vetsaas/commerce-engine/internal/settlement/application"
	"github.com/vetsaas/commerce-engine/internal/settlement/domain"
	"github.com/vetsaas/commerce-engine/pkg/auth"
	"github.com/vetsaas/commerce-engine/pkg/tracing"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("settlement-http"),
	}
}

type confirmReq struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes"`
}

type orderView struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Total            string `json:"total"`
	ConfirmedBy      string `json:"confirmed_by,omitempty"`
	ConfirmedAt      string `json:"confirmed_at,omitempty"`
}

type confirmResp struct {
	Success    bool                           `json:"success"`
	Order      *orderView                     `json:"order,omitempty"`
	Commission *application.CommissionOutcome `json:"commission,omitempty"`
	Message    string                         `json:"message,omitempty"`
	Error      string                         `json:"error,omitempty"`
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Require(auth.RoleStaff))
		r.Post("/orders/{id}/confirm", h.confirm)
		r.Get("/orders/{id}", h.getOrder)
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmOrder")
	defer span.End()

	ac, _ := auth.FromContext(ctx)
	orderID := chi.URLParam(r, "id")

	var req confirmReq
	if r.Body != nil {
		// Body is optional; an empty confirm records no payment metadata.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	traceparent := r.Header.Get(tracing.TraceparentHeader)
	if traceparent == "" {
		traceparent = tracing.Traceparent(ctx)
	}

	order, outcome, err := h.service.Confirm(ctx, ac, orderID, req.PaymentMethod, req.PaymentReference, req.Notes, traceparent)
	if err != nil {
		h.writeError(w, err)
		return
	}

	msg := "order confirmed and paid"
	if !outcome.Calculated {
		msg = "order confirmed and paid; commission pending recalculation"
	}
	writeJSON(w, http.StatusOK, confirmResp{
		Success:    true,
		Order:      viewOf(order),
		Commission: &outcome,
		Message:    msg,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	ac, _ := auth.FromContext(ctx)
	order, err := h.service.Get(ctx, ac, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResp{Success: true, Order: viewOf(order)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, confirmResp{Success: false, Error: "order not found"})
	case errors.Is(err, domain.ErrAlreadyPaid), errors.Is(err, domain.ErrNotConfirmable):
		writeJSON(w, http.StatusBadRequest, confirmResp{Success: false, Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, confirmResp{Success: false, Error: "internal error, try again"})
	}
}

func viewOf(o domain.Order) *orderView {
	v := &orderView{
		ID:               o.ID,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		Total:            o.Total.StringFixed(2),
		ConfirmedBy:      o.ConfirmedBy,
	}
	if o.ConfirmedAt != nil {
		v.ConfirmedAt = o.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
