package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vetsaas/commerce-engine/internal/cart/application"
	"github.com/vetsaas/commerce-engine/internal/cart/domain"
	"github.com/vetsaas/commerce-engine/pkg/auth"
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
		tracer:  otel.Tracer("cart-http"),
	}
}

type addItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type removeItemReq struct {
	ProductID string `json:"productId"`
}

type addItemsReq struct {
	Items []domain.CartItem `json:"items"`
}

type cartResp struct {
	Success   bool              `json:"success"`
	Items     []domain.CartItem `json:"items,omitempty"`
	Reserved  *int              `json:"reserved,omitempty"`
	Error     string            `json:"error,omitempty"`
	Available *int              `json:"available,omitempty"`
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Require(auth.RoleCustomer))
		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addItem)
		r.Post("/cart/items/batch", h.addItems)
		r.Delete("/cart/items", h.removeItem)
	})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddCartItem")
	defer span.End()

	ac, _ := auth.FromContext(ctx)
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, cartResp{Success: false, Error: "invalid body"})
		return
	}

	cart, err := h.service.AddItem(ctx, ac, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Success: true, Items: cart.Items, Reserved: &req.Quantity})
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddCartItems")
	defer span.End()

	ac, _ := auth.FromContext(ctx)
	var req addItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, cartResp{Success: false, Error: "invalid body"})
		return
	}

	cart, err := h.service.AddItems(ctx, ac, req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Success: true, Items: cart.Items})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RemoveCartItem")
	defer span.End()

	ac, _ := auth.FromContext(ctx)
	var req removeItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, cartResp{Success: false, Error: "invalid body"})
		return
	}

	// Release is idempotent, so removal always answers 200.
	cart, err := h.service.RemoveItem(ctx, ac, req.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Success: true, Items: cart.Items})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCart")
	defer span.End()

	ac, _ := auth.FromContext(ctx)
	cart, err := h.service.GetCart(ctx, ac)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Success: true, Items: cart.Items})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if ise, ok := domain.AsInsufficientStock(err); ok {
		writeJSON(w, http.StatusBadRequest, cartResp{Success: false, Error: ise.Error(), Available: &ise.Available})
		return
	}
	if errors.Is(err, domain.ErrInvalidQuantity) {
		writeJSON(w, http.StatusBadRequest, cartResp{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, cartResp{Success: false, Error: "internal error, try again"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
