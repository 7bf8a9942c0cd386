package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/offsetgrid/backend/internal/middleware"
	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/session"
)

type OrderResponse struct {
	Order      *models.Order `json:"order"`
	ReceiptIDs []string      `json:"transferReceiptIds"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Checkout serves POST /checkout for the authenticated buyer.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	order, err := h.svc.Checkout(r.Context(), sess.Identity, sess.ID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthenticated):
			http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		case errors.Is(err, ErrEmptyCart):
			http.Error(w, `{"error":"empty_cart"}`, http.StatusBadRequest)
		case errors.Is(err, ErrCheckoutFailed):
			http.Error(w, `{"error":"checkout_failed"}`, http.StatusConflict)
		default:
			h.log.Error("checkout failed", "error", err)
			http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(OrderResponse{Order: order, ReceiptIDs: order.ReceiptIDs()})
}

// GetOrder serves GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	order, err := h.svc.GetOrder(r.Context(), sess.Identity, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get order failed", "order", id, "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(OrderResponse{Order: order, ReceiptIDs: order.ReceiptIDs()})
}

// ListOrders serves GET /orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	orders, err := h.svc.ListOrders(r.Context(), sess.Identity)
	if err != nil {
		h.log.Error("list orders failed", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(orders)
}
