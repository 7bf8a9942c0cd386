package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/offsetgrid/backend/internal/middleware"
	"github.com/offsetgrid/backend/internal/models"
)

type AddLineRequest struct {
	ClassID  string       `json:"classId"`
	Quantity int64        `json:"quantity"`
	Class    models.Class `json:"class"`
}

type SetQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type CartResponse struct {
	Lines  []models.CartLine `json:"lines"`
	Totals models.CartTotals `json:"totals"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Get serves GET /cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	lines, err := h.svc.Lines(r.Context(), sess.ID)
	if err != nil {
		h.log.Error("get cart failed", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	h.respond(w, lines)
}

// AddLine serves POST /cart/lines.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	var req AddLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if req.ClassID == "" {
		http.Error(w, `{"error":"missing_class_id"}`, http.StatusBadRequest)
		return
	}
	lines, err := h.svc.AddOrUpdate(r.Context(), sess.ID, req.ClassID, req.Quantity, req.Class)
	if err != nil {
		if errors.Is(err, ErrInvalidQuantity) {
			http.Error(w, `{"error":"invalid_quantity"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("add cart line failed", "class", req.ClassID, "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	h.respond(w, lines)
}

// SetQuantity serves PATCH /cart/lines/{classId}. Quantity zero removes the line.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	classID := r.PathValue("classId")
	var req SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	lines, err := h.svc.SetQuantity(r.Context(), sess.ID, classID, req.Quantity)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			http.Error(w, `{"error":"line_not_found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("set cart quantity failed", "class", classID, "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	h.respond(w, lines)
}

// RemoveLine serves DELETE /cart/lines/{classId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	classID := r.PathValue("classId")
	lines, err := h.svc.Remove(r.Context(), sess.ID, classID)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			http.Error(w, `{"error":"line_not_found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("remove cart line failed", "class", classID, "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	h.respond(w, lines)
}

// Clear serves DELETE /cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	if err := h.svc.Clear(r.Context(), sess.ID); err != nil {
		h.log.Error("clear cart failed", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	h.respond(w, nil)
}

func (h *Handler) respond(w http.ResponseWriter, lines []models.CartLine) {
	if lines == nil {
		lines = []models.CartLine{}
	}
	totals := models.CartTotals{LineCount: len(lines)}
	for _, l := range lines {
		totals.TotalQuantity += l.Quantity
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CartResponse{Lines: lines, Totals: totals})
}
