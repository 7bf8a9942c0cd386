package balance

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/offsetgrid/backend/internal/middleware"
	"github.com/offsetgrid/backend/internal/models"
)

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

// ListHoldings serves GET /holdings for the authenticated org.
func (h *Handler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	holdings, err := h.svc.GetHoldings(r.Context(), sess.Identity.OrgID)
	if err != nil {
		h.log.Error("list holdings failed", "org", sess.Identity.OrgID, "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []*models.Balance{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(holdings)
}
