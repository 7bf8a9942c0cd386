package retirement

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/middleware"
	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
)

type RetireRequest struct {
	ClassID     string `json:"classId"`
	Quantity    int64  `json:"quantity"`
	Purpose     string `json:"purpose"`
	Beneficiary string `json:"beneficiary"`
	Memo        string `json:"memo,omitempty"`
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

// Retire serves POST /retirements.
func (h *Handler) Retire(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	var req RetireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if req.ClassID == "" {
		http.Error(w, `{"error":"missing_class_id"}`, http.StatusBadRequest)
		return
	}
	cert, err := h.svc.Retire(r.Context(), sess.Identity, req.ClassID, req.Quantity, req.Purpose, req.Beneficiary, req.Memo)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidQuantity):
			http.Error(w, `{"error":"invalid_quantity"}`, http.StatusBadRequest)
		case errors.Is(err, ErrPurposeTooLong):
			http.Error(w, `{"error":"purpose_too_long"}`, http.StatusBadRequest)
		case errors.Is(err, ErrBeneficiaryTooLong):
			http.Error(w, `{"error":"beneficiary_too_long"}`, http.StatusBadRequest)
		case errors.Is(err, balance.ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient_balance"}`, http.StatusConflict)
		case errors.Is(err, registry.ErrNotFound):
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		case errors.Is(err, registry.ErrUnavailable):
			http.Error(w, `{"error":"registry_unavailable"}`, http.StatusBadGateway)
		default:
			h.log.Error("retire failed", "class", req.ClassID, "error", err)
			http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(cert)
}

// GetCertificate serves GET /retirements/{certificateId}.
func (h *Handler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.svc.GetCertificate(r.Context(), r.PathValue("certificateId"))
	if err != nil {
		if errors.Is(err, ErrCertificateNotFound) {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get certificate failed", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cert)
}

// ListCertificates serves GET /retirements for the authenticated org.
func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}
	certs, err := h.svc.ListCertificates(r.Context(), sess.Identity)
	if err != nil {
		h.log.Error("list certificates failed", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	if certs == nil {
		certs = []*models.Certificate{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(certs)
}
