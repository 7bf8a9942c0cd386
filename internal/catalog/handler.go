package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/offsetgrid/backend/internal/registry"
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

// ListProjects serves GET /projects?status=.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, "list projects", err)
		return
	}
	h.respond(w, projects)
}

// GetProject serves GET /projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get project", err)
		return
	}
	h.respond(w, p)
}

// ListClasses serves GET /classes?available=.
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	onlyAvailable, _ := strconv.ParseBool(r.URL.Query().Get("available"))
	classes, err := h.svc.ListClasses(r.Context(), onlyAvailable)
	if err != nil {
		h.fail(w, "list classes", err)
		return
	}
	h.respond(w, classes)
}

// GetClass serves GET /classes/{id}.
func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetClass(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get class", err)
		return
	}
	h.respond(w, c)
}

func (h *Handler) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	case errors.Is(err, registry.ErrUnavailable):
		h.log.Warn(op+" failed, registry unavailable", "error", err)
		http.Error(w, `{"error":"registry_unavailable"}`, http.StatusBadGateway)
	default:
		h.log.Error(op+" failed", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
	}
}
