package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/offsetgrid/backend/internal/middleware"
	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
	"github.com/offsetgrid/backend/internal/session"
)

// injectSession puts an authenticated session into the request context the way
// the auth middleware would.
func injectSession(r *http.Request, id models.Identity, sessionID string) *http.Request {
	sess := &session.Session{Identity: id, ID: sessionID}
	return r.WithContext(middleware.WithSession(r.Context(), sess))
}

// =====================================================================
// POST /checkout
// =====================================================================

func TestCheckoutHandler_Created(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	h.addLine(t, "class_001", 50)
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = injectSession(req, buyer, "sess_1")
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order == nil || len(resp.Order.Lines) != 1 {
		t.Fatalf("unexpected order in response: %+v", resp.Order)
	}
	if len(resp.ReceiptIDs) != 1 {
		t.Errorf("expected 1 receipt id, got %d", len(resp.ReceiptIDs))
	}
}

func TestCheckoutHandler_NoSession(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutHandler_EmptyCart(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = injectSession(req, buyer, "sess_1")
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutHandler_AllLinesFailed(t *testing.T) {
	f := registry.NewDemoFixture()
	h := newHarness(t, f)
	h.addLine(t, "class_001", 50)
	f.FailTransfers("class_001", registry.ErrUnavailable)
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = injectSession(req, buyer, "sess_1")
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

// =====================================================================
// GET /orders/{id}
// =====================================================================

func TestGetOrderHandler(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	h.addLine(t, "class_001", 50)
	order, err := h.svc.Checkout(context.Background(), buyer, "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req.SetPathValue("id", order.ID.String())
	req = injectSession(req, buyer, "sess_1")
	rec := httptest.NewRecorder()

	handler.GetOrder(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != order.ID {
		t.Errorf("order id = %s, want %s", resp.Order.ID, order.ID)
	}
}

func TestGetOrderHandler_MalformedID(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	req = injectSession(req, buyer, "sess_1")
	rec := httptest.NewRecorder()

	handler.GetOrder(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// =====================================================================
// GET /orders
// =====================================================================

func TestListOrdersHandler_EmptyIsJSONArray(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	handler := NewHandler(h.svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req = injectSession(req, buyer, "sess_1")
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}
