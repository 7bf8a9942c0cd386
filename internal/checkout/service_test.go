package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/cart"
	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
	"github.com/offsetgrid/backend/internal/session"
)

// ---------------------------------------------------------------------------
// Test wiring: fixture registry, in-memory stores.
// ---------------------------------------------------------------------------

var buyer = models.Identity{ID: "user_001", Email: "buyer@buyerco.local", Role: "BUYER", OrgID: "org_001"}

type harness struct {
	fixture  *registry.Fixture
	cart     *cart.Service
	balances balance.Service
	store    balance.Store
	orders   *MemoryOrders
	svc      Service
}

func newHarness(t *testing.T, reg registry.Port) *harness {
	t.Helper()
	h := &harness{orders: NewMemoryOrders(), store: balance.NewMemoryStore()}
	if f, ok := reg.(*registry.Fixture); ok {
		h.fixture = f
	}
	h.cart = cart.NewService(cart.NewMemoryStore(), nil)
	h.balances = balance.NewService(reg, h.store, nil)
	h.svc = NewService(reg, h.cart, h.balances, h.orders, nil, nil)
	return h
}

func (h *harness) addLine(t *testing.T, classID string, qty int64) {
	t.Helper()
	snap := models.Class{ID: classID, Status: models.ClassFinalized, Remaining: qty}
	if _, err := h.cart.AddOrUpdate(context.Background(), "sess_1", classID, qty, snap); err != nil {
		t.Fatalf("add line %s: %v", classID, err)
	}
}

// stubPort overrides Transfer on top of a fixture, for outcomes the fixture
// cannot produce (e.g. success without a receipt id).
type stubPort struct {
	registry.Port
	transfer func(ctx context.Context, req registry.TransferRequest) (string, error)
}

func (s *stubPort) Transfer(ctx context.Context, req registry.TransferRequest) (string, error) {
	return s.transfer(ctx, req)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCheckout_RequiresIdentity(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	if _, err := h.svc.Checkout(context.Background(), models.Identity{}, "sess_1"); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	if _, err := h.svc.Checkout(context.Background(), buyer, "sess_1"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

// End-to-end: buyer with no holdings buys 50 of class_001 (remaining 850).
func TestCheckout_SingleLineSettles(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	ctx := context.Background()
	h.addLine(t, "class_001", 50)

	order, err := h.svc.Checkout(ctx, buyer, "sess_1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Lines))
	}
	ln := order.Lines[0]
	if ln.Status != models.LineSettled || ln.Quantity != 50 || ln.ReceiptID == "" {
		t.Errorf("unexpected line: %+v", ln)
	}
	if got := order.ReceiptIDs(); len(got) != 1 {
		t.Errorf("expected 1 receipt, got %d", len(got))
	}

	// Balance reconciliation shows the purchase.
	qty, err := h.store.Get(ctx, buyer.OrgID, "class_001")
	if err != nil {
		t.Fatal(err)
	}
	if qty != 50 {
		t.Errorf("reconciled balance = %d, want 50", qty)
	}

	// Cart cleared on success.
	lines, err := h.cart.Lines(ctx, "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("expected cart cleared, got %d lines", len(lines))
	}

	// Order durable and visible to the buyer.
	stored, err := h.svc.GetOrder(ctx, buyer, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.SettledCount() != 1 {
		t.Errorf("stored order settled count = %d", stored.SettledCount())
	}
}

// Partial-success law: a line exceeding live remaining is rejected, the other
// line still settles, and the order carries both with receipts only for the
// settled one.
func TestCheckout_PartialSuccess(t *testing.T) {
	f := registry.NewDemoFixture()
	h := newHarness(t, f)
	ctx := context.Background()

	h.addLine(t, "class_001", 50)
	h.addLine(t, "class_002", 25)

	// Supply tightens after the lines were added: class_001 drains to 10.
	if _, err := f.Transfer(ctx, registry.TransferRequest{ToOrgID: "org_other", ClassID: "class_001", Quantity: 840}); err != nil {
		t.Fatal(err)
	}

	order, err := h.svc.Checkout(ctx, buyer, "sess_1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected both lines recorded, got %d", len(order.Lines))
	}
	if order.Lines[0].Status != models.LineRejected || order.Lines[0].FailureCode != CodeInsufficientSupply {
		t.Errorf("line 0 = %+v, want rejected insufficient_supply", order.Lines[0])
	}
	if order.Lines[0].ReceiptID != "" {
		t.Errorf("rejected line must have no receipt, got %q", order.Lines[0].ReceiptID)
	}
	if order.Lines[1].Status != models.LineSettled || order.Lines[1].ReceiptID == "" {
		t.Errorf("line 1 = %+v, want settled with receipt", order.Lines[1])
	}
	if got := order.ReceiptIDs(); len(got) != 1 {
		t.Errorf("expected 1 receipt for 2 lines, got %d", len(got))
	}
}

// A registry failure on one line does not abort the rest, and there is no
// rollback of earlier confirmed transfers.
func TestCheckout_ContinuesPastTransferFailure(t *testing.T) {
	f := registry.NewDemoFixture()
	h := newHarness(t, f)
	ctx := context.Background()

	h.addLine(t, "class_001", 50)
	h.addLine(t, "class_002", 25)
	f.FailTransfers("class_002", registry.ErrUnavailable)

	order, err := h.svc.Checkout(ctx, buyer, "sess_1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.Lines[0].Status != models.LineSettled {
		t.Errorf("line 0 = %+v, want settled", order.Lines[0])
	}
	if order.Lines[1].Status != models.LineFailed || order.Lines[1].FailureCode != CodeRegistryUnavailable {
		t.Errorf("line 1 = %+v, want failed registry_unavailable", order.Lines[1])
	}

	// The settled transfer stays settled.
	c, err := f.GetClass(ctx, "class_001")
	if err != nil {
		t.Fatal(err)
	}
	if c.Remaining != 800 {
		t.Errorf("class_001 remaining = %d, want 800", c.Remaining)
	}
}

// Zero settled lines: terminal CheckoutFailed, no order persisted, cart intact.
func TestCheckout_AllLinesFail(t *testing.T) {
	f := registry.NewDemoFixture()
	h := newHarness(t, f)
	ctx := context.Background()

	h.addLine(t, "class_001", 50)
	f.FailTransfers("class_001", registry.ErrUnavailable)

	if _, err := h.svc.Checkout(ctx, buyer, "sess_1"); !errors.Is(err, ErrCheckoutFailed) {
		t.Fatalf("expected ErrCheckoutFailed, got %v", err)
	}

	lines, err := h.cart.Lines(ctx, "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("cart must stay untouched for retry, got %d lines", len(lines))
	}

	// Retry after the registry recovers settles and produces a fresh order id.
	f.FailTransfers("class_001", nil)
	order, err := h.svc.Checkout(ctx, buyer, "sess_1")
	if err != nil {
		t.Fatalf("retry checkout: %v", err)
	}
	if order.ID == uuid.Nil {
		t.Error("expected a generated order id")
	}
}

// A confirmed transfer with no receipt id cannot be correlated to the order
// and counts as a failure, never masked with a synthetic receipt.
func TestCheckout_MissingReceiptIsFailure(t *testing.T) {
	f := registry.NewDemoFixture()
	port := &stubPort{Port: f, transfer: func(_ context.Context, _ registry.TransferRequest) (string, error) {
		return "", nil
	}}
	h := newHarness(t, port)
	h.addLine(t, "class_001", 50)

	if _, err := h.svc.Checkout(context.Background(), buyer, "sess_1"); !errors.Is(err, ErrCheckoutFailed) {
		t.Fatalf("expected ErrCheckoutFailed, got %v", err)
	}
}

// cancelAfterTransferPort cancels the request context as soon as the first
// transfer confirms, simulating a client disconnect mid-checkout.
type cancelAfterTransferPort struct {
	registry.Port
	cancel context.CancelFunc
}

func (p *cancelAfterTransferPort) Transfer(ctx context.Context, req registry.TransferRequest) (string, error) {
	receipt, err := p.Port.Transfer(ctx, req)
	p.cancel()
	return receipt, err
}

// ctxOrders fails Create when the context is already done, the way the
// Postgres store would.
type ctxOrders struct {
	inner Orders
}

func (o *ctxOrders) Create(ctx context.Context, ord *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.inner.Create(ctx, ord)
}

func (o *ctxOrders) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return o.inner.GetByID(ctx, id)
}

func (o *ctxOrders) ListByOrg(ctx context.Context, orgID string) ([]*models.Order, error) {
	return o.inner.ListByOrg(ctx, orgID)
}

// A disconnect after a confirmed transfer must still finalize the order with
// what settled; the moved credits would otherwise have no durable record.
func TestCheckout_CancelAfterPartialSettlementStillFinalizes(t *testing.T) {
	f := registry.NewDemoFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	port := &cancelAfterTransferPort{Port: f, cancel: cancel}

	mem := NewMemoryOrders()
	orders := &ctxOrders{inner: mem}
	cartSvc := cart.NewService(cart.NewMemoryStore(), nil)
	store := balance.NewMemoryStore()
	balances := balance.NewService(port, store, nil)
	svc := NewService(port, cartSvc, balances, orders, nil, nil)

	for i, classID := range []string{"class_001", "class_002"} {
		snap := models.Class{ID: classID, Status: models.ClassFinalized, Remaining: 600}
		if _, err := cartSvc.AddOrUpdate(context.Background(), "sess_1", classID, int64(50-i*25), snap); err != nil {
			t.Fatal(err)
		}
	}

	order, err := svc.Checkout(ctx, buyer, "sess_1")
	if err != nil {
		t.Fatalf("checkout after disconnect: %v", err)
	}
	if order.Lines[0].Status != models.LineSettled || order.Lines[0].ReceiptID == "" {
		t.Errorf("line 0 = %+v, want settled with receipt", order.Lines[0])
	}
	if order.Lines[1].Status != models.LineFailed || order.Lines[1].FailureCode != CodeCanceled {
		t.Errorf("line 1 = %+v, want failed canceled", order.Lines[1])
	}

	// The order is durable despite the dead request context.
	stored, err := mem.GetByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("order was not persisted: %v", err)
	}
	if stored.SettledCount() != 1 {
		t.Errorf("stored settled count = %d, want 1", stored.SettledCount())
	}

	// Cart cleared and cached balance reconciled for the settled line.
	lines, err := cartSvc.Lines(context.Background(), "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("expected cart cleared, got %d lines", len(lines))
	}
	qty, err := store.Get(context.Background(), buyer.OrgID, "class_001")
	if err != nil {
		t.Fatal(err)
	}
	if qty != 50 {
		t.Errorf("reconciled balance = %d, want 50", qty)
	}
}

// Cancellation stops issuing transfers but keeps what already settled.
func TestCheckout_CancelledContext(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.addLine(t, "class_001", 50)
	if _, err := h.svc.Checkout(ctx, buyer, "sess_1"); !errors.Is(err, ErrCheckoutFailed) {
		t.Fatalf("expected ErrCheckoutFailed for fully cancelled checkout, got %v", err)
	}

	lines, err := h.cart.Lines(context.Background(), "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Errorf("cart must survive a cancelled checkout, got %d lines", len(lines))
	}
}

func TestCheckout_RetryUsesSameIdempotencyKey(t *testing.T) {
	key1 := idempotencyKey("user_001", "class_001", "sess_1")
	key2 := idempotencyKey("user_001", "class_001", "sess_1")
	if key1 != key2 {
		t.Errorf("idempotency key not stable: %q vs %q", key1, key2)
	}
	if idempotencyKey("user_001", "class_001", "sess_2") == key1 {
		t.Error("different sessions must derive different keys")
	}
	if idempotencyKey("user_001", "class_002", "sess_1") == key1 {
		t.Error("different classes must derive different keys")
	}
}

func TestGetOrder_OtherOrgIsNotFound(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	ctx := context.Background()
	h.addLine(t, "class_001", 50)

	order, err := h.svc.Checkout(ctx, buyer, "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	other := models.Identity{ID: "user_999", OrgID: "org_999"}
	if _, err := h.svc.GetOrder(ctx, other, order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for other org, got %v", err)
	}
}

func TestListOrders_NewestFirst(t *testing.T) {
	h := newHarness(t, registry.NewDemoFixture())
	ctx := context.Background()

	h.addLine(t, "class_001", 10)
	if _, err := h.svc.Checkout(ctx, buyer, "sess_1"); err != nil {
		t.Fatal(err)
	}
	h.addLine(t, "class_002", 5)
	if _, err := h.svc.Checkout(ctx, buyer, "sess_1"); err != nil {
		t.Fatal(err)
	}

	orders, err := h.svc.ListOrders(ctx, buyer)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
}
