// Package checkout turns a validated cart into registry-confirmed transfers
// and a durable order, tolerating per-line failure.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/cart"
	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
	"github.com/offsetgrid/backend/internal/session"
)

var (
	// ErrEmptyCart is returned when checkout is called with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutFailed is returned when the cart had lines but none settled.
	// The cart is left untouched so the buyer can retry the whole checkout.
	ErrCheckoutFailed = errors.New("checkout failed: no lines settled")
	// ErrOrderNotFound is returned for unknown order ids, including orders
	// that belong to another org.
	ErrOrderNotFound = errors.New("order not found")
)

// Failure codes recorded on rejected and failed order lines.
const (
	CodeInsufficientSupply  = "insufficient_supply"
	CodeTransferFailed      = "transfer_failed"
	CodeRegistryUnavailable = "registry_unavailable"
	CodeCanceled            = "canceled"
)

// Orders is the order persistence port. Orders are append-only facts.
type Orders interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Order, error)
}

// EnqueueReconcileFunc schedules an async holdings reconciliation for the org.
// Provided by main using river.Client.Insert; nil disables it.
type EnqueueReconcileFunc func(ctx context.Context, ownerOrgID string) error

type Service interface {
	Checkout(ctx context.Context, identity models.Identity, sessionID string) (*models.Order, error)
	GetOrder(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, identity models.Identity) ([]*models.Order, error)
}

type service struct {
	registry         registry.Port
	cart             *cart.Service
	balances         balance.Service
	orders           Orders
	enqueueReconcile EnqueueReconcileFunc
	log              *slog.Logger
}

func NewService(reg registry.Port, cartSvc *cart.Service, balances balance.Service, orders Orders, enqueue EnqueueReconcileFunc, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		registry:         reg,
		cart:             cartSvc,
		balances:         balances,
		orders:           orders,
		enqueueReconcile: enqueue,
		log:              log,
	}
}

var _ Service = (*service)(nil)

// Checkout attempts every cart line in order. A line that fails validation or
// transfer never aborts the rest; registry-confirmed transfers are final and
// are not rolled back. The cart is cleared only when at least one line
// settled.
func (s *service) Checkout(ctx context.Context, identity models.Identity, sessionID string) (*models.Order, error) {
	if identity.ID == "" || identity.OrgID == "" {
		return nil, session.ErrUnauthenticated
	}
	lines, err := s.cart.Lines(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	order := &models.Order{
		ID:        uuid.New(),
		OrgID:     identity.OrgID,
		Lines:     make([]models.OrderLine, 0, len(lines)),
		CreatedAt: time.Now().UTC(),
	}

	for _, ln := range lines {
		order.Lines = append(order.Lines, s.settleLine(ctx, identity, sessionID, ln))
	}

	if order.SettledCount() == 0 {
		s.log.Warn("checkout settled no lines", "org", identity.OrgID, "lines", len(lines))
		return nil, ErrCheckoutFailed
	}

	// Credits have irreversibly moved at this point; finalization must not be
	// lost to a client disconnect, so it runs detached from request cancellation.
	finCtx := context.WithoutCancel(ctx)
	if err := s.orders.Create(finCtx, order); err != nil {
		return nil, err
	}
	if err := s.cart.Clear(finCtx, sessionID); err != nil {
		s.log.Error("cart clear after checkout failed", "session", sessionID, "error", err)
	}
	if s.enqueueReconcile != nil {
		if err := s.enqueueReconcile(finCtx, identity.OrgID); err != nil {
			s.log.Error("reconcile enqueue failed", "org", identity.OrgID, "error", err)
		}
	}

	s.log.Info("checkout settled", "order", order.ID, "org", identity.OrgID,
		"settled", order.SettledCount(), "attempted", len(order.Lines))
	return order, nil
}

// settleLine re-validates one line against a fresh class read and, if it
// survives, issues the transfer. Transfers run strictly sequentially so the
// re-validated remaining reflects earlier lines of the same checkout.
func (s *service) settleLine(ctx context.Context, identity models.Identity, sessionID string, ln models.CartLine) models.OrderLine {
	out := models.OrderLine{ClassID: ln.ClassID, Quantity: ln.Quantity}

	// A canceled checkout stops issuing transfers; confirmed ones stay final.
	if ctx.Err() != nil {
		out.Status = models.LineFailed
		out.FailureCode = CodeCanceled
		return out
	}

	cls, err := s.registry.GetClass(ctx, ln.ClassID)
	if err != nil {
		s.log.Warn("line re-validation failed", "class", ln.ClassID, "error", err)
		out.Status = models.LineFailed
		out.FailureCode = failureCode(err)
		return out
	}
	if cls.Status != models.ClassFinalized || ln.Quantity > cls.Remaining {
		out.Status = models.LineRejected
		out.FailureCode = CodeInsufficientSupply
		return out
	}

	receiptID, err := s.registry.Transfer(ctx, registry.TransferRequest{
		ToOrgID:        identity.OrgID,
		ClassID:        ln.ClassID,
		Quantity:       ln.Quantity,
		IdempotencyKey: idempotencyKey(identity.ID, ln.ClassID, sessionID),
	})
	if err != nil {
		s.log.Warn("transfer failed", "class", ln.ClassID, "error", err)
		out.Status = models.LineFailed
		out.FailureCode = failureCode(err)
		return out
	}
	// A confirmed transfer without a receipt cannot be correlated to the
	// order, so it counts as a failure rather than being masked with a
	// synthetic receipt id.
	if receiptID == "" {
		s.log.Warn("transfer returned no receipt", "class", ln.ClassID)
		out.Status = models.LineFailed
		out.FailureCode = CodeTransferFailed
		return out
	}

	out.Status = models.LineSettled
	out.ReceiptID = receiptID
	// The transfer is confirmed even if the caller has since gone away.
	if err := s.balances.ApplyTransferIn(context.WithoutCancel(ctx), identity.OrgID, ln.ClassID, ln.Quantity); err != nil {
		s.log.Error("balance reconciliation failed", "class", ln.ClassID, "error", err)
	}
	return out
}

func (s *service) GetOrder(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.OrgID != identity.OrgID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, identity models.Identity) ([]*models.Order, error) {
	return s.orders.ListByOrg(ctx, identity.OrgID)
}

// idempotencyKey derives a stable key from buyer, class and cart session so a
// retried checkout after a timeout cannot double-transfer on a registry that
// honors the key. The coordinator itself never blindly retries a transfer
// whose outcome is unknown.
func idempotencyKey(buyerID, classID, sessionID string) string {
	sum := sha256.Sum256([]byte(buyerID + "|" + classID + "|" + sessionID))
	return hex.EncodeToString(sum[:])
}

func failureCode(err error) string {
	if errors.Is(err, registry.ErrUnavailable) {
		return CodeRegistryUnavailable
	}
	return CodeTransferFailed
}
