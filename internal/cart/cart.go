// Package cart holds the per-session shopping cart: an ordered sequence of
// (class, quantity) lines, at most one line per class. The cart is client
// session state; supply is only hard-validated at checkout.
package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/offsetgrid/backend/internal/models"
)

var (
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrLineNotFound is returned when updating or removing an absent line.
	ErrLineNotFound = errors.New("cart line not found")
)

// Store is the cart persistence port, keyed by session id. Carts survive a
// reload within a session but not a logout; durability beyond that is out of
// scope.
type Store interface {
	Get(ctx context.Context, sessionID string) ([]models.CartLine, error)
	Put(ctx context.Context, sessionID string, lines []models.CartLine) error
	Delete(ctx context.Context, sessionID string) error
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// Lines returns the cart's lines in insertion order.
func (s *Service) Lines(ctx context.Context, sessionID string) ([]models.CartLine, error) {
	return s.store.Get(ctx, sessionID)
}

// AddOrUpdate upserts the line for classID to quantity. An existing line is
// merged in place rather than duplicated, so the call is idempotent. The
// quantity is clamped to the snapshot's remaining supply for display; a
// sold-out snapshot (remaining zero) keeps the requested quantity, since
// clamping to zero would conflict with the minimum of one and the binding
// check happens at checkout against a fresh read anyway.
func (s *Service) AddOrUpdate(ctx context.Context, sessionID, classID string, quantity int64, snapshot models.Class) ([]models.CartLine, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if snapshot.Remaining > 0 && quantity > snapshot.Remaining {
		quantity = snapshot.Remaining
	}
	lines, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	updated := false
	for i := range lines {
		if lines[i].ClassID == classID {
			lines[i].Quantity = quantity
			lines[i].Class = snapshot
			updated = true
			break
		}
	}
	if !updated {
		lines = append(lines, models.CartLine{ClassID: classID, Quantity: quantity, Class: snapshot})
	}
	if err := s.store.Put(ctx, sessionID, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// SetQuantity updates a line in place. A quantity of zero or less removes the
// line, same as Remove.
func (s *Service) SetQuantity(ctx context.Context, sessionID, classID string, quantity int64) ([]models.CartLine, error) {
	if quantity <= 0 {
		return s.Remove(ctx, sessionID, classID)
	}
	lines, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if lines[i].ClassID == classID {
			lines[i].Quantity = quantity
			if err := s.store.Put(ctx, sessionID, lines); err != nil {
				return nil, err
			}
			return lines, nil
		}
	}
	return nil, ErrLineNotFound
}

// Remove deletes the line for classID.
func (s *Service) Remove(ctx context.Context, sessionID, classID string) ([]models.CartLine, error) {
	lines, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if lines[i].ClassID == classID {
			lines = append(lines[:i], lines[i+1:]...)
			if err := s.store.Put(ctx, sessionID, lines); err != nil {
				return nil, err
			}
			return lines, nil
		}
	}
	return nil, ErrLineNotFound
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// Totals aggregates the cart without side effects.
func (s *Service) Totals(ctx context.Context, sessionID string) (models.CartTotals, error) {
	lines, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return models.CartTotals{}, err
	}
	t := models.CartTotals{LineCount: len(lines)}
	for _, l := range lines {
		t.TotalQuantity += l.Quantity
	}
	return t, nil
}
