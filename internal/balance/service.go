package balance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
)

type Service interface {
	// GetHoldings reads holdings through the registry, refreshing the cache.
	// If the registry is unreachable it serves the cached view instead.
	GetHoldings(ctx context.Context, ownerOrgID string) ([]*models.Balance, error)
	// HoldingFor returns the current quantity for one class, registry-first.
	HoldingFor(ctx context.Context, ownerOrgID, classID string) (int64, error)
	// ApplyTransferIn reconciles the cache after a registry-confirmed transfer.
	ApplyTransferIn(ctx context.Context, ownerOrgID, classID string, quantity int64) error
	// ApplyRetirement reconciles the cache after a registry-confirmed
	// retirement. Fails with ErrInsufficientBalance when quantity exceeds the
	// cached holding.
	ApplyRetirement(ctx context.Context, ownerOrgID, classID string, quantity int64) error
}

type service struct {
	registry registry.Port
	store    Store
	log      *slog.Logger
}

func NewService(reg registry.Port, store Store, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{registry: reg, store: store, log: log}
}

var _ Service = (*service)(nil)

func (s *service) GetHoldings(ctx context.Context, ownerOrgID string) ([]*models.Balance, error) {
	fresh, err := s.registry.Holdings(ctx, ownerOrgID)
	if err != nil {
		if errors.Is(err, registry.ErrUnavailable) {
			s.log.Warn("registry unavailable, serving cached holdings", "org", ownerOrgID, "error", err)
			return s.store.Holdings(ctx, ownerOrgID)
		}
		return nil, err
	}
	if err := s.store.ReplaceAll(ctx, ownerOrgID, fresh); err != nil {
		s.log.Error("holdings cache refresh failed", "org", ownerOrgID, "error", err)
	}
	return fresh, nil
}

func (s *service) HoldingFor(ctx context.Context, ownerOrgID, classID string) (int64, error) {
	fresh, err := s.registry.Holdings(ctx, ownerOrgID)
	if err != nil {
		// The cache is never the sole basis for a decision when the registry
		// is reachable; it is the only basis when it is not.
		if errors.Is(err, registry.ErrUnavailable) {
			s.log.Warn("registry unavailable, using cached holding", "org", ownerOrgID, "class", classID)
			return s.store.Get(ctx, ownerOrgID, classID)
		}
		return 0, err
	}
	if err := s.store.ReplaceAll(ctx, ownerOrgID, fresh); err != nil {
		s.log.Error("holdings cache refresh failed", "org", ownerOrgID, "error", err)
	}
	for _, b := range fresh {
		if b.ClassID == classID {
			return b.Quantity, nil
		}
	}
	return 0, nil
}

func (s *service) ApplyTransferIn(ctx context.Context, ownerOrgID, classID string, quantity int64) error {
	_, err := s.store.Add(ctx, ownerOrgID, classID, quantity)
	return err
}

func (s *service) ApplyRetirement(ctx context.Context, ownerOrgID, classID string, quantity int64) error {
	cur, err := s.store.Get(ctx, ownerOrgID, classID)
	if err != nil {
		return err
	}
	if quantity > cur {
		return ErrInsufficientBalance
	}
	_, err = s.store.Add(ctx, ownerOrgID, classID, -quantity)
	return err
}
