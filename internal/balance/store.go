// Package balance caches per-org credit holdings. The registry stays
// authoritative; this store presents a coherent view between registry reads
// and is reconciled after every confirmed transfer or retirement.
package balance

import (
	"context"
	"errors"

	"github.com/offsetgrid/backend/internal/models"
)

// ErrInsufficientBalance is returned when a retirement asks for more credits
// than the owner holds.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Store is the holdings cache port. Postgres backs it in production; the
// in-memory variant serves demo mode and tests.
type Store interface {
	// Holdings returns all cached balances for the org, largest class id last.
	Holdings(ctx context.Context, ownerOrgID string) ([]*models.Balance, error)
	// Get returns the cached quantity for one (org, class) pair, zero if absent.
	Get(ctx context.Context, ownerOrgID, classID string) (int64, error)
	// Add applies a signed delta and returns the new quantity. The quantity
	// must never go negative; Add fails with ErrInsufficientBalance instead.
	Add(ctx context.Context, ownerOrgID, classID string, delta int64) (int64, error)
	// ReplaceAll swaps the org's cached balances for a fresh registry snapshot.
	ReplaceAll(ctx context.Context, ownerOrgID string, balances []*models.Balance) error
}
