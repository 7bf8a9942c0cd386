// Package reconcile refreshes cached holdings from the registry in the
// background, keeping the local view coherent after settlements and
// retirements without blocking the request path.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/registry"
)

type HoldingsJobArgs struct {
	OwnerOrgID string `json:"owner_org_id"`
}

func (HoldingsJobArgs) Kind() string { return "reconcile_holdings" }

type HoldingsWorker struct {
	river.WorkerDefaults[HoldingsJobArgs]
	registry registry.Port
	store    balance.Store
	log      *slog.Logger
}

func NewHoldingsWorker(reg registry.Port, store balance.Store, log *slog.Logger) *HoldingsWorker {
	if log == nil {
		log = slog.Default()
	}
	return &HoldingsWorker{registry: reg, store: store, log: log}
}

// Work replaces the org's cached balances with a fresh registry snapshot. A
// registry error returns the job to the queue for retry; the registry stays
// authoritative either way.
func (w *HoldingsWorker) Work(ctx context.Context, job *river.Job[HoldingsJobArgs]) error {
	org := job.Args.OwnerOrgID
	holdings, err := w.registry.Holdings(ctx, org)
	if err != nil {
		return fmt.Errorf("fetch holdings for %s: %w", org, err)
	}
	if err := w.store.ReplaceAll(ctx, org, holdings); err != nil {
		return fmt.Errorf("replace holdings for %s: %w", org, err)
	}
	w.log.Info("holdings reconciled", "org", org, "classes", len(holdings))
	return nil
}
