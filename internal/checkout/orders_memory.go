package checkout

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/offsetgrid/backend/internal/models"
)

// MemoryOrders is the in-memory order store for demo mode and tests.
type MemoryOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[uuid.UUID]*models.Order)}
}

var _ Orders = (*MemoryOrders)(nil)

func (r *MemoryOrders) Create(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	cp.Lines = append([]models.OrderLine(nil), o.Lines...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Lines = append([]models.OrderLine(nil), o.Lines...)
	return &cp, nil
}

func (r *MemoryOrders) ListByOrg(_ context.Context, orgID string) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*models.Order
	for _, o := range r.orders {
		if o.OrgID != orgID {
			continue
		}
		cp := *o
		cp.Lines = append([]models.OrderLine(nil), o.Lines...)
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
