package retirement

import (
	"context"
	"sort"
	"sync"

	"github.com/offsetgrid/backend/internal/models"
)

// MemoryCertificates is the in-memory certificate store for demo mode and tests.
type MemoryCertificates struct {
	mu    sync.Mutex
	certs map[string]*models.Certificate
}

func NewMemoryCertificates() *MemoryCertificates {
	return &MemoryCertificates{certs: make(map[string]*models.Certificate)}
}

var _ Certificates = (*MemoryCertificates)(nil)

func (r *MemoryCertificates) Create(_ context.Context, c *models.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.certs[c.ID] = &cp
	return nil
}

func (r *MemoryCertificates) GetByID(_ context.Context, id string) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, ErrCertificateNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCertificates) ListByOrg(_ context.Context, orgID string) ([]*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*models.Certificate
	for _, c := range r.certs {
		if c.OwnerOrgID != orgID {
			continue
		}
		cp := *c
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
