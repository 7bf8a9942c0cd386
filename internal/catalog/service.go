// Package catalog is the read-only projection of registry projects and
// classes. Results are snapshots; remaining supply can change between calls.
package catalog

import (
	"context"

	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
)

type Service interface {
	ListProjects(ctx context.Context, statusFilter string) ([]*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListClasses(ctx context.Context, onlyAvailable bool) ([]*models.Class, error)
	GetClass(ctx context.Context, id string) (*models.Class, error)
}

type service struct {
	registry registry.Port
}

func NewService(reg registry.Port) Service {
	return &service{registry: reg}
}

var _ Service = (*service)(nil)

func (s *service) ListProjects(ctx context.Context, statusFilter string) ([]*models.Project, error) {
	return s.registry.ListProjects(ctx, statusFilter)
}

func (s *service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.registry.GetProject(ctx, id)
}

func (s *service) ListClasses(ctx context.Context, onlyAvailable bool) ([]*models.Class, error) {
	return s.registry.ListClasses(ctx, onlyAvailable)
}

func (s *service) GetClass(ctx context.Context, id string) (*models.Class, error) {
	return s.registry.GetClass(ctx, id)
}
