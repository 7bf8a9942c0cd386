package cart

import (
	"context"
	"sync"

	"github.com/offsetgrid/backend/internal/models"
)

// MemoryStore keeps carts in a process-local map, for demo mode and tests.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]models.CartLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]models.CartLine)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[sessionID]
	out := make([]models.CartLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, lines []models.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]models.CartLine, len(lines))
	copy(cp, lines)
	s.carts[sessionID] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}
