package balance

import (
	"context"
	"sort"
	"sync"

	"github.com/offsetgrid/backend/internal/models"
)

// MemoryStore is the in-memory holdings cache for demo mode and tests.
type MemoryStore struct {
	mu       sync.Mutex
	holdings map[string]map[string]int64 // orgID -> classID -> qty
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holdings: make(map[string]map[string]int64)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Holdings(_ context.Context, ownerOrgID string) ([]*models.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Balance
	for classID, qty := range s.holdings[ownerOrgID] {
		if qty <= 0 {
			continue
		}
		list = append(list, &models.Balance{OwnerOrgID: ownerOrgID, ClassID: classID, Quantity: qty})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ClassID < list[j].ClassID })
	return list, nil
}

func (s *MemoryStore) Get(_ context.Context, ownerOrgID, classID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdings[ownerOrgID][classID], nil
}

func (s *MemoryStore) Add(_ context.Context, ownerOrgID, classID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.holdings[ownerOrgID][classID]
	if cur+delta < 0 {
		return 0, ErrInsufficientBalance
	}
	if s.holdings[ownerOrgID] == nil {
		s.holdings[ownerOrgID] = make(map[string]int64)
	}
	s.holdings[ownerOrgID][classID] = cur + delta
	return cur + delta, nil
}

func (s *MemoryStore) ReplaceAll(_ context.Context, ownerOrgID string, balances []*models.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make(map[string]int64, len(balances))
	for _, b := range balances {
		fresh[b.ClassID] = b.Quantity
	}
	s.holdings[ownerOrgID] = fresh
	return nil
}
