package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"attestor/pkg/domain"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	receipts  map[uuid.UUID]Receipt
	bySubject map[domain.Address][]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		receipts:  make(map[uuid.UUID]Receipt),
		bySubject: make(map[domain.Address][]uuid.UUID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, r Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, exists := s.receipts[r.ID]; exists {
		s.bySubject[prev.Subject] = slices.DeleteFunc(s.bySubject[prev.Subject], func(id uuid.UUID) bool { return id == r.ID })
	}
	s.bySubject[r.Subject] = append(s.bySubject[r.Subject], r.ID)
	s.receipts[r.ID] = r
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[id]
	if !ok {
		return Receipt{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject domain.Address, limit int) ([]Receipt, error) {
	s.mu.RLock()
	ids := s.bySubject[subject]
	out := make([]Receipt, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.receipts[id])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

var _ Store = (*InMemoryStore)(nil)
