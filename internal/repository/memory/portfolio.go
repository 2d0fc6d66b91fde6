package memory

import (
	"context"
	"sync"

	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/pkg/errors"
)

var _ strategy.PortfolioStore = (*PortfolioStore)(nil)

// PortfolioStore keeps portfolios in process memory
type PortfolioStore struct {
	mu         sync.RWMutex
	portfolios map[string]strategy.Portfolio
}

// NewPortfolioStore creates an empty in-memory portfolio store
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{portfolios: make(map[string]strategy.Portfolio)}
}

func (s *PortfolioStore) Get(ctx context.Context, id string) (strategy.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[id]
	if !ok {
		return strategy.Portfolio{}, errors.Wrapf(errors.ErrNotFound, "portfolio %s", id)
	}
	return p.Clone(), nil
}

func (s *PortfolioStore) Save(ctx context.Context, p strategy.Portfolio) error {
	if p.ID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "portfolio without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolios[p.ID] = p.Clone()
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.portfolios, id)
	return nil
}
