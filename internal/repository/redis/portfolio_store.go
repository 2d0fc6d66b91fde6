package redis

import (
	"context"
	"time"

	redisadapter "dcaadvisor/internal/adapters/redis"
	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/pkg/errors"
)

var _ strategy.PortfolioStore = (*PortfolioStore)(nil)

// PortfolioStore implements strategy.PortfolioStore as one JSON document per portfolio
type PortfolioStore struct {
	client *redisadapter.Client
	ttl    time.Duration
}

// NewPortfolioStore creates a Redis-backed portfolio store; ttl 0 keeps portfolios forever
func NewPortfolioStore(client *redisadapter.Client, ttl time.Duration) *PortfolioStore {
	return &PortfolioStore{client: client, ttl: ttl}
}

func (s *PortfolioStore) getKey(id string) string {
	return "portfolio:" + id
}

// Get loads a portfolio; absent portfolios wrap errors.ErrNotFound
func (s *PortfolioStore) Get(ctx context.Context, id string) (strategy.Portfolio, error) {
	var p strategy.Portfolio
	if err := s.client.Get(ctx, s.getKey(id), &p); err != nil {
		return strategy.Portfolio{}, errors.Wrapf(err, "portfolio %s", id)
	}
	return p, nil
}

// Save overwrites the stored portfolio
func (s *PortfolioStore) Save(ctx context.Context, p strategy.Portfolio) error {
	if p.ID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "portfolio without id")
	}
	if err := s.client.Set(ctx, s.getKey(p.ID), p, s.ttl); err != nil {
		return errors.Wrapf(err, "failed to save portfolio %s", p.ID)
	}
	return nil
}

// Delete removes a portfolio; deleting an absent one is not an error
func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, s.getKey(id)); err != nil {
		return errors.Wrapf(err, "failed to delete portfolio %s", id)
	}
	return nil
}
