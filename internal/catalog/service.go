package catalog

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort abstracts product persistence for the service.
type RepositoryPort interface {
	Search(ctx context.Context, query string) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	ApplyStockDelta(ctx context.Context, id string, delta float64) (StockChange, error)
	AppendCostEntry(ctx context.Context, id string, entry CostEntry) error
}

// Service coordinates catalog reads and writes. Concurrent identical
// searches (common when a multi-item email repeats a product family)
// collapse into one repository call.
type Service struct {
	repo   RepositoryPort
	flight singleflight.Group
}

// NewService constructs the Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Search finds candidate products by substring match.
func (s *Service) Search(ctx context.Context, query string) ([]Product, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	result, err, _ := s.flight.Do(key, func() (any, error) {
		return s.repo.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Product), nil
}

// GetByID fetches one product.
func (s *Service) GetByID(ctx context.Context, id string) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ProxyTarget resolves the product whose stock actually moves when the
// given product is bought or sold, with the combined scaling ratio. A
// product without ProxyOf resolves to itself at ratio 1. The walk
// carries a visited set and depth limit because the proxy graph is
// user-editable and nothing prevents a cycle from being written.
func (s *Service) ProxyTarget(ctx context.Context, p Product) (Product, float64, error) {
	ratio := 1.0
	visited := map[string]bool{p.ID: true}
	current := p
	for depth := 0; current.ProxyOf != ""; depth++ {
		if depth >= maxProxyDepth {
			return Product{}, 0, ErrProxyCycle
		}
		if visited[current.ProxyOf] {
			return Product{}, 0, ErrProxyCycle
		}
		visited[current.ProxyOf] = true

		next, err := s.repo.GetByID(ctx, current.ProxyOf)
		if err != nil {
			return Product{}, 0, err
		}
		r := current.ProxyRatio
		if r <= 0 {
			r = 1
		}
		ratio *= r
		current = next
	}
	return current, ratio, nil
}

// ApplyStockDelta mutates a product's stock directly. Proxy following
// is the caller's responsibility via ProxyTarget.
func (s *Service) ApplyStockDelta(ctx context.Context, id string, delta float64) (StockChange, error) {
	return s.repo.ApplyStockDelta(ctx, id, delta)
}

// RecordCost appends a purchase-price observation.
func (s *Service) RecordCost(ctx context.Context, id string, entry CostEntry) error {
	return s.repo.AppendCostEntry(ctx, id, entry)
}
