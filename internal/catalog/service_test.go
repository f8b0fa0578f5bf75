package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products map[string]Product
	searches int
}

func newMemoryRepo(products ...Product) *memoryRepo {
	r := &memoryRepo{products: make(map[string]Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *memoryRepo) Search(ctx context.Context, query string) ([]Product, error) {
	r.searches++
	var out []Product
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) ApplyStockDelta(ctx context.Context, id string, delta float64) (StockChange, error) {
	p, ok := r.products[id]
	if !ok {
		return StockChange{}, ErrNotFound
	}
	change := StockChange{ProductID: id, OldStock: p.Stock, NewStock: p.Stock + delta}
	p.Stock = change.NewStock
	r.products[id] = p
	return change, nil
}

func (r *memoryRepo) AppendCostEntry(ctx context.Context, id string, entry CostEntry) error {
	p, ok := r.products[id]
	if !ok {
		return ErrNotFound
	}
	p.LastPurchasePrice = entry.UnitPrice
	r.products[id] = p
	return nil
}

func TestProxyTargetDirect(t *testing.T) {
	repo := newMemoryRepo(Product{ID: "a", Name: "Turkey 1lb"})
	svc := NewService(repo)

	target, ratio, err := svc.ProxyTarget(context.Background(), repo.products["a"])
	require.NoError(t, err)
	require.Equal(t, "a", target.ID)
	require.InDelta(t, 1.0, ratio, 0.0001)
}

func TestProxyTargetChainScalesRatio(t *testing.T) {
	repo := newMemoryRepo(
		Product{ID: "half", Name: "Turkey 0.5lb", ProxyOf: "full", ProxyRatio: 0.5},
		Product{ID: "full", Name: "Turkey 1lb", ProxyOf: "case", ProxyRatio: 0.1},
		Product{ID: "case", Name: "Turkey Case"},
	)
	svc := NewService(repo)

	target, ratio, err := svc.ProxyTarget(context.Background(), repo.products["half"])
	require.NoError(t, err)
	require.Equal(t, "case", target.ID)
	require.InDelta(t, 0.05, ratio, 0.0001)
}

func TestProxyTargetDetectsCycle(t *testing.T) {
	repo := newMemoryRepo(
		Product{ID: "a", Name: "A", ProxyOf: "b", ProxyRatio: 2},
		Product{ID: "b", Name: "B", ProxyOf: "a", ProxyRatio: 0.5},
	)
	svc := NewService(repo)

	_, _, err := svc.ProxyTarget(context.Background(), repo.products["a"])
	require.ErrorIs(t, err, ErrProxyCycle)
}

func TestProxyTargetSelfReference(t *testing.T) {
	repo := newMemoryRepo(Product{ID: "a", Name: "A", ProxyOf: "a", ProxyRatio: 1})
	svc := NewService(repo)

	_, _, err := svc.ProxyTarget(context.Background(), repo.products["a"])
	require.ErrorIs(t, err, ErrProxyCycle)
}

func TestApplyStockDelta(t *testing.T) {
	repo := newMemoryRepo(Product{ID: "a", Name: "A", Stock: 10})
	svc := NewService(repo)

	change, err := svc.ApplyStockDelta(context.Background(), "a", -3)
	require.NoError(t, err)
	require.InDelta(t, 10.0, change.OldStock, 0.0001)
	require.InDelta(t, 7.0, change.NewStock, 0.0001)
}
