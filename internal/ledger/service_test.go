package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborview/backoffice/internal/catalog"
)

type memoryStore struct {
	records []ChangeRecord
}

func storeKeyMatch(r ChangeRecord, transactionID, productID string) bool {
	return r.TransactionID == transactionID && r.ProductID == productID
}

func (s *memoryStore) Exists(ctx context.Context, transactionID, productID string) (bool, error) {
	for _, r := range s.records {
		if storeKeyMatch(r, transactionID, productID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) Append(ctx context.Context, record ChangeRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *memoryStore) Update(ctx context.Context, record ChangeRecord) error {
	for i, r := range s.records {
		if storeKeyMatch(r, record.TransactionID, record.ProductID) {
			s.records[i] = record
			return nil
		}
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, transactionID, productID string) error {
	for i, r := range s.records {
		if storeKeyMatch(r, transactionID, productID) {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memoryStore) ListByTransaction(ctx context.Context, transactionID string) ([]ChangeRecord, error) {
	var out []ChangeRecord
	for _, r := range s.records {
		if r.TransactionID == transactionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memoryCatalog struct {
	products map[string]catalog.Product
}

func newMemoryCatalog(products ...catalog.Product) *memoryCatalog {
	c := &memoryCatalog{products: make(map[string]catalog.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *memoryCatalog) GetByID(ctx context.Context, id string) (catalog.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (c *memoryCatalog) ProxyTarget(ctx context.Context, p catalog.Product) (catalog.Product, float64, error) {
	ratio := 1.0
	current := p
	for current.ProxyOf != "" {
		next, ok := c.products[current.ProxyOf]
		if !ok {
			return catalog.Product{}, 0, catalog.ErrNotFound
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

func (c *memoryCatalog) ApplyStockDelta(ctx context.Context, id string, delta float64) (catalog.StockChange, error) {
	p, ok := c.products[id]
	if !ok {
		return catalog.StockChange{}, catalog.ErrNotFound
	}
	change := catalog.StockChange{ProductID: id, OldStock: p.Stock, NewStock: p.Stock + delta}
	p.Stock = change.NewStock
	c.products[id] = p
	return change, nil
}

func TestApplyChangesIdempotent(t *testing.T) {
	store := &memoryStore{}
	cat := newMemoryCatalog(
		catalog.Product{ID: "p1", Name: "Turkey 1lb", Stock: 20},
		catalog.Product{ID: "p2", Name: "Duck Necks", Stock: 10},
	)
	svc := NewService(store, cat, nil)
	ctx := context.Background()
	items := []ItemChange{{ProductID: "p1", Quantity: 3}, {ProductID: "p2", Quantity: 1}}

	first, err := svc.ApplyChanges(ctx, "tx1", TxSale, "test", items)
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, r := range first {
		require.True(t, r.Success)
		require.True(t, r.ChangeRecorded)
	}
	require.InDelta(t, 17.0, cat.products["p1"].Stock, 0.0001)
	require.InDelta(t, 9.0, cat.products["p2"].Stock, 0.0001)
	require.Len(t, store.records, 2)

	second, err := svc.ApplyChanges(ctx, "tx1", TxSale, "test", items)
	require.NoError(t, err)
	for _, r := range second {
		require.True(t, r.Success)
		require.False(t, r.ChangeRecorded, "replay must be a no-op")
	}
	require.InDelta(t, 17.0, cat.products["p1"].Stock, 0.0001, "stock applied exactly once")
	require.Len(t, store.records, 2, "one record per (transaction, product)")
}

func TestApplyChangesExpenseIncreasesStock(t *testing.T) {
	store := &memoryStore{}
	cat := newMemoryCatalog(catalog.Product{ID: "p1", Name: "Turkey 1lb", Stock: 5})
	svc := NewService(store, cat, nil)

	results, err := svc.ApplyChanges(context.Background(), "tx2", TxExpense, "invoice", []ItemChange{{ProductID: "p1", Quantity: 4}})
	require.NoError(t, err)
	require.True(t, results[0].Success)
	require.InDelta(t, 9.0, cat.products["p1"].Stock, 0.0001)
	require.Equal(t, ChangePurchase, store.records[0].ChangeType)
	require.Equal(t, 4, store.records[0].QuantityChange)
}

func TestApplyChangesFollowsProxy(t *testing.T) {
	store := &memoryStore{}
	cat := newMemoryCatalog(
		catalog.Product{ID: "half", Name: "Turkey 0.5lb", ProxyOf: "full", ProxyRatio: 0.5},
		catalog.Product{ID: "full", Name: "Turkey 1lb", Stock: 10},
	)
	svc := NewService(store, cat, nil)

	results, err := svc.ApplyChanges(context.Background(), "tx3", TxSale, "test", []ItemChange{{ProductID: "half", Quantity: 4}})
	require.NoError(t, err)
	require.True(t, results[0].Success)
	// 4 halves consume 2 full units.
	require.InDelta(t, 8.0, cat.products["full"].Stock, 0.0001)
	// The record stays keyed by the sold product.
	require.Equal(t, "half", store.records[0].ProductID)
}

func TestApplyChangesCollectsItemErrors(t *testing.T) {
	store := &memoryStore{}
	cat := newMemoryCatalog(catalog.Product{ID: "p1", Name: "Turkey", Stock: 10})
	svc := NewService(store, cat, nil)

	results, err := svc.ApplyChanges(context.Background(), "tx4", TxSale, "test", []ItemChange{
		{ProductID: "missing", Quantity: 1},
		{ProductID: "p1", Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.False(t, results[0].Success)
	require.NotEmpty(t, results[0].Error)
	require.True(t, results[1].Success, "later items still processed")
}

func TestReverseTransaction(t *testing.T) {
	store := &memoryStore{}
	cat := newMemoryCatalog(catalog.Product{ID: "p1", Name: "Turkey", Stock: 10})
	svc := NewService(store, cat, nil)
	ctx := context.Background()

	_, err := svc.ApplyChanges(ctx, "tx5", TxSale, "test", []ItemChange{{ProductID: "p1", Quantity: 3}})
	require.NoError(t, err)
	require.InDelta(t, 7.0, cat.products["p1"].Stock, 0.0001)

	results, err := svc.ReverseTransaction(ctx, "tx5")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.InDelta(t, 10.0, cat.products["p1"].Stock, 0.0001)

	records, err := store.ListByTransaction(ctx, "tx5")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, ChangeRestoration, records[0].ChangeType)
	require.Equal(t, 3, records[0].QuantityChange)

	// Second reversal finds only the restoration record and no-ops.
	again, err := svc.ReverseTransaction(ctx, "tx5")
	require.NoError(t, err)
	require.Empty(t, again)
	require.InDelta(t, 10.0, cat.products["p1"].Stock, 0.0001)
}

func TestReconcileUpdate(t *testing.T) {
	store := &memoryStore{}
	cat := newMemoryCatalog(
		catalog.Product{ID: "p1", Name: "Turkey", Stock: 20},
		catalog.Product{ID: "p2", Name: "Duck", Stock: 20},
		catalog.Product{ID: "p3", Name: "Beef", Stock: 20},
	)
	svc := NewService(store, cat, nil)
	ctx := context.Background()

	oldItems := []ItemChange{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 5}}
	_, err := svc.ApplyChanges(ctx, "tx6", TxSale, "test", oldItems)
	require.NoError(t, err)
	require.InDelta(t, 18.0, cat.products["p1"].Stock, 0.0001)
	require.InDelta(t, 15.0, cat.products["p2"].Stock, 0.0001)

	// Edit: drop p1, keep p2 at qty 3, add p3 qty 1.
	newItems := []ItemChange{{ProductID: "p2", Quantity: 3}, {ProductID: "p3", Quantity: 1}}
	results, err := svc.ReconcileUpdate(ctx, "tx6", TxSale, "test", oldItems, newItems)
	require.NoError(t, err)
	for _, r := range results {
		require.True(t, r.Success, "item %s: %s", r.ProductID, r.Error)
	}

	require.InDelta(t, 20.0, cat.products["p1"].Stock, 0.0001, "dropped item restored")
	require.InDelta(t, 17.0, cat.products["p2"].Stock, 0.0001, "qty 5 -> 3 returns 2")
	require.InDelta(t, 19.0, cat.products["p3"].Stock, 0.0001, "added item applied")

	records, err := store.ListByTransaction(ctx, "tx6")
	require.NoError(t, err)
	byProduct := map[string]ChangeRecord{}
	for _, r := range records {
		byProduct[r.ProductID] = r
	}
	require.Equal(t, ChangeRestoration, byProduct["p1"].ChangeType)
	require.Equal(t, -3, byProduct["p2"].QuantityChange)
	require.Equal(t, ChangeSale, byProduct["p3"].ChangeType)
}
