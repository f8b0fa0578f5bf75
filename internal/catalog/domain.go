// Package catalog provides product lookup and stock/cost mutation for
// the ingestion pipeline.
package catalog

import (
	"errors"
	"time"
)

// Product is a catalog entry. A product with ProxyOf set defers its
// stock and cost mutations to the referenced product, scaled by
// ProxyRatio.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SKU               string    `json:"sku,omitempty"`
	Stock             float64   `json:"stock"`
	LastPurchasePrice float64   `json:"lastPurchasePrice"`
	ProxyOf           string    `json:"proxyOf,omitempty"`
	ProxyRatio        float64   `json:"proxyRatio,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// StockChange reports a stock mutation.
type StockChange struct {
	ProductID string  `json:"productId"`
	OldStock  float64 `json:"oldStock"`
	NewStock  float64 `json:"newStock"`
}

// CostEntry is one purchase-price observation.
type CostEntry struct {
	Date      time.Time `json:"date"`
	UnitPrice float64   `json:"unitPrice"`
	Source    string    `json:"source"`
}

// ErrNotFound indicates a missing product.
var ErrNotFound = errors.New("catalog: product not found")

// ErrProxyCycle indicates the proxy graph loops back on itself. The
// graph is runtime-mutable so this must be checked on every walk, not
// trusted at write time.
var ErrProxyCycle = errors.New("catalog: proxy relationship cycle")

// maxProxyDepth bounds proxy chain walks even without a repeated node.
const maxProxyDepth = 8
