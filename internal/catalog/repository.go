package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, sku, stock, last_purchase_price, COALESCE(proxy_of, ''), COALESCE(proxy_ratio, 0), created_at, updated_at`

func (r *Repository) Search(ctx context.Context, query string) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE name ILIKE $1 ORDER BY name LIMIT 25`,
		"%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id string) (Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ApplyStockDelta adjusts stock atomically and reports old and new
// values.
func (r *Repository) ApplyStockDelta(ctx context.Context, id string, delta float64) (StockChange, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET stock = stock + $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING stock - $2, stock`, id, delta)
	change := StockChange{ProductID: id}
	err := row.Scan(&change.OldStock, &change.NewStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockChange{}, ErrNotFound
	}
	return change, err
}

// AppendCostEntry records a purchase-price observation and refreshes
// the product's last purchase price.
func (r *Repository) AppendCostEntry(ctx context.Context, id string, entry CostEntry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if entry.Date.IsZero() {
		entry.Date = time.Now()
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO product_cost_history (product_id, observed_at, unit_price, source) VALUES ($1, $2, $3, $4)`,
		id, entry.Date, entry.UnitPrice, entry.Source); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE products SET last_purchase_price = $2, updated_at = NOW() WHERE id = $1`,
		id, entry.UnitPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Stock, &p.LastPurchasePrice, &p.ProxyOf, &p.ProxyRatio, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
