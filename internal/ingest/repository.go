package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborview/backoffice/internal/platform/db"
	"github.com/harborview/backoffice/internal/statement"
)

// PGRepository persists imported statement transactions and committed
// purchases.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ExistsReference reports whether a statement transaction with this
// reference was imported before. Empty references never match so
// synthetic rows are not deduplicated against each other.
func (r *PGRepository) ExistsReference(ctx context.Context, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM statement_transactions WHERE reference = $1)`,
		reference).Scan(&exists)
	return exists, err
}

// SaveStatementTransaction inserts one imported row. A concurrent
// import of the same reference loses the unique-index race and is
// treated as already imported.
func (r *PGRepository) SaveStatementTransaction(ctx context.Context, tx statement.Transaction) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO statement_transactions
		 (id, date, description, amount, category, card_number, reference,
		  extended_details, address, city_state, zip_code, country)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.NewString(), tx.Date, tx.Description, tx.Amount, tx.Category, tx.CardNumber,
		tx.Reference, tx.ExtendedDetails, tx.Address, tx.CityState, tx.ZipCode, tx.Country)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SavePurchase writes the purchase header and its items in one
// transaction.
func (r *PGRepository) SavePurchase(ctx context.Context, p Purchase) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO purchases (id, supplier_id, order_number, date, amount)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.SupplierID, p.OrderNumber, p.Date, p.Amount)
		if err != nil {
			return err
		}
		for _, item := range p.Items {
			_, err := tx.Exec(ctx,
				`INSERT INTO purchase_items (id, purchase_id, product_id, raw_name, quantity, unit_price, total_price)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.NewString(), p.ID, item.ProductID, item.RawName, item.Quantity, item.UnitPrice, item.TotalPrice)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
