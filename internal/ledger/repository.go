package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateRecord indicates a record already exists for the
// (transaction, product) pair. The service checks existence first, so
// hitting the constraint means a concurrent writer won the race; both
// outcomes mean "already applied".
var ErrDuplicateRecord = errors.New("ledger: record already exists for transaction/product")

// Repository persists ledger records in PostgreSQL. The table carries
// a unique index on (transaction_id, product_id) that closes the
// check-then-act race the in-process existence check leaves open.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, transaction_id, product_id, quantity_change, change_type, occurred_at, product_name, transaction_type, source, COALESCE(notes, '')`

func (r *Repository) Exists(ctx context.Context, transactionID, productID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inventory_changes WHERE transaction_id = $1 AND product_id = $2)`,
		transactionID, productID).Scan(&exists)
	return exists, err
}

func (r *Repository) Append(ctx context.Context, record ChangeRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO inventory_changes
		 (id, transaction_id, product_id, quantity_change, change_type, occurred_at, product_name, transaction_type, source, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.TransactionID, record.ProductID, record.QuantityChange, string(record.ChangeType),
		record.Timestamp, record.ProductName, string(record.TransactionType), record.Source, record.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRecord
		}
		return err
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, record ChangeRecord) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE inventory_changes
		 SET quantity_change = $3, change_type = $4, occurred_at = $5, notes = $6
		 WHERE transaction_id = $1 AND product_id = $2`,
		record.TransactionID, record.ProductID, record.QuantityChange, string(record.ChangeType), record.Timestamp, record.Notes)
	return err
}

func (r *Repository) Delete(ctx context.Context, transactionID, productID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM inventory_changes WHERE transaction_id = $1 AND product_id = $2`,
		transactionID, productID)
	return err
}

func (r *Repository) ListByTransaction(ctx context.Context, transactionID string) ([]ChangeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM inventory_changes WHERE transaction_id = $1 ORDER BY occurred_at`,
		transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ChangeRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (ChangeRecord, error) {
	var record ChangeRecord
	var changeType, txType string
	err := row.Scan(&record.ID, &record.TransactionID, &record.ProductID, &record.QuantityChange,
		&changeType, &record.Timestamp, &record.ProductName, &txType, &record.Source, &record.Notes)
	if err != nil {
		return ChangeRecord{}, err
	}
	record.ChangeType = ChangeType(changeType)
	record.TransactionType = TransactionType(txType)
	return record, nil
}
