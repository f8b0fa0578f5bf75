package suppliers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborview/backoffice/internal/email"
)

// PGRepository persists supplier configurations in PostgreSQL.
// Extraction rule and correction settings live in jsonb columns so a
// supplier can be reconfigured without a migration.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const supplierColumns = `id, name, aliases, invoice_email, invoice_subject_pattern, extraction_rule, correction, created_at, updated_at`

// FindByNameOrAlias resolves the name extracted from a notification
// email to a configured supplier. Matching is case-insensitive against
// both the canonical name and the alias list.
func (r *PGRepository) FindByNameOrAlias(ctx context.Context, name string) (Supplier, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	row := r.pool.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers
		 WHERE LOWER(name) = $1 OR $1 = ANY(SELECT LOWER(a) FROM unnest(aliases) AS a)
		 LIMIT 1`, needle)
	return scanSupplier(row)
}

func (r *PGRepository) FindByInvoiceEmail(ctx context.Context, address string) (Supplier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE LOWER(invoice_email) = $1 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(address)))
	return scanSupplier(row)
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Supplier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id)
	return scanSupplier(row)
}

func (r *PGRepository) List(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+supplierColumns+` FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Save validates the extraction rule before writing so a broken regex
// never reaches the extractor.
func (r *PGRepository) Save(ctx context.Context, s Supplier) error {
	if err := email.ValidateRule(s.ExtractionRule); err != nil {
		return err
	}
	rule, err := json.Marshal(s.ExtractionRule)
	if err != nil {
		return err
	}
	correction, err := json.Marshal(s.Correction)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO suppliers (`+supplierColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE
		 SET name = $2, aliases = $3, invoice_email = $4, invoice_subject_pattern = $5,
		     extraction_rule = $6, correction = $7, updated_at = $9`,
		s.ID, s.Name, s.Aliases, s.InvoiceEmail, s.InvoiceSubjectPattern, rule, correction, s.CreatedAt, s.UpdatedAt)
	return err
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	var rule, correction []byte
	err := row.Scan(&s.ID, &s.Name, &s.Aliases, &s.InvoiceEmail, &s.InvoiceSubjectPattern,
		&rule, &correction, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	if err != nil {
		return Supplier{}, err
	}
	if len(rule) > 0 {
		_ = json.Unmarshal(rule, &s.ExtractionRule)
	}
	if len(correction) > 0 {
		_ = json.Unmarshal(correction, &s.Correction)
	}
	return s, nil
}
