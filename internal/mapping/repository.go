package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists mappings in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const mappingColumns = `id, mapping_type, source, target, target_id, confidence, usage_count, relevance, metadata, last_used, created_at`

func (r *PGRepository) Find(ctx context.Context, typ Type, source string) (Mapping, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM smart_mappings WHERE mapping_type = $1 AND source = $2`,
		string(typ), source)
	m, err := scanMapping(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mapping{}, ErrNotFound
	}
	return m, err
}

func (r *PGRepository) Insert(ctx context.Context, m Mapping) error {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO smart_mappings (`+mappingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, string(m.Type), m.Source, m.Target, m.TargetID, m.Confidence, m.UsageCount, m.Relevance, meta, m.LastUsed, m.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *PGRepository) Update(ctx context.Context, m Mapping) error {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE smart_mappings
		 SET target = $3, target_id = $4, confidence = $5, usage_count = $6, relevance = $7, metadata = $8, last_used = $9
		 WHERE mapping_type = $1 AND source = $2`,
		string(m.Type), m.Source, m.Target, m.TargetID, m.Confidence, m.UsageCount, m.Relevance, meta, m.LastUsed)
	return err
}

func (r *PGRepository) CountByType(ctx context.Context, typ Type) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM smart_mappings WHERE mapping_type = $1`, string(typ)).Scan(&count)
	return count, err
}

// DeleteUnused removes never-used records of a type; records with any
// usage stay regardless of age.
func (r *PGRepository) DeleteUnused(ctx context.Context, typ Type) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM smart_mappings WHERE mapping_type = $1 AND usage_count = 0`, string(typ))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) SearchTokens(ctx context.Context, typ Type, tokens []string, limit int) ([]Mapping, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	query := `SELECT ` + mappingColumns + ` FROM smart_mappings WHERE mapping_type = $1 AND (`
	args := []any{string(typ)}
	for i, token := range tokens {
		if i > 0 {
			query += ` OR `
		}
		args = append(args, "%"+token+"%")
		query += `source ILIKE $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += `) ORDER BY relevance DESC, usage_count DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMappings(rows)
}

func (r *PGRepository) ListConfirmed(ctx context.Context, typ Type, minConfidence, minUsage int) ([]Mapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mappingColumns+` FROM smart_mappings
		 WHERE mapping_type = $1 AND confidence >= $2 AND usage_count >= $3`,
		string(typ), minConfidence, minUsage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMappings(rows)
}

func collectMappings(rows pgx.Rows) ([]Mapping, error) {
	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMapping(row pgx.Row) (Mapping, error) {
	var m Mapping
	var typ string
	var meta []byte
	err := row.Scan(&m.ID, &typ, &m.Source, &m.Target, &m.TargetID, &m.Confidence, &m.UsageCount, &m.Relevance, &meta, &m.LastUsed, &m.CreatedAt)
	if err != nil {
		return Mapping{}, err
	}
	m.Type = Type(typ)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &m.Metadata)
	}
	return m, nil
}
