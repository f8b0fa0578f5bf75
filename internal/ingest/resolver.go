package ingest

import (
	"context"
	"log/slog"

	"github.com/harborview/backoffice/internal/catalog"
	"github.com/harborview/backoffice/internal/mapping"
	"github.com/harborview/backoffice/internal/match"
)

// productResolver binds a free-text name to a catalog product: learned
// mapping first, then alias rewrite plus catalog search with the
// tie-break policy. Each resolution is recorded back into the mapping
// store under the resolver's type so repeat names skip the search.
// Both import paths share this; they differ only in mapping type.
type productResolver struct {
	mappings MappingStore
	catalog  CatalogPort
	matcher  *match.Engine
	typ      mapping.Type
	logger   *slog.Logger
}

func (r *productResolver) resolve(ctx context.Context, rawName string) (catalog.Product, bool) {
	if m, err := r.mappings.Find(ctx, r.typ, rawName); err == nil && m.TargetID != "" {
		if product, err := r.catalog.GetByID(ctx, m.TargetID); err == nil {
			r.record(ctx, rawName, product)
			return product, true
		}
	}

	query := r.matcher.ApplyAliases(rawName)
	products, err := r.catalog.Search(ctx, query)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("catalog search failed", slog.String("query", query), slog.Any("error", err))
		}
		return catalog.Product{}, false
	}

	candidates := make([]match.Candidate, 0, len(products))
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		candidates = append(candidates, match.Candidate{ID: p.ID, Name: p.Name})
		byID[p.ID] = p
	}
	chosen, ok := r.matcher.Resolve(query, candidates)
	if !ok {
		return catalog.Product{}, false
	}
	product := byID[chosen.ID]
	r.record(ctx, rawName, product)
	return product, true
}

func (r *productResolver) record(ctx context.Context, rawName string, product catalog.Product) {
	if _, err := r.mappings.Upsert(ctx, mapping.UpsertInput{
		Type:       r.typ,
		Source:     rawName,
		Target:     product.Name,
		TargetID:   product.ID,
		Confidence: 75,
		UsageCount: 1,
	}); err != nil && r.logger != nil {
		r.logger.Warn("mapping upsert failed",
			slog.String("type", string(r.typ)), slog.Any("error", err))
	}
}
