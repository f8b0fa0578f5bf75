package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harborview/backoffice/internal/mapping"
	"github.com/harborview/backoffice/internal/match"
	"github.com/harborview/backoffice/internal/statement"
)

// StatementStore is the persistence the statement importer needs.
type StatementStore interface {
	ExistsReference(ctx context.Context, reference string) (bool, error)
	SaveStatementTransaction(ctx context.Context, tx statement.Transaction) (bool, error)
}

// StatementService imports card statement exports and binds line
// descriptions to catalog products through the learned-mapping store.
type StatementService struct {
	parser   *statement.Parser
	store    StatementStore
	resolver productResolver
	logger   *slog.Logger
}

// NewStatementService constructs the service.
func NewStatementService(parser *statement.Parser, store StatementStore, mappings MappingStore,
	cat CatalogPort, matcher *match.Engine, logger *slog.Logger) *StatementService {
	return &StatementService{
		parser: parser,
		store:  store,
		resolver: productResolver{
			mappings: mappings,
			catalog:  cat,
			matcher:  matcher,
			typ:      mapping.TypeProductNames,
			logger:   logger,
		},
		logger: logger,
	}
}

// Import reads an uploaded workbook, parses it, and persists the rows
// not seen before. Imported lines are resolved against the catalog the
// same way email line items are. A file that parses to zero
// transactions is a soft failure: the result carries an explanatory
// message and no error.
func (s *StatementService) Import(ctx context.Context, fileBytes []byte) (StatementImportResult, error) {
	rows, err := statement.ReadSheet(fileBytes)
	if err != nil {
		return StatementImportResult{}, fmt.Errorf("%w: %v", ErrBadFile, err)
	}

	txs := s.parser.Parse(rows)
	if len(txs) == 0 {
		return StatementImportResult{Message: "No transactions found in file"}, nil
	}

	result := StatementImportResult{}
	for _, tx := range txs {
		exists, err := s.store.ExistsReference(ctx, tx.Reference)
		if err != nil {
			return StatementImportResult{}, err
		}
		if exists {
			result.Skipped++
			continue
		}
		saved, err := s.store.SaveStatementTransaction(ctx, tx)
		if err != nil {
			return StatementImportResult{}, err
		}
		if !saved {
			result.Skipped++
			continue
		}
		result.Imported++
		imported := ImportedTransaction{Transaction: tx}
		if product, ok := s.resolver.resolve(ctx, tx.Description); ok {
			imported.ProductID = product.ID
			imported.MatchedName = product.Name
		}
		result.Transactions = append(result.Transactions, imported)
	}
	result.Message = fmt.Sprintf("Imported %d transactions, skipped %d already present", result.Imported, result.Skipped)
	if s.logger != nil {
		s.logger.Info("statement imported",
			slog.Int("imported", result.Imported),
			slog.Int("skipped", result.Skipped))
	}
	return result, nil
}
