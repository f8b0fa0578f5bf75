package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/backoffice/internal/catalog"
	"github.com/harborview/backoffice/internal/email"
	"github.com/harborview/backoffice/internal/ledger"
	"github.com/harborview/backoffice/internal/mapping"
	"github.com/harborview/backoffice/internal/match"
	"github.com/harborview/backoffice/internal/suppliers"
)

// SupplierDirectory resolves extracted supplier names to configured
// suppliers.
type SupplierDirectory interface {
	FindByNameOrAlias(ctx context.Context, name string) (suppliers.Supplier, error)
}

// MappingStore is the learned-mapping surface the importer consults.
type MappingStore interface {
	Find(ctx context.Context, typ mapping.Type, source string) (mapping.Mapping, error)
	Upsert(ctx context.Context, input mapping.UpsertInput) (mapping.Mapping, error)
}

// CatalogPort is the catalog surface the importer needs.
type CatalogPort interface {
	Search(ctx context.Context, query string) ([]catalog.Product, error)
	GetByID(ctx context.Context, id string) (catalog.Product, error)
	RecordCost(ctx context.Context, id string, entry catalog.CostEntry) error
}

// LedgerPort applies stock effects for committed purchases.
type LedgerPort interface {
	ApplyChanges(ctx context.Context, transactionID string, txType ledger.TransactionType, source string, items []ledger.ItemChange) ([]ledger.UpdateResult, error)
}

// PurchaseStore persists committed purchases.
type PurchaseStore interface {
	SavePurchase(ctx context.Context, p Purchase) error
}

// InvoiceService turns a purchase notification email into a reviewed,
// catalog-bound purchase.
type InvoiceService struct {
	source    email.Source
	directory SupplierDirectory
	mappings  MappingStore
	catalog   CatalogPort
	ledger    LedgerPort
	store     PurchaseStore
	resolver  productResolver
	logger    *slog.Logger
}

// NewInvoiceService constructs the service.
func NewInvoiceService(source email.Source, directory SupplierDirectory, mappings MappingStore,
	cat CatalogPort, led LedgerPort, store PurchaseStore, matcher *match.Engine, logger *slog.Logger) *InvoiceService {
	return &InvoiceService{
		source:    source,
		directory: directory,
		mappings:  mappings,
		catalog:   cat,
		ledger:    led,
		store:     store,
		resolver: productResolver{
			mappings: mappings,
			catalog:  cat,
			matcher:  matcher,
			typ:      mapping.TypeEmailProduct,
			logger:   logger,
		},
		logger: logger,
	}
}

const purchaseSource = "email-import"

// ProcessNotification runs the full extraction pipeline for one
// notification email. Supplier-not-found and no-matching-invoice are
// soft outcomes carried in the result message; infrastructure failures
// return an error.
func (s *InvoiceService) ProcessNotification(ctx context.Context, messageID string, skip int) (EmailImportResult, error) {
	if s.source == nil {
		return EmailImportResult{}, errors.New("ingest: email source not configured")
	}
	msg, err := s.source.GetMessage(ctx, messageID)
	if err != nil {
		return EmailImportResult{}, err
	}
	result := EmailImportResult{EmailBody: msg.HTMLBody}

	name, err := email.ExtractSupplierName(msg.HTMLBody)
	if errors.Is(err, email.ErrSupplierNotFound) {
		result.Message = "Could not find supplier name in email"
		return result, nil
	}
	result.ExtractedSupplier = name

	amount, ok := email.ExtractNotificationAmount(msg.HTMLBody)
	if !ok {
		result.Message = "Could not find purchase amount in email"
		return result, nil
	}
	result.Amount = amount

	supplier, err := s.resolveSupplier(ctx, name)
	if errors.Is(err, ErrNoSupplier) {
		result.Message = fmt.Sprintf("No supplier configured for %q", name)
		return result, nil
	}
	if err != nil {
		return EmailImportResult{}, err
	}

	invoice, isLast, err := email.FindInvoice(ctx, s.source,
		supplier.InvoiceEmail, supplier.InvoiceSubjectPattern, result.Amount, skip)
	if errors.Is(err, email.ErrNoInvoiceMatch) {
		result.Message = "No matching invoice email found"
		return result, nil
	}
	if err != nil {
		return EmailImportResult{}, err
	}
	result.IsLastEmail = isLast
	result.EmailBody = invoice.HTMLBody

	data, err := email.ParseInvoice(invoice.HTMLBody, supplier.ExtractionRule, supplier.Correction)
	if err != nil {
		return EmailImportResult{}, err
	}
	result.ParsedData = ParsedInvoice{OrderNumber: data.OrderNumber, TotalAmount: data.TotalAmount}
	for _, item := range data.LineItems {
		result.ParsedData.Products = append(result.ParsedData.Products, s.resolveItem(ctx, item))
	}
	return result, nil
}

// resolveSupplier consults the learned supplier mapping before the
// directory so a supplier renamed in email templates keeps resolving.
func (s *InvoiceService) resolveSupplier(ctx context.Context, name string) (suppliers.Supplier, error) {
	lookup := name
	if m, err := s.mappings.Find(ctx, mapping.TypeEmailSupplier, name); err == nil {
		lookup = m.Target
	}

	supplier, err := s.directory.FindByNameOrAlias(ctx, lookup)
	if errors.Is(err, suppliers.ErrNotFound) {
		return suppliers.Supplier{}, ErrNoSupplier
	}
	if err != nil {
		return suppliers.Supplier{}, err
	}

	if _, err := s.mappings.Upsert(ctx, mapping.UpsertInput{
		Type:       mapping.TypeEmailSupplier,
		Source:     name,
		Target:     supplier.Name,
		TargetID:   supplier.ID,
		Confidence: 80,
		UsageCount: 1,
	}); err != nil && s.logger != nil {
		s.logger.Warn("supplier mapping upsert failed", slog.Any("error", err))
	}
	return supplier, nil
}

// resolveItem binds one parsed line to a catalog product. An item that
// resolves nowhere keeps an empty ProductID for manual review.
func (s *InvoiceService) resolveItem(ctx context.Context, item email.LineItem) MatchedLineItem {
	out := MatchedLineItem{LineItem: item}
	product, ok := s.resolver.resolve(ctx, item.RawName)
	if !ok {
		return out
	}
	out.ProductID = product.ID
	out.MatchedName = product.Name
	out.LastKnownPrice = product.LastPurchasePrice
	return out
}

// CommitPurchase persists the reviewed purchase, applies its stock
// effect, and records cost history for each matched item. A cost write
// failure stops the remaining cost updates but the results collected
// so far are returned with the error.
func (s *InvoiceService) CommitPurchase(ctx context.Context, p Purchase) ([]ledger.UpdateResult, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	if err := s.store.SavePurchase(ctx, p); err != nil {
		return nil, err
	}

	var items []ledger.ItemChange
	for _, item := range p.Items {
		if item.ProductID == "" {
			continue
		}
		items = append(items, ledger.ItemChange{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	results, err := s.ledger.ApplyChanges(ctx, p.ID, ledger.TxExpense, purchaseSource, items)
	if err != nil {
		return results, err
	}

	for _, item := range p.Items {
		if item.ProductID == "" {
			continue
		}
		entry := catalog.CostEntry{Date: p.Date, UnitPrice: item.UnitPrice, Source: purchaseSource}
		if err := s.catalog.RecordCost(ctx, item.ProductID, entry); err != nil {
			return results, fmt.Errorf("ingest: cost history for %s: %w", item.ProductID, err)
		}
	}
	return results, nil
}
