package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/backoffice/internal/catalog"
)

// StorePort persists ledger records.
type StorePort interface {
	Exists(ctx context.Context, transactionID, productID string) (bool, error)
	Append(ctx context.Context, record ChangeRecord) error
	Update(ctx context.Context, record ChangeRecord) error
	Delete(ctx context.Context, transactionID, productID string) error
	ListByTransaction(ctx context.Context, transactionID string) ([]ChangeRecord, error)
}

// CatalogPort exposes the catalog operations the ledger needs.
type CatalogPort interface {
	GetByID(ctx context.Context, id string) (catalog.Product, error)
	ProxyTarget(ctx context.Context, p catalog.Product) (catalog.Product, float64, error)
	ApplyStockDelta(ctx context.Context, id string, delta float64) (catalog.StockChange, error)
}

// Service applies transaction stock effects with idempotency.
type Service struct {
	store   StorePort
	catalog CatalogPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the Service.
func NewService(store StorePort, cat CatalogPort, logger *slog.Logger) *Service {
	return &Service{store: store, catalog: cat, logger: logger, now: time.Now}
}

// stockDirection returns the sign a positive line quantity applies to
// stock for the given transaction type. Sales and training usage
// consume stock; expenses (purchases) replenish it.
func stockDirection(txType TransactionType) int {
	if txType == TxExpense {
		return 1
	}
	return -1
}

func changeTypeFor(txType TransactionType) ChangeType {
	switch txType {
	case TxExpense:
		return ChangePurchase
	case TxSale:
		return ChangeSale
	default:
		return ChangeAdjustment
	}
}

// ApplyChanges mutates stock for each line of a committed transaction
// and appends one ledger record per product. A pair that already has a
// record is reported as a no-op with ChangeRecorded=false, which makes
// the whole call safe to retry. Item failures are collected per item
// rather than aborting the batch.
func (s *Service) ApplyChanges(ctx context.Context, transactionID string, txType TransactionType, source string, items []ItemChange) ([]UpdateResult, error) {
	results := make([]UpdateResult, 0, len(items))
	for _, item := range items {
		results = append(results, s.applyItem(ctx, transactionID, txType, source, item))
	}
	return results, nil
}

func (s *Service) applyItem(ctx context.Context, transactionID string, txType TransactionType, source string, item ItemChange) UpdateResult {
	result := UpdateResult{ProductID: item.ProductID}
	if item.Quantity <= 0 {
		result.Error = ErrInvalidQuantity.Error()
		return result
	}

	recorded, err := s.store.Exists(ctx, transactionID, item.ProductID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if recorded {
		// Replay: the mutation already happened.
		result.Success = true
		result.ChangeRecorded = false
		return result
	}

	product, err := s.catalog.GetByID(ctx, item.ProductID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ProductName = product.Name

	target, ratio, err := s.catalog.ProxyTarget(ctx, product)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	signedQty := item.Quantity * stockDirection(txType)
	delta := float64(signedQty) * ratio
	change, err := s.catalog.ApplyStockDelta(ctx, target.ID, delta)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	record := ChangeRecord{
		ID:              uuid.NewString(),
		TransactionID:   transactionID,
		ProductID:       item.ProductID,
		QuantityChange:  signedQty,
		ChangeType:      changeTypeFor(txType),
		Timestamp:       s.now(),
		ProductName:     product.Name,
		TransactionType: txType,
		Source:          source,
	}
	if err := s.store.Append(ctx, record); err != nil {
		// Stock moved but the record write failed. The ledger is an
		// audit and idempotency aid, not the stock source of truth;
		// surface the error on the item and leave stock as applied.
		result.Error = err.Error()
		result.OldStock = change.OldStock
		result.NewStock = change.NewStock
		return result
	}

	result.OldStock = change.OldStock
	result.NewStock = change.NewStock
	result.QuantityChange = delta
	result.Success = true
	result.ChangeRecorded = true
	if s.logger != nil {
		s.logger.Info("stock applied",
			slog.String("transaction_id", transactionID),
			slog.String("product_id", item.ProductID),
			slog.Float64("delta", delta))
	}
	return result
}

// ReverseTransaction undoes a transaction's stock effect. Each
// non-restoration record is replaced by a restoration record after the
// opposite delta is applied. Calling it twice is harmless: the second
// call finds only restoration records and does nothing.
func (s *Service) ReverseTransaction(ctx context.Context, transactionID string) ([]UpdateResult, error) {
	records, err := s.store.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	var results []UpdateResult
	for _, record := range records {
		if record.ChangeType == ChangeRestoration {
			continue
		}
		results = append(results, s.restoreRecord(ctx, record))
	}
	return results, nil
}

func (s *Service) restoreRecord(ctx context.Context, record ChangeRecord) UpdateResult {
	result := UpdateResult{ProductID: record.ProductID, ProductName: record.ProductName}

	product, err := s.catalog.GetByID(ctx, record.ProductID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	target, ratio, err := s.catalog.ProxyTarget(ctx, product)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	delta := float64(-record.QuantityChange) * ratio
	change, err := s.catalog.ApplyStockDelta(ctx, target.ID, delta)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	restoration := ChangeRecord{
		ID:              uuid.NewString(),
		TransactionID:   record.TransactionID,
		ProductID:       record.ProductID,
		QuantityChange:  -record.QuantityChange,
		ChangeType:      ChangeRestoration,
		Timestamp:       s.now(),
		ProductName:     record.ProductName,
		TransactionType: record.TransactionType,
		Source:          record.Source,
		Notes:           "reversal of " + record.ID,
	}
	if err := s.store.Delete(ctx, record.TransactionID, record.ProductID); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := s.store.Append(ctx, restoration); err != nil {
		result.Error = err.Error()
		return result
	}

	result.OldStock = change.OldStock
	result.NewStock = change.NewStock
	result.QuantityChange = delta
	result.Success = true
	result.ChangeRecorded = true
	return result
}

// ReconcileUpdate reconciles stock after a transaction edit: removed
// products are restored, added products are applied, and quantity
// changes apply only the difference. The three phases run best-effort
// sequentially; per-item outcomes are reported rather than rolled
// back.
func (s *Service) ReconcileUpdate(ctx context.Context, transactionID string, txType TransactionType, source string, oldItems, newItems []ItemChange) ([]UpdateResult, error) {
	oldByID := itemsByProduct(oldItems)
	newByID := itemsByProduct(newItems)
	var results []UpdateResult

	// Phase 1: restore products dropped from the transaction.
	for _, item := range oldItems {
		if _, kept := newByID[item.ProductID]; kept {
			continue
		}
		record, err := s.recordFor(ctx, transactionID, item.ProductID)
		if err != nil {
			results = append(results, UpdateResult{ProductID: item.ProductID, Error: err.Error()})
			continue
		}
		if record == nil || record.ChangeType == ChangeRestoration {
			continue
		}
		results = append(results, s.restoreRecord(ctx, *record))
	}

	// Phase 2: apply newly added products.
	for _, item := range newItems {
		if _, existed := oldByID[item.ProductID]; existed {
			continue
		}
		results = append(results, s.applyItem(ctx, transactionID, txType, source, item))
	}

	// Phase 3: adjust quantity changes on surviving products.
	for _, item := range newItems {
		oldItem, existed := oldByID[item.ProductID]
		if !existed || oldItem.Quantity == item.Quantity {
			continue
		}
		results = append(results, s.adjustItem(ctx, transactionID, txType, oldItem, item))
	}
	return results, nil
}

func (s *Service) adjustItem(ctx context.Context, transactionID string, txType TransactionType, oldItem, newItem ItemChange) UpdateResult {
	result := UpdateResult{ProductID: newItem.ProductID}

	record, err := s.recordFor(ctx, transactionID, newItem.ProductID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	product, err := s.catalog.GetByID(ctx, newItem.ProductID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ProductName = product.Name
	target, ratio, err := s.catalog.ProxyTarget(ctx, product)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	diff := (newItem.Quantity - oldItem.Quantity) * stockDirection(txType)
	delta := float64(diff) * ratio
	change, err := s.catalog.ApplyStockDelta(ctx, target.ID, delta)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	signedQty := newItem.Quantity * stockDirection(txType)
	if record != nil {
		record.QuantityChange = signedQty
		record.Timestamp = s.now()
		if err := s.store.Update(ctx, *record); err != nil {
			result.Error = err.Error()
			return result
		}
	} else {
		fresh := ChangeRecord{
			ID:              uuid.NewString(),
			TransactionID:   transactionID,
			ProductID:       newItem.ProductID,
			QuantityChange:  signedQty,
			ChangeType:      changeTypeFor(txType),
			Timestamp:       s.now(),
			ProductName:     product.Name,
			TransactionType: txType,
		}
		if err := s.store.Append(ctx, fresh); err != nil {
			result.Error = err.Error()
			return result
		}
	}

	result.OldStock = change.OldStock
	result.NewStock = change.NewStock
	result.QuantityChange = delta
	result.Success = true
	result.ChangeRecorded = true
	return result
}

func (s *Service) recordFor(ctx context.Context, transactionID, productID string) (*ChangeRecord, error) {
	records, err := s.store.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ProductID == productID {
			return &records[i], nil
		}
	}
	return nil, nil
}

func itemsByProduct(items []ItemChange) map[string]ItemChange {
	byID := make(map[string]ItemChange, len(items))
	for _, item := range items {
		byID[item.ProductID] = item
	}
	return byID
}
