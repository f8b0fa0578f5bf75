// Package ledger keeps an append-only log of stock deltas keyed by
// (transaction, product). The log makes inventory mutation idempotent
// across retries, edits and deletes: existence of a record for the
// pair means the mutation already happened, checked before any stock
// write.
package ledger

import (
	"errors"
	"time"
)

// ChangeType classifies a ledger entry.
type ChangeType string

const (
	ChangeSale        ChangeType = "sale"
	ChangePurchase    ChangeType = "purchase"
	ChangeAdjustment  ChangeType = "adjustment"
	ChangeRestoration ChangeType = "restoration"
)

// TransactionType classifies the owning business transaction.
type TransactionType string

const (
	TxSale     TransactionType = "sale"
	TxExpense  TransactionType = "expense"
	TxTraining TransactionType = "training"
)

// ChangeRecord is one ledger entry. At most one record exists per
// (TransactionID, ProductID) pair.
type ChangeRecord struct {
	ID              string          `json:"id"`
	TransactionID   string          `json:"transactionId"`
	ProductID       string          `json:"productId"`
	QuantityChange  int             `json:"quantityChange"`
	ChangeType      ChangeType      `json:"changeType"`
	Timestamp       time.Time       `json:"timestamp"`
	ProductName     string          `json:"productName"`
	TransactionType TransactionType `json:"transactionType"`
	Source          string          `json:"source"`
	Notes           string          `json:"notes,omitempty"`
}

// ItemChange is one line of a transaction affecting stock.
type ItemChange struct {
	ProductID string
	Quantity  int
}

// UpdateResult reports the outcome of one product's stock mutation.
type UpdateResult struct {
	ProductID      string  `json:"productId"`
	ProductName    string  `json:"productName"`
	OldStock       float64 `json:"oldStock"`
	NewStock       float64 `json:"newStock"`
	QuantityChange float64 `json:"quantityChange"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
	ChangeRecorded bool    `json:"changeRecorded"`
}

// ErrInvalidQuantity indicates a zero or negative line quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
