package ingest

import (
	"errors"
	"time"

	"github.com/harborview/backoffice/internal/email"
	"github.com/harborview/backoffice/internal/statement"
)

// MatchedLineItem is a parsed invoice line bound to a catalog product.
type MatchedLineItem struct {
	email.LineItem
	ProductID      string  `json:"productId,omitempty"`
	MatchedName    string  `json:"matchedName,omitempty"`
	LastKnownPrice float64 `json:"lastKnownPrice,omitempty"`
}

// ParsedInvoice is the invoice extraction result with items resolved
// against the catalog. Items that cleared no match keep an empty
// ProductID and are surfaced for manual review rather than dropped
// silently.
type ParsedInvoice struct {
	OrderNumber string            `json:"orderNumber,omitempty"`
	Products    []MatchedLineItem `json:"products"`
	TotalAmount float64           `json:"totalAmount"`
}

// EmailImportResult is the payload returned by the email import
// endpoint.
type EmailImportResult struct {
	EmailBody         string        `json:"emailBody,omitempty"`
	ExtractedSupplier string        `json:"extractedSupplier,omitempty"`
	ParsedData        ParsedInvoice `json:"parsedData"`
	Amount            float64       `json:"amount"`
	IsLastEmail       bool          `json:"isLastEmail"`
	Message           string        `json:"message,omitempty"`
}

// ImportedTransaction is a persisted statement line annotated with its
// catalog resolution. Lines that resolve nowhere keep an empty
// ProductID and are surfaced for manual review.
type ImportedTransaction struct {
	statement.Transaction
	ProductID   string `json:"productId,omitempty"`
	MatchedName string `json:"matchedName,omitempty"`
}

// StatementImportResult is the payload returned by the statement
// import endpoint.
type StatementImportResult struct {
	Message      string                `json:"message"`
	Imported     int                   `json:"imported"`
	Skipped      int                   `json:"skipped"`
	Transactions []ImportedTransaction `json:"transactions,omitempty"`
}

// Purchase is a committed supplier purchase assembled from an invoice
// email, ready for stock and cost application.
type Purchase struct {
	ID          string            `json:"id"`
	SupplierID  string            `json:"supplierId"`
	OrderNumber string            `json:"orderNumber,omitempty"`
	Date        time.Time         `json:"date"`
	Amount      float64           `json:"amount"`
	Items       []MatchedLineItem `json:"items"`
}

var (
	ErrBadFile    = errors.New("ingest: unsupported or unreadable file")
	ErrNoSupplier = errors.New("ingest: supplier not configured")
)
