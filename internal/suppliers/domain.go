package suppliers

import (
	"errors"
	"time"

	"github.com/harborview/backoffice/internal/email"
)

// Supplier carries the per-supplier configuration the ingestion
// pipeline needs: how to recognize the supplier's invoice emails and
// how to pull line items out of them.
type Supplier struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Aliases               []string         `json:"aliases,omitempty"`
	InvoiceEmail          string           `json:"invoiceEmail,omitempty"`
	InvoiceSubjectPattern string           `json:"invoiceSubjectPattern,omitempty"`
	ExtractionRule        email.Rule       `json:"extractionRule"`
	Correction            email.Correction `json:"correction"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

var ErrNotFound = errors.New("suppliers: not found")
