package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reimbursement represents an expense-reimbursement document imported from the ERP.
// InvoiceNumber is the shared document identifier that expense lines point at.
type Reimbursement struct {
	ID                 int64           `json:"id"`
	InvoiceNumber      string          `json:"invoice_number"`
	DocumentName       string          `json:"document_name"`
	Amount             decimal.Decimal `json:"amount"`
	InternalStatus     string          `json:"internal_status"`
	ExternalStatus     string          `json:"external_status"`
	LastExternalStatus string          `json:"last_external_status"`

	// Manual override suppresses automatic reconciliation until reset
	ManualOverride   bool       `json:"manual_override"`
	ManualOverrideAt *time.Time `json:"manual_override_at,omitempty"`
	ManualOverrideBy string     `json:"manual_override_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExternalStatusChanged reports whether the ERP status moved since the last reconciliation
func (r *Reimbursement) ExternalStatusChanged() bool {
	return r.ExternalStatus != r.LastExternalStatus
}
