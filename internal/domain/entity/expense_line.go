package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseLine represents a single fee detail of a reimbursement document.
// VerificationStatus is derived from associated work orders and never set directly.
type ExpenseLine struct {
	ID                 int64           `json:"id"`
	DocumentNumber     string          `json:"document_number"`
	CategoryLabel      string          `json:"category_label"`
	MeetingType        string          `json:"meeting_type"`
	Amount             decimal.Decimal `json:"amount"`
	OccurredOn         *time.Time      `json:"occurred_on,omitempty"`
	VerificationStatus string          `json:"verification_status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Selection associates an expense line with a work order. Its VerificationStatus
// is the per-work-order verdict, independent of the line's derived status.
type Selection struct {
	ID                  int64     `json:"id"`
	WorkOrderID         int64     `json:"work_order_id"`
	ExpenseLineID       int64     `json:"expense_line_id"`
	VerificationStatus  string    `json:"verification_status"`
	VerificationComment string    `json:"verification_comment,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
