package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Lookups return (nil, nil) when the row does not exist.

// ReimbursementRepository defines persistence operations for Reimbursement
type ReimbursementRepository interface {
	Create(ctx context.Context, r *entity.Reimbursement) error
	GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error)
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.Reimbursement, error)

	// UpdateStatus writes the reconciliation result. External and last external
	// status are always written; internal status as given.
	UpdateStatus(ctx context.Context, id int64, internalStatus, externalStatus string) error

	// SetExternalStatus records a new ERP status without reconciling
	SetExternalStatus(ctx context.Context, id int64, externalStatus string) error

	// SetManualOverride writes the override flag and, when status is non-empty, the internal status
	SetManualOverride(ctx context.Context, id int64, override bool, status, actor string, at time.Time) error

	// ListExternalChanged pages through reimbursements whose external status
	// differs from the last reconciled one, ordered by id
	ListExternalChanged(ctx context.Context, afterID int64, limit int) ([]*entity.Reimbursement, error)

	// ListIDs pages through all reimbursement ids
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// WorkOrderRepository defines persistence operations for WorkOrder
type WorkOrderRepository interface {
	Create(ctx context.Context, wo *entity.WorkOrder) error
	GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error)
	GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.WorkOrder, error)

	// Update writes status, resolution, problem, comment, remark, seq and updated_at
	Update(ctx context.Context, wo *entity.WorkOrder) error

	// NextSeq allocates the next store-wide sequence number
	NextSeq(ctx context.Context) (int64, error)

	// CountActiveByReimbursementID counts work orders not in a terminal status
	CountActiveByReimbursementID(ctx context.Context, reimbursementID int64) (int, error)

	// GetByExpenseLineID returns every work order selecting the line
	GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.WorkOrder, error)

	// LatestAuditByExpenseLine returns the audit work order selecting the line
	// with the greatest (seq, updated_at, id), or nil
	LatestAuditByExpenseLine(ctx context.Context, expenseLineID int64) (*entity.WorkOrder, error)
}

// ExpenseLineRepository defines persistence operations for ExpenseLine
type ExpenseLineRepository interface {
	Create(ctx context.Context, line *entity.ExpenseLine) error
	GetByID(ctx context.Context, id int64) (*entity.ExpenseLine, error)
	GetByDocumentNumber(ctx context.Context, documentNumber string) ([]*entity.ExpenseLine, error)

	// UpdateVerificationStatus is reserved for the aggregator
	UpdateVerificationStatus(ctx context.Context, id int64, status string) error

	// ListIDs pages through all expense line ids
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// SelectionRepository defines persistence operations for the work order / expense line association
type SelectionRepository interface {
	// Create inserts the association; an existing pair is left unchanged
	Create(ctx context.Context, sel *entity.Selection) error
	GetByWorkOrderID(ctx context.Context, workOrderID int64) ([]*entity.Selection, error)
	GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.Selection, error)

	// UpdateVerificationByWorkOrder stamps every selection of the work order
	UpdateVerificationByWorkOrder(ctx context.Context, workOrderID int64, status, comment string) error
}

// CatalogRepository reads classification reference data
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]*entity.ExpenseCategory, error)
	ListProblemTypes(ctx context.Context) ([]*entity.ProblemType, error)
	GetProblemType(ctx context.Context, id int64) (*entity.ProblemType, error)
}

// StatusChangeRepository is the append-only work order audit log
type StatusChangeRepository interface {
	Create(ctx context.Context, record *entity.StatusChangeRecord) error
	GetByWorkOrderID(ctx context.Context, workOrderID int64) ([]*entity.StatusChangeRecord, error)
}

// ReimbursementStatusLogRepository is the append-only log of internal status writes
type ReimbursementStatusLogRepository interface {
	Create(ctx context.Context, record *entity.ReimbursementStatusRecord) error
	GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.ReimbursementStatusRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock provides timestamps for audit records
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}
