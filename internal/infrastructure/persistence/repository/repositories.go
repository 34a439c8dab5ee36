package repository

import (
	"database/sql"

	"go.uber.org/zap"
)

// Repositories bundles the SQLite implementations of every port
type Repositories struct {
	Reimbursements *ReimbursementRepository
	WorkOrders     *WorkOrderRepository
	ExpenseLines   *ExpenseLineRepository
	Selections     *SelectionRepository
	Catalog        *CatalogRepository
	StatusChanges  *StatusChangeRepository
	StatusLog      *StatusLogRepository
}

// NewRepositories creates every repository on db
func NewRepositories(db *sql.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Reimbursements: &ReimbursementRepository{db: db, logger: logger},
		WorkOrders:     &WorkOrderRepository{db: db, logger: logger},
		ExpenseLines:   &ExpenseLineRepository{db: db, logger: logger},
		Selections:     &SelectionRepository{db: db, logger: logger},
		Catalog:        NewCatalogRepository(db, logger),
		StatusChanges:  &StatusChangeRepository{db: db, logger: logger},
		StatusLog:      &StatusLogRepository{db: db, logger: logger},
	}
}
