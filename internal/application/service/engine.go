package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/catalog"
	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/rules"
	"github.com/garyjia/expense-audit/pkg/utils"
)

// DefaultBatchSize is used by the sync operations when no page size is given
const DefaultBatchSize = 200

// Repositories groups the ports the engine reads and writes
type Repositories struct {
	Reimbursements port.ReimbursementRepository
	WorkOrders     port.WorkOrderRepository
	ExpenseLines   port.ExpenseLineRepository
	Selections     port.SelectionRepository
	Catalog        port.CatalogRepository
	StatusChanges  port.StatusChangeRepository
	StatusLog      port.ReimbursementStatusLogRepository
}

// Validate checks that every repository is set
func (r Repositories) Validate() error {
	switch {
	case r.Reimbursements == nil:
		return fmt.Errorf("reimbursement repository is required")
	case r.WorkOrders == nil:
		return fmt.Errorf("work order repository is required")
	case r.ExpenseLines == nil:
		return fmt.Errorf("expense line repository is required")
	case r.Selections == nil:
		return fmt.Errorf("selection repository is required")
	case r.Catalog == nil:
		return fmt.Errorf("catalog repository is required")
	case r.StatusChanges == nil:
		return fmt.Errorf("status change repository is required")
	case r.StatusLog == nil:
		return fmt.Errorf("status log repository is required")
	}
	return nil
}

// EngineOptions tunes the rule sets. Empty slices select the defaults.
type EngineOptions struct {
	PaidExternalStatuses []string
	PersonalKeywords     []string
	AcademicKeywords     []string
	BatchSize            int
	Clock                port.Clock
}

// Engine is the library surface consumed by import jobs and operator tools
type Engine struct {
	repos      Repositories
	catalog    catalog.Catalog
	resolver   ProblemResolver
	aggregator VerificationAggregator
	reconciler Reconciler
	workOrders WorkOrderService
	batch      BatchRunner
	batchSize  int
	logger     Logger
}

// NewEngine wires the services and subscribes the cascade handlers on d
func NewEngine(repos Repositories, txManager port.TransactionManager, d dispatcher.Dispatcher, opts EngineOptions, logger Logger) (*Engine, error) {
	if err := repos.Validate(); err != nil {
		return nil, err
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	logger = loggerOrNop(logger)
	clock := opts.Clock
	if clock == nil {
		clock = port.SystemClock{}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	cat := catalog.New(repos.Catalog)
	resolver := NewProblemResolver(cat, rules.NewDocumentClassifier(opts.PersonalKeywords, opts.AcademicKeywords), logger)
	aggregator := NewVerificationAggregator(repos.ExpenseLines, repos.WorkOrders, txManager, logger)
	reconciler := NewReconciler(repos.Reimbursements, repos.WorkOrders, repos.StatusLog, txManager, d,
		rules.NewStatusPolicy(opts.PaidExternalStatuses), clock, logger)
	workOrders := NewWorkOrderService(repos.Reimbursements, repos.WorkOrders, repos.ExpenseLines, repos.Selections,
		repos.StatusChanges, cat, resolver, txManager, d, clock, logger)

	RegisterCascade(d, aggregator, reconciler, repos.Reimbursements)

	return &Engine{
		repos:      repos,
		catalog:    cat,
		resolver:   resolver,
		aggregator: aggregator,
		reconciler: reconciler,
		workOrders: workOrders,
		batch:      NewBatchRunner(repos.Reimbursements, aggregator, reconciler, txManager, logger),
		batchSize:  batchSize,
		logger:     logger,
	}, nil
}

// Transition fires a trigger on a work order
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*entity.WorkOrder, error) {
	return e.workOrders.Transition(ctx, req)
}

// RecomputeExpenseLine re-derives one expense line's verification status
func (e *Engine) RecomputeExpenseLine(ctx context.Context, expenseLineID int64) (string, error) {
	return e.aggregator.Recompute(ctx, expenseLineID)
}

// RecomputeExpenseLines is the bulk form of RecomputeExpenseLine
func (e *Engine) RecomputeExpenseLines(ctx context.Context, expenseLineIDs []int64) (map[int64]string, error) {
	return e.aggregator.RecomputeMany(ctx, expenseLineIDs)
}

// ReconcileReimbursement records the external status and re-derives the internal one
func (e *Engine) ReconcileReimbursement(ctx context.Context, reimbursementID int64, externalStatus string) (string, error) {
	return e.reconciler.Reconcile(ctx, reimbursementID, externalStatus)
}

// SetManualOverride pins the internal status until reset
func (e *Engine) SetManualOverride(ctx context.Context, reimbursementID int64, status, actorID string) error {
	return e.reconciler.SetManualOverride(ctx, reimbursementID, status, actorID)
}

// ResetManualOverride re-enables automatic reconciliation
func (e *Engine) ResetManualOverride(ctx context.Context, reimbursementID int64, actorID string) error {
	return e.reconciler.ResetManualOverride(ctx, reimbursementID, actorID)
}

// ResolveProblemTypes returns the ids of the problem types applicable to the expense line
func (e *Engine) ResolveProblemTypes(ctx context.Context, reimbursementID, expenseLineID int64) ([]int64, error) {
	r, err := e.repos.Reimbursements.GetByID(ctx, reimbursementID)
	if err != nil {
		return nil, fmt.Errorf("get reimbursement: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: reimbursement %d", ErrNotFound, reimbursementID)
	}

	line, err := e.repos.ExpenseLines.GetByID(ctx, expenseLineID)
	if err != nil {
		return nil, fmt.Errorf("get expense line: %w", err)
	}
	if line == nil {
		return nil, fmt.Errorf("%w: expense line %d", ErrNotFound, expenseLineID)
	}
	if line.DocumentNumber != r.InvoiceNumber {
		return nil, fmt.Errorf("%w: expense line %d does not belong to reimbursement %d", ErrValidation, expenseLineID, reimbursementID)
	}

	types, err := e.resolver.Resolve(ctx, r, line)
	if err != nil {
		return nil, err
	}
	return rules.ProblemTypeIDs(types), nil
}

// CreateWorkOrder creates a work order in its initial state
func (e *Engine) CreateWorkOrder(ctx context.Context, req CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	return e.workOrders.Create(ctx, req)
}

// SelectExpenseLines associates expense lines with a work order
func (e *Engine) SelectExpenseLines(ctx context.Context, workOrderID int64, expenseLineIDs []int64, actorID string) error {
	return e.workOrders.SelectExpenseLines(ctx, workOrderID, expenseLineIDs, actorID)
}

// AttachProblem classifies a work order with a problem type
func (e *Engine) AttachProblem(ctx context.Context, workOrderID, problemTypeID int64, actorID string) (*entity.WorkOrder, error) {
	return e.workOrders.AttachProblem(ctx, workOrderID, problemTypeID, actorID)
}

// WorkOrderHistory returns the status change log of a work order
func (e *Engine) WorkOrderHistory(ctx context.Context, workOrderID int64) ([]*entity.StatusChangeRecord, error) {
	return e.workOrders.History(ctx, workOrderID)
}

// RecordExternalStatus stores a new ERP status without reconciling. The next
// cascade or sync run reconciles it.
func (e *Engine) RecordExternalStatus(ctx context.Context, reimbursementID int64, externalStatus string) error {
	r, err := e.repos.Reimbursements.GetByID(ctx, reimbursementID)
	if err != nil {
		return fmt.Errorf("get reimbursement: %w", err)
	}
	if r == nil {
		return fmt.Errorf("%w: reimbursement %d", ErrNotFound, reimbursementID)
	}
	return e.repos.Reimbursements.SetExternalStatus(ctx, reimbursementID, utils.SanitizeString(externalStatus))
}

// RunBatch applies fn with cascades deferred to one recomputation per affected entity
func (e *Engine) RunBatch(ctx context.Context, fn func(ctx context.Context) error) (*BatchResult, error) {
	return e.batch.Run(ctx, fn)
}

// InvalidateCatalog drops cached classification data after an import
func (e *Engine) InvalidateCatalog() {
	e.catalog.Invalidate()
}
