package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/rules"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
)

// ReimbursementRepository implements port.ReimbursementRepository
type ReimbursementRepository struct {
	store *Store
}

// Create inserts a reimbursement. The invoice number must be unique.
func (r *ReimbursementRepository) Create(ctx context.Context, reimb *entity.Reimbursement) error {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.data.reimbursements {
		if existing.InvoiceNumber == reimb.InvoiceNumber {
			return fmt.Errorf("reimbursement with invoice number %s already exists", reimb.InvoiceNumber)
		}
	}

	now := r.store.now()
	reimb.ID = r.store.data.allocID("reimbursements")
	if reimb.InternalStatus == "" {
		reimb.InternalStatus = entity.ReimbursementStatusPending
	}
	if reimb.CreatedAt.IsZero() {
		reimb.CreatedAt = now
	}
	reimb.UpdatedAt = now
	r.store.data.reimbursements[reimb.ID] = cloneReimbursement(reimb)
	return nil
}

// GetByID retrieves a reimbursement by ID
func (r *ReimbursementRepository) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	defer r.store.rlock(ctx)()
	return cloneReimbursement(r.store.data.reimbursements[id]), nil
}

// GetByInvoiceNumber retrieves a reimbursement by its document number
func (r *ReimbursementRepository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.Reimbursement, error) {
	defer r.store.rlock(ctx)()
	for _, reimb := range r.store.data.reimbursements {
		if reimb.InvoiceNumber == invoiceNumber {
			return cloneReimbursement(reimb), nil
		}
	}
	return nil, nil
}

// UpdateStatus writes the reconciliation result
func (r *ReimbursementRepository) UpdateStatus(ctx context.Context, id int64, internalStatus, externalStatus string) error {
	defer r.store.lock(ctx)()

	reimb, ok := r.store.data.reimbursements[id]
	if !ok {
		return fmt.Errorf("reimbursement %d not found", id)
	}
	reimb.InternalStatus = internalStatus
	reimb.ExternalStatus = externalStatus
	reimb.LastExternalStatus = externalStatus
	reimb.UpdatedAt = r.store.now()
	return nil
}

// SetExternalStatus records a new ERP status
func (r *ReimbursementRepository) SetExternalStatus(ctx context.Context, id int64, externalStatus string) error {
	defer r.store.lock(ctx)()

	reimb, ok := r.store.data.reimbursements[id]
	if !ok {
		return fmt.Errorf("reimbursement %d not found", id)
	}
	reimb.ExternalStatus = externalStatus
	reimb.UpdatedAt = r.store.now()
	return nil
}

// SetManualOverride writes the override flag and optionally the status
func (r *ReimbursementRepository) SetManualOverride(ctx context.Context, id int64, override bool, status, actor string, at time.Time) error {
	defer r.store.lock(ctx)()

	reimb, ok := r.store.data.reimbursements[id]
	if !ok {
		return fmt.Errorf("reimbursement %d not found", id)
	}
	reimb.ManualOverride = override
	if status != "" {
		reimb.InternalStatus = status
	}
	at = at.UTC()
	reimb.ManualOverrideAt = &at
	reimb.ManualOverrideBy = actor
	reimb.UpdatedAt = r.store.now()
	return nil
}

// ListExternalChanged pages through reimbursements with an unreconciled external status
func (r *ReimbursementRepository) ListExternalChanged(ctx context.Context, afterID int64, limit int) ([]*entity.Reimbursement, error) {
	defer r.store.rlock(ctx)()

	var result []*entity.Reimbursement
	for _, id := range sortedIDs(r.store.data.reimbursements) {
		reimb := r.store.data.reimbursements[id]
		if id <= afterID || !reimb.ExternalStatusChanged() {
			continue
		}
		result = append(result, cloneReimbursement(reimb))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ListIDs pages through reimbursement ids
func (r *ReimbursementRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	defer r.store.rlock(ctx)()
	return pageIDs(sortedIDs(r.store.data.reimbursements), afterID, limit), nil
}

// WorkOrderRepository implements port.WorkOrderRepository
type WorkOrderRepository struct {
	store *Store
}

// Create inserts a work order
func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.data.reimbursements[wo.ReimbursementID]; !ok {
		return fmt.Errorf("reimbursement %d not found", wo.ReimbursementID)
	}

	now := r.store.now()
	wo.ID = r.store.data.allocID("work_orders")
	if wo.CreatedAt.IsZero() {
		wo.CreatedAt = now
	}
	if wo.UpdatedAt.IsZero() {
		wo.UpdatedAt = now
	}
	r.store.data.workOrders[wo.ID] = cloneWorkOrder(wo)
	return nil
}

// GetByID retrieves a work order by ID
func (r *WorkOrderRepository) GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error) {
	defer r.store.rlock(ctx)()
	return cloneWorkOrder(r.store.data.workOrders[id]), nil
}

// GetByReimbursementID returns the reimbursement's work orders ordered by id
func (r *WorkOrderRepository) GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.WorkOrder, error) {
	defer r.store.rlock(ctx)()

	var result []*entity.WorkOrder
	for _, id := range sortedIDs(r.store.data.workOrders) {
		if wo := r.store.data.workOrders[id]; wo.ReimbursementID == reimbursementID {
			result = append(result, cloneWorkOrder(wo))
		}
	}
	return result, nil
}

// Update writes the mutable fields of a work order
func (r *WorkOrderRepository) Update(ctx context.Context, wo *entity.WorkOrder) error {
	defer r.store.lock(ctx)()

	stored, ok := r.store.data.workOrders[wo.ID]
	if !ok {
		return fmt.Errorf("work order %d not found", wo.ID)
	}
	updated := cloneWorkOrder(wo)
	updated.ReimbursementID = stored.ReimbursementID
	updated.Variant = stored.Variant
	updated.CreatedAt = stored.CreatedAt
	updated.CreatedBy = stored.CreatedBy
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = r.store.now()
	}
	r.store.data.workOrders[wo.ID] = updated
	return nil
}

// NextSeq allocates the next sequence number
func (r *WorkOrderRepository) NextSeq(ctx context.Context) (int64, error) {
	defer r.store.lock(ctx)()
	r.store.data.seq++
	return r.store.data.seq, nil
}

// CountActiveByReimbursementID counts non-terminal work orders
func (r *WorkOrderRepository) CountActiveByReimbursementID(ctx context.Context, reimbursementID int64) (int, error) {
	defer r.store.rlock(ctx)()

	count := 0
	for _, wo := range r.store.data.workOrders {
		if wo.ReimbursementID == reimbursementID && !workflow.State(wo.Status).IsTerminal() {
			count++
		}
	}
	return count, nil
}

// GetByExpenseLineID returns every work order selecting the line
func (r *WorkOrderRepository) GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.WorkOrder, error) {
	defer r.store.rlock(ctx)()
	return r.byExpenseLine(expenseLineID), nil
}

// LatestAuditByExpenseLine returns the newest audit work order selecting the line
func (r *WorkOrderRepository) LatestAuditByExpenseLine(ctx context.Context, expenseLineID int64) (*entity.WorkOrder, error) {
	defer r.store.rlock(ctx)()
	return rules.LatestQualifying(r.byExpenseLine(expenseLineID)), nil
}

func (r *WorkOrderRepository) byExpenseLine(expenseLineID int64) []*entity.WorkOrder {
	seen := make(map[int64]bool)
	var result []*entity.WorkOrder
	for _, id := range sortedIDs(r.store.data.selections) {
		sel := r.store.data.selections[id]
		if sel.ExpenseLineID != expenseLineID || seen[sel.WorkOrderID] {
			continue
		}
		if wo, ok := r.store.data.workOrders[sel.WorkOrderID]; ok {
			seen[sel.WorkOrderID] = true
			result = append(result, cloneWorkOrder(wo))
		}
	}
	return result
}

// ExpenseLineRepository implements port.ExpenseLineRepository
type ExpenseLineRepository struct {
	store *Store
}

// Create inserts an expense line
func (r *ExpenseLineRepository) Create(ctx context.Context, line *entity.ExpenseLine) error {
	defer r.store.lock(ctx)()

	now := r.store.now()
	line.ID = r.store.data.allocID("expense_lines")
	if line.VerificationStatus == "" {
		line.VerificationStatus = entity.VerificationPending
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = now
	}
	line.UpdatedAt = now
	r.store.data.expenseLines[line.ID] = cloneExpenseLine(line)
	return nil
}

// GetByID retrieves an expense line by ID
func (r *ExpenseLineRepository) GetByID(ctx context.Context, id int64) (*entity.ExpenseLine, error) {
	defer r.store.rlock(ctx)()
	return cloneExpenseLine(r.store.data.expenseLines[id]), nil
}

// GetByDocumentNumber returns the lines of a document ordered by id
func (r *ExpenseLineRepository) GetByDocumentNumber(ctx context.Context, documentNumber string) ([]*entity.ExpenseLine, error) {
	defer r.store.rlock(ctx)()

	var result []*entity.ExpenseLine
	for _, id := range sortedIDs(r.store.data.expenseLines) {
		if line := r.store.data.expenseLines[id]; line.DocumentNumber == documentNumber {
			result = append(result, cloneExpenseLine(line))
		}
	}
	return result, nil
}

// UpdateVerificationStatus writes the derived status
func (r *ExpenseLineRepository) UpdateVerificationStatus(ctx context.Context, id int64, status string) error {
	defer r.store.lock(ctx)()

	line, ok := r.store.data.expenseLines[id]
	if !ok {
		return fmt.Errorf("expense line %d not found", id)
	}
	line.VerificationStatus = status
	line.UpdatedAt = r.store.now()
	return nil
}

// ListIDs pages through expense line ids
func (r *ExpenseLineRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	defer r.store.rlock(ctx)()
	return pageIDs(sortedIDs(r.store.data.expenseLines), afterID, limit), nil
}

// SelectionRepository implements port.SelectionRepository
type SelectionRepository struct {
	store *Store
}

// Create inserts the association unless the pair already exists
func (r *SelectionRepository) Create(ctx context.Context, sel *entity.Selection) error {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.data.selections {
		if existing.WorkOrderID == sel.WorkOrderID && existing.ExpenseLineID == sel.ExpenseLineID {
			*sel = *existing
			return nil
		}
	}

	now := r.store.now()
	sel.ID = r.store.data.allocID("selections")
	if sel.VerificationStatus == "" {
		sel.VerificationStatus = entity.VerificationPending
	}
	sel.CreatedAt = now
	sel.UpdatedAt = now
	stored := *sel
	r.store.data.selections[sel.ID] = &stored
	return nil
}

// GetByWorkOrderID returns the selections of a work order
func (r *SelectionRepository) GetByWorkOrderID(ctx context.Context, workOrderID int64) ([]*entity.Selection, error) {
	return r.filter(ctx, func(sel *entity.Selection) bool { return sel.WorkOrderID == workOrderID }), nil
}

// GetByExpenseLineID returns the selections of an expense line
func (r *SelectionRepository) GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.Selection, error) {
	return r.filter(ctx, func(sel *entity.Selection) bool { return sel.ExpenseLineID == expenseLineID }), nil
}

// UpdateVerificationByWorkOrder stamps every selection of the work order
func (r *SelectionRepository) UpdateVerificationByWorkOrder(ctx context.Context, workOrderID int64, status, comment string) error {
	defer r.store.lock(ctx)()

	now := r.store.now()
	for _, sel := range r.store.data.selections {
		if sel.WorkOrderID == workOrderID {
			sel.VerificationStatus = status
			sel.VerificationComment = comment
			sel.UpdatedAt = now
		}
	}
	return nil
}

func (r *SelectionRepository) filter(ctx context.Context, match func(*entity.Selection) bool) []*entity.Selection {
	defer r.store.rlock(ctx)()

	var result []*entity.Selection
	for _, id := range sortedIDs(r.store.data.selections) {
		if sel := r.store.data.selections[id]; match(sel) {
			c := *sel
			result = append(result, &c)
		}
	}
	return result
}

// CatalogRepository implements port.CatalogRepository
type CatalogRepository struct {
	store *Store
}

// AddCategory inserts an expense category
func (r *CatalogRepository) AddCategory(cat *entity.ExpenseCategory) {
	defer r.store.lock(context.Background())()

	cat.ID = r.store.data.allocID("expense_categories")
	cat.Name = strings.TrimSpace(cat.Name)
	stored := *cat
	r.store.data.categories[cat.ID] = &stored
}

// AddProblemType inserts a problem type
func (r *CatalogRepository) AddProblemType(pt *entity.ProblemType) {
	defer r.store.lock(context.Background())()

	pt.ID = r.store.data.allocID("problem_types")
	stored := *pt
	r.store.data.problemTypes[pt.ID] = &stored
}

// ListCategories returns every category ordered by id
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]*entity.ExpenseCategory, error) {
	defer r.store.rlock(ctx)()

	result := make([]*entity.ExpenseCategory, 0, len(r.store.data.categories))
	for _, id := range sortedIDs(r.store.data.categories) {
		c := *r.store.data.categories[id]
		result = append(result, &c)
	}
	return result, nil
}

// ListProblemTypes returns every problem type ordered by id
func (r *CatalogRepository) ListProblemTypes(ctx context.Context) ([]*entity.ProblemType, error) {
	defer r.store.rlock(ctx)()

	result := make([]*entity.ProblemType, 0, len(r.store.data.problemTypes))
	for _, id := range sortedIDs(r.store.data.problemTypes) {
		p := *r.store.data.problemTypes[id]
		result = append(result, &p)
	}
	return result, nil
}

// GetProblemType retrieves a problem type by ID
func (r *CatalogRepository) GetProblemType(ctx context.Context, id int64) (*entity.ProblemType, error) {
	defer r.store.rlock(ctx)()

	pt, ok := r.store.data.problemTypes[id]
	if !ok {
		return nil, nil
	}
	c := *pt
	return &c, nil
}

// StatusChangeRepository implements port.StatusChangeRepository
type StatusChangeRepository struct {
	store *Store
}

// Create appends a record
func (r *StatusChangeRepository) Create(ctx context.Context, record *entity.StatusChangeRecord) error {
	defer r.store.lock(ctx)()

	record.ID = r.store.data.allocID("work_order_status_changes")
	if record.ChangedAt.IsZero() {
		record.ChangedAt = r.store.now()
	}
	stored := *record
	r.store.data.statusChanges = append(r.store.data.statusChanges, &stored)
	return nil
}

// GetByWorkOrderID returns the records of a work order in insertion order
func (r *StatusChangeRepository) GetByWorkOrderID(ctx context.Context, workOrderID int64) ([]*entity.StatusChangeRecord, error) {
	defer r.store.rlock(ctx)()

	var result []*entity.StatusChangeRecord
	for _, rec := range r.store.data.statusChanges {
		if rec.WorkOrderID == workOrderID {
			c := *rec
			result = append(result, &c)
		}
	}
	return result, nil
}

// StatusLogRepository implements port.ReimbursementStatusLogRepository
type StatusLogRepository struct {
	store *Store
}

// Create appends a record
func (r *StatusLogRepository) Create(ctx context.Context, record *entity.ReimbursementStatusRecord) error {
	defer r.store.lock(ctx)()

	record.ID = r.store.data.allocID("reimbursement_status_log")
	if record.ChangedAt.IsZero() {
		record.ChangedAt = r.store.now()
	}
	stored := *record
	r.store.data.statusLog = append(r.store.data.statusLog, &stored)
	return nil
}

// GetByReimbursementID returns the records of a reimbursement in insertion order
func (r *StatusLogRepository) GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.ReimbursementStatusRecord, error) {
	defer r.store.rlock(ctx)()

	var result []*entity.ReimbursementStatusRecord
	for _, rec := range r.store.data.statusLog {
		if rec.ReimbursementID == reimbursementID {
			c := *rec
			result = append(result, &c)
		}
	}
	return result, nil
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func pageIDs(ids []int64, afterID int64, limit int) []int64 {
	var result []int64
	for _, id := range ids {
		if id <= afterID {
			continue
		}
		result = append(result, id)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// Verify interface compliance
var (
	_ port.ReimbursementRepository          = (*ReimbursementRepository)(nil)
	_ port.WorkOrderRepository              = (*WorkOrderRepository)(nil)
	_ port.ExpenseLineRepository            = (*ExpenseLineRepository)(nil)
	_ port.SelectionRepository              = (*SelectionRepository)(nil)
	_ port.CatalogRepository                = (*CatalogRepository)(nil)
	_ port.StatusChangeRepository           = (*StatusChangeRepository)(nil)
	_ port.ReimbursementStatusLogRepository = (*StatusLogRepository)(nil)
)
