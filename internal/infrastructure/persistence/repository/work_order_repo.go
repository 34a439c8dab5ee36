package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const workOrderColumns = `
	wo.id, wo.reimbursement_id, wo.variant, wo.status, wo.resolution, wo.problem_type_id,
	wo.audit_comment, wo.remark, wo.parent_id, wo.tracking_number, wo.created_by, wo.seq,
	wo.created_at, wo.updated_at`

// WorkOrderRepository implements port.WorkOrderRepository
type WorkOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkOrderRepository creates a new work order repository
func NewWorkOrderRepository(db *sql.DB, logger *zap.Logger) port.WorkOrderRepository {
	return &WorkOrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new work order record
func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	query := `
		INSERT INTO work_orders (
			reimbursement_id, variant, status, resolution, problem_type_id, audit_comment,
			remark, parent_id, tracking_number, created_by, seq, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if wo.CreatedAt.IsZero() {
		wo.CreatedAt = now
	}
	if wo.UpdatedAt.IsZero() {
		wo.UpdatedAt = now
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		wo.ReimbursementID,
		wo.Variant,
		wo.Status,
		wo.Resolution,
		nullInt64(wo.ProblemTypeID),
		wo.AuditComment,
		wo.Remark,
		nullInt64(wo.ParentID),
		wo.TrackingNumber,
		wo.CreatedBy,
		wo.Seq,
		wo.CreatedAt.UTC(),
		wo.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create work order",
			zap.Int64("reimbursement_id", wo.ReimbursementID),
			zap.String("variant", wo.Variant),
			zap.Error(err))
		return fmt.Errorf("failed to create work order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	wo.ID = id
	return nil
}

// GetByID retrieves a work order by ID
func (r *WorkOrderRepository) GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders wo WHERE wo.id = ?`

	wo, err := scanWorkOrder(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get work order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}
	return wo, nil
}

// GetByReimbursementID retrieves the work orders of a reimbursement ordered by id
func (r *WorkOrderRepository) GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.WorkOrder, error) {
	query := `
		SELECT ` + workOrderColumns + `
		FROM work_orders wo
		WHERE wo.reimbursement_id = ?
		ORDER BY wo.id ASC
	`
	return r.list(ctx, query, reimbursementID)
}

// Update writes the mutable fields of a work order
func (r *WorkOrderRepository) Update(ctx context.Context, wo *entity.WorkOrder) error {
	query := `
		UPDATE work_orders
		SET status = ?, resolution = ?, problem_type_id = ?, audit_comment = ?,
			remark = ?, tracking_number = ?, seq = ?, updated_at = ?
		WHERE id = ?
	`

	if wo.UpdatedAt.IsZero() {
		wo.UpdatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		wo.Status,
		wo.Resolution,
		nullInt64(wo.ProblemTypeID),
		wo.AuditComment,
		wo.Remark,
		wo.TrackingNumber,
		wo.Seq,
		wo.UpdatedAt.UTC(),
		wo.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update work order", zap.Int64("id", wo.ID), zap.Error(err))
		return fmt.Errorf("failed to update work order: %w", err)
	}
	return requireAffected(result, "work order", wo.ID)
}

// NextSeq allocates the next store-wide sequence number
func (r *WorkOrderRepository) NextSeq(ctx context.Context) (int64, error) {
	query := `UPDATE work_order_seq SET value = value + 1 WHERE id = 1 RETURNING value`

	var seq int64
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query).Scan(&seq); err != nil {
		r.logger.Error("Failed to allocate work order sequence", zap.Error(err))
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return seq, nil
}

// CountActiveByReimbursementID counts work orders not in a terminal status
func (r *WorkOrderRepository) CountActiveByReimbursementID(ctx context.Context, reimbursementID int64) (int, error) {
	terminal := workflow.TerminalStates()
	placeholders := make([]string, len(terminal))
	args := make([]interface{}, 0, len(terminal)+1)
	args = append(args, reimbursementID)
	for i, s := range terminal {
		placeholders[i] = "?"
		args = append(args, s.String())
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM work_orders
		WHERE reimbursement_id = ? AND status NOT IN (%s)
	`, strings.Join(placeholders, ", "))

	var count int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count active work orders", zap.Int64("reimbursement_id", reimbursementID), zap.Error(err))
		return 0, fmt.Errorf("failed to count active work orders: %w", err)
	}
	return count, nil
}

// GetByExpenseLineID returns every work order selecting the line
func (r *WorkOrderRepository) GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.WorkOrder, error) {
	query := `
		SELECT ` + workOrderColumns + `
		FROM work_orders wo
		JOIN work_order_expense_lines s ON s.work_order_id = wo.id
		WHERE s.expense_line_id = ?
		ORDER BY wo.id ASC
	`
	return r.list(ctx, query, expenseLineID)
}

// LatestAuditByExpenseLine returns the audit work order selecting the line
// with the greatest (seq, updated_at, id)
func (r *WorkOrderRepository) LatestAuditByExpenseLine(ctx context.Context, expenseLineID int64) (*entity.WorkOrder, error) {
	query := `
		SELECT ` + workOrderColumns + `
		FROM work_orders wo
		JOIN work_order_expense_lines s ON s.work_order_id = wo.id
		WHERE s.expense_line_id = ? AND wo.variant = ?
		ORDER BY wo.seq DESC, wo.updated_at DESC, wo.id DESC
		LIMIT 1
	`

	wo, err := scanWorkOrder(r.getExecutor(ctx).QueryRowContext(ctx, query, expenseLineID, entity.VariantAudit))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest audit work order", zap.Int64("expense_line_id", expenseLineID), zap.Error(err))
		return nil, fmt.Errorf("failed to get latest audit work order: %w", err)
	}
	return wo, nil
}

func (r *WorkOrderRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkOrder, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list work orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		orders = append(orders, wo)
	}

	return orders, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *WorkOrderRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

func scanWorkOrder(row rowScanner) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	var problemTypeID, parentID sql.NullInt64

	err := row.Scan(
		&wo.ID,
		&wo.ReimbursementID,
		&wo.Variant,
		&wo.Status,
		&wo.Resolution,
		&problemTypeID,
		&wo.AuditComment,
		&wo.Remark,
		&parentID,
		&wo.TrackingNumber,
		&wo.CreatedBy,
		&wo.Seq,
		&wo.CreatedAt,
		&wo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	wo.ProblemTypeID = int64Ptr(problemTypeID)
	wo.ParentID = int64Ptr(parentID)
	return &wo, nil
}

// Verify interface compliance
var _ port.WorkOrderRepository = (*WorkOrderRepository)(nil)
