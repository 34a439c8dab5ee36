package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const selectionColumns = `
	id, work_order_id, expense_line_id, verification_status, verification_comment,
	created_at, updated_at`

// SelectionRepository implements port.SelectionRepository
type SelectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSelectionRepository creates a new selection repository
func NewSelectionRepository(db *sql.DB, logger *zap.Logger) port.SelectionRepository {
	return &SelectionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the association. An existing pair is left unchanged and
// its stored row is copied into sel.
func (r *SelectionRepository) Create(ctx context.Context, sel *entity.Selection) error {
	query := `
		INSERT INTO work_order_expense_lines (
			work_order_id, expense_line_id, verification_status, verification_comment,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (work_order_id, expense_line_id) DO NOTHING
	`

	now := time.Now().UTC()
	if sel.VerificationStatus == "" {
		sel.VerificationStatus = entity.VerificationPending
	}

	exec := r.getExecutor(ctx)
	if _, err := exec.ExecContext(ctx, query,
		sel.WorkOrderID,
		sel.ExpenseLineID,
		sel.VerificationStatus,
		sel.VerificationComment,
		now,
		now,
	); err != nil {
		r.logger.Error("Failed to create selection",
			zap.Int64("work_order_id", sel.WorkOrderID),
			zap.Int64("expense_line_id", sel.ExpenseLineID),
			zap.Error(err))
		return fmt.Errorf("failed to create selection: %w", err)
	}

	stored, err := scanSelection(exec.QueryRowContext(ctx,
		`SELECT `+selectionColumns+` FROM work_order_expense_lines WHERE work_order_id = ? AND expense_line_id = ?`,
		sel.WorkOrderID, sel.ExpenseLineID))
	if err != nil {
		return fmt.Errorf("failed to read selection: %w", err)
	}

	*sel = *stored
	return nil
}

// GetByWorkOrderID retrieves the selections of a work order
func (r *SelectionRepository) GetByWorkOrderID(ctx context.Context, workOrderID int64) ([]*entity.Selection, error) {
	query := `SELECT ` + selectionColumns + ` FROM work_order_expense_lines WHERE work_order_id = ? ORDER BY id ASC`
	return r.list(ctx, query, workOrderID)
}

// GetByExpenseLineID retrieves the selections of an expense line
func (r *SelectionRepository) GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.Selection, error) {
	query := `SELECT ` + selectionColumns + ` FROM work_order_expense_lines WHERE expense_line_id = ? ORDER BY id ASC`
	return r.list(ctx, query, expenseLineID)
}

// UpdateVerificationByWorkOrder stamps every selection of the work order
func (r *SelectionRepository) UpdateVerificationByWorkOrder(ctx context.Context, workOrderID int64, status, comment string) error {
	query := `
		UPDATE work_order_expense_lines
		SET verification_status = ?, verification_comment = ?, updated_at = ?
		WHERE work_order_id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, status, comment, time.Now().UTC(), workOrderID)
	if err != nil {
		r.logger.Error("Failed to update selections", zap.Int64("work_order_id", workOrderID), zap.Error(err))
		return fmt.Errorf("failed to update selections: %w", err)
	}
	return nil
}

func (r *SelectionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Selection, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list selections", zap.Error(err))
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	var selections []*entity.Selection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, sel)
	}

	return selections, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *SelectionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

func scanSelection(row rowScanner) (*entity.Selection, error) {
	var sel entity.Selection
	err := row.Scan(
		&sel.ID,
		&sel.WorkOrderID,
		&sel.ExpenseLineID,
		&sel.VerificationStatus,
		&sel.VerificationComment,
		&sel.CreatedAt,
		&sel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

// Verify interface compliance
var _ port.SelectionRepository = (*SelectionRepository)(nil)
