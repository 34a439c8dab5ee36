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

// StatusChangeRepository implements port.StatusChangeRepository
type StatusChangeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusChangeRepository creates a new work order status change repository
func NewStatusChangeRepository(db *sql.DB, logger *zap.Logger) port.StatusChangeRepository {
	return &StatusChangeRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a status change record
func (r *StatusChangeRepository) Create(ctx context.Context, record *entity.StatusChangeRecord) error {
	query := `
		INSERT INTO work_order_status_changes (
			work_order_id, previous_status, new_status, trigger_name,
			changed_by, comment, changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if record.ChangedAt.IsZero() {
		record.ChangedAt = time.Now()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.WorkOrderID,
		record.PreviousStatus,
		record.NewStatus,
		record.Trigger,
		record.ChangedBy,
		record.Comment,
		record.ChangedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create status change record", zap.Int64("work_order_id", record.WorkOrderID), zap.Error(err))
		return fmt.Errorf("failed to create status change: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByWorkOrderID retrieves all status changes of a work order in order
func (r *StatusChangeRepository) GetByWorkOrderID(ctx context.Context, workOrderID int64) ([]*entity.StatusChangeRecord, error) {
	query := `
		SELECT id, work_order_id, previous_status, new_status, trigger_name,
			changed_by, comment, changed_at
		FROM work_order_status_changes
		WHERE work_order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, workOrderID)
	if err != nil {
		r.logger.Error("Failed to get status changes by work order ID", zap.Int64("work_order_id", workOrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get status changes: %w", err)
	}
	defer rows.Close()

	var records []*entity.StatusChangeRecord
	for rows.Next() {
		var record entity.StatusChangeRecord
		err := rows.Scan(
			&record.ID,
			&record.WorkOrderID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Trigger,
			&record.ChangedBy,
			&record.Comment,
			&record.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *StatusChangeRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

// StatusLogRepository implements port.ReimbursementStatusLogRepository
type StatusLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusLogRepository creates a new reimbursement status log repository
func NewStatusLogRepository(db *sql.DB, logger *zap.Logger) port.ReimbursementStatusLogRepository {
	return &StatusLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a reimbursement status record
func (r *StatusLogRepository) Create(ctx context.Context, record *entity.ReimbursementStatusRecord) error {
	query := `
		INSERT INTO reimbursement_status_log (
			reimbursement_id, previous_status, new_status, external_status,
			source, changed_by, changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if record.ChangedAt.IsZero() {
		record.ChangedAt = time.Now()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.ReimbursementID,
		record.PreviousStatus,
		record.NewStatus,
		record.ExternalStatus,
		record.Source,
		record.ChangedBy,
		record.ChangedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create status log record", zap.Int64("reimbursement_id", record.ReimbursementID), zap.Error(err))
		return fmt.Errorf("failed to create status log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByReimbursementID retrieves the status log of a reimbursement in order
func (r *StatusLogRepository) GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.ReimbursementStatusRecord, error) {
	query := `
		SELECT id, reimbursement_id, previous_status, new_status, external_status,
			source, changed_by, changed_at
		FROM reimbursement_status_log
		WHERE reimbursement_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, reimbursementID)
	if err != nil {
		r.logger.Error("Failed to get status log", zap.Int64("reimbursement_id", reimbursementID), zap.Error(err))
		return nil, fmt.Errorf("failed to get status log: %w", err)
	}
	defer rows.Close()

	var records []*entity.ReimbursementStatusRecord
	for rows.Next() {
		var record entity.ReimbursementStatusRecord
		err := rows.Scan(
			&record.ID,
			&record.ReimbursementID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.ExternalStatus,
			&record.Source,
			&record.ChangedBy,
			&record.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *StatusLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

// Verify interface compliance
var (
	_ port.StatusChangeRepository           = (*StatusChangeRepository)(nil)
	_ port.ReimbursementStatusLogRepository = (*StatusLogRepository)(nil)
)
