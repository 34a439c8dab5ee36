package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const reimbursementColumns = `
	id, invoice_number, document_name, amount, internal_status, external_status,
	last_external_status, manual_override, manual_override_at, manual_override_by,
	created_at, updated_at`

// ReimbursementRepository implements port.ReimbursementRepository
type ReimbursementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReimbursementRepository creates a new reimbursement repository
func NewReimbursementRepository(db *sql.DB, logger *zap.Logger) port.ReimbursementRepository {
	return &ReimbursementRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new reimbursement record
func (r *ReimbursementRepository) Create(ctx context.Context, reimb *entity.Reimbursement) error {
	query := `
		INSERT INTO reimbursements (
			invoice_number, document_name, amount, internal_status, external_status,
			last_external_status, manual_override, manual_override_at, manual_override_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if reimb.CreatedAt.IsZero() {
		reimb.CreatedAt = now
	}
	reimb.UpdatedAt = now
	if reimb.InternalStatus == "" {
		reimb.InternalStatus = entity.ReimbursementStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		reimb.InvoiceNumber,
		reimb.DocumentName,
		reimb.Amount,
		reimb.InternalStatus,
		reimb.ExternalStatus,
		reimb.LastExternalStatus,
		reimb.ManualOverride,
		nullTime(reimb.ManualOverrideAt),
		reimb.ManualOverrideBy,
		reimb.CreatedAt.UTC(),
		reimb.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reimbursement", zap.String("invoice_number", reimb.InvoiceNumber), zap.Error(err))
		return fmt.Errorf("failed to create reimbursement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	reimb.ID = id
	return nil
}

// GetByID retrieves a reimbursement by ID
func (r *ReimbursementRepository) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	query := `SELECT ` + reimbursementColumns + ` FROM reimbursements WHERE id = ?`

	reimb, err := scanReimbursement(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reimbursement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}
	return reimb, nil
}

// GetByInvoiceNumber retrieves a reimbursement by its document number
func (r *ReimbursementRepository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.Reimbursement, error) {
	query := `SELECT ` + reimbursementColumns + ` FROM reimbursements WHERE invoice_number = ?`

	reimb, err := scanReimbursement(r.getExecutor(ctx).QueryRowContext(ctx, query, invoiceNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reimbursement by invoice number", zap.String("invoice_number", invoiceNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}
	return reimb, nil
}

// UpdateStatus writes the reconciliation result
func (r *ReimbursementRepository) UpdateStatus(ctx context.Context, id int64, internalStatus, externalStatus string) error {
	query := `
		UPDATE reimbursements
		SET internal_status = ?, external_status = ?, last_external_status = ?, updated_at = ?
		WHERE id = ?
	`

	return r.exec(ctx, "update reimbursement status", id, query,
		internalStatus, externalStatus, externalStatus, time.Now().UTC(), id)
}

// SetExternalStatus records a new ERP status without reconciling
func (r *ReimbursementRepository) SetExternalStatus(ctx context.Context, id int64, externalStatus string) error {
	query := `UPDATE reimbursements SET external_status = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, "set external status", id, query, externalStatus, time.Now().UTC(), id)
}

// SetManualOverride writes the override flag and, when given, the internal status
func (r *ReimbursementRepository) SetManualOverride(ctx context.Context, id int64, override bool, status, actor string, at time.Time) error {
	query := `
		UPDATE reimbursements
		SET manual_override = ?,
			internal_status = CASE WHEN ? = '' THEN internal_status ELSE ? END,
			manual_override_at = ?, manual_override_by = ?, updated_at = ?
		WHERE id = ?
	`

	return r.exec(ctx, "set manual override", id, query,
		override, status, status, at.UTC(), actor, time.Now().UTC(), id)
}

// ListExternalChanged pages through reimbursements with an unreconciled external status
func (r *ReimbursementRepository) ListExternalChanged(ctx context.Context, afterID int64, limit int) ([]*entity.Reimbursement, error) {
	query := `
		SELECT ` + reimbursementColumns + `
		FROM reimbursements
		WHERE id > ? AND external_status <> last_external_status
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, afterID, limit)
	if err != nil {
		r.logger.Error("Failed to list changed reimbursements", zap.Int64("after_id", afterID), zap.Error(err))
		return nil, fmt.Errorf("failed to list changed reimbursements: %w", err)
	}
	defer rows.Close()

	var result []*entity.Reimbursement
	for rows.Next() {
		reimb, err := scanReimbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reimbursement: %w", err)
		}
		result = append(result, reimb)
	}

	return result, rows.Err()
}

// ListIDs pages through reimbursement ids
func (r *ReimbursementRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	query := `SELECT id FROM reimbursements WHERE id > ? ORDER BY id ASC LIMIT ?`
	return queryIDs(ctx, r.getExecutor(ctx), query, afterID, limit)
}

func (r *ReimbursementRepository) exec(ctx context.Context, op string, id int64, query string, args ...interface{}) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return requireAffected(result, "reimbursement", id)
}

// getExecutor returns appropriate executor based on context
func (r *ReimbursementRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

func scanReimbursement(row rowScanner) (*entity.Reimbursement, error) {
	var reimb entity.Reimbursement
	var overrideAt sql.NullTime

	err := row.Scan(
		&reimb.ID,
		&reimb.InvoiceNumber,
		&reimb.DocumentName,
		&reimb.Amount,
		&reimb.InternalStatus,
		&reimb.ExternalStatus,
		&reimb.LastExternalStatus,
		&reimb.ManualOverride,
		&overrideAt,
		&reimb.ManualOverrideBy,
		&reimb.CreatedAt,
		&reimb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if overrideAt.Valid {
		at := overrideAt.Time
		reimb.ManualOverrideAt = &at
	}
	return &reimb, nil
}

// Verify interface compliance
var _ port.ReimbursementRepository = (*ReimbursementRepository)(nil)
