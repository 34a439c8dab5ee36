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

const expenseLineColumns = `
	id, document_number, category_label, meeting_type, amount, occurred_on,
	verification_status, created_at, updated_at`

// ExpenseLineRepository implements port.ExpenseLineRepository
type ExpenseLineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseLineRepository creates a new expense line repository
func NewExpenseLineRepository(db *sql.DB, logger *zap.Logger) port.ExpenseLineRepository {
	return &ExpenseLineRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new expense line record
func (r *ExpenseLineRepository) Create(ctx context.Context, line *entity.ExpenseLine) error {
	query := `
		INSERT INTO expense_lines (
			document_number, category_label, meeting_type, amount, occurred_on,
			verification_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if line.CreatedAt.IsZero() {
		line.CreatedAt = now
	}
	line.UpdatedAt = now
	if line.VerificationStatus == "" {
		line.VerificationStatus = entity.VerificationPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		line.DocumentNumber,
		line.CategoryLabel,
		line.MeetingType,
		line.Amount,
		nullTime(line.OccurredOn),
		line.VerificationStatus,
		line.CreatedAt.UTC(),
		line.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create expense line", zap.String("document_number", line.DocumentNumber), zap.Error(err))
		return fmt.Errorf("failed to create expense line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	line.ID = id
	return nil
}

// GetByID retrieves an expense line by ID
func (r *ExpenseLineRepository) GetByID(ctx context.Context, id int64) (*entity.ExpenseLine, error) {
	query := `SELECT ` + expenseLineColumns + ` FROM expense_lines WHERE id = ?`

	line, err := scanExpenseLine(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense line", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense line: %w", err)
	}
	return line, nil
}

// GetByDocumentNumber retrieves the lines of a document ordered by id
func (r *ExpenseLineRepository) GetByDocumentNumber(ctx context.Context, documentNumber string) ([]*entity.ExpenseLine, error) {
	query := `
		SELECT ` + expenseLineColumns + `
		FROM expense_lines
		WHERE document_number = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentNumber)
	if err != nil {
		r.logger.Error("Failed to get expense lines by document", zap.String("document_number", documentNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.ExpenseLine
	for rows.Next() {
		line, err := scanExpenseLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense line: %w", err)
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// UpdateVerificationStatus writes the derived verification status
func (r *ExpenseLineRepository) UpdateVerificationStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE expense_lines SET verification_status = ?, updated_at = ? WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update verification status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	return requireAffected(result, "expense line", id)
}

// ListIDs pages through expense line ids
func (r *ExpenseLineRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	query := `SELECT id FROM expense_lines WHERE id > ? ORDER BY id ASC LIMIT ?`
	return queryIDs(ctx, r.getExecutor(ctx), query, afterID, limit)
}

// getExecutor returns appropriate executor based on context
func (r *ExpenseLineRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

func scanExpenseLine(row rowScanner) (*entity.ExpenseLine, error) {
	var line entity.ExpenseLine
	var occurredOn sql.NullTime

	err := row.Scan(
		&line.ID,
		&line.DocumentNumber,
		&line.CategoryLabel,
		&line.MeetingType,
		&line.Amount,
		&occurredOn,
		&line.VerificationStatus,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if occurredOn.Valid {
		on := occurredOn.Time
		line.OccurredOn = &on
	}
	return &line, nil
}

// Verify interface compliance
var _ port.ExpenseLineRepository = (*ExpenseLineRepository)(nil)
