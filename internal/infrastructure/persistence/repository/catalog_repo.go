package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-audit/pkg/utils"
	"go.uber.org/zap"
)

const problemTypeColumns = `
	id, code, title, document_type_code, meeting_type_code, expense_type_code,
	sop_description, standard_handling, active`

// CatalogRepository implements port.CatalogRepository
type CatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCategory inserts an expense category
func (r *CatalogRepository) CreateCategory(ctx context.Context, cat *entity.ExpenseCategory) error {
	query := `
		INSERT INTO expense_categories (document_type_code, meeting_type_code, expense_type_code, name)
		VALUES (?, ?, ?, ?)
	`

	if err := utils.ValidateContextCode(cat.DocumentTypeCode, cat.MeetingTypeCode, cat.ExpenseTypeCode); err != nil {
		return fmt.Errorf("invalid expense category: %w", err)
	}
	if err := utils.ValidateRequired("category name", cat.Name); err != nil {
		return fmt.Errorf("invalid expense category: %w", err)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		cat.DocumentTypeCode,
		cat.MeetingTypeCode,
		cat.ExpenseTypeCode,
		cat.Name,
	)
	if err != nil {
		r.logger.Error("Failed to create expense category", zap.String("name", cat.Name), zap.Error(err))
		return fmt.Errorf("failed to create expense category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	cat.ID = id
	return nil
}

// CreateProblemType inserts a problem type
func (r *CatalogRepository) CreateProblemType(ctx context.Context, pt *entity.ProblemType) error {
	query := `
		INSERT INTO problem_types (
			code, title, document_type_code, meeting_type_code, expense_type_code,
			sop_description, standard_handling, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if err := utils.ValidateContextCode(pt.DocumentTypeCode, pt.MeetingTypeCode, pt.ExpenseTypeCode); err != nil {
		return fmt.Errorf("invalid problem type: %w", err)
	}
	if err := utils.ValidateRequired("problem type code", pt.Code); err != nil {
		return fmt.Errorf("invalid problem type: %w", err)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		pt.Code,
		pt.Title,
		pt.DocumentTypeCode,
		pt.MeetingTypeCode,
		pt.ExpenseTypeCode,
		pt.SOPDescription,
		pt.StandardHandling,
		pt.Active,
	)
	if err != nil {
		r.logger.Error("Failed to create problem type", zap.String("code", pt.Code), zap.Error(err))
		return fmt.Errorf("failed to create problem type: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	pt.ID = id
	return nil
}

// ListCategories retrieves every expense category ordered by id
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]*entity.ExpenseCategory, error) {
	query := `
		SELECT id, document_type_code, meeting_type_code, expense_type_code, name
		FROM expense_categories
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list expense categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list expense categories: %w", err)
	}
	defer rows.Close()

	var categories []*entity.ExpenseCategory
	for rows.Next() {
		var cat entity.ExpenseCategory
		if err := rows.Scan(
			&cat.ID,
			&cat.DocumentTypeCode,
			&cat.MeetingTypeCode,
			&cat.ExpenseTypeCode,
			&cat.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense category: %w", err)
		}
		categories = append(categories, &cat)
	}

	return categories, rows.Err()
}

// ListProblemTypes retrieves every problem type, active or not, ordered by id
func (r *CatalogRepository) ListProblemTypes(ctx context.Context) ([]*entity.ProblemType, error) {
	query := `SELECT ` + problemTypeColumns + ` FROM problem_types ORDER BY id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list problem types", zap.Error(err))
		return nil, fmt.Errorf("failed to list problem types: %w", err)
	}
	defer rows.Close()

	var types []*entity.ProblemType
	for rows.Next() {
		pt, err := scanProblemType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan problem type: %w", err)
		}
		types = append(types, pt)
	}

	return types, rows.Err()
}

// GetProblemType retrieves a problem type by ID
func (r *CatalogRepository) GetProblemType(ctx context.Context, id int64) (*entity.ProblemType, error) {
	query := `SELECT ` + problemTypeColumns + ` FROM problem_types WHERE id = ?`

	pt, err := scanProblemType(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get problem type", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get problem type: %w", err)
	}
	return pt, nil
}

// getExecutor returns appropriate executor based on context
func (r *CatalogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

func scanProblemType(row rowScanner) (*entity.ProblemType, error) {
	var pt entity.ProblemType
	err := row.Scan(
		&pt.ID,
		&pt.Code,
		&pt.Title,
		&pt.DocumentTypeCode,
		&pt.MeetingTypeCode,
		&pt.ExpenseTypeCode,
		&pt.SOPDescription,
		&pt.StandardHandling,
		&pt.Active,
	)
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

// Verify interface compliance
var _ port.CatalogRepository = (*CatalogRepository)(nil)
