package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-audit/internal/application/catalog"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/rules"
)

// ProblemResolver resolves which problem types apply to an expense line.
// It never mutates state.
type ProblemResolver interface {
	// Resolve returns the precise scope (if the label matches a category)
	// united with the general scope of the line's context. An unresolvable
	// context yields an empty result, not an error.
	Resolve(ctx context.Context, reimbursement *entity.Reimbursement, line *entity.ExpenseLine) ([]*entity.ProblemType, error)
}

type problemResolverImpl struct {
	catalog    catalog.Catalog
	classifier *rules.DocumentClassifier
	logger     Logger
}

// NewProblemResolver creates a new ProblemResolver
func NewProblemResolver(cat catalog.Catalog, classifier *rules.DocumentClassifier, logger Logger) ProblemResolver {
	if classifier == nil {
		classifier = rules.NewDocumentClassifier(nil, nil)
	}
	return &problemResolverImpl{
		catalog:    cat,
		classifier: classifier,
		logger:     loggerOrNop(logger),
	}
}

// Resolve implements best-effort precise match plus guaranteed general match
func (s *problemResolverImpl) Resolve(ctx context.Context, reimbursement *entity.Reimbursement, line *entity.ExpenseLine) ([]*entity.ProblemType, error) {
	empty := []*entity.ProblemType{}
	if reimbursement == nil || line == nil {
		return empty, nil
	}

	documentType, ok := s.classifier.Code(reimbursement.DocumentName)
	if !ok {
		s.logger.Info("Unresolved document type",
			"reimbursement_id", reimbursement.ID,
			"document_name", reimbursement.DocumentName)
		return empty, nil
	}

	meetingType := strings.TrimSpace(line.MeetingType)
	if meetingType == "" {
		s.logger.Info("Unresolved meeting type", "expense_line_id", line.ID)
		return empty, nil
	}

	scope := entity.ContextCode{DocumentType: documentType, MeetingType: meetingType}
	general, err := s.catalog.ProblemTypes(ctx, scope.General())
	if err != nil {
		return nil, fmt.Errorf("general scope: %w", err)
	}

	// A label missing from the catalog is expected
	category, err := s.catalog.FindCategory(ctx, documentType, meetingType, line.CategoryLabel)
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}

	var precise []*entity.ProblemType
	if category != nil && !category.ContextCode().IsGeneral() {
		precise, err = s.catalog.ProblemTypes(ctx, category.ContextCode())
		if err != nil {
			return nil, fmt.Errorf("precise scope: %w", err)
		}
	}

	return rules.MergeProblemScopes(precise, general), nil
}
