package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/rules"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
)

// VerificationAggregator derives expense line verification status from the
// latest audit work order selecting the line
type VerificationAggregator interface {
	// Recompute derives and stores one line's status. It writes only on change.
	Recompute(ctx context.Context, expenseLineID int64) (string, error)

	// RecomputeMany is the bulk form; duplicate ids are computed once
	RecomputeMany(ctx context.Context, expenseLineIDs []int64) (map[int64]string, error)
}

type verificationAggregatorImpl struct {
	expenseLineRepo port.ExpenseLineRepository
	workOrderRepo   port.WorkOrderRepository
	txManager       port.TransactionManager
	logger          Logger
}

// NewVerificationAggregator creates a new VerificationAggregator
func NewVerificationAggregator(
	expenseLineRepo port.ExpenseLineRepository,
	workOrderRepo port.WorkOrderRepository,
	txManager port.TransactionManager,
	logger Logger,
) VerificationAggregator {
	return &verificationAggregatorImpl{
		expenseLineRepo: expenseLineRepo,
		workOrderRepo:   workOrderRepo,
		txManager:       txManager,
		logger:          loggerOrNop(logger),
	}
}

// Recompute derives and stores one line's status
func (s *verificationAggregatorImpl) Recompute(ctx context.Context, expenseLineID int64) (string, error) {
	var status string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		status, err = s.recompute(txCtx, expenseLineID)
		return err
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// RecomputeMany derives and stores the status of every line in one transaction
func (s *verificationAggregatorImpl) RecomputeMany(ctx context.Context, expenseLineIDs []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(expenseLineIDs))
	if len(expenseLineIDs) == 0 {
		return result, nil
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, id := range expenseLineIDs {
			if _, done := result[id]; done {
				continue
			}
			status, err := s.recompute(txCtx, id)
			if err != nil {
				return err
			}
			result[id] = status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *verificationAggregatorImpl) recompute(ctx context.Context, expenseLineID int64) (string, error) {
	line, err := s.expenseLineRepo.GetByID(ctx, expenseLineID)
	if err != nil {
		return "", fmt.Errorf("get expense line: %w", err)
	}
	if line == nil {
		return "", fmt.Errorf("%w: expense line %d", ErrNotFound, expenseLineID)
	}

	latest, err := s.workOrderRepo.LatestAuditByExpenseLine(ctx, expenseLineID)
	if err != nil {
		return "", fmt.Errorf("latest audit work order: %w", err)
	}
	if latest != nil && (!latest.IsAudit() || !workflow.State(latest.Status).BelongsTo(latest.Variant)) {
		s.logger.Error("Deciding work order is not a valid audit",
			"expense_line_id", expenseLineID,
			"work_order_id", latest.ID,
			"variant", latest.Variant,
			"status", latest.Status)
		return "", fmt.Errorf("%w: work order %d cannot decide expense line %d", ErrInconsistentState, latest.ID, expenseLineID)
	}

	status := rules.VerificationFromWorkOrder(latest)
	if status == line.VerificationStatus {
		return status, nil
	}

	if err := s.expenseLineRepo.UpdateVerificationStatus(ctx, expenseLineID, status); err != nil {
		return "", fmt.Errorf("update verification status: %w", err)
	}

	s.logger.Info("Expense line verification status changed",
		"expense_line_id", expenseLineID,
		"previous_status", line.VerificationStatus,
		"new_status", status)
	return status, nil
}
