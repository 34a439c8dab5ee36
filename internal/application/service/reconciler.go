package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/event"
	"github.com/garyjia/expense-audit/internal/domain/rules"
)

// Reconciler derives a reimbursement's internal status from its external
// status, its active work orders and a manual override
type Reconciler interface {
	// Reconcile records the external status and re-derives the internal one.
	// External and last external status are always written.
	Reconcile(ctx context.Context, reimbursementID int64, externalStatus string) (string, error)

	// SetManualOverride writes the status and suspends automatic reconciliation
	SetManualOverride(ctx context.Context, reimbursementID int64, status, actorID string) error

	// ResetManualOverride re-enables automatic reconciliation without touching the status
	ResetManualOverride(ctx context.Context, reimbursementID int64, actorID string) error
}

type reconcilerImpl struct {
	publisher
	reimbursementRepo port.ReimbursementRepository
	workOrderRepo     port.WorkOrderRepository
	statusLogRepo     port.ReimbursementStatusLogRepository
	txManager         port.TransactionManager
	policy            *rules.StatusPolicy
	clock             port.Clock
	logger            Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	reimbursementRepo port.ReimbursementRepository,
	workOrderRepo port.WorkOrderRepository,
	statusLogRepo port.ReimbursementStatusLogRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	policy *rules.StatusPolicy,
	clock port.Clock,
	logger Logger,
) Reconciler {
	if policy == nil {
		policy = rules.NewStatusPolicy(nil)
	}
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &reconcilerImpl{
		publisher:         publisher{dispatcher: d},
		reimbursementRepo: reimbursementRepo,
		workOrderRepo:     workOrderRepo,
		statusLogRepo:     statusLogRepo,
		txManager:         txManager,
		policy:            policy,
		clock:             clock,
		logger:            loggerOrNop(logger),
	}
}

// Reconcile applies the precedence rules
func (s *reconcilerImpl) Reconcile(ctx context.Context, reimbursementID int64, externalStatus string) (string, error) {
	externalStatus = strings.TrimSpace(externalStatus)

	var status string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.load(txCtx, reimbursementID)
		if err != nil {
			return err
		}

		active, err := s.workOrderRepo.CountActiveByReimbursementID(txCtx, reimbursementID)
		if err != nil {
			return fmt.Errorf("count active work orders: %w", err)
		}

		status = s.policy.Decide(r.InternalStatus, r.ManualOverride, externalStatus, active)
		if err := s.reimbursementRepo.UpdateStatus(txCtx, reimbursementID, status, externalStatus); err != nil {
			return fmt.Errorf("update reimbursement status: %w", err)
		}

		if status == r.InternalStatus {
			return nil
		}

		if err := s.statusLogRepo.Create(txCtx, &entity.ReimbursementStatusRecord{
			ReimbursementID: reimbursementID,
			PreviousStatus:  r.InternalStatus,
			NewStatus:       status,
			ExternalStatus:  externalStatus,
			Source:          entity.StatusSourceReconcile,
			ChangedBy:       entity.SystemActor,
			ChangedAt:       s.clock.Now(),
		}); err != nil {
			return fmt.Errorf("append status log: %w", err)
		}

		return s.publish(txCtx, event.NewEvent(event.TypeReimbursementStatusChanged, reimbursementID, 0, map[string]interface{}{
			event.PayloadPreviousStatus: r.InternalStatus,
			event.PayloadNewStatus:      status,
			event.PayloadActor:          entity.SystemActor,
		}))
	})
	if err != nil {
		s.logger.Error("Failed to reconcile reimbursement", "reimbursement_id", reimbursementID, "error", err)
		return "", err
	}

	return status, nil
}

// SetManualOverride writes the status directly and sets the override flag
func (s *reconcilerImpl) SetManualOverride(ctx context.Context, reimbursementID int64, status, actorID string) error {
	if !entity.IsValidReimbursementStatus(status) {
		return fmt.Errorf("%w: unknown reimbursement status %q", ErrValidation, status)
	}
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("%w: actor is required", ErrValidation)
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.load(txCtx, reimbursementID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.reimbursementRepo.SetManualOverride(txCtx, reimbursementID, true, status, actorID, now); err != nil {
			return fmt.Errorf("set manual override: %w", err)
		}

		if err := s.statusLogRepo.Create(txCtx, &entity.ReimbursementStatusRecord{
			ReimbursementID: reimbursementID,
			PreviousStatus:  r.InternalStatus,
			NewStatus:       status,
			ExternalStatus:  r.ExternalStatus,
			Source:          entity.StatusSourceManual,
			ChangedBy:       actorID,
			ChangedAt:       now,
		}); err != nil {
			return fmt.Errorf("append status log: %w", err)
		}

		return s.publish(txCtx, event.NewEvent(event.TypeManualOverrideSet, reimbursementID, 0, map[string]interface{}{
			event.PayloadPreviousStatus: r.InternalStatus,
			event.PayloadNewStatus:      status,
			event.PayloadActor:          actorID,
		}))
	})
	if err != nil {
		s.logger.Error("Failed to set manual override", "reimbursement_id", reimbursementID, "error", err)
		return err
	}

	s.logger.Info("Manual override set", "reimbursement_id", reimbursementID, "status", status, "actor", actorID)
	return nil
}

// ResetManualOverride clears the flag. Resetting a reimbursement without an
// override is a no-op.
func (s *reconcilerImpl) ResetManualOverride(ctx context.Context, reimbursementID int64, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("%w: actor is required", ErrValidation)
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.load(txCtx, reimbursementID)
		if err != nil {
			return err
		}
		if !r.ManualOverride {
			return nil
		}

		now := s.clock.Now()
		if err := s.reimbursementRepo.SetManualOverride(txCtx, reimbursementID, false, "", actorID, now); err != nil {
			return fmt.Errorf("reset manual override: %w", err)
		}

		if err := s.statusLogRepo.Create(txCtx, &entity.ReimbursementStatusRecord{
			ReimbursementID: reimbursementID,
			PreviousStatus:  r.InternalStatus,
			NewStatus:       r.InternalStatus,
			ExternalStatus:  r.ExternalStatus,
			Source:          entity.StatusSourceOverrideReset,
			ChangedBy:       actorID,
			ChangedAt:       now,
		}); err != nil {
			return fmt.Errorf("append status log: %w", err)
		}

		return s.publish(txCtx, event.NewEvent(event.TypeManualOverrideReset, reimbursementID, 0, map[string]interface{}{
			event.PayloadActor: actorID,
		}))
	})
	if err != nil {
		s.logger.Error("Failed to reset manual override", "reimbursement_id", reimbursementID, "error", err)
		return err
	}

	s.logger.Info("Manual override reset", "reimbursement_id", reimbursementID, "actor", actorID)
	return nil
}

func (s *reconcilerImpl) load(ctx context.Context, reimbursementID int64) (*entity.Reimbursement, error) {
	r, err := s.reimbursementRepo.GetByID(ctx, reimbursementID)
	if err != nil {
		return nil, fmt.Errorf("get reimbursement: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: reimbursement %d", ErrNotFound, reimbursementID)
	}
	if !entity.IsValidReimbursementStatus(r.InternalStatus) {
		s.logger.Error("Stored reimbursement status is unknown",
			"reimbursement_id", reimbursementID,
			"internal_status", r.InternalStatus)
		return nil, fmt.Errorf("%w: reimbursement %d has status %q", ErrInconsistentState, reimbursementID, r.InternalStatus)
	}
	return r, nil
}
