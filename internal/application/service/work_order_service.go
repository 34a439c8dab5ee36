package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-audit/internal/application/catalog"
	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/event"
	"github.com/garyjia/expense-audit/internal/domain/rules"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
)

// triggerCreate is recorded in the status change log for new work orders
const triggerCreate = "create"

// TransitionRequest asks to fire a trigger on a work order
type TransitionRequest struct {
	WorkOrderID int64            `json:"work_order_id"`
	Trigger     workflow.Trigger `json:"trigger"`
	ActorID     string           `json:"actor_id"`
	Comment     string           `json:"comment,omitempty"`

	// ProblemTypeID classifies a rejection. When nil the attached problem is used.
	ProblemTypeID *int64 `json:"problem_type_id,omitempty"`
}

// CreateWorkOrderRequest describes a new work order
type CreateWorkOrderRequest struct {
	ReimbursementID int64   `json:"reimbursement_id"`
	Variant         string  `json:"variant"`
	ActorID         string  `json:"actor_id"`
	Remark          string  `json:"remark,omitempty"`
	TrackingNumber  string  `json:"tracking_number,omitempty"`
	ParentID        *int64  `json:"parent_id,omitempty"`
	ExpenseLineIDs  []int64 `json:"expense_line_ids,omitempty"`
}

// WorkOrderService creates work orders and moves them through their variant's table
type WorkOrderService interface {
	Create(ctx context.Context, req CreateWorkOrderRequest) (*entity.WorkOrder, error)
	SelectExpenseLines(ctx context.Context, workOrderID int64, expenseLineIDs []int64, actorID string) error
	AttachProblem(ctx context.Context, workOrderID, problemTypeID int64, actorID string) (*entity.WorkOrder, error)
	Transition(ctx context.Context, req TransitionRequest) (*entity.WorkOrder, error)
	History(ctx context.Context, workOrderID int64) ([]*entity.StatusChangeRecord, error)
}

type workOrderServiceImpl struct {
	publisher
	reimbursementRepo port.ReimbursementRepository
	workOrderRepo     port.WorkOrderRepository
	expenseLineRepo   port.ExpenseLineRepository
	selectionRepo     port.SelectionRepository
	historyRepo       port.StatusChangeRepository
	catalog           catalog.Catalog
	resolver          ProblemResolver
	txManager         port.TransactionManager
	clock             port.Clock
	logger            Logger
}

// NewWorkOrderService creates a new WorkOrderService
func NewWorkOrderService(
	reimbursementRepo port.ReimbursementRepository,
	workOrderRepo port.WorkOrderRepository,
	expenseLineRepo port.ExpenseLineRepository,
	selectionRepo port.SelectionRepository,
	historyRepo port.StatusChangeRepository,
	cat catalog.Catalog,
	resolver ProblemResolver,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	clock port.Clock,
	logger Logger,
) WorkOrderService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &workOrderServiceImpl{
		publisher:         publisher{dispatcher: d},
		reimbursementRepo: reimbursementRepo,
		workOrderRepo:     workOrderRepo,
		expenseLineRepo:   expenseLineRepo,
		selectionRepo:     selectionRepo,
		historyRepo:       historyRepo,
		catalog:           cat,
		resolver:          resolver,
		txManager:         txManager,
		clock:             clock,
		logger:            loggerOrNop(logger),
	}
}

// Create creates a work order in its variant's initial state
func (s *workOrderServiceImpl) Create(ctx context.Context, req CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	if !entity.IsValidVariant(req.Variant) {
		return nil, fmt.Errorf("%w: unknown variant %q", ErrValidation, req.Variant)
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrValidation)
	}

	var wo *entity.WorkOrder
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		wo, err = s.create(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create work order",
			"reimbursement_id", req.ReimbursementID,
			"variant", req.Variant,
			"error", err)
		return nil, err
	}

	s.logger.Info("Work order created",
		"work_order_id", wo.ID,
		"reimbursement_id", wo.ReimbursementID,
		"variant", wo.Variant,
		"actor", req.ActorID)
	return wo, nil
}

func (s *workOrderServiceImpl) create(ctx context.Context, req CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	reimbursement, err := s.reimbursementRepo.GetByID(ctx, req.ReimbursementID)
	if err != nil {
		return nil, fmt.Errorf("get reimbursement: %w", err)
	}
	if reimbursement == nil {
		return nil, fmt.Errorf("%w: reimbursement %d", ErrNotFound, req.ReimbursementID)
	}

	if req.ParentID != nil {
		parent, err := s.workOrderRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("get parent work order: %w", err)
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent work order %d", ErrNotFound, *req.ParentID)
		}
		if parent.ReimbursementID != req.ReimbursementID {
			return nil, fmt.Errorf("%w: parent work order %d belongs to another reimbursement", ErrValidation, parent.ID)
		}
	}

	lineIDs, err := s.checkLines(ctx, reimbursement, req.ExpenseLineIDs)
	if err != nil {
		return nil, err
	}

	initial, err := workflow.InitialState(req.Variant)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	seq, err := s.workOrderRepo.NextSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate sequence: %w", err)
	}

	now := s.clock.Now()
	wo := &entity.WorkOrder{
		ReimbursementID: req.ReimbursementID,
		Variant:         req.Variant,
		Status:          initial.String(),
		Resolution:      entity.ResolutionPending,
		Remark:          req.Remark,
		ParentID:        req.ParentID,
		TrackingNumber:  req.TrackingNumber,
		CreatedBy:       req.ActorID,
		Seq:             seq,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.workOrderRepo.Create(ctx, wo); err != nil {
		return nil, fmt.Errorf("create work order: %w", err)
	}

	if err := s.addSelections(ctx, wo.ID, lineIDs); err != nil {
		return nil, err
	}

	if err := s.historyRepo.Create(ctx, &entity.StatusChangeRecord{
		WorkOrderID:    wo.ID,
		PreviousStatus: "",
		NewStatus:      wo.Status,
		Trigger:        triggerCreate,
		ChangedBy:      req.ActorID,
		Comment:        req.Remark,
		ChangedAt:      now,
	}); err != nil {
		return nil, fmt.Errorf("append status change: %w", err)
	}

	if err := s.publish(ctx, event.NewEvent(event.TypeWorkOrderCreated, wo.ReimbursementID, wo.ID, map[string]interface{}{
		event.PayloadNewStatus:      wo.Status,
		event.PayloadVariant:        wo.Variant,
		event.PayloadActor:          req.ActorID,
		event.PayloadExpenseLineIDs: lineIDs,
	})); err != nil {
		return nil, err
	}

	return wo, nil
}

// SelectExpenseLines associates expense lines of the same reimbursement with the work order
func (s *workOrderServiceImpl) SelectExpenseLines(ctx context.Context, workOrderID int64, expenseLineIDs []int64, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("%w: actor is required", ErrValidation)
	}
	if len(expenseLineIDs) == 0 {
		return nil
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		wo, err := s.load(txCtx, workOrderID)
		if err != nil {
			return err
		}
		if workflow.State(wo.Status).IsTerminal() {
			return fmt.Errorf("%w: work order %d is %s", ErrValidation, wo.ID, wo.Status)
		}

		reimbursement, err := s.reimbursementRepo.GetByID(txCtx, wo.ReimbursementID)
		if err != nil {
			return fmt.Errorf("get reimbursement: %w", err)
		}
		if reimbursement == nil {
			return fmt.Errorf("%w: reimbursement %d", ErrInconsistentState, wo.ReimbursementID)
		}

		lineIDs, err := s.checkLines(txCtx, reimbursement, expenseLineIDs)
		if err != nil {
			return err
		}
		if err := s.addSelections(txCtx, wo.ID, lineIDs); err != nil {
			return err
		}

		return s.publish(txCtx, event.NewEvent(event.TypeSelectionChanged, wo.ReimbursementID, wo.ID, map[string]interface{}{
			event.PayloadActor:          actorID,
			event.PayloadExpenseLineIDs: lineIDs,
		}))
	})
	if err != nil {
		s.logger.Error("Failed to select expense lines", "work_order_id", workOrderID, "error", err)
		return err
	}

	s.logger.Info("Expense lines selected", "work_order_id", workOrderID, "count", len(expenseLineIDs), "actor", actorID)
	return nil
}

// AttachProblem classifies the work order with a problem type from the
// resolved set of its selected lines. A blank audit comment is pre-filled
// with the problem type's standard handling.
func (s *workOrderServiceImpl) AttachProblem(ctx context.Context, workOrderID, problemTypeID int64, actorID string) (*entity.WorkOrder, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrValidation)
	}

	var wo *entity.WorkOrder
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		wo, err = s.load(txCtx, workOrderID)
		if err != nil {
			return err
		}
		if workflow.State(wo.Status).IsTerminal() {
			return fmt.Errorf("%w: work order %d is %s", ErrValidation, wo.ID, wo.Status)
		}

		pt, err := s.checkProblem(txCtx, wo, problemTypeID)
		if err != nil {
			return err
		}

		wo.ProblemTypeID = &pt.ID
		if strings.TrimSpace(wo.AuditComment) == "" {
			wo.AuditComment = pt.StandardHandling
		}
		wo.UpdatedAt = s.clock.Now()

		if err := s.workOrderRepo.Update(txCtx, wo); err != nil {
			return fmt.Errorf("update work order: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to attach problem", "work_order_id", workOrderID, "problem_type_id", problemTypeID, "error", err)
		return nil, err
	}

	s.logger.Info("Problem attached", "work_order_id", workOrderID, "problem_type_id", problemTypeID, "actor", actorID)
	return wo, nil
}

// Transition fires the trigger. All checks run before the first write, so a
// failed transition leaves the work order and its log unchanged.
func (s *workOrderServiceImpl) Transition(ctx context.Context, req TransitionRequest) (*entity.WorkOrder, error) {
	var wo *entity.WorkOrder
	var fired workflow.Transition

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		wo, err = s.load(txCtx, req.WorkOrderID)
		if err != nil {
			return err
		}

		machine, err := workflow.ForVariant(wo.Variant, workflow.State(wo.Status))
		if err != nil {
			s.logger.Error("Stored work order status has no transition table",
				"work_order_id", wo.ID,
				"variant", wo.Variant,
				"status", wo.Status,
				"error", err)
			return fmt.Errorf("%w: %w", ErrInconsistentState, err)
		}

		if !machine.CanFire(req.Trigger) {
			return fmt.Errorf("%w: %s work order %d cannot %s from %s",
				workflow.ErrInvalidTransition, wo.Variant, wo.ID, req.Trigger, wo.Status)
		}

		comment, problem, err := s.validateTransition(txCtx, wo, req)
		if err != nil {
			return err
		}

		fired, err = machine.Fire(txCtx, req.Trigger)
		if err != nil {
			return err
		}

		return s.apply(txCtx, wo, req, fired, comment, problem)
	})
	if err != nil {
		s.logger.Error("Work order transition failed",
			"work_order_id", req.WorkOrderID,
			"trigger", req.Trigger,
			"actor", req.ActorID,
			"error", err)
		return nil, err
	}

	s.logger.Info("Work order transitioned",
		"work_order_id", wo.ID,
		"from", fired.From,
		"to", fired.To,
		"trigger", fired.Trigger,
		"actor", req.ActorID)
	return wo, nil
}

// History returns the work order's status change log in order
func (s *workOrderServiceImpl) History(ctx context.Context, workOrderID int64) ([]*entity.StatusChangeRecord, error) {
	if _, err := s.load(ctx, workOrderID); err != nil {
		return nil, err
	}
	return s.historyRepo.GetByWorkOrderID(ctx, workOrderID)
}

func (s *workOrderServiceImpl) validateTransition(ctx context.Context, wo *entity.WorkOrder, req TransitionRequest) (string, *entity.ProblemType, error) {
	if strings.TrimSpace(req.ActorID) == "" {
		return "", nil, fmt.Errorf("%w: actor is required", ErrValidation)
	}

	comment := strings.TrimSpace(req.Comment)
	if req.Trigger.RequiresComment() {
		// A reject may rely on the standard handling pre-filled by AttachProblem
		if comment == "" && req.Trigger.RequiresProblem() {
			comment = strings.TrimSpace(wo.AuditComment)
		}
		if comment == "" {
			return "", nil, fmt.Errorf("%w: %s requires a comment", ErrValidation, req.Trigger)
		}
	}

	var problem *entity.ProblemType
	switch {
	case req.ProblemTypeID != nil:
		pt, err := s.checkProblem(ctx, wo, *req.ProblemTypeID)
		if err != nil {
			return "", nil, err
		}
		problem = pt
	case req.Trigger.RequiresProblem():
		if !wo.HasProblem() {
			return "", nil, fmt.Errorf("%w: %s requires a problem classification", ErrValidation, req.Trigger)
		}
	}

	return comment, problem, nil
}

// apply writes everything a fired transition implies
func (s *workOrderServiceImpl) apply(ctx context.Context, wo *entity.WorkOrder, req TransitionRequest, tr workflow.Transition, comment string, problem *entity.ProblemType) error {
	seq, err := s.workOrderRepo.NextSeq(ctx)
	if err != nil {
		return fmt.Errorf("allocate sequence: %w", err)
	}

	now := s.clock.Now()
	wo.Status = tr.To.String()
	wo.Resolution = rules.ResolutionFor(wo.Resolution, tr)
	if req.Trigger.RequiresComment() {
		wo.AuditComment = comment
	}
	if problem != nil {
		wo.ProblemTypeID = &problem.ID
	}
	wo.Seq = seq
	wo.UpdatedAt = now

	if err := rules.CheckResolution(wo.Variant, wo.Status, wo.Resolution); err != nil {
		s.logger.Error("Transition would break resolution invariant",
			"work_order_id", wo.ID,
			"variant", wo.Variant,
			"status", wo.Status,
			"resolution", wo.Resolution,
			"error", err)
		return fmt.Errorf("%w: %w", ErrInconsistentState, err)
	}

	if err := s.workOrderRepo.Update(ctx, wo); err != nil {
		return fmt.Errorf("update work order: %w", err)
	}

	if err := s.historyRepo.Create(ctx, &entity.StatusChangeRecord{
		WorkOrderID:    wo.ID,
		PreviousStatus: tr.From.String(),
		NewStatus:      tr.To.String(),
		Trigger:        tr.Trigger.String(),
		ChangedBy:      req.ActorID,
		Comment:        strings.TrimSpace(req.Comment),
		ChangedAt:      now,
	}); err != nil {
		return fmt.Errorf("append status change: %w", err)
	}

	selections, err := s.selectionRepo.GetByWorkOrderID(ctx, wo.ID)
	if err != nil {
		return fmt.Errorf("get selections: %w", err)
	}
	lineIDs := make([]int64, 0, len(selections))
	for _, sel := range selections {
		lineIDs = append(lineIDs, sel.ExpenseLineID)
	}

	if wo.IsAudit() {
		if verdict := selectionVerdict(tr); verdict != "" {
			if err := s.selectionRepo.UpdateVerificationByWorkOrder(ctx, wo.ID, verdict, comment); err != nil {
				return fmt.Errorf("stamp selections: %w", err)
			}
		}
	}

	if err := s.publish(ctx, event.NewEvent(event.TypeWorkOrderStatusChanged, wo.ReimbursementID, wo.ID, map[string]interface{}{
		event.PayloadPreviousStatus: tr.From.String(),
		event.PayloadNewStatus:      tr.To.String(),
		event.PayloadTrigger:        tr.Trigger.String(),
		event.PayloadVariant:        wo.Variant,
		event.PayloadActor:          req.ActorID,
		event.PayloadExpenseLineIDs: lineIDs,
	})); err != nil {
		return err
	}

	if tr.Has(workflow.EffectOpenCommunication) {
		parentID := wo.ID
		if _, err := s.create(ctx, CreateWorkOrderRequest{
			ReimbursementID: wo.ReimbursementID,
			Variant:         entity.VariantCommunication,
			ActorID:         req.ActorID,
			Remark:          strings.TrimSpace(req.Comment),
			ParentID:        &parentID,
			ExpenseLineIDs:  lineIDs,
		}); err != nil {
			return fmt.Errorf("open communication: %w", err)
		}
	}

	return nil
}

func selectionVerdict(tr workflow.Transition) string {
	switch {
	case tr.Has(workflow.EffectResolveApproved):
		return entity.VerificationVerified
	case tr.Has(workflow.EffectResolveRejected):
		return entity.VerificationProblematic
	default:
		return ""
	}
}

// checkProblem verifies the problem type exists, is active and is in the
// resolved set of at least one selected line. Work orders without
// selections, or whose selected lines all resolve to nothing, accept any
// active problem type.
func (s *workOrderServiceImpl) checkProblem(ctx context.Context, wo *entity.WorkOrder, problemTypeID int64) (*entity.ProblemType, error) {
	pt, err := s.catalog.ProblemType(ctx, problemTypeID)
	if err != nil {
		return nil, fmt.Errorf("get problem type: %w", err)
	}
	if pt == nil || !pt.Active {
		return nil, fmt.Errorf("%w: problem type %d is not available", ErrValidation, problemTypeID)
	}

	selections, err := s.selectionRepo.GetByWorkOrderID(ctx, wo.ID)
	if err != nil {
		return nil, fmt.Errorf("get selections: %w", err)
	}
	if len(selections) == 0 {
		return pt, nil
	}

	reimbursement, err := s.reimbursementRepo.GetByID(ctx, wo.ReimbursementID)
	if err != nil {
		return nil, fmt.Errorf("get reimbursement: %w", err)
	}

	scoped := false
	for _, sel := range selections {
		line, err := s.expenseLineRepo.GetByID(ctx, sel.ExpenseLineID)
		if err != nil {
			return nil, fmt.Errorf("get expense line: %w", err)
		}
		resolved, err := s.resolver.Resolve(ctx, reimbursement, line)
		if err != nil {
			return nil, err
		}
		if rules.ContainsProblemType(resolved, pt.ID) {
			return pt, nil
		}
		scoped = scoped || len(resolved) > 0
	}
	if !scoped {
		return pt, nil
	}

	return nil, fmt.Errorf("%w: problem type %s does not apply to the selected expense lines", ErrValidation, pt.Code)
}

// checkLines verifies every line exists and belongs to the reimbursement.
// The result is de-duplicated and keeps the input order.
func (s *workOrderServiceImpl) checkLines(ctx context.Context, reimbursement *entity.Reimbursement, expenseLineIDs []int64) ([]int64, error) {
	seen := make(map[int64]bool, len(expenseLineIDs))
	ids := make([]int64, 0, len(expenseLineIDs))

	for _, id := range expenseLineIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		line, err := s.expenseLineRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get expense line: %w", err)
		}
		if line == nil {
			return nil, fmt.Errorf("%w: expense line %d", ErrNotFound, id)
		}
		if line.DocumentNumber != reimbursement.InvoiceNumber {
			return nil, fmt.Errorf("%w: expense line %d belongs to document %s, not %s",
				ErrValidation, id, line.DocumentNumber, reimbursement.InvoiceNumber)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *workOrderServiceImpl) addSelections(ctx context.Context, workOrderID int64, expenseLineIDs []int64) error {
	now := s.clock.Now()
	for _, id := range expenseLineIDs {
		if err := s.selectionRepo.Create(ctx, &entity.Selection{
			WorkOrderID:        workOrderID,
			ExpenseLineID:      id,
			VerificationStatus: entity.VerificationPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		}); err != nil {
			return fmt.Errorf("create selection: %w", err)
		}
	}
	return nil
}

func (s *workOrderServiceImpl) load(ctx context.Context, workOrderID int64) (*entity.WorkOrder, error) {
	wo, err := s.workOrderRepo.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("get work order: %w", err)
	}
	if wo == nil {
		return nil, fmt.Errorf("%w: work order %d", ErrNotFound, workOrderID)
	}
	return wo, nil
}
