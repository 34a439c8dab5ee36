package service

import (
	"context"
	"sort"
	"sync"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/event"
)

type batchKey struct{}

// batch collects the entities touched by deferred cascade events
type batch struct {
	mu             sync.Mutex
	expenseLines   map[int64]struct{}
	reimbursements map[int64]struct{}
	deferred       int
}

func newBatch() *batch {
	return &batch{
		expenseLines:   make(map[int64]struct{}),
		reimbursements: make(map[int64]struct{}),
	}
}

func batchFrom(ctx context.Context) *batch {
	b, _ := ctx.Value(batchKey{}).(*batch)
	return b
}

func (b *batch) collect(evt *event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deferred++
	for _, id := range evt.GetPayloadIDs(event.PayloadExpenseLineIDs) {
		b.expenseLines[id] = struct{}{}
	}
	if evt.ReimbursementID != 0 && evt.Type != event.TypeSelectionChanged {
		b.reimbursements[evt.ReimbursementID] = struct{}{}
	}
}

func (b *batch) expenseLineIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.expenseLines)
}

func (b *batch) reimbursementIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.reimbursements)
}

func sortedKeys(m map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// cascades reports whether handlers recompute derived state for the event
func cascades(t event.Type) bool {
	switch t {
	case event.TypeWorkOrderCreated, event.TypeWorkOrderStatusChanged, event.TypeSelectionChanged:
		return true
	default:
		return false
	}
}

// publisher dispatches events, or defers cascading ones while a batch is open
type publisher struct {
	dispatcher dispatcher.Dispatcher
}

func (p publisher) publish(ctx context.Context, events ...*event.Event) error {
	b := batchFrom(ctx)
	immediate := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if b != nil && cascades(evt.Type) {
			b.collect(evt)
			continue
		}
		immediate = append(immediate, evt)
	}
	if p.dispatcher == nil || len(immediate) == 0 {
		return nil
	}
	return p.dispatcher.Dispatch(ctx, immediate...)
}

// BatchResult reports what the second phase of a batch recomputed
type BatchResult struct {
	DeferredEvents int              `json:"deferred_events"`
	ExpenseLines   map[int64]string `json:"expense_lines"`
	Reimbursements map[int64]string `json:"reimbursements"`
}

// BatchRunner runs bulk mutations in two phases: fn applies raw changes while
// cascades are deferred, then every affected expense line is recomputed once
// and every affected reimbursement reconciled once, in the same transaction.
type BatchRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) (*BatchResult, error)
}

type batchRunnerImpl struct {
	reimbursementRepo port.ReimbursementRepository
	aggregator        VerificationAggregator
	reconciler        Reconciler
	txManager         port.TransactionManager
	logger            Logger
}

// NewBatchRunner creates a new BatchRunner
func NewBatchRunner(
	reimbursementRepo port.ReimbursementRepository,
	aggregator VerificationAggregator,
	reconciler Reconciler,
	txManager port.TransactionManager,
	logger Logger,
) BatchRunner {
	return &batchRunnerImpl{
		reimbursementRepo: reimbursementRepo,
		aggregator:        aggregator,
		reconciler:        reconciler,
		txManager:         txManager,
		logger:            loggerOrNop(logger),
	}
}

// Run executes fn inside a batch. A nested Run joins the outer batch and
// returns an empty result; the outer batch does the recomputation.
func (r *batchRunnerImpl) Run(ctx context.Context, fn func(ctx context.Context) error) (*BatchResult, error) {
	result := &BatchResult{
		ExpenseLines:   map[int64]string{},
		Reimbursements: map[int64]string{},
	}

	if batchFrom(ctx) != nil {
		return result, fn(ctx)
	}

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		b := newBatch()
		if err := fn(context.WithValue(txCtx, batchKey{}, b)); err != nil {
			return err
		}
		result.DeferredEvents = b.deferred

		lines, err := r.aggregator.RecomputeMany(txCtx, b.expenseLineIDs())
		if err != nil {
			return err
		}
		result.ExpenseLines = lines

		for _, id := range b.reimbursementIDs() {
			reimbursement, err := r.reimbursementRepo.GetByID(txCtx, id)
			if err != nil {
				return err
			}
			if reimbursement == nil {
				continue
			}
			status, err := r.reconciler.Reconcile(txCtx, id, reimbursement.ExternalStatus)
			if err != nil {
				return err
			}
			result.Reimbursements[id] = status
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Batch failed, rolled back", "error", err)
		return nil, err
	}

	r.logger.Info("Batch completed",
		"deferred_events", result.DeferredEvents,
		"expense_lines", len(result.ExpenseLines),
		"reimbursements", len(result.Reimbursements),
	)
	return result, nil
}
