package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/event"
)

// Handler names registered by RegisterCascade
const (
	HandlerRecomputeExpenseLines  = "recompute-expense-lines"
	HandlerReconcileReimbursement = "reconcile-reimbursement"
)

// RegisterCascade subscribes the aggregator and the reconciler to work order
// events. Handlers run synchronously inside the publisher's transaction.
func RegisterCascade(
	d dispatcher.Dispatcher,
	aggregator VerificationAggregator,
	reconciler Reconciler,
	reimbursementRepo port.ReimbursementRepository,
) {
	recompute := func(ctx context.Context, evt *event.Event) error {
		ids := evt.GetPayloadIDs(event.PayloadExpenseLineIDs)
		if len(ids) == 0 {
			return nil
		}
		_, err := aggregator.RecomputeMany(ctx, ids)
		return err
	}

	reconcile := func(ctx context.Context, evt *event.Event) error {
		r, err := reimbursementRepo.GetByID(ctx, evt.ReimbursementID)
		if err != nil {
			return fmt.Errorf("get reimbursement: %w", err)
		}
		if r == nil {
			return fmt.Errorf("%w: reimbursement %d", ErrNotFound, evt.ReimbursementID)
		}
		_, err = reconciler.Reconcile(ctx, r.ID, r.ExternalStatus)
		return err
	}

	for _, t := range []event.Type{event.TypeWorkOrderCreated, event.TypeWorkOrderStatusChanged, event.TypeSelectionChanged} {
		d.SubscribeInfo(dispatcher.HandlerInfo{
			Name:        HandlerRecomputeExpenseLines,
			EventType:   t,
			Handler:     recompute,
			Description: "recompute verification status of the work order's expense lines",
		})
	}

	for _, t := range []event.Type{event.TypeWorkOrderCreated, event.TypeWorkOrderStatusChanged} {
		d.SubscribeInfo(dispatcher.HandlerInfo{
			Name:        HandlerReconcileReimbursement,
			EventType:   t,
			Handler:     reconcile,
			Description: "re-derive the owning reimbursement's status from its stored external status",
		})
	}
}
