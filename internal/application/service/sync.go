package service

import (
	"context"
	"fmt"
)

// SyncReport summarises a sync run
type SyncReport struct {
	Reimbursements int `json:"reimbursements"`
	StatusChanges  int `json:"status_changes"`
	ExpenseLines   int `json:"expense_lines"`
	LineChanges    int `json:"line_changes"`
	Pages          int `json:"pages"`
}

// SyncExternalStatuses reconciles every reimbursement whose external status
// moved since its last reconciliation, one batch per page. Reimbursements
// already reconciled are skipped without a write.
func (e *Engine) SyncExternalStatuses(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	var afterID int64

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := e.repos.Reimbursements.ListExternalChanged(ctx, afterID, e.batchSize)
		if err != nil {
			return report, fmt.Errorf("list changed reimbursements: %w", err)
		}
		if len(page) == 0 {
			break
		}

		_, err = e.batch.Run(ctx, func(batchCtx context.Context) error {
			for _, r := range page {
				previous := r.InternalStatus
				status, err := e.reconciler.Reconcile(batchCtx, r.ID, r.ExternalStatus)
				if err != nil {
					return err
				}
				report.Reimbursements++
				if status != previous {
					report.StatusChanges++
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}

		report.Pages++
		afterID = page[len(page)-1].ID
		if len(page) < e.batchSize {
			break
		}
	}

	e.logger.Info("External status sync finished",
		"reimbursements", report.Reimbursements,
		"status_changes", report.StatusChanges,
		"pages", report.Pages)
	return report, nil
}

// RecomputeAllExpenseLines re-derives every expense line, one transaction per page
func (e *Engine) RecomputeAllExpenseLines(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	var afterID int64

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ids, err := e.repos.ExpenseLines.ListIDs(ctx, afterID, e.batchSize)
		if err != nil {
			return report, fmt.Errorf("list expense lines: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		before := make(map[int64]string, len(ids))
		for _, id := range ids {
			line, err := e.repos.ExpenseLines.GetByID(ctx, id)
			if err != nil {
				return report, fmt.Errorf("get expense line: %w", err)
			}
			if line != nil {
				before[id] = line.VerificationStatus
			}
		}

		statuses, err := e.aggregator.RecomputeMany(ctx, ids)
		if err != nil {
			return report, err
		}
		for id, status := range statuses {
			report.ExpenseLines++
			if before[id] != status {
				report.LineChanges++
			}
		}

		report.Pages++
		afterID = ids[len(ids)-1]
		if len(ids) < e.batchSize {
			break
		}
	}

	e.logger.Info("Expense line recompute finished",
		"expense_lines", report.ExpenseLines,
		"line_changes", report.LineChanges,
		"pages", report.Pages)
	return report, nil
}
