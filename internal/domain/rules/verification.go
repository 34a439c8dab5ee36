package rules

import (
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
)

// Newer reports whether a orders after b: higher Seq, then later UpdatedAt,
// then higher ID (insertion order).
func Newer(a, b *entity.WorkOrder) bool {
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}

// LatestQualifying returns the newest audit work order, or nil.
// Communication and express receipt work orders never qualify.
func LatestQualifying(orders []*entity.WorkOrder) *entity.WorkOrder {
	var latest *entity.WorkOrder
	for _, wo := range orders {
		if wo == nil || !wo.IsAudit() {
			continue
		}
		if latest == nil || Newer(wo, latest) {
			latest = wo
		}
	}
	return latest
}

// VerificationFromWorkOrder maps the deciding work order to a verification status
func VerificationFromWorkOrder(wo *entity.WorkOrder) string {
	if wo == nil {
		return entity.VerificationPending
	}
	switch workflow.State(wo.Status) {
	case workflow.StateApproved:
		return entity.VerificationVerified
	case workflow.StateRejected:
		return entity.VerificationProblematic
	default:
		return entity.VerificationPending
	}
}

// DeriveVerification is the full aggregation rule for one expense line
func DeriveVerification(orders []*entity.WorkOrder) string {
	return VerificationFromWorkOrder(LatestQualifying(orders))
}
