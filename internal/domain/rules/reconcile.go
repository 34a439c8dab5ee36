package rules

import (
	"strings"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// DefaultPaidExternalStatuses are the ERP statuses that close a reimbursement
var DefaultPaidExternalStatuses = []string{"已付款", "待付款"}

// StatusPolicy decides a reimbursement's internal status
type StatusPolicy struct {
	paid map[string]bool
}

// NewStatusPolicy creates a policy. An empty paid set falls back to the defaults.
func NewStatusPolicy(paidStatuses []string) *StatusPolicy {
	if len(paidStatuses) == 0 {
		paidStatuses = DefaultPaidExternalStatuses
	}
	paid := make(map[string]bool, len(paidStatuses))
	for _, s := range paidStatuses {
		if s = strings.TrimSpace(s); s != "" {
			paid[s] = true
		}
	}
	return &StatusPolicy{paid: paid}
}

// IsPaid reports whether the external status is in the paid set
func (p *StatusPolicy) IsPaid(externalStatus string) bool {
	return p.paid[strings.TrimSpace(externalStatus)]
}

// Decide applies the precedence rules in order: manual override keeps the
// current status, paid external status closes, an active work order means
// processing, otherwise pending.
func (p *StatusPolicy) Decide(current string, manualOverride bool, externalStatus string, activeWorkOrders int) string {
	if manualOverride {
		return current
	}
	if p.IsPaid(externalStatus) {
		return entity.ReimbursementStatusClosed
	}
	if activeWorkOrders > 0 {
		return entity.ReimbursementStatusProcessing
	}
	return entity.ReimbursementStatusPending
}
