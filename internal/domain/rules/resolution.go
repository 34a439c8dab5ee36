package rules

import (
	"errors"
	"fmt"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
)

// ErrInconsistentResolution is returned when a work order's resolution
// disagrees with its status
var ErrInconsistentResolution = errors.New("resolution inconsistent with status")

// approved-equivalent and rejected-equivalent statuses per variant
var (
	approvedStates = map[string]map[workflow.State]bool{
		entity.VariantAudit:          {workflow.StateApproved: true},
		entity.VariantCommunication:  {workflow.StateResolved: true, workflow.StateClosed: true},
		entity.VariantExpressReceipt: {workflow.StateCompleted: true},
	}
	rejectedStates = map[string]map[workflow.State]bool{
		entity.VariantAudit:          {workflow.StateRejected: true},
		entity.VariantCommunication:  {workflow.StateUnresolved: true, workflow.StateClosed: true},
		entity.VariantExpressReceipt: {},
	}
)

// CheckResolution verifies that resolution and status agree for the variant
func CheckResolution(variant, status, resolution string) error {
	state := workflow.State(status)
	if !state.BelongsTo(variant) {
		return fmt.Errorf("%w: %s is not a %s status", ErrInconsistentResolution, status, variant)
	}

	approved := approvedStates[variant][state]
	rejected := rejectedStates[variant][state]

	switch resolution {
	case entity.ResolutionApproved:
		if !approved {
			return fmt.Errorf("%w: %s %s cannot be approved", ErrInconsistentResolution, variant, status)
		}
	case entity.ResolutionRejected:
		if !rejected {
			return fmt.Errorf("%w: %s %s cannot be rejected", ErrInconsistentResolution, variant, status)
		}
	case entity.ResolutionPending:
		if approved || rejected {
			return fmt.Errorf("%w: %s %s requires a decided resolution", ErrInconsistentResolution, variant, status)
		}
	default:
		return fmt.Errorf("%w: unknown resolution %q", ErrInconsistentResolution, resolution)
	}
	return nil
}

// ResolutionFor returns the resolution a transition leaves behind
func ResolutionFor(current string, tr workflow.Transition) string {
	switch {
	case tr.Has(workflow.EffectResolveApproved):
		return entity.ResolutionApproved
	case tr.Has(workflow.EffectResolveRejected):
		return entity.ResolutionRejected
	default:
		return current
	}
}
