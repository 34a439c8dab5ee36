package workflow

import (
	"fmt"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// variantStates lists the states each variant may legally be in
var variantStates = map[string]map[State]bool{
	entity.VariantAudit: {
		StatePending:            true,
		StateProcessing:         true,
		StateNeedsCommunication: true,
		StateApproved:           true,
		StateRejected:           true,
	},
	entity.VariantCommunication: {
		StateOpen:       true,
		StateInProgress: true,
		StateResolved:   true,
		StateUnresolved: true,
		StateClosed:     true,
	},
	entity.VariantExpressReceipt: {
		StatePending:   true,
		StateReceived:  true,
		StateProcessed: true,
		StateCompleted: true,
	},
}

// InitialState returns the state a new work order of the variant starts in
func InitialState(variant string) (State, error) {
	switch variant {
	case entity.VariantAudit, entity.VariantExpressReceipt:
		return StatePending, nil
	case entity.VariantCommunication:
		return StateOpen, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
}

// BelongsTo reports whether the state is part of the variant's state set
func (s State) BelongsTo(variant string) bool {
	return variantStates[variant][s]
}

// BuildAuditStateMachine creates a state machine configured for audit work orders
func BuildAuditStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	// Deciding straight from pending implies the start step
	builder.Configure(StatePending).
		Permit(TriggerStart, StateProcessing).
		Permit(TriggerApprove, StateApproved, EffectResolveApproved).
		Permit(TriggerReject, StateRejected, EffectResolveRejected)

	builder.Configure(StateProcessing).
		Permit(TriggerApprove, StateApproved, EffectResolveApproved).
		Permit(TriggerReject, StateRejected, EffectResolveRejected).
		Permit(TriggerRequestCommunication, StateNeedsCommunication, EffectOpenCommunication)

	builder.Configure(StateNeedsCommunication).
		Permit(TriggerResume, StateProcessing)

	// APPROVED and REJECTED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}

// BuildCommunicationStateMachine creates a state machine configured for communication work orders
func BuildCommunicationStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateOpen).
		Permit(TriggerStart, StateInProgress)

	builder.Configure(StateInProgress).
		Permit(TriggerResolve, StateResolved, EffectResolveApproved).
		Permit(TriggerMarkUnresolved, StateUnresolved, EffectResolveRejected)

	builder.Configure(StateResolved).
		Permit(TriggerClose, StateClosed)

	builder.Configure(StateUnresolved).
		Permit(TriggerClose, StateClosed)

	return builder.Build(initialState)
}

// BuildExpressReceiptStateMachine creates a state machine configured for express receipt work orders
func BuildExpressReceiptStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StatePending).
		Permit(TriggerReceive, StateReceived).
		Permit(TriggerProcess, StateProcessed)

	builder.Configure(StateReceived).
		Permit(TriggerProcess, StateProcessed)

	builder.Configure(StateProcessed).
		Permit(TriggerComplete, StateCompleted, EffectResolveApproved)

	return builder.Build(initialState)
}

// ForVariant builds the machine for a variant positioned at the given state
func ForVariant(variant string, current State) (StateMachine, error) {
	states, ok := variantStates[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	if !states[current] {
		return nil, fmt.Errorf("%w: %s is not a %s state", ErrInvalidState, current, variant)
	}

	switch variant {
	case entity.VariantAudit:
		return BuildAuditStateMachine(current), nil
	case entity.VariantCommunication:
		return BuildCommunicationStateMachine(current), nil
	default:
		return BuildExpressReceiptStateMachine(current), nil
	}
}
