package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkOrderCreated           Type = "workorder.created"
	TypeWorkOrderStatusChanged     Type = "workorder.status_changed"
	TypeSelectionChanged           Type = "workorder.selection_changed"
	TypeReimbursementStatusChanged Type = "reimbursement.status_changed"
	TypeManualOverrideSet          Type = "reimbursement.override_set"
	TypeManualOverrideReset        Type = "reimbursement.override_reset"
)

// Payload keys shared by publishers and subscribers
const (
	PayloadPreviousStatus = "previous_status"
	PayloadNewStatus      = "new_status"
	PayloadTrigger        = "trigger"
	PayloadVariant        = "variant"
	PayloadActor          = "actor"
	PayloadExpenseLineIDs = "expense_line_ids"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkOrderCreated,
		TypeWorkOrderStatusChanged,
		TypeSelectionChanged,
		TypeReimbursementStatusChanged,
		TypeManualOverrideSet,
		TypeManualOverrideReset:
		return true
	default:
		return false
	}
}
