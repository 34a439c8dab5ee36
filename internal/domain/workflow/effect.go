package workflow

// Effect is a side effect attached to a table entry. The machine only reports
// effects; the caller applies them in the same unit of work as the state change.
type Effect string

const (
	// EffectResolveApproved sets the work order resolution to approved
	EffectResolveApproved Effect = "resolve_approved"

	// EffectResolveRejected sets the work order resolution to rejected
	EffectResolveRejected Effect = "resolve_rejected"

	// EffectOpenCommunication creates a communication work order linked to the audit
	EffectOpenCommunication Effect = "open_communication"
)

// String returns the string representation of the effect
func (e Effect) String() string {
	return string(e)
}

// Transition describes a fired table entry
type Transition struct {
	From    State
	To      State
	Trigger Trigger
	Effects []Effect
}

// Has reports whether the transition carries the given effect
func (t Transition) Has(effect Effect) bool {
	for _, e := range t.Effects {
		if e == effect {
			return true
		}
	}
	return false
}
