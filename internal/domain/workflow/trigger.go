package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerStart                Trigger = "start"
	TriggerApprove              Trigger = "approve"
	TriggerReject               Trigger = "reject"
	TriggerRequestCommunication Trigger = "request_communication"
	TriggerResume               Trigger = "resume"
	TriggerResolve              Trigger = "resolve"
	TriggerMarkUnresolved       Trigger = "mark_unresolved"
	TriggerClose                Trigger = "close"
	TriggerReceive              Trigger = "receive"
	TriggerProcess              Trigger = "process"
	TriggerComplete             Trigger = "complete"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// RequiresComment reports whether the trigger records a decision that must be explained
func (t Trigger) RequiresComment() bool {
	return t == TriggerApprove || t == TriggerReject
}

// RequiresProblem reports whether the trigger needs a problem classification
func (t Trigger) RequiresProblem() bool {
	return t == TriggerReject
}
