package workflow

// State represents a work order status. The set is the union of all variants;
// each variant's table only configures its own states.
type State string

const (
	// Shared by audit and express receipt
	StatePending State = "pending"

	// Audit
	StateProcessing         State = "processing"
	StateNeedsCommunication State = "needs_communication"
	StateApproved           State = "approved"
	StateRejected           State = "rejected"

	// Communication
	StateOpen       State = "open"
	StateInProgress State = "in_progress"
	StateResolved   State = "resolved"
	StateUnresolved State = "unresolved"
	StateClosed     State = "closed"

	// Express receipt
	StateReceived  State = "received"
	StateProcessed State = "processed"
	StateCompleted State = "completed"
)

var validStates = map[State]bool{
	StatePending:            true,
	StateProcessing:         true,
	StateNeedsCommunication: true,
	StateApproved:           true,
	StateRejected:           true,
	StateOpen:               true,
	StateInProgress:         true,
	StateResolved:           true,
	StateUnresolved:         true,
	StateClosed:             true,
	StateReceived:           true,
	StateProcessed:          true,
	StateCompleted:          true,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateClosed:    true,
	StateCompleted: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid work order state
func (s State) IsValid() bool {
	return validStates[s]
}

// TerminalStates returns every terminal state, sorted for stable query building
func TerminalStates() []State {
	return []State{StateApproved, StateClosed, StateCompleted, StateRejected}
}
