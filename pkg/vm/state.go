package vm

// State represents all possible states that the VM can be in.
type State uint8

// List of possible VM states.
const (
	// NoneState represents the VM ready to process calls.
	NoneState State = 0
	// HaltState represents a VM that has completed the last call.
	HaltState State = 1 << 0
	// FaultState represents a VM whose last call failed.
	FaultState State = 1 << 1
	// ShutdownState represents a VM that has received a shutdown request.
	ShutdownState State = 1 << 2
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case NoneState:
		return "NONE"
	case HaltState:
		return "HALT"
	case FaultState:
		return "FAULT"
	case ShutdownState:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}
