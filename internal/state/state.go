package state

// State is the lifecycle position of a single service instance.
type State int

const (
	Registered State = iota
	Constructing
	Ready
	ShuttingDown
	Shutdown
)

func (s State) String() string {
	switch s {
	case Registered:
		return "registered"
	case Constructing:
		return "constructing"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting_down"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal step.
// Constructing may fall back to Registered when a provider fails; Shutdown is
// terminal.
func (s State) CanTransition(next State) bool {
	switch s {
	case Registered:
		return next == Constructing
	case Constructing:
		return next == Ready || next == Registered
	case Ready:
		return next == ShuttingDown
	case ShuttingDown:
		return next == Shutdown
	default:
		return false
	}
}

// Container is the lifecycle position of a whole container.
type Container int

const (
	Open Container = iota
	Draining
	Closed
)

func (c Container) String() string {
	switch c {
	case Open:
		return "open"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
