package agent

// State is a step of the run state machine:
// Idle -> AwaitingModel -> (ToolRequested <-> AwaitingModel)* -> Validating -> Done | Failed.
// A failed validation inside the retry budget returns to AwaitingModel.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateToolRequested
	StateValidating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolRequested:
		return "tool_requested"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON traces.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var allowedTransitions = map[State][]State{
	StateIdle:          {StateAwaitingModel, StateFailed},
	StateAwaitingModel: {StateToolRequested, StateValidating, StateFailed},
	StateToolRequested: {StateAwaitingModel, StateFailed},
	StateValidating:    {StateDone, StateAwaitingModel, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
