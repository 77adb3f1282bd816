package fetch

// State describes where a fetcher is in its request lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateRetrying State = "retrying"
	StateFailed   State = "failed"
)

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateIdle:     {StateFetching},
	StateFetching: {StateIdle, StateRetrying, StateFailed, StateFetching},
	StateRetrying: {StateFetching},
	// A failed fetcher can only be restarted.
	StateFailed: {StateFetching},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}
