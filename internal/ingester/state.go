package ingester

import "fmt"

// State is a state of the ingestion loop.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateFetching
	StateFiltering
	StateDispatching
	StateCommitting
	StateShuttingDown
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StatePolling:      "polling",
	StateFetching:     "fetching",
	StateFiltering:    "filtering",
	StateDispatching:  "dispatching",
	StateCommitting:   "committing",
	StateShuttingDown: "shutting_down",
	StateStopped:      "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// StateNames returns the names of every state, in loop order.
func StateNames() []string {
	names := make([]string, 0, len(stateNames))
	for s := StateIdle; s <= StateStopped; s++ {
		names = append(names, s.String())
	}
	return names
}

// FatalError stops the ingestion loop. LastCommitted is the last checkpoint whose
// commit completed; a restart resumes from LastCommitted+1.
type FatalError struct {
	LastCommitted uint64
	State         State
	Err           error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ingestion halted while %s (last committed checkpoint %d): %v",
		e.State, e.LastCommitted, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
