package resynth

// State is a step of the reconciliation state machine.
type State int

const (
	StateLoadState State = iota
	StateDispatchAndMerge
	StateApplyFilesystem
	StatePersistOwnership
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateLoadState:        "load_state",
	StateDispatchAndMerge: "dispatch_and_merge",
	StateApplyFilesystem:  "apply_filesystem",
	StatePersistOwnership: "persist_ownership",
	StateDone:             "done",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Mutates reports whether the state may write to the filesystem.
func (s State) Mutates() bool {
	return s == StateApplyFilesystem || s == StatePersistOwnership
}
