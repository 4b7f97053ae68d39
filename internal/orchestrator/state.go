package orchestrator

// State is a stage of one run.
type State int

const (
	StatePlanning State = iota
	StateExtracting
	StateAnalyzing
	StateAggregating
	StateCleaningUp
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateExtracting:
		return "extracting"
	case StateAnalyzing:
		return "analyzing"
	case StateAggregating:
		return "aggregating"
	case StateCleaningUp:
		return "cleaning_up"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
