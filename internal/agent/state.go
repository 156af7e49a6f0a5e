package agent

// State is the loop lifecycle. Finished and Error are terminal until an
// explicit Reset.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
