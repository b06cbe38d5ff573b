package supervisor

import "github.com/ctubio/poorman/pkg/procfile"

// RunningProcess tracks one spawned child for the lifetime of the run. The
// PID set built from these records is exactly what selective termination
// signals: the children this supervisor spawned, never their descendants.
type RunningProcess struct {
	ID         string
	Definition procfile.Definition
	Index      int
	PID        int
}

// EventType distinguishes lifecycle events on the supervisor's broker.
type EventType int

const (
	EventStarted EventType = iota
	EventExited
)

// Event is published as children start and exit. ExitCode is meaningful
// only for EventExited; -1 means the child ended without a usable status
// (killed, or the wait itself failed).
type Event struct {
	Type     EventType
	Process  RunningProcess
	ExitCode int
}
