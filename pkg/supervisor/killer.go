package supervisor

import "golang.org/x/sys/unix"

// killer is the termination strategy, fixed once at startup: either the
// whole OS process group goes, or exactly the tracked child PIDs. Handler
// clearing happens in terminate, before either strategy fires, so the
// supervisor dies by default disposition instead of re-entering its own
// handler.
type killer interface {
	kill(sig unix.Signal)
}

// groupKiller signals the supervisor's entire process group, the
// supervisor itself included. That also takes down unrelated processes
// sharing the group, which is the intended default for isolated
// invocations.
type groupKiller struct{}

func (groupKiller) kill(sig unix.Signal) {
	_ = unix.Kill(0, sig)
}

// trackedKiller signals only the PIDs this run spawned. Grandchildren are
// deliberately left alone; so is anything else sharing the process group,
// which is the whole point of selective mode.
type trackedKiller struct {
	pids func() []int
}

func (k trackedKiller) kill(sig unix.Signal) {
	for _, pid := range k.pids() {
		_ = unix.Kill(pid, sig)
	}
}
