package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ctubio/poorman/pkg/procfile"
)

func TestMain(m *testing.M) {
	// Render without escape codes so the tests can assert on columns.
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// helper: wait for an event matching the predicate, draining others.
func waitEvent(t *testing.T, ch <-chan Event, d time.Duration, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed before a matching event")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("no matching event within %v", d)
		}
	}
}

// helper: poll until the pid is gone.
func waitGone(t *testing.T, pid int, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pid %d still alive after %v", pid, d)
}

func TestRunMultiplexesAlignedOutput(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "web", Command: "echo up"},
		{Name: "worker", Command: "echo busy"},
	}, nil, Options{Selective: true, Output: &buf})

	require.Equal(t, 6, s.Width())
	require.NoError(t, s.Run(context.Background()))

	out := buf.String()
	require.Contains(t, out, "web    | up")
	require.Contains(t, out, "worker | busy")

	// The separator column is identical across both processes.
	var cols []int
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		cols = append(cols, strings.Index(line, "|"))
	}
	require.Len(t, cols, 2)
	require.Equal(t, cols[0], cols[1])
}

func TestRunCombinesStdoutAndStderr(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "w", Command: "echo out; echo err 1>&2"},
	}, nil, Options{Selective: true, Output: &buf})

	require.NoError(t, s.Run(context.Background()))
	require.Contains(t, buf.String(), "| out")
	require.Contains(t, buf.String(), "| err")
}

func TestEnvOverrideLastWins(t *testing.T) {
	var buf bytes.Buffer
	overrides := []string{"POORMAN_TEST_KEY=first", "POORMAN_TEST_KEY=second"}
	s := New([]procfile.Definition{
		{Name: "envy", Command: "echo $POORMAN_TEST_KEY"},
	}, overrides, Options{Selective: true, Output: &buf})

	require.NoError(t, s.Run(context.Background()))
	require.Contains(t, buf.String(), "| second")
	require.NotContains(t, buf.String(), "| first")
}

func TestChildFailureDoesNotStopSiblings(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "crash", Command: "exit 3"},
		{Name: "stay", Command: "sleep 1; echo survived"},
	}, nil, Options{Selective: true, Output: &buf})

	events := s.Events(8)
	require.NoError(t, s.Run(context.Background()))
	require.Contains(t, buf.String(), "| survived")

	ev := waitEvent(t, events, time.Second, func(ev Event) bool {
		return ev.Type == EventExited && ev.Process.Definition.Name == "crash"
	})
	require.Equal(t, 3, ev.ExitCode)
}

func TestRunEmptyDefinitionSet(t *testing.T) {
	s := New(nil, nil, Options{Selective: true, Output: &bytes.Buffer{}})
	require.Equal(t, 0, s.Width())
	require.NoError(t, s.Run(context.Background()))
}

func TestPadWidthOverride(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "web", Command: "echo up"},
	}, nil, Options{Selective: true, Output: &buf, PadWidth: 6})

	require.Equal(t, 6, s.Width())
	require.NoError(t, s.Run(context.Background()))
	require.Contains(t, buf.String(), "web    | up")
}

func TestContextCancelTerminatesTrackedSet(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "sleeper", Command: "sleep 30"},
	}, nil, Options{Selective: true, Output: &buf})

	events := s.Events(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	started := waitEvent(t, events, 3*time.Second, func(ev Event) bool {
		return ev.Type == EventStarted
	})
	cancel()

	err, ok := recvWithTimeout(t, errc, 5*time.Second)
	require.True(t, ok, "Run did not return after cancellation")
	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, unix.SIGTERM, sigErr.Sig)
	waitGone(t, started.Process.PID, 3*time.Second)
}

func TestSignalTerminatesOnlyTrackedProcesses(t *testing.T) {
	// An unrelated process in the same process group must survive a
	// selective shutdown.
	unrelated := exec.Command("sleep", "30")
	require.NoError(t, unrelated.Start())
	defer func() {
		_ = unrelated.Process.Kill()
		_ = unrelated.Wait()
	}()

	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "sleeper", Command: "sleep 30"},
	}, nil, Options{Selective: true, Output: &buf})

	events := s.Events(4)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	started := waitEvent(t, events, 3*time.Second, func(ev Event) bool {
		return ev.Type == EventStarted
	})

	// Deliver a real SIGTERM to ourselves; the supervisor's handler owns
	// it while Run is active.
	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGTERM))

	err, ok := recvWithTimeout(t, errc, 5*time.Second)
	require.True(t, ok, "Run did not return after the signal")
	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)

	waitGone(t, started.Process.PID, 3*time.Second)
	require.NoError(t, unix.Kill(unrelated.Process.Pid, 0),
		"unrelated process was killed by a selective shutdown")
}

func TestSecondSignalDoesNotReenter(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "sleeper", Command: "sleep 30"},
	}, nil, Options{Selective: true, Output: &buf})

	events := s.Events(4)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	waitEvent(t, events, 3*time.Second, func(ev Event) bool {
		return ev.Type == EventStarted
	})

	// The termination broadcast is one-shot: the second trigger is a
	// no-op rather than a re-entrant kill.
	s.terminate(unix.SIGTERM)
	s.terminate(unix.SIGINT)

	err, ok := recvWithTimeout(t, errc, 5*time.Second)
	require.True(t, ok)
	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, unix.SIGTERM, sigErr.Sig)
}

func TestSignalDuringSpawnBoundsShutdown(t *testing.T) {
	// A termination broadcast racing the spawn loop must stop further
	// launches and still sweep whatever was tracked around it; the join
	// may not wait out the children's natural lifetime.
	defs := make([]procfile.Definition, 40)
	for i := range defs {
		defs[i] = procfile.Definition{Name: fmt.Sprintf("p%02d", i), Command: "sleep 5"}
	}
	var buf bytes.Buffer
	s := New(defs, nil, Options{Selective: true, Output: &buf})

	events := s.Events(64)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	waitEvent(t, events, 3*time.Second, func(ev Event) bool {
		return ev.Type == EventStarted
	})
	s.terminate(unix.SIGTERM)

	err, ok := recvWithTimeout(t, errc, 3*time.Second)
	require.True(t, ok, "Run did not return within a bounded interval")
	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)

	for _, p := range s.Processes() {
		waitGone(t, p.PID, 3*time.Second)
	}
}

func TestSelectiveKillUnblocksMultiplexer(t *testing.T) {
	// "sleep 3; echo late" makes the shell fork a grandchild that
	// inherits the output pipe's write end. The selective kill leaves the
	// grandchild alone, so the join can only return if the shutdown also
	// detaches the multiplexer.
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "w", Command: "sleep 3; echo late"},
	}, nil, Options{Selective: true, Output: &buf})

	events := s.Events(4)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	started := waitEvent(t, events, 3*time.Second, func(ev Event) bool {
		return ev.Type == EventStarted
	})
	s.terminate(unix.SIGTERM)

	err, ok := recvWithTimeout(t, errc, 2*time.Second)
	require.True(t, ok, "Run stayed blocked on the orphaned grandchild")
	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)
	waitGone(t, started.Process.PID, 2*time.Second)
}

func TestProcessesSnapshotInLaunchOrder(t *testing.T) {
	var buf bytes.Buffer
	s := New([]procfile.Definition{
		{Name: "a", Command: "echo 1"},
		{Name: "b", Command: "echo 2"},
	}, nil, Options{Selective: true, Output: &buf})

	require.NoError(t, s.Run(context.Background()))
	procs := s.Processes()
	require.Len(t, procs, 2)
	require.Equal(t, "a", procs[0].Definition.Name)
	require.Equal(t, "b", procs[1].Definition.Name)
	require.NotEqual(t, procs[0].ID, procs[1].ID)
	require.NotZero(t, procs[0].PID)
}
