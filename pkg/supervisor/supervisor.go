// Package supervisor launches every process definition concurrently,
// multiplexes their combined output onto one aligned stream, and makes sure
// the whole set terminates together when the run is signaled or ends.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/ctubio/poorman/pkg/logmux"
	"github.com/ctubio/poorman/pkg/procfile"
)

var logger = log.New(io.Discard, "supervisor: ", log.LstdFlags)

// SetTraceOutput redirects the package trace log, discarded by default.
func SetTraceOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Options fixes a run's behavior before the first spawn.
type Options struct {
	// Selective terminates only the PIDs this supervisor spawned instead
	// of the whole OS process group.
	Selective bool
	// Output is the shared sink destination; defaults to os.Stdout.
	Output io.Writer
	// Env is the base environment the overrides are applied to; defaults
	// to os.Environ().
	Env []string
	// Shell interprets each command line; defaults to /bin/sh.
	Shell string
	// PadWidth overrides the computed alignment width when positive. The
	// exec re-entry uses it to stay aligned with siblings it cannot see.
	PadWidth int
	// IndexOffset shifts color selection by that many launch slots.
	IndexOffset int
}

// SignalError reports a run ended by a termination signal. The caller is
// expected to re-raise the signal once its own handlers are gone so the
// exit status carries it.
type SignalError struct {
	Sig unix.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("terminated by signal %s", unix.SignalName(e.Sig))
}

// Supervisor owns one run: the definitions, the resolved environment, the
// tracked children, the shared sink, and the one-shot termination
// broadcast. It is not reusable; build a new one per run.
type Supervisor struct {
	defs        []procfile.Definition
	env         []string
	shell       string
	sink        *logmux.Sink
	killer      killer
	broker      *Broker[Event]
	padWidth    int
	indexOffset int

	mu    sync.Mutex
	procs []RunningProcess
	pipes []*os.File

	stopOnce sync.Once
	termSig  atomic.Int32
}

// New builds a supervisor. The overrides are applied once, here, before
// anything spawns: appended to the base environment in file order, so a
// key repeated in the override file resolves to its later value.
func New(defs []procfile.Definition, overrides []string, opts Options) *Supervisor {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(append([]string(nil), env...), overrides...)
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	s := &Supervisor{
		defs:        defs,
		env:         env,
		shell:       shell,
		sink:        logmux.NewSink(out),
		broker:      NewBroker[Event](),
		padWidth:    opts.PadWidth,
		indexOffset: opts.IndexOffset,
	}
	if opts.Selective {
		s.killer = trackedKiller{pids: s.trackedPIDs}
	} else {
		s.killer = groupKiller{}
	}
	return s
}

// Width is the alignment width: the longest definition name, fixed for the
// whole run before anything spawns. An empty definition set yields 0.
func (s *Supervisor) Width() int {
	if s.padWidth > 0 {
		return s.padWidth
	}
	width := 0
	for _, def := range s.defs {
		if len(def.Name) > width {
			width = len(def.Name)
		}
	}
	return width
}

// Events yields lifecycle events for this run. Subscribe before calling
// Run to observe every start; the channel closes when the run ends.
func (s *Supervisor) Events(capacity int) <-chan Event {
	return s.broker.Subscribe(capacity)
}

// Processes returns a snapshot of the children spawned so far, in launch
// order.
func (s *Supervisor) Processes() []RunningProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunningProcess(nil), s.procs...)
}

func (s *Supervisor) trackedPIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]int, 0, len(s.procs))
	for _, p := range s.procs {
		pids = append(pids, p.PID)
	}
	return pids
}

// Run spawns every definition and blocks until each child has been reaped
// and its multiplexer has drained. A child exiting, with whatever status,
// never takes its siblings down; only a signal (or ctx cancellation) ends
// the group early, in which case Run returns a *SignalError.
func (s *Supervisor) Run(ctx context.Context) error {
	width := s.Width()

	// The handler goes in before the first spawn. The spawn loop checks
	// the termination flag before every launch, and a final sweep below
	// catches children tracked after the broadcast fired.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, unix.SIGTERM)
	defer signal.Stop(sigc)

	settled := make(chan struct{})
	defer close(settled)
	go func() {
		select {
		case sig := <-sigc:
			s.terminate(toUnixSignal(sig))
		case <-ctx.Done():
			s.terminate(unix.SIGTERM)
		case <-settled:
		}
	}()

	var group errgroup.Group
	for i, def := range s.defs {
		if s.terminated() {
			break
		}
		if err := s.spawn(&group, def, i, width); err != nil {
			// Whatever did start gets swept so a partial spawn never
			// strands a child.
			s.sweep()
			_ = group.Wait()
			s.broker.Close()
			return err
		}
	}
	// A signal racing the loop kills only what was tracked at that
	// instant; re-sweep so a child spawned around the broadcast cannot
	// survive it or keep the join blocked.
	if s.terminated() {
		s.sweep()
	}

	err := group.Wait()
	s.broker.Close()
	if sig := unix.Signal(s.termSig.Load()); sig != 0 {
		return &SignalError{Sig: sig}
	}
	return err
}

func (s *Supervisor) spawn(group *errgroup.Group, def procfile.Definition, index, width int) error {
	mux, err := logmux.New(def.Name, width, logmux.Pick(s.indexOffset+index), s.sink)
	if err != nil {
		return err
	}

	// The shell performs $VAR expansion against the resolved environment;
	// the supervisor never interprets the command line itself.
	cmd := exec.Command(s.shell, "-c", def.Command)
	cmd.Env = s.env

	// One pipe carries stdout and stderr so the child's own interleaving
	// is preserved exactly as the OS delivered it.
	pr, pw, err := os.Pipe()
	if err != nil {
		return err
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	logger.Printf("starting %q: %s", def.Name, def.Command)
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("start %q: %w", def.Name, err)
	}
	// The child holds its own copy of the write end; ours has to go so the
	// reader sees EOF once the child exits.
	pw.Close()

	proc := RunningProcess{
		ID:         uuid.NewString(),
		Definition: def,
		Index:      index,
		PID:        cmd.Process.Pid,
	}
	s.mu.Lock()
	s.procs = append(s.procs, proc)
	s.pipes = append(s.pipes, pr)
	s.mu.Unlock()
	s.broker.Publish(Event{Type: EventStarted, Process: proc})

	group.Go(func() error {
		defer pr.Close()
		return mux.Run(pr)
	})
	group.Go(func() error {
		werr := cmd.Wait()
		code := 0
		if werr != nil {
			code = -1
			var exitErr *exec.ExitError
			if errors.As(werr, &exitErr) {
				code = exitErr.ExitCode()
			}
			logger.Printf("%q exited: %v", def.Name, werr)
		} else {
			logger.Printf("%q exited cleanly", def.Name)
		}
		s.broker.Publish(Event{Type: EventExited, Process: proc, ExitCode: code})
		// A child's failure never propagates to its siblings.
		return nil
	})
	return nil
}

// terminate is the one-shot kill broadcast. Handler clearing comes first in
// both modes, so a signal arriving during cleanup hits default disposition
// instead of re-entering; a second call finds the Once already spent. The
// configured strategy always sends SIGTERM; the triggering signal is only
// recorded for the caller to re-raise.
func (s *Supervisor) terminate(sig unix.Signal) {
	s.stopOnce.Do(func() {
		s.termSig.Store(int32(sig))
		logger.Printf("terminating run on %s", unix.SignalName(sig))
		signal.Reset(os.Interrupt, unix.SIGTERM)
		s.killer.kill(unix.SIGTERM)
		s.closeOutputs()
	})
}

func (s *Supervisor) terminated() bool {
	return s.termSig.Load() != 0
}

// sweep signals whatever is tracked right now and unblocks the
// multiplexers, regardless of the configured strategy.
func (s *Supervisor) sweep() {
	trackedKiller{pids: s.trackedPIDs}.kill(unix.SIGTERM)
	s.closeOutputs()
}

// closeOutputs closes the read ends of the children's output pipes. A
// grandchild that inherited the write end survives a selective kill and
// would otherwise keep a multiplexer, and with it the final join, blocked
// long after the tracked children are reaped.
func (s *Supervisor) closeOutputs() {
	s.mu.Lock()
	pipes := append([]*os.File(nil), s.pipes...)
	s.mu.Unlock()
	for _, pipe := range pipes {
		_ = pipe.Close()
	}
}

func toUnixSignal(sig os.Signal) unix.Signal {
	if u, ok := sig.(unix.Signal); ok {
		return u
	}
	return unix.SIGTERM
}
