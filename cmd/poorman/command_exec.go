package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/ctubio/poorman/pkg/procfile"
	"github.com/ctubio/poorman/pkg/supervisor"
)

// exitError carries the target command's exit status out of exec so the
// process can finish with it, the way the exec'd command itself would.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exec is the historical child re-entry point. The supervisor no longer
// re-invokes itself, but the command stays useful for running one command
// under the same log pipe, aligned with a run it did not start.
func newExecCmd() *cobra.Command {
	var (
		name  string
		width int
		index int
	)

	cmd := &cobra.Command{
		Use:    "exec -- <command...>",
		Short:  "Run a single command under the supervisor's log pipe",
		Hidden: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errUsage
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			if name == "" {
				name = args[0]
			}

			lipgloss.SetColorProfile(termenv.ANSI)

			s := supervisor.New(
				[]procfile.Definition{{Name: name, Command: command}},
				nil,
				supervisor.Options{
					Selective:   true,
					PadWidth:    width,
					IndexOffset: index,
				},
			)
			events := s.Events(4)
			if err := s.Run(cmd.Context()); err != nil {
				return err
			}
			for ev := range events {
				if ev.Type == supervisor.EventExited && ev.ExitCode != 0 {
					return &exitError{code: ev.ExitCode}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "prefix name (defaults to the command word)")
	cmd.Flags().IntVar(&width, "width", 0, "alignment width shared with sibling processes")
	cmd.Flags().IntVar(&index, "index", 0, "launch index driving color selection")

	return cmd
}
