package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ctubio/poorman/pkg/logmux"
	"github.com/ctubio/poorman/pkg/supervisor"
)

var version = "dev"

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poorman",
		Short:         "Poor man's foreman: run every Procfile entry as one supervised group",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if os.Getenv("POORMAN_DEBUG") != "" {
				supervisor.SetTraceOutput(os.Stderr)
				logmux.SetTraceOutput(os.Stderr)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return errUsage
		},
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newExecCmd())
	root.AddCommand(newSourceCmd())

	return root
}
