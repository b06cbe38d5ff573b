package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/ctubio/poorman/pkg/procfile"
	"github.com/ctubio/poorman/pkg/supervisor"
)

func newStartCmd() *cobra.Command {
	var (
		procfilePath string
		envPath      string
		selective    bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Spawn every Procfile entry and supervise the group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := procfile.ParseFile(procfilePath)
			if err != nil {
				return err
			}
			overrides, err := procfile.ParseEnvFile(envPath)
			if err != nil {
				return err
			}

			// Keep the prefix colors when the stream is piped; the whole
			// point of the palette is telling interleaved processes apart.
			lipgloss.SetColorProfile(termenv.ANSI)

			s := supervisor.New(defs, overrides, supervisor.Options{
				Selective: selective || os.Getenv("POORMAN_SELECTIVE") != "",
			})
			return s.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&procfilePath, "procfile", "f", "Procfile", "process definition file")
	cmd.Flags().StringVarP(&envPath, "env", "e", ".env", "environment override file")
	cmd.Flags().BoolVar(&selective, "selective", false, "terminate only supervised PIDs, not the whole process group")

	return cmd
}
