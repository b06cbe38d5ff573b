package main

import "github.com/spf13/cobra"

// source deliberately does nothing: callers invoking the historical no-op
// entry point get a clean zero and no side effects.
func newSourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "source",
		Short:  "No-op entry point",
		Hidden: true,
		Args:   cobra.NoArgs,
		Run:    func(cmd *cobra.Command, args []string) {},
	}
}
