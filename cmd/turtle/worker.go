package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/sandbox"
)

// workerCmd is the child side of process isolation.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one script from the worker protocol on stdin/stdout",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sandbox.ServeWorker(os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
