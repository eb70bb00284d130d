package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	logJSON  bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fixvec: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fixvec",
		Short:         "Stress and inspect fixed-index stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error).")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON.")

	root.AddCommand(newStressCommand())
	root.AddCommand(newSnapshotCommand())
	return root
}
