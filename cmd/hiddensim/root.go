package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hiddensim",
		Short: "hiddensim simulates stations that cannot hear each other.",
		Long: `hiddensim simulates a wireless cell where client stations ` +
			`reach the access point but cannot sense each other. It reports ` +
			`the throughput every server receives under carrier sense, ` +
			`backoff, RTS/CTS and frame aggregation.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(), newReportCmd())

	return rootCmd
}

// Execute runs the command line and exits the process.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
