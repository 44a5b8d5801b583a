package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/hiddenstations/datarecording"
	"github.com/sarchlab/hiddenstations/metrics"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var dbPath string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print the throughput report of a recorded run.",
		Long: "Read a database written by run --db and print its throughput " +
			"lines followed by the transmission, collision and drop counts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printRecordedRun(cmd, dbPath)
		},
	}

	reportCmd.Flags().StringVar(&dbPath, "db", "",
		"Database of the run, with or without the .sqlite3 suffix")
	_ = reportCmd.MarkFlagRequired("db")

	return reportCmd
}

func printRecordedRun(cmd *cobra.Command, dbPath string) error {
	file := dbPath
	if !strings.HasSuffix(file, ".sqlite3") {
		file += ".sqlite3"
	}

	if _, err := os.Stat(file); err != nil {
		return err
	}

	reader, err := datarecording.NewReader(file)
	if err != nil {
		return err
	}
	defer reader.Close()

	run, err := datarecording.ReadRun(cmd.Context(), reader)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	return writeRecordedRun(cmd.OutOrStdout(), run)
}

func writeRecordedRun(w io.Writer, run datarecording.RunSummary) error {
	for _, info := range run.Info {
		if info.Property == "Scenario" {
			if _, err := fmt.Fprintf(w, "Scenario: %s\n", info.Value); err != nil {
				return err
			}
		}
	}

	if err := metrics.WriteText(w, run.Report); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Transmissions: %d, Collisions: %d, Drops: %d\n",
		run.Transmissions, run.Collisions, run.Drops)

	return err
}
