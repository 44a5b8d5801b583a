package metrics

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteText writes the report lines followed by a summary line.
func WriteText(w io.Writer, r Report) error {
	for _, line := range r.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if len(r.Entries) < 2 {
		return nil
	}

	s := r.Summary()
	_, err := fmt.Fprintf(w,
		"Total Throughput: %.6g Mbit/s, Fairness: %.4f\n",
		s.Total, s.Fairness)

	return err
}

const (
	throughputSheet = "Throughput"
	summarySheet    = "Summary"
)

// WriteXLSX saves the report as a spreadsheet with one row per counter and a
// summary sheet.
func WriteXLSX(path string, r Report) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = f.NewSheet(throughputSheet); err != nil {
		return err
	}

	if _, err = f.NewSheet(summarySheet); err != nil {
		return err
	}

	if err = f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	header := []interface{}{
		"Counter", "Label", "Payload (B)", "Delivered", "Throughput (Mbit/s)",
	}
	if err = f.SetSheetRow(throughputSheet, "A1", &header); err != nil {
		return err
	}

	for i, e := range r.Entries {
		row := []interface{}{
			e.ID, e.Label, e.PayloadSize, e.Delivered, e.Throughput,
		}

		cell := fmt.Sprintf("A%d", i+2)
		if err = f.SetSheetRow(throughputSheet, cell, &row); err != nil {
			return err
		}
	}

	s := r.Summary()
	rows := [][]interface{}{
		{"Duration (s)", float64(r.Duration)},
		{"Total (Mbit/s)", s.Total},
		{"Mean (Mbit/s)", s.Mean},
		{"StdDev (Mbit/s)", s.StdDev},
		{"Fairness", s.Fairness},
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err = f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
