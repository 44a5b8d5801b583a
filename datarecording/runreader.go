package datarecording

import (
	"context"

	"github.com/sarchlab/hiddenstations/metrics"
	"github.com/sarchlab/hiddenstations/sim"
)

// A RunSummary is what a recorded run tells without replaying it.
type RunSummary struct {
	Info          []RunInfo
	Report        metrics.Report
	Transmissions int
	Collisions    int
	Drops         int
}

// ReadRun reads the run information, the throughput report and the
// transmission counts back from a database written by a TraceRecorder and an
// ExecRecorder.
func ReadRun(ctx context.Context, r DataReader) (RunSummary, error) {
	r.MapTable("run_info", RunInfo{})
	r.MapTable("throughput", ThroughputEntry{})
	r.MapTable("transmission", TransmissionEntry{})
	r.MapTable("frame_drop", DropEntry{})

	var s RunSummary

	infos, _, err := r.Query(ctx, "run_info", QueryParams{OrderBy: "rowid"})
	if err != nil {
		return s, err
	}

	for _, i := range infos {
		s.Info = append(s.Info, *i.(*RunInfo))
	}

	rows, _, err := r.Query(ctx, "throughput", QueryParams{OrderBy: "rowid"})
	if err != nil {
		return s, err
	}

	for _, row := range rows {
		e := row.(*ThroughputEntry)
		s.Report.Duration = sim.VTimeInSec(e.Duration)
		s.Report.Entries = append(s.Report.Entries, metrics.Entry{
			ID:          e.ID,
			Label:       e.Label,
			PayloadSize: e.PayloadSize,
			Delivered:   uint64(e.Delivered),
			Throughput:  e.Throughput,
		})
	}

	counts := []struct {
		dst    *int
		table  string
		params QueryParams
	}{
		{&s.Transmissions, "transmission", QueryParams{Limit: 1}},
		{&s.Collisions, "transmission", QueryParams{Where: "Collided = 1", Limit: 1}},
		{&s.Drops, "frame_drop", QueryParams{Limit: 1}},
	}

	for _, c := range counts {
		_, n, err := r.Query(ctx, c.table, c.params)
		if err != nil {
			return s, err
		}

		*c.dst = n
	}

	return s, nil
}
