package datarecording

import (
	"strconv"
	"strings"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/metrics"
	"github.com/sarchlab/hiddenstations/sim"
)

// TransmissionEntry is one row of the transmission table.
type TransmissionEntry struct {
	ID        string
	StartTime float64
	EndTime   float64
	Sender    string
	Kind      string
	FrameID   string
	Src       int
	Dst       int
	MPDUs     int
	Bytes     int
	Collided  bool
	Decoders  string
}

// DropEntry is one row of the frame_drop table.
type DropEntry struct {
	Time    float64
	Station string
	FrameID string
	FlowID  string
	Reason  string
}

// StateEntry is one row of the mac_state table.
type StateEntry struct {
	Time      float64
	Station   string
	FromState string
	ToState   string
}

// ThroughputEntry is one row of the throughput table.
type ThroughputEntry struct {
	ID          string
	Label       string
	PayloadSize int
	Delivered   int64
	Duration    float64
	Throughput  float64
}

// A TraceRecorder is a hook that stores what happens on the medium and in
// the MACs. Attach it to the medium and to every MAC.
type TraceRecorder struct {
	recorder DataRecorder
	names    []string
	states   bool
}

// NewTraceRecorder creates the trace tables. Names maps station indices to
// station names. State changes are only recorded when withStates is set.
func NewTraceRecorder(
	recorder DataRecorder,
	names []string,
	withStates bool,
) *TraceRecorder {
	r := &TraceRecorder{
		recorder: recorder,
		names:    names,
		states:   withStates,
	}

	recorder.CreateTable("transmission", TransmissionEntry{})
	recorder.CreateTable("frame_drop", DropEntry{})
	recorder.CreateTable("throughput", ThroughputEntry{})

	if withStates {
		recorder.CreateTable("mac_state", StateEntry{})
	}

	return r
}

func (r *TraceRecorder) name(station int) string {
	if station >= 0 && station < len(r.names) {
		return r.names[station]
	}

	return strconv.Itoa(station)
}

// Func records the hook information.
func (r *TraceRecorder) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case mac.HookPosTxEnd:
		r.recordTransmission(ctx.Item.(*mac.Transmission),
			ctx.Detail.(mac.TxEndDetail))
	case mac.HookPosFrameDropped:
		f := ctx.Item.(*mac.Frame)
		r.recorder.InsertData("frame_drop", DropEntry{
			Time:    float64(ctx.Now),
			Station: r.name(f.Src),
			FrameID: f.ID,
			FlowID:  f.FlowID,
			Reason:  string(ctx.Detail.(mac.DropReason)),
		})
	case mac.HookPosStateChange:
		if !r.states {
			return
		}

		m := ctx.Item.(*mac.MAC)
		c := ctx.Detail.(mac.StateChange)
		r.recorder.InsertData("mac_state", StateEntry{
			Time:      float64(ctx.Now),
			Station:   r.name(m.Index()),
			FromState: c.From.String(),
			ToState:   c.To.String(),
		})
	}
}

func (r *TraceRecorder) recordTransmission(
	tx *mac.Transmission,
	d mac.TxEndDetail,
) {
	decoders := make([]string, len(d.Decoders))
	for i, s := range d.Decoders {
		decoders[i] = r.name(s)
	}

	r.recorder.InsertData("transmission", TransmissionEntry{
		ID:        tx.ID,
		StartTime: float64(tx.Start),
		EndTime:   float64(tx.End),
		Sender:    r.name(tx.Frame.Src),
		Kind:      tx.Frame.Kind.String(),
		FrameID:   tx.Frame.ID,
		Src:       tx.Frame.Src,
		Dst:       tx.Frame.Dst,
		MPDUs:     len(tx.Frame.MPDUs),
		Bytes:     tx.Frame.Size(),
		Collided:  d.Collided,
		Decoders:  strings.Join(decoders, ","),
	})
}

// RecordReport stores the throughput report of a run.
func (r *TraceRecorder) RecordReport(report metrics.Report) {
	for _, e := range report.Entries {
		r.recorder.InsertData("throughput", ThroughputEntry{
			ID:          e.ID,
			Label:       e.Label,
			PayloadSize: e.PayloadSize,
			Delivered:   int64(e.Delivered),
			Duration:    float64(report.Duration),
			Throughput:  e.Throughput,
		})
	}
}

// Handle flushes the recorder when the simulation ends.
func (r *TraceRecorder) Handle(now sim.VTimeInSec) {
	r.recorder.Flush()
}
