package mac

import (
	"fmt"

	"github.com/sarchlab/hiddenstations/sim"
)

// FrameKind identifies the type of a frame.
type FrameKind int

// The frame kinds exchanged between MACs.
const (
	FrameData FrameKind = iota
	FrameRTS
	FrameCTS
	FrameAck
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "DATA"
	case FrameRTS:
		return "RTS"
	case FrameCTS:
		return "CTS"
	case FrameAck:
		return "ACK"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// A Frame is either one data MPDU handed down by the traffic layer or a
// frame that goes on the air. An on-air data frame carries its MPDUs; a
// single MPDU is sent as an aggregate of one.
type Frame struct {
	ID   string
	Kind FrameKind

	Src, Dst int

	// Port is the destination port and SrcPort the port replies go to.
	Port    int
	SrcPort int

	// ToDS marks an MPDU sent to the AP for distribution to FinalDst.
	ToDS     bool
	FinalDst int

	// FromDS marks an MPDU the AP distributes on behalf of OrigSrc.
	FromDS  bool
	OrigSrc int

	// FlowID names the counter the receiving application records under.
	FlowID      string
	PayloadSize int
	CreatedAt   sim.VTimeInSec
	Seq         uint16

	// Duration is the time the medium stays reserved after this frame ends.
	// Third-party stations that decode the frame set their NAV from it.
	Duration sim.VTimeInSec

	MPDUs []*Frame
}

// SA returns the station that originated the MPDU.
func (f *Frame) SA() int {
	if f.FromDS {
		return f.OrigSrc
	}

	return f.Src
}

// DA returns the station the MPDU is finally meant for.
func (f *Frame) DA() int {
	if f.ToDS {
		return f.FinalDst
	}

	return f.Dst
}

// Size returns the number of bytes the frame occupies on the air.
func (f *Frame) Size() int {
	switch f.Kind {
	case FrameRTS:
		return RTSBytes
	case FrameCTS:
		return CTSBytes
	case FrameAck:
		return AckBytes
	}

	if len(f.MPDUs) == 0 {
		return f.PayloadSize + MPDUHeaderBytes
	}

	size := 0
	for _, m := range f.MPDUs {
		size += m.Size()
	}

	return size
}

func (f *Frame) String() string {
	if f.Kind == FrameData && len(f.MPDUs) > 0 {
		return fmt.Sprintf("%s %d->%d (%d MPDUs, %d B)",
			f.Kind, f.Src, f.Dst, len(f.MPDUs), f.Size())
	}

	return fmt.Sprintf("%s %d->%d (%d B)", f.Kind, f.Src, f.Dst, f.Size())
}

// An Aggregate is the group of queued MPDUs that one channel access sends to
// one destination.
type Aggregate struct {
	Dst   int
	MPDUs []*Frame
}

// Size returns the on-air size of the aggregate.
func (a *Aggregate) Size() int {
	size := 0
	for _, m := range a.MPDUs {
		size += m.Size()
	}

	return size
}

// capSize returns the size counted against MaxAggregateSize.
func capSize(f *Frame) int {
	return f.PayloadSize + AggregateOverhead
}

// buildAggregate takes the head of the queue and as many of the following
// frames to the same destination as the limits allow. It returns the
// aggregate and the frames left in the queue, in their original order. The
// head frame is always taken.
func buildAggregate(
	queue []*Frame,
	maxMPDUs int,
	maxSize int,
) (*Aggregate, []*Frame) {
	if len(queue) == 0 {
		return nil, queue
	}

	head := queue[0]
	agg := &Aggregate{Dst: head.Dst, MPDUs: []*Frame{head}}
	used := capSize(head)
	rest := make([]*Frame, 0, len(queue)-1)
	closed := false

	for _, f := range queue[1:] {
		if f.Dst != head.Dst || closed {
			rest = append(rest, f)
			continue
		}

		if len(agg.MPDUs) >= maxMPDUs ||
			(maxSize > 0 && used+capSize(f) > maxSize) {
			closed = true
			rest = append(rest, f)
			continue
		}

		agg.MPDUs = append(agg.MPDUs, f)
		used += capSize(f)
	}

	return agg, rest
}

// aggregateFull tells whether the queue already holds enough frames to the
// head's destination to fill an aggregate.
func aggregateFull(queue []*Frame, maxMPDUs int, maxSize int) bool {
	if len(queue) == 0 {
		return false
	}

	agg, rest := buildAggregate(queue, maxMPDUs, maxSize)
	if len(agg.MPDUs) >= maxMPDUs {
		return true
	}

	for _, f := range rest {
		if f.Dst == agg.Dst {
			return true
		}
	}

	return false
}
