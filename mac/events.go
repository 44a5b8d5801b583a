package mac

import "github.com/sarchlab/hiddenstations/sim"

// accessEvent fires when the backoff counter reaches zero.
type accessEvent struct {
	sim.EventBase
}

// aggregationEvent closes the aggregation window.
type aggregationEvent struct {
	sim.EventBase
}

// timeoutEvent fires when the awaited CTS or ACK has not arrived. It is
// secondary so that a response ending at the same instant is seen first.
type timeoutEvent struct {
	sim.EventBase
	awaiting FrameKind
}

// sendEvent puts a frame on the air one SIFS after the frame it answers.
type sendEvent struct {
	sim.EventBase
	frame *Frame
}

// navEndEvent fires when the NAV reservation expires.
type navEndEvent struct {
	sim.EventBase
}
