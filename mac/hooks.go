package mac

import (
	"log"

	"github.com/sarchlab/hiddenstations/sim"
)

// HookPosStateChange marks a MAC moving to another state. The item is the
// MAC and the detail a StateChange.
var HookPosStateChange = &sim.HookPos{Name: "MAC State Change"}

// HookPosTxStart marks a transmission going on the air. The item is the
// Transmission.
var HookPosTxStart = &sim.HookPos{Name: "Tx Start"}

// HookPosTxEnd marks a transmission leaving the air. The item is the
// Transmission and the detail a TxEndDetail.
var HookPosTxEnd = &sim.HookPos{Name: "Tx End"}

// HookPosFrameReceived marks a data MPDU handed to the upper layer. The item
// is the MPDU.
var HookPosFrameReceived = &sim.HookPos{Name: "Frame Received"}

// HookPosFrameDropped marks an MPDU that will never be delivered by the
// sender. The item is the MPDU and the detail a DropReason.
var HookPosFrameDropped = &sim.HookPos{Name: "Frame Dropped"}

// StateChange is the detail of HookPosStateChange.
type StateChange struct {
	From, To State
}

// TxEndDetail is the detail of HookPosTxEnd.
type TxEndDetail struct {
	// Decoders lists the stations that decoded the frame, in ascending
	// order.
	Decoders []int

	// Collided is set when the destination is in range of the sender but
	// could not decode the frame.
	Collided bool
}

// DropReason tells why a MAC gave up on an MPDU.
type DropReason string

// The reasons of a drop.
const (
	DropQueueFull  DropReason = "queue full"
	DropRetryLimit DropReason = "retry limit"
	DropAckTimeout DropReason = "ack timeout"
)

// StateLogger is a hook that writes MAC state changes and drops into a
// logger.
type StateLogger struct {
	logger *log.Logger
}

// NewStateLogger creates a StateLogger that writes into the logger.
func NewStateLogger(logger *log.Logger) *StateLogger {
	return &StateLogger{logger: logger}
}

// Func writes the hook information.
func (l *StateLogger) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosStateChange:
		m := ctx.Item.(*MAC)
		c := ctx.Detail.(StateChange)
		l.logger.Printf("%.10f, %s, %s -> %s", ctx.Now, m.Name(), c.From, c.To)
	case HookPosFrameDropped:
		f := ctx.Item.(*Frame)
		l.logger.Printf("%.10f, %s, drop %s, %s",
			ctx.Now, ctx.Domain.(sim.Named).Name(), f.ID, ctx.Detail.(DropReason))
	case HookPosTxEnd:
		tx := ctx.Item.(*Transmission)
		d := ctx.Detail.(TxEndDetail)
		if d.Collided {
			l.logger.Printf("%.10f, collision, %s", ctx.Now, tx.Frame)
		}
	}
}
