package traffic

import (
	"fmt"
	"log"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/sim"
)

// A Sender accepts frames for transmission. *mac.MAC is a Sender.
type Sender interface {
	Enqueue(f *mac.Frame) bool
}

// A Counter records delivered frames. *metrics.Collector is a Counter.
type Counter interface {
	RecordDelivery(id string)
}

// A PortHandler consumes the frames arriving at one port.
type PortHandler interface {
	Receive(now sim.VTimeInSec, f *mac.Frame)
}

// A Host is the application side of a station. It demultiplexes the frames
// its MAC delivers by destination port. A client host sends everything that
// is not for the AP through the AP; the AP's host distributes such frames to
// their final station.
type Host struct {
	name     string
	index    int
	sender   Sender
	ap       int
	relayed  int
	handlers map[int]PortHandler
}

// NewHost creates a host on top of the given sender.
func NewHost(name string, index int, sender Sender) *Host {
	return &Host{
		name:     name,
		index:    index,
		sender:   sender,
		ap:       -1,
		handlers: make(map[int]PortHandler),
	}
}

// SetAccessPoint tells the host which station is the AP of its cell. The AP
// itself passes its own index and starts distributing.
func (h *Host) SetAccessPoint(ap int) {
	h.ap = ap
}

// Relayed returns the number of MPDUs the host distributed for others.
func (h *Host) Relayed() int {
	return h.relayed
}

// Enqueue hands a frame to the sender. Frames for another client leave a
// client host through the AP.
func (h *Host) Enqueue(f *mac.Frame) bool {
	if h.ap >= 0 && h.ap != h.index && f.Dst != h.ap {
		f.ToDS = true
		f.FinalDst = f.Dst
		f.Dst = h.ap
	}

	return h.sender.Enqueue(f)
}

// Name returns the name of the host.
func (h *Host) Name() string {
	return h.name
}

// Index returns the station index of the host.
func (h *Host) Index() int {
	return h.index
}

// Sender returns what the host transmits through.
func (h *Host) Sender() Sender {
	return h.sender
}

// Listen binds a handler to a port.
func (h *Host) Listen(port int, handler PortHandler) error {
	if _, found := h.handlers[port]; found {
		return fmt.Errorf("%w: %s: port %d is already bound",
			ErrInvalidFlow, h.name, port)
	}

	h.handlers[port] = handler

	return nil
}

// Deliver passes a frame to the handler of its port. Frames to unbound ports
// are discarded. The AP forwards frames meant for other stations.
func (h *Host) Deliver(now sim.VTimeInSec, f *mac.Frame) {
	if f.ToDS && f.FinalDst != h.index {
		h.distribute(f)
		return
	}

	handler, found := h.handlers[f.Port]
	if !found {
		log.Printf("%s: no listener on port %d, frame %s discarded",
			h.name, f.Port, f.ID)
		return
	}

	handler.Receive(now, f)
}

func (h *Host) distribute(f *mac.Frame) {
	if h.ap != h.index {
		log.Printf("%s: not an AP, frame %s for station %d discarded",
			h.name, f.ID, f.FinalDst)
		return
	}

	out := &mac.Frame{
		ID:          f.ID,
		Kind:        mac.FrameData,
		Dst:         f.FinalDst,
		Port:        f.Port,
		SrcPort:     f.SrcPort,
		FromDS:      true,
		OrigSrc:     f.Src,
		FlowID:      f.FlowID,
		PayloadSize: f.PayloadSize,
		CreatedAt:   f.CreatedAt,
	}

	if h.sender.Enqueue(out) {
		h.relayed++
	}
}
