package traffic

import (
	"log"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/sim"
)

// HookPosPacketSent marks a frame handed to the MAC. The item is the frame
// and the detail tells whether the MAC accepted it.
var HookPosPacketSent = &sim.HookPos{Name: "Packet Sent"}

type sendEvent struct {
	sim.EventBase
}

// A Generator sends the frames of one flow at a fixed interval.
type Generator struct {
	*sim.ComponentBase

	engine sim.Engine
	flow   Flow
	sender Sender
	idGen  sim.IDGenerator

	sent     int
	accepted int
	started  bool
}

// NewGenerator creates a generator for the flow.
func NewGenerator(
	name string,
	engine sim.Engine,
	flow Flow,
	sender Sender,
	idGen sim.IDGenerator,
) *Generator {
	return &Generator{
		ComponentBase: sim.NewComponentBase(name),
		engine:        engine,
		flow:          flow,
		sender:        sender,
		idGen:         idGen,
	}
}

// Flow returns the flow the generator sends.
func (g *Generator) Flow() Flow {
	return g.flow
}

// Sent returns the number of frames generated.
func (g *Generator) Sent() int {
	return g.sent
}

// Accepted returns the number of frames the MAC queued.
func (g *Generator) Accepted() int {
	return g.accepted
}

// Start schedules the first send at the flow's start time.
func (g *Generator) Start() {
	if g.started {
		log.Panicf("generator %s started twice", g.Name())
	}

	g.started = true
	g.engine.Schedule(sendEvent{
		EventBase: sim.MakeEventBase(g.flow.Start, g),
	})
}

// Handle sends one frame and schedules the next.
func (g *Generator) Handle(e sim.Event) error {
	if _, ok := e.(sendEvent); !ok {
		log.Panicf("cannot handle event of type %T", e)
	}

	now := e.Time()
	if !g.canSend(now) {
		return nil
	}

	g.send(now)

	next := now + g.flow.Interval
	if g.canSend(next) {
		g.engine.Schedule(sendEvent{
			EventBase: sim.MakeEventBase(next, g),
		})
	}

	return nil
}

func (g *Generator) canSend(t sim.VTimeInSec) bool {
	if t >= g.flow.Stop {
		return false
	}

	return g.flow.MaxPackets == 0 || g.sent < g.flow.MaxPackets
}

func (g *Generator) send(now sim.VTimeInSec) {
	f := &mac.Frame{
		ID:          g.idGen.Generate(),
		Kind:        mac.FrameData,
		Src:         g.flow.Source,
		Dst:         g.flow.Destination,
		Port:        g.flow.Port,
		SrcPort:     g.flow.ReplyPort,
		FlowID:      g.flow.ID,
		PayloadSize: g.flow.PayloadSize,
		CreatedAt:   now,
	}

	g.sent++
	ok := g.sender.Enqueue(f)
	if ok {
		g.accepted++
	}

	g.InvokeHook(sim.HookCtx{
		Domain: g,
		Now:    now,
		Pos:    HookPosPacketSent,
		Item:   f,
		Detail: ok,
	})
}
