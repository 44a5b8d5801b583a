package mac

import (
	"log"
	"strconv"

	"github.com/sarchlab/hiddenstations/propagation"
	"github.com/sarchlab/hiddenstations/sim"
)

// A Transmission is a frame on the air during [Start, End).
type Transmission struct {
	ID    string
	Frame *Frame
	Start sim.VTimeInSec
	End   sim.VTimeInSec

	overlaps []*Transmission
}

// Overlaps returns the transmissions that were on the air at the same time.
func (t *Transmission) Overlaps() []*Transmission {
	return t.overlaps
}

type txEndEvent struct {
	sim.EventBase
	tx *Transmission
}

// Medium is the shared channel. It knows every MAC and the visibility graph,
// and decides which station decodes which transmission.
type Medium struct {
	*sim.ComponentBase

	engine sim.Engine
	vis    *propagation.Visibility
	macs   []*MAC
	active []*Transmission
	nextTx uint64
}

// NewMedium creates a medium over the given visibility graph.
func NewMedium(
	name string,
	engine sim.Engine,
	vis *propagation.Visibility,
) *Medium {
	m := &Medium{
		ComponentBase: sim.NewComponentBase(name),
		engine:        engine,
		vis:           vis,
		macs:          make([]*MAC, vis.NumStations()),
	}

	return m
}

// Visibility returns the visibility graph the medium uses.
func (m *Medium) Visibility() *propagation.Visibility {
	return m.vis
}

// attach connects a MAC to its station slot.
func (m *Medium) attach(mac *MAC) {
	if mac.index < 0 || mac.index >= len(m.macs) {
		log.Panicf("station %d is not part of the medium", mac.index)
	}

	if m.macs[mac.index] != nil {
		log.Panicf("station %d is attached twice", mac.index)
	}

	m.macs[mac.index] = mac
}

// Busy tells whether station s senses energy on the channel, its own
// transmissions included.
func (m *Medium) Busy(s int) bool {
	now := m.engine.Now()

	for _, tx := range m.active {
		if tx.End <= now {
			continue
		}

		src := tx.Frame.Src
		if src == s || m.vis.InRange(src, s) {
			return true
		}
	}

	return false
}

// Transmit puts a frame on the air for the given duration starting now.
func (m *Medium) Transmit(
	f *Frame,
	duration sim.VTimeInSec,
) *Transmission {
	now := m.engine.Now()

	m.nextTx++
	tx := &Transmission{
		ID:    strconv.FormatUint(m.nextTx, 10),
		Frame: f,
		Start: now,
		End:   now + duration,
	}

	for _, other := range m.active {
		if other.End <= now {
			continue
		}

		other.overlaps = append(other.overlaps, tx)
		tx.overlaps = append(tx.overlaps, other)
	}

	m.active = append(m.active, tx)

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    now,
		Pos:    HookPosTxStart,
		Item:   tx,
	})

	m.macs[f.Src].onMediumBusy(now)
	for _, l := range m.vis.Neighbors(f.Src) {
		if mac := m.macs[l]; mac != nil {
			mac.onMediumBusy(now)
		}
	}

	m.engine.Schedule(txEndEvent{
		EventBase: sim.MakeEventBase(tx.End, m),
		tx:        tx,
	})

	return tx
}

// Decodable tells whether listener l can decode the transmission.
func (m *Medium) Decodable(tx *Transmission, l int) bool {
	src := tx.Frame.Src
	if l == src || !m.vis.InRange(src, l) {
		return false
	}

	for _, other := range tx.overlaps {
		o := other.Frame.Src
		if o == l || m.vis.InRange(o, l) {
			return false
		}
	}

	return true
}

// Handle ends transmissions.
func (m *Medium) Handle(e sim.Event) error {
	switch e := e.(type) {
	case txEndEvent:
		m.endTransmission(e.tx)
	default:
		log.Panicf("cannot handle event of type %T", e)
	}

	return nil
}

func (m *Medium) endTransmission(tx *Transmission) {
	now := m.engine.Now()
	m.removeActive(tx)

	src := tx.Frame.Src
	neighbors := m.vis.Neighbors(src)
	detail := TxEndDetail{}

	m.macs[src].onTransmitted(tx)

	for _, l := range neighbors {
		mac := m.macs[l]
		if mac == nil {
			continue
		}

		if !m.Decodable(tx, l) {
			if l == tx.Frame.Dst {
				detail.Collided = true
			}

			continue
		}

		detail.Decoders = append(detail.Decoders, l)
		mac.receive(tx)
	}

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    now,
		Pos:    HookPosTxEnd,
		Item:   tx,
		Detail: detail,
	})

	m.macs[src].onMediumMaybeIdle(now)
	for _, l := range neighbors {
		if mac := m.macs[l]; mac != nil {
			mac.onMediumMaybeIdle(now)
		}
	}
}

func (m *Medium) removeActive(tx *Transmission) {
	for i, t := range m.active {
		if t == tx {
			m.active = append(m.active[:i], m.active[i+1:]...)
			return
		}
	}

	log.Panicf("transmission %s is not on the air", tx.ID)
}
