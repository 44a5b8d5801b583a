package mac

import (
	"log"
	"math"
	"math/rand"

	"github.com/sarchlab/hiddenstations/sim"
)

// Upper receives the MPDUs a MAC delivers.
type Upper interface {
	Deliver(now sim.VTimeInSec, f *Frame)
}

// MAC is the medium access control of one station. It queues frames,
// contends for the medium with binary exponential backoff and optionally
// protects its aggregates with RTS/CTS.
type MAC struct {
	*sim.ComponentBase

	index  int
	engine sim.Engine
	medium *Medium
	cfg    Config
	rng    *rand.Rand
	idGen  sim.IDGenerator
	upper  Upper

	state     State
	queue     []*Frame
	current  *Aggregate
	cw       int
	attempts int
	seq      uint16

	backoffSlots   int
	countdownStart sim.VTimeInSec
	accessAt       sim.VTimeInSec
	accessEvt      sim.EventHandle
	aggEvt         sim.EventHandle
	timeoutEvt     sim.EventHandle
	navEvt         sim.EventHandle

	navUntil   sim.VTimeInSec
	sensedBusy bool
	idleSince  sim.VTimeInSec
	onAir      bool
}

// Index returns the station index of the MAC.
func (m *MAC) Index() int {
	return m.index
}

// State returns the current contention state.
func (m *MAC) State() State {
	return m.state
}

// CW returns the current contention window.
func (m *MAC) CW() int {
	return m.cw
}

// QueueLength returns the number of frames waiting to be aggregated.
func (m *MAC) QueueLength() int {
	return len(m.queue)
}

// NAV returns the time until which the medium is reserved by others.
func (m *MAC) NAV() sim.VTimeInSec {
	return m.navUntil
}

// Config returns the configuration of the MAC.
func (m *MAC) Config() Config {
	return m.cfg
}

// SetUpper sets the layer that receives the delivered MPDUs.
func (m *MAC) SetUpper(u Upper) {
	m.upper = u
}

// Enqueue hands a data frame to the MAC. It returns false if the queue is
// full and the frame is dropped.
func (m *MAC) Enqueue(f *Frame) bool {
	now := m.engine.Now()

	if f.Kind != FrameData {
		log.Panicf("cannot enqueue a %s frame", f.Kind)
	}

	if len(m.queue) >= m.cfg.QueueCapacity {
		m.drop(now, f, DropQueueFull)
		return false
	}

	f.Src = m.index
	m.seq++
	f.Seq = m.seq
	m.queue = append(m.queue, f)

	switch m.state {
	case StateIdle:
		if m.cfg.AggregationWindow > 0 && m.cfg.MaxMPDUs > 1 &&
			!m.aggregateFull() {
			m.setState(StateAggregating)
			m.aggEvt = m.engine.Schedule(aggregationEvent{
				EventBase: sim.MakeEventBase(now+m.cfg.AggregationWindow, m),
			})

			return true
		}

		m.access(now)
	case StateAggregating:
		if m.aggregateFull() {
			m.cancel(&m.aggEvt)
			m.access(now)
		}
	}

	return true
}

// Handle processes the events of the MAC.
func (m *MAC) Handle(e sim.Event) error {
	now := e.Time()

	switch e := e.(type) {
	case accessEvent:
		m.handleAccess(now)
	case aggregationEvent:
		m.aggEvt = sim.EventHandle{}
		if m.state == StateAggregating {
			m.access(now)
		}
	case timeoutEvent:
		m.handleTimeout(now, e)
	case sendEvent:
		m.handleSend(e)
	case navEndEvent:
		m.navEvt = sim.EventHandle{}
		m.onMediumMaybeIdle(now)
	default:
		log.Panicf("cannot handle event of type %T", e)
	}

	return nil
}

func (m *MAC) aggregateFull() bool {
	return aggregateFull(m.queue, m.cfg.MaxMPDUs, m.cfg.MaxAggregateSize)
}

func (m *MAC) busy(now sim.VTimeInSec) bool {
	return m.medium.Busy(m.index) || m.navUntil > now
}

func (m *MAC) cancel(h *sim.EventHandle) {
	if h.Valid() {
		m.engine.Cancel(*h)
	}

	*h = sim.EventHandle{}
}

// access sends at once if the medium has been idle for DIFS and backs off
// otherwise.
func (m *MAC) access(now sim.VTimeInSec) {
	if !m.sensedBusy && now-m.idleSince >= m.cfg.DIFS() {
		m.startExchange(now)
		return
	}

	m.enterBackoff(now)
}

func (m *MAC) enterBackoff(now sim.VTimeInSec) {
	m.backoffSlots = m.rng.Intn(m.cw + 1)
	m.setState(StateBackoff)

	if !m.sensedBusy {
		m.startCountdown(now)
	}
}

func (m *MAC) startCountdown(now sim.VTimeInSec) {
	m.cancel(&m.accessEvt)

	start := m.idleSince + m.cfg.DIFS()
	if start < now {
		start = now
	}

	m.countdownStart = start
	m.accessAt = start + sim.VTimeInSec(m.backoffSlots)*m.cfg.SlotTime
	m.accessEvt = m.engine.Schedule(accessEvent{
		EventBase: sim.MakeEventBase(m.accessAt, m),
	})
}

// freeze stops the countdown and keeps the slots that have not elapsed. A
// countdown that ends in the very slot the medium turns busy still fires.
func (m *MAC) freeze(now sim.VTimeInSec) {
	if !m.accessEvt.Valid() || m.accessAt <= now {
		return
	}

	m.cancel(&m.accessEvt)

	if now > m.countdownStart {
		elapsed := int(math.Floor(
			float64((now-m.countdownStart)/m.cfg.SlotTime) + 1e-9))
		m.backoffSlots -= elapsed
	}

	if m.backoffSlots < 0 {
		m.backoffSlots = 0
	}
}

func (m *MAC) onMediumBusy(now sim.VTimeInSec) {
	if m.sensedBusy {
		return
	}

	m.sensedBusy = true
	m.freeze(now)
}

func (m *MAC) onMediumMaybeIdle(now sim.VTimeInSec) {
	if !m.sensedBusy || m.busy(now) {
		return
	}

	m.sensedBusy = false
	m.idleSince = now

	if m.state == StateBackoff && !m.accessEvt.Valid() {
		m.startCountdown(now)
	}
}

func (m *MAC) setNAV(now, until sim.VTimeInSec) {
	if until <= m.navUntil || until <= now {
		return
	}

	m.navUntil = until
	m.cancel(&m.navEvt)
	m.navEvt = m.engine.Schedule(navEndEvent{
		EventBase: sim.MakeSecondaryEventBase(until, m),
	})

	m.onMediumBusy(now)
}

func (m *MAC) handleAccess(now sim.VTimeInSec) {
	m.accessEvt = sim.EventHandle{}

	if m.state != StateBackoff {
		log.Panicf("%s: backoff ended in state %s", m.Name(), m.state)
	}

	m.backoffSlots = 0
	m.startExchange(now)
}

func (m *MAC) startExchange(now sim.VTimeInSec) {
	m.cancel(&m.aggEvt)

	if m.current == nil {
		m.current, m.queue = buildAggregate(
			m.queue, m.cfg.MaxMPDUs, m.cfg.MaxAggregateSize)
		m.attempts = 0
	}

	if m.current == nil {
		m.setState(StateIdle)
		return
	}

	size := m.current.Size()

	if m.cfg.NeedsRTS(size) {
		m.setState(StateRTSWait)
		m.transmit(&Frame{
			ID:   m.idGen.Generate(),
			Kind: FrameRTS,
			Src:  m.index,
			Dst:  m.current.Dst,
			Duration: 3*m.cfg.SIFS +
				m.cfg.ControlAirtime(CTSBytes) +
				m.cfg.DataAirtime(size) +
				m.cfg.ControlAirtime(AckBytes),
		})

		return
	}

	m.setState(StateTransmitting)
	m.transmit(m.dataFrame(m.cfg.SIFS + m.cfg.ControlAirtime(AckBytes)))
}

func (m *MAC) dataFrame(duration sim.VTimeInSec) *Frame {
	return &Frame{
		ID:       m.idGen.Generate(),
		Kind:     FrameData,
		Src:      m.index,
		Dst:      m.current.Dst,
		Duration: duration,
		MPDUs:    m.current.MPDUs,
	}
}

func (m *MAC) airtime(f *Frame) sim.VTimeInSec {
	if f.Kind == FrameData {
		return m.cfg.DataAirtime(f.Size())
	}

	return m.cfg.ControlAirtime(f.Size())
}

func (m *MAC) transmit(f *Frame) {
	m.onAir = true
	m.medium.Transmit(f, m.airtime(f))
}

func (m *MAC) scheduleSend(at sim.VTimeInSec, f *Frame) {
	m.engine.Schedule(sendEvent{
		EventBase: sim.MakeEventBase(at, m),
		frame:     f,
	})
}

func (m *MAC) handleSend(e sendEvent) {
	if m.onAir {
		log.Printf("%s: cannot send %s while transmitting", m.Name(), e.frame)
		return
	}

	m.transmit(e.frame)
}

// onTransmitted is called by the medium when the MAC's own transmission
// ends.
func (m *MAC) onTransmitted(tx *Transmission) {
	now := tx.End
	m.onAir = false

	switch tx.Frame.Kind {
	case FrameRTS:
		m.setState(StateCTSWait)
		m.timeoutEvt = m.engine.Schedule(timeoutEvent{
			EventBase: sim.MakeSecondaryEventBase(now+m.cfg.CTSTimeout(), m),
			awaiting:  FrameCTS,
		})
	case FrameData:
		m.setState(StateAckWait)
		m.timeoutEvt = m.engine.Schedule(timeoutEvent{
			EventBase: sim.MakeSecondaryEventBase(now+m.cfg.AckTimeout(), m),
			awaiting:  FrameAck,
		})
	}
}

// receive is called by the medium for every frame the station decodes.
func (m *MAC) receive(tx *Transmission) {
	f := tx.Frame
	now := tx.End

	if f.Dst != m.index {
		m.setNAV(now, now+f.Duration)
		return
	}

	switch f.Kind {
	case FrameRTS:
		m.receiveRTS(now, f)
	case FrameCTS:
		m.receiveCTS(now, f)
	case FrameData:
		m.receiveData(now, f)
	case FrameAck:
		if m.state != StateAckWait || f.Src != m.current.Dst {
			return
		}

		m.cancel(&m.timeoutEvt)
		m.complete(now)
	}
}

func (m *MAC) receiveRTS(now sim.VTimeInSec, f *Frame) {
	if m.navUntil > now || m.onAir {
		return
	}

	ctsAir := m.cfg.ControlAirtime(CTSBytes)
	m.scheduleSend(now+m.cfg.SIFS, &Frame{
		ID:       m.idGen.Generate(),
		Kind:     FrameCTS,
		Src:      m.index,
		Dst:      f.Src,
		Duration: f.Duration - m.cfg.SIFS - ctsAir,
	})
}

func (m *MAC) receiveCTS(now sim.VTimeInSec, f *Frame) {
	if m.state != StateCTSWait || f.Src != m.current.Dst {
		return
	}

	m.cancel(&m.timeoutEvt)
	m.setState(StateTransmitting)

	dataAir := m.cfg.DataAirtime(m.current.Size())
	m.scheduleSend(now+m.cfg.SIFS,
		m.dataFrame(f.Duration-m.cfg.SIFS-dataAir))
}

func (m *MAC) receiveData(now sim.VTimeInSec, f *Frame) {
	for _, mpdu := range f.MPDUs {
		m.InvokeHook(sim.HookCtx{
			Domain: m,
			Now:    now,
			Pos:    HookPosFrameReceived,
			Item:   mpdu,
		})

		if m.upper != nil {
			m.upper.Deliver(now, mpdu)
		}
	}

	if f.Duration > 0 {
		m.scheduleSend(now+m.cfg.SIFS, &Frame{
			ID:   m.idGen.Generate(),
			Kind: FrameAck,
			Src:  m.index,
			Dst:  f.Src,
		})
	}
}

func (m *MAC) handleTimeout(now sim.VTimeInSec, e timeoutEvent) {
	m.timeoutEvt = sim.EventHandle{}

	switch e.awaiting {
	case FrameCTS:
		if m.state != StateCTSWait {
			return
		}

		m.attempts++
		m.doubleCW()

		if m.attempts >= m.cfg.RetryLimit {
			m.dropCurrent(now, DropRetryLimit)
			m.cw = m.cfg.CWMin
		}
	case FrameAck:
		if m.state != StateAckWait {
			return
		}

		m.doubleCW()
		m.dropCurrent(now, DropAckTimeout)
	}

	m.afterExchange(now)
}

func (m *MAC) doubleCW() {
	m.cw = 2*m.cw + 1
	if m.cw > m.cfg.CWMax {
		m.cw = m.cfg.CWMax
	}
}

func (m *MAC) complete(now sim.VTimeInSec) {
	m.cw = m.cfg.CWMin
	m.current = nil
	m.attempts = 0
	m.afterExchange(now)
}

// afterExchange draws a fresh backoff if anything is left to send.
func (m *MAC) afterExchange(now sim.VTimeInSec) {
	if m.current == nil && len(m.queue) == 0 {
		m.setState(StateIdle)
		return
	}

	m.enterBackoff(now)
}

func (m *MAC) dropCurrent(now sim.VTimeInSec, reason DropReason) {
	for _, f := range m.current.MPDUs {
		m.drop(now, f, reason)
	}

	m.current = nil
	m.attempts = 0
}

func (m *MAC) drop(now sim.VTimeInSec, f *Frame, reason DropReason) {
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    now,
		Pos:    HookPosFrameDropped,
		Item:   f,
		Detail: reason,
	})
}

func (m *MAC) setState(s State) {
	if s == m.state {
		return
	}

	from := m.state
	m.state = s

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    m.engine.Now(),
		Pos:    HookPosStateChange,
		Item:   m,
		Detail: StateChange{From: from, To: s},
	})
}
