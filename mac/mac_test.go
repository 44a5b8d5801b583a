package mac

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hiddenstations/propagation"
	"github.com/sarchlab/hiddenstations/sim"
)

var _ = Describe("MAC", func() {
	var (
		mockCtrl *gomock.Controller
		cfg      Config
		apUpper  *MockUpper
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		cfg = DefaultConfig()
		apUpper = NewMockUpper(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func() *testbed {
		tb := newTestbed(cfg, hiddenLayout)
		tb.macs[0].SetUpper(apUpper)

		return tb
	}

	It("should send at once after the medium was idle for DIFS", func() {
		tb := build()
		apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1)

		at(tb.engine, 0.001, func() {
			Expect(tb.macs[1].Enqueue(dataTo(0, 1000))).To(BeTrue())
		})

		Expect(tb.engine.Run()).To(Succeed())
		Expect(tb.kinds()).To(Equal([]FrameKind{FrameData, FrameAck}))
		Expect(tb.starts[0].Start).To(BeNumerically("~", 0.001, 1e-12))
		Expect(tb.starts[1].Start - tb.starts[0].End).
			To(BeNumerically("~", cfg.SIFS, 1e-12))
		Expect(tb.macs[1].State()).To(Equal(StateIdle))
		Expect(tb.macs[1].CW()).To(Equal(cfg.CWMin))
	})

	It("should double the window when an unprotected frame is not acked", func() {
		tb := build()

		at(tb.engine, 0.001, func() {
			tb.macs[1].Enqueue(dataTo(0, 1000))
			tb.macs[2].Enqueue(dataTo(0, 1000))
		})

		Expect(tb.engine.Run()).To(Succeed())
		Expect(tb.kinds()).To(Equal([]FrameKind{FrameData, FrameData}))
		Expect(tb.drops).To(Equal([]DropReason{DropAckTimeout, DropAckTimeout}))
		Expect(tb.startsOf(1, FrameData)).To(HaveLen(1))
		Expect(tb.macs[1].CW()).To(Equal(2*cfg.CWMin + 1))
		Expect(tb.macs[2].CW()).To(Equal(2*cfg.CWMin + 1))
		Expect(tb.macs[1].State()).To(Equal(StateIdle))
	})

	It("should back off when the medium was not idle for DIFS", func() {
		tb := build()
		apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1)

		tb.macs[1].Enqueue(dataTo(0, 1000))
		Expect(tb.macs[1].State()).To(Equal(StateBackoff))

		Expect(tb.engine.Run()).To(Succeed())

		slots := float64((tb.starts[0].Start - cfg.DIFS()) / cfg.SlotTime)
		Expect(slots).To(BeNumerically(">=", -1e-9))
		Expect(slots).To(BeNumerically("<=", float64(cfg.CWMin)+1e-9))
		Expect(math.Abs(slots - math.Round(slots))).To(BeNumerically("<", 1e-6))
	})

	DescribeTable("RTS threshold",
		func(threshold int, expected []FrameKind) {
			cfg.RTSThreshold = threshold
			tb := build()
			apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1)

			at(tb.engine, 0.001, func() {
				tb.macs[1].Enqueue(dataTo(0, 1000))
			})

			Expect(tb.engine.Run()).To(Succeed())
			Expect(tb.kinds()).To(Equal(expected))
		},
		Entry("just below the frame size", 1063,
			[]FrameKind{FrameRTS, FrameCTS, FrameData, FrameAck}),
		Entry("at the frame size", 1064, []FrameKind{FrameData, FrameAck}),
		Entry("just above the frame size", 1065,
			[]FrameKind{FrameData, FrameAck}),
	)

	It("should space an RTS/CTS exchange by SIFS", func() {
		cfg.RTSThreshold = 0
		tb := build()
		apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1)

		at(tb.engine, 0.001, func() {
			tb.macs[1].Enqueue(dataTo(0, 1000))
		})

		Expect(tb.engine.Run()).To(Succeed())
		Expect(tb.starts).To(HaveLen(4))
		for i := 1; i < 4; i++ {
			Expect(tb.starts[i].Start - tb.starts[i-1].End).
				To(BeNumerically("~", cfg.SIFS, 1e-12))
		}

		Expect(tb.macs[1].State()).To(Equal(StateIdle))
		Expect(tb.macs[1].CW()).To(Equal(cfg.CWMin))
	})

	It("should keep a hidden station quiet until the NAV expires", func() {
		cfg.RTSThreshold = 0
		tb := build()
		apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(2)

		start := sim.VTimeInSec(0.001)
		ctsAir := cfg.ControlAirtime(CTSBytes)
		ctsEnd := start + cfg.ControlAirtime(RTSBytes) + cfg.SIFS + ctsAir
		ackEnd := ctsEnd + cfg.SIFS + cfg.DataAirtime(1064) +
			cfg.SIFS + cfg.ControlAirtime(AckBytes)

		at(tb.engine, start, func() {
			tb.macs[1].Enqueue(dataTo(0, 1000))
		})
		at(tb.engine, ctsEnd+sim.Microseconds(1), func() {
			Expect(tb.macs[2].NAV()).To(BeNumerically("~", ackEnd, 1e-12))
			tb.macs[2].Enqueue(dataTo(0, 1000))
		})

		Expect(tb.engine.Run()).To(Succeed())

		hiddenRTS := tb.startsOf(2, FrameRTS)
		Expect(hiddenRTS).NotTo(BeEmpty())
		Expect(hiddenRTS[0].Start).
			To(BeNumerically(">=", ackEnd+cfg.DIFS()-1e-12))
	})

	It("should retry the RTS with a doubled window and then drop", func() {
		cfg.RTSThreshold = 0
		tb := newTestbed(cfg, append(hiddenLayout, propagation.Vector{X: 100, Y: 100}))
		sender := tb.macs[1]

		var windows []int
		sender.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos != HookPosStateChange {
				return
			}

			c := ctx.Detail.(StateChange)
			if c.From == StateCTSWait && c.To == StateBackoff {
				windows = append(windows, sender.CW())
			}
		}))

		sender.Enqueue(dataTo(3, 1000))

		Expect(tb.engine.Run()).To(Succeed())
		Expect(tb.startsOf(1, FrameRTS)).To(HaveLen(cfg.RetryLimit))
		Expect(windows).To(Equal([]int{31, 63, 127, 255, 511, 1023}))
		Expect(tb.drops).To(Equal([]DropReason{DropRetryLimit}))
		Expect(sender.CW()).To(Equal(cfg.CWMin))
		Expect(sender.State()).To(Equal(StateIdle))
	})

	It("should count the aggregate lost when the ACK does not come", func() {
		tb := build()
		m := tb.macs[1]

		m.current = &Aggregate{
			Dst:   0,
			MPDUs: []*Frame{dataTo(0, 100), dataTo(0, 100)},
		}
		m.setState(StateAckWait)

		m.handleTimeout(0, timeoutEvent{awaiting: FrameAck})

		Expect(m.CW()).To(Equal(31))
		Expect(tb.drops).To(Equal([]DropReason{DropAckTimeout, DropAckTimeout}))
		Expect(m.State()).To(Equal(StateIdle))
	})

	It("should drop frames beyond the queue capacity", func() {
		cfg.QueueCapacity = 2
		tb := build()

		Expect(tb.macs[1].Enqueue(dataTo(0, 100))).To(BeTrue())
		Expect(tb.macs[1].Enqueue(dataTo(0, 100))).To(BeTrue())
		Expect(tb.macs[1].Enqueue(dataTo(0, 100))).To(BeFalse())
		Expect(tb.drops).To(Equal([]DropReason{DropQueueFull}))
	})

	Context("with aggregation", func() {
		BeforeEach(func() {
			cfg.MaxMPDUs = 4
			cfg.MaxAggregateSize = MaxAggregateSizeFor(4, 100)
			cfg.AggregationWindow = 0.001
		})

		It("should split the queue into full aggregates", func() {
			tb := build()
			apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(6)

			tb.macs[1].Enqueue(dataTo(0, 100))
			Expect(tb.macs[1].State()).To(Equal(StateAggregating))
			for i := 0; i < 5; i++ {
				tb.macs[1].Enqueue(dataTo(0, 100))
			}

			Expect(tb.engine.Run()).To(Succeed())

			data := tb.startsOf(1, FrameData)
			Expect(data).To(HaveLen(2))
			Expect(data[0].Frame.MPDUs).To(HaveLen(4))
			Expect(data[1].Frame.MPDUs).To(HaveLen(2))
		})

		It("should send what it has when the window closes", func() {
			tb := build()
			apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(2)

			tb.macs[1].Enqueue(dataTo(0, 100))
			tb.macs[1].Enqueue(dataTo(0, 100))

			Expect(tb.engine.Run()).To(Succeed())
			data := tb.startsOf(1, FrameData)
			Expect(data).To(HaveLen(1))
			Expect(data[0].Start).To(BeNumerically("~", 0.001, 1e-12))
			Expect(data[0].Frame.MPDUs).To(HaveLen(2))
		})
	})

	Context("backoff countdown", func() {
		It("should freeze on busy and resume with the remaining slots", func() {
			tb := build()
			m := tb.macs[1]
			slot := cfg.SlotTime

			m.setState(StateBackoff)
			m.backoffSlots = 10
			m.startCountdown(0)

			busyAt := cfg.DIFS() + 3.5*slot
			idleAt := busyAt + sim.Microseconds(100)

			at(tb.engine, busyAt, func() {
				m.onMediumBusy(busyAt)
				Expect(m.backoffSlots).To(Equal(7))
				Expect(m.accessEvt.Valid()).To(BeFalse())
			})
			at(tb.engine, idleAt, func() {
				m.onMediumMaybeIdle(idleAt)
				Expect(m.accessAt).
					To(BeNumerically("~", idleAt+cfg.DIFS()+7*slot, 1e-12))
			})

			Expect(tb.engine.Run()).To(Succeed())
			Expect(m.State()).To(Equal(StateIdle))
		})

		It("should still fire when the medium turns busy in the last slot", func() {
			tb := build()
			m := tb.macs[1]
			end := cfg.DIFS() + 2*cfg.SlotTime

			at(tb.engine, end, func() {
				m.onMediumBusy(end)
				Expect(m.accessEvt.Valid()).To(BeTrue())
			})

			m.setState(StateBackoff)
			m.backoffSlots = 2
			m.startCountdown(0)

			Expect(tb.engine.Run()).To(Succeed())
		})
	})

	It("should repeat itself under the same seeds", func() {
		run := func() []sim.VTimeInSec {
			tb := newTestbed(cfg, hiddenLayout)
			for i := 0; i < 20; i++ {
				tb.macs[1].Enqueue(dataTo(0, 500))
				tb.macs[2].Enqueue(dataTo(0, 500))
			}

			Expect(tb.engine.Run()).To(Succeed())

			var times []sim.VTimeInSec
			for _, tx := range tb.starts {
				times = append(times, tx.Start)
			}

			return times
		}

		Expect(run()).To(Equal(run()))
	})
})
