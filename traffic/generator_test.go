package traffic

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/sim"
)

var _ = Describe("Generator", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *sim.SerialEngine
		sender   *MockSender
		flow     Flow
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		sender = NewMockSender(mockCtrl)
		flow = Flow{
			ID:          "STA1->AP:9",
			Source:      1,
			Destination: 0,
			Port:        9,
			PayloadSize: 1024,
			Interval:    0.1,
			MaxPackets:  3,
			Start:       1,
			Stop:        11,
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should stop after the packet limit", func() {
		var times []sim.VTimeInSec
		sender.EXPECT().Enqueue(gomock.Any()).
			DoAndReturn(func(f *mac.Frame) bool {
				times = append(times, engine.Now())
				Expect(f.Dst).To(Equal(0))
				Expect(f.Port).To(Equal(9))
				Expect(f.FlowID).To(Equal(flow.ID))
				Expect(f.PayloadSize).To(Equal(1024))
				return true
			}).Times(3)

		g := NewGenerator("Gen", engine, flow, sender, sim.NewSequentialIDGenerator())
		g.Start()

		Expect(engine.Run()).To(Succeed())
		Expect(g.Sent()).To(Equal(3))
		Expect(g.Accepted()).To(Equal(3))
		Expect(times).To(HaveLen(3))
		Expect(times[0]).To(BeNumerically("~", 1.0, 1e-12))
		Expect(times[1]).To(BeNumerically("~", 1.1, 1e-12))
		Expect(times[2]).To(BeNumerically("~", 1.2, 1e-12))
	})

	It("should send until the stop time when unbounded", func() {
		flow.MaxPackets = 0
		flow.Start = 0
		flow.Interval = 1
		flow.Stop = 3

		sender.EXPECT().Enqueue(gomock.Any()).Return(true).Times(3)

		g := NewGenerator("Gen", engine, flow, sender, sim.NewSequentialIDGenerator())
		g.Start()

		Expect(engine.Run()).To(Succeed())
		Expect(g.Sent()).To(Equal(3))
	})

	It("should count frames the MAC refuses as sent but not accepted", func() {
		flow.MaxPackets = 2
		sender.EXPECT().Enqueue(gomock.Any()).Return(false).Times(2)

		g := NewGenerator("Gen", engine, flow, sender, sim.NewSequentialIDGenerator())

		var refused int
		g.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosPacketSent && !ctx.Detail.(bool) {
				refused++
			}
		}))
		g.Start()

		Expect(engine.Run()).To(Succeed())
		Expect(g.Sent()).To(Equal(2))
		Expect(g.Accepted()).To(Equal(0))
		Expect(refused).To(Equal(2))
	})

	It("should panic when started twice", func() {
		g := NewGenerator("Gen", engine, flow, sender, sim.NewSequentialIDGenerator())
		g.Start()

		Expect(func() { g.Start() }).To(Panic())
	})
})

var _ = Describe("Flow", func() {
	valid := Flow{
		ID:          "f",
		Source:      1,
		Destination: 0,
		Port:        9,
		PayloadSize: 1472,
		Interval:    sim.Microseconds(20),
		Start:       1,
		Stop:        11,
	}

	It("should accept a valid flow", func() {
		Expect(valid.Validate()).To(Succeed())
	})

	DescribeTable("invalid flows",
		func(mutate func(f *Flow)) {
			f := valid
			mutate(&f)
			Expect(f.Validate()).To(MatchError(ErrInvalidFlow))
		},
		Entry("no ID", func(f *Flow) { f.ID = "" }),
		Entry("zero payload", func(f *Flow) { f.PayloadSize = 0 }),
		Entry("negative payload", func(f *Flow) { f.PayloadSize = -1 }),
		Entry("zero interval", func(f *Flow) { f.Interval = 0 }),
		Entry("negative packet limit", func(f *Flow) { f.MaxPackets = -1 }),
		Entry("stop before start", func(f *Flow) { f.Stop = 0.5 }),
		Entry("stop at start", func(f *Flow) { f.Stop = f.Start }),
		Entry("loopback", func(f *Flow) { f.Destination = f.Source }),
	)

	It("should parse modes", func() {
		Expect(ParseMode("echo")).To(Equal(Echo))
		Expect(ParseMode("one-way")).To(Equal(OneWay))
		_, err := ParseMode("tcp")
		Expect(err).To(MatchError(ErrInvalidFlow))
	})
})
