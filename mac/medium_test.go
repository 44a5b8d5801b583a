package mac

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hiddenstations/sim"
)

var _ = Describe("Medium", func() {
	var (
		mockCtrl *gomock.Controller
		tb       *testbed
		apUpper  *MockUpper
		airtime  sim.VTimeInSec
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tb = newTestbed(DefaultConfig(), hiddenLayout)
		apUpper = NewMockUpper(mockCtrl)
		tb.macs[0].SetUpper(apUpper)
		airtime = sim.Microseconds(100)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should deliver a transmission without overlap", func() {
		apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(1)

		tb.medium.Transmit(onAirData(1, 0, 1000), airtime)

		Expect(tb.engine.Run()).To(Succeed())
		Expect(tb.ends).To(HaveLen(1))
		Expect(tb.ends[0].Decoders).To(Equal([]int{0}))
		Expect(tb.ends[0].Collided).To(BeFalse())
	})

	It("should lose overlapping transmissions of hidden stations", func() {
		tb.medium.Transmit(onAirData(1, 0, 1000), airtime)
		at(tb.engine, sim.Microseconds(50), func() {
			tb.medium.Transmit(onAirData(2, 0, 1000), airtime)
		})

		Expect(tb.engine.Run()).To(Succeed())
		Expect(tb.ends).To(HaveLen(2))
		for _, d := range tb.ends {
			Expect(d.Collided).To(BeTrue())
			Expect(d.Decoders).To(BeEmpty())
		}
	})

	It("should deliver back-to-back transmissions", func() {
		apUpper.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(2)

		tb.medium.Transmit(onAirData(1, 0, 1000), airtime)
		at(tb.engine, airtime, func() {
			tb.medium.Transmit(onAirData(2, 0, 1000), airtime)
		})

		Expect(tb.engine.Run()).To(Succeed())
		for _, d := range tb.ends {
			Expect(d.Collided).To(BeFalse())
		}
	})

	It("should only be sensed by stations in range", func() {
		tb.medium.Transmit(onAirData(1, 0, 1000), airtime)

		Expect(tb.medium.Busy(0)).To(BeTrue())
		Expect(tb.medium.Busy(1)).To(BeTrue())
		Expect(tb.medium.Busy(2)).To(BeFalse())
	})

	It("should record overlaps on both transmissions", func() {
		a := tb.medium.Transmit(onAirData(1, 0, 1000), airtime)
		b := tb.medium.Transmit(onAirData(2, 0, 1000), airtime)

		Expect(a.Overlaps()).To(ConsistOf(b))
		Expect(b.Overlaps()).To(ConsistOf(a))
		Expect(tb.medium.Decodable(a, 0)).To(BeFalse())
		Expect(tb.medium.Decodable(a, 2)).To(BeFalse())
	})
})
