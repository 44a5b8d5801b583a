package propagation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hiddenstations/propagation"
)

var _ = Describe("RangeModel", func() {
	model := propagation.RangeModel{MaxRange: 5}

	It("should include the boundary", func() {
		Expect(model.InRange(
			propagation.Vector{X: 0, Y: 0},
			propagation.Vector{X: 5, Y: 0},
		)).To(BeTrue())
	})

	It("should exclude anything beyond the range", func() {
		Expect(model.InRange(
			propagation.Vector{X: 0, Y: 0},
			propagation.Vector{X: 5, Y: 0.01},
		)).To(BeFalse())
	})

	It("should measure in three dimensions", func() {
		Expect(propagation.Distance(
			propagation.Vector{X: 1, Y: 2, Z: 3},
			propagation.Vector{X: 4, Y: 6, Z: 3},
		)).To(BeNumerically("~", 5.0, 1e-12))
	})
})

var _ = Describe("Visibility", func() {
	var vis *propagation.Visibility

	// AP in the centre, four clients on the compass points 5 units away.
	BeforeEach(func() {
		vis = propagation.NewVisibility(
			propagation.RangeModel{MaxRange: 5},
			[]propagation.Vector{
				{X: 5, Y: 5},
				{X: 5, Y: 10},
				{X: 0, Y: 5},
				{X: 5, Y: 0},
				{X: 10, Y: 5},
			},
		)
	})

	It("should be symmetric", func() {
		for a := 0; a < vis.NumStations(); a++ {
			for b := 0; b < vis.NumStations(); b++ {
				Expect(vis.InRange(a, b)).To(Equal(vis.InRange(b, a)))
			}
		}
	})

	It("should not put a station in range of itself", func() {
		Expect(vis.InRange(2, 2)).To(BeFalse())
	})

	It("should list neighbors in ascending order", func() {
		Expect(vis.Neighbors(0)).To(Equal([]int{1, 2, 3, 4}))
		Expect(vis.Neighbors(1)).To(Equal([]int{0}))
	})

	It("should find every client pair hidden", func() {
		pairs := vis.HiddenPairs(0)

		Expect(pairs).To(HaveLen(6))
		for _, p := range pairs {
			Expect(vis.InRange(p.A, p.B)).To(BeFalse())
			Expect(vis.InRange(p.A, 0)).To(BeTrue())
			Expect(vis.InRange(p.B, 0)).To(BeTrue())
		}
		Expect(vis.VerifyHidden(pairs, 0)).To(Succeed())
	})

	It("should reject pairs that can sense each other", func() {
		vis = propagation.NewVisibility(
			propagation.RangeModel{MaxRange: 5},
			[]propagation.Vector{
				{X: 0, Y: 0},
				{X: 3, Y: 0},
				{X: -3, Y: 0},
			},
		)

		err := vis.VerifyHidden([]propagation.Pair{{A: 1, B: 2}}, 0)
		Expect(err).To(MatchError(propagation.ErrNotHidden))
	})

	It("should reject pairs that cannot reach the access point", func() {
		vis = propagation.NewVisibility(
			propagation.RangeModel{MaxRange: 5},
			[]propagation.Vector{
				{X: 0, Y: 0},
				{X: 4, Y: 0},
				{X: -20, Y: 0},
			},
		)

		Expect(vis.Hidden(1, 2, 0)).To(BeFalse())
		err := vis.VerifyHidden([]propagation.Pair{{A: 1, B: 2}}, 0)
		Expect(err).To(MatchError(propagation.ErrNotHidden))
	})

	It("should reject a station paired with itself", func() {
		err := vis.VerifyHidden([]propagation.Pair{{A: 1, B: 1}}, 0)
		Expect(err).To(MatchError(propagation.ErrNotHidden))
	})

	It("should reject pairs that include the access point", func() {
		err := vis.VerifyHidden([]propagation.Pair{{A: 0, B: 1}}, 0)
		Expect(err).To(MatchError(propagation.ErrNotHidden))
	})
})
