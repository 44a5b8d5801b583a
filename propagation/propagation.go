// Package propagation decides which stations can hear each other. The model
// is an ideal disc: a signal reaches every station within MaxRange and none
// beyond it.
package propagation

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Vector is a position in space, in distance units.
type Vector struct {
	X, Y, Z float64
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vector) float64 {
	return floats.Distance(
		[]float64{a.X, a.Y, a.Z},
		[]float64{b.X, b.Y, b.Z},
		2,
	)
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// RangeModel is a propagation model with a hard cut-off distance.
type RangeModel struct {
	MaxRange float64
}

// InRange returns true if a signal sent at a reaches b.
func (m RangeModel) InRange(a, b Vector) bool {
	return Distance(a, b) <= m.MaxRange
}
