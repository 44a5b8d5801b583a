package propagation

import (
	"errors"
	"fmt"
)

// ErrNotHidden is returned when a pair of stations expected to be hidden from
// each other is not.
var ErrNotHidden = errors.New("stations are not hidden")

// A Pair is two station indices, with A < B.
type Pair struct {
	A, B int
}

// Visibility is the symmetric in-range relation over a fixed set of station
// positions. It is computed once and never changes.
type Visibility struct {
	n         int
	inRange   []bool
	neighbors [][]int
}

// NewVisibility evaluates the model for every pair of positions.
func NewVisibility(model RangeModel, positions []Vector) *Visibility {
	n := len(positions)
	v := &Visibility{
		n:         n,
		inRange:   make([]bool, n*n),
		neighbors: make([][]int, n),
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !model.InRange(positions[i], positions[j]) {
				continue
			}

			v.inRange[i*n+j] = true
			v.inRange[j*n+i] = true
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if v.inRange[i*n+j] {
				v.neighbors[i] = append(v.neighbors[i], j)
			}
		}
	}

	return v
}

// NumStations returns the number of positions the graph was built from.
func (v *Visibility) NumStations() int {
	return v.n
}

// InRange reports whether a and b can sense each other. A station is never
// in range of itself.
func (v *Visibility) InRange(a, b int) bool {
	return v.inRange[a*v.n+b]
}

// Neighbors returns the stations in range of a, in ascending order. The
// returned slice must not be modified.
func (v *Visibility) Neighbors(a int) []int {
	return v.neighbors[a]
}

// Hidden reports whether a and b are hidden from each other with respect to
// ap: both reach ap but not each other.
func (v *Visibility) Hidden(a, b, ap int) bool {
	if a == b || a == ap || b == ap {
		return false
	}

	return !v.InRange(a, b) && v.InRange(a, ap) && v.InRange(b, ap)
}

// HiddenPairs lists every pair of stations hidden from each other with
// respect to ap.
func (v *Visibility) HiddenPairs(ap int) []Pair {
	var pairs []Pair

	for a := 0; a < v.n; a++ {
		for b := a + 1; b < v.n; b++ {
			if v.Hidden(a, b, ap) {
				pairs = append(pairs, Pair{A: a, B: b})
			}
		}
	}

	return pairs
}

// VerifyHidden checks that every listed pair is hidden with respect to ap.
func (v *Visibility) VerifyHidden(pairs []Pair, ap int) error {
	for _, p := range pairs {
		if p.A < 0 || p.B < 0 || p.A >= v.n || p.B >= v.n {
			return fmt.Errorf("pair (%d, %d): station out of range", p.A, p.B)
		}

		switch {
		case p.A == p.B:
			return fmt.Errorf("%w: %d is paired with itself", ErrNotHidden, p.A)
		case p.A == ap || p.B == ap:
			return fmt.Errorf("%w: pair (%d, %d) includes access point %d",
				ErrNotHidden, p.A, p.B, ap)
		case v.InRange(p.A, p.B):
			return fmt.Errorf("%w: %d and %d sense each other",
				ErrNotHidden, p.A, p.B)
		case !v.InRange(p.A, ap):
			return fmt.Errorf("%w: %d cannot reach access point %d",
				ErrNotHidden, p.A, ap)
		case !v.InRange(p.B, ap):
			return fmt.Errorf("%w: %d cannot reach access point %d",
				ErrNotHidden, p.B, ap)
		}
	}

	return nil
}
