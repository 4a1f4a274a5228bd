package broadphase

import "fmt"

// BB is an axis aligned bounding box with integer edges.
type BB struct {
	L, B, R, T int
}

func NewBB(l, b, r, t int) BB {
	return BB{L: l, B: b, R: r, T: t}
}

func (bb BB) String() string {
	return fmt.Sprintf("{l=%d,b=%d,r=%d,t=%d}", bb.L, bb.B, bb.R, bb.T)
}

// Valid reports whether the box has a positive width and height.
func (bb BB) Valid() bool {
	return bb.L < bb.R && bb.B < bb.T
}

func (bb BB) Width() int {
	return bb.R - bb.L
}

func (bb BB) Height() int {
	return bb.T - bb.B
}

// Overlaps is strict: boxes that only share an edge do not overlap.
func (a BB) Overlaps(b BB) bool {
	return a.L < b.R && a.R > b.L && a.B < b.T && a.T > b.B
}

func (bb BB) Contains(other BB) bool {
	return bb.L <= other.L && bb.R >= other.R && bb.B <= other.B && bb.T >= other.T
}

// ContainsPoint uses half-open edges, so neighbouring cells never share a point.
func (bb BB) ContainsPoint(x, y int) bool {
	return bb.L <= x && x < bb.R && bb.B <= y && y < bb.T
}

func (bb BB) Expand(d int) BB {
	return BB{bb.L - d, bb.B - d, bb.R + d, bb.T + d}
}

func (bb BB) Offset(x, y int) BB {
	return BB{bb.L + x, bb.B + y, bb.R + x, bb.T + y}
}

// Resolution holds the distances that box B has to travel in each direction
// to stop intersecting box A. Left and Bottom are zero or negative.
type Resolution struct {
	Left, Right, Bottom, Top int
}

func (r Resolution) String() string {
	return fmt.Sprintf("{l=%d,r=%d,b=%d,t=%d}", r.Left, r.Right, r.Bottom, r.Top)
}

// Resolve computes how b can be moved out of a. The second return value is
// false unless the boxes overlap by a positive amount along both axes.
func Resolve(a, b BB) (Resolution, bool) {
	if !a.Overlaps(b) {
		return Resolution{}, false
	}
	return Resolution{
		Left:   a.L - b.R,
		Right:  a.R - b.L,
		Bottom: a.B - b.T,
		Top:    a.T - b.B,
	}, true
}
