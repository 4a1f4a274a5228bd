package broadphase

// Circle is a circle in body coordinates. Its world box is the bounding
// square of the circle.
type Circle struct {
	c point
	r int
}

func NewCircle(x, y, radius int) *Circle {
	return &Circle{
		c: point{x, y},
		r: radius,
	}
}

func (circle *Circle) CacheData(x, y int) BB {
	l := circle.c.x - circle.r + x
	b := circle.c.y - circle.r + y
	return BB{L: l, B: b, R: l + circle.r*2, T: b + circle.r*2}
}

func (circle *Circle) Radius() int {
	return circle.r
}

func (circle *Circle) Offset() (int, int) {
	return circle.c.x, circle.c.y
}
