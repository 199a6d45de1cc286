package outline

import "math"

// Vec is a 2D point or direction in canvas space.
type Vec struct {
	X, Y float64
}

func (a Vec) add(b Vec) Vec             { return Vec{a.X + b.X, a.Y + b.Y} }
func (a Vec) sub(b Vec) Vec             { return Vec{a.X - b.X, a.Y - b.Y} }
func (a Vec) mul(n float64) Vec         { return Vec{a.X * n, a.Y * n} }
func (a Vec) neg() Vec                  { return Vec{-a.X, -a.Y} }
func (a Vec) dot(b Vec) float64         { return a.X*b.X + a.Y*b.Y }
func (a Vec) len() float64              { return math.Hypot(a.X, a.Y) }
func (a Vec) dist(b Vec) float64        { return a.sub(b).len() }
func (a Vec) equal(b Vec) bool          { return a.X == b.X && a.Y == b.Y }
func (a Vec) lerp(b Vec, t float64) Vec { return a.add(b.sub(a).mul(t)) }

// per is the perpendicular, rotated a quarter turn clockwise in screen space.
func (a Vec) per() Vec { return Vec{a.Y, -a.X} }

func (a Vec) dist2(b Vec) float64 {
	d := a.sub(b)
	return d.X*d.X + d.Y*d.Y
}

// unit returns the normalized vector; the zero vector stays zero.
func (a Vec) unit() Vec {
	l := a.len()
	if l == 0 {
		return Vec{}
	}
	return a.mul(1 / l)
}

// project moves a along direction b by distance c.
func (a Vec) project(b Vec, c float64) Vec { return a.add(b.mul(c)) }

// rotateAround rotates a around center c by r radians.
func (a Vec) rotateAround(c Vec, r float64) Vec {
	s, co := math.Sin(r), math.Cos(r)
	px, py := a.X-c.X, a.Y-c.Y
	return Vec{px*co - py*s + c.X, px*s + py*co + c.Y}
}

// Mid returns the midpoint of a and b.
func Mid(a, b Vec) Vec { return Vec{(a.X + b.X) / 2, (a.Y + b.Y) / 2} }
