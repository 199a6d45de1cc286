// Package outline turns a pressure-tagged centerline into the closed polygon
// that approximates pen ink. The same function feeds the raster canvas and the
// PDF export, so a stroke has one shape regardless of the target.
package outline

import (
	"math"

	"canvas-backend/internal/model"
)

const (
	// rateOfPressureChange bounds how fast simulated pressure follows speed.
	rateOfPressureChange = 0.275
	// fixedPi avoids a zero-length final segment when rotating a full half turn.
	fixedPi = math.Pi + 0.0001
	// capSteps is the number of segments in a round start cap or sharp corner.
	capSteps = 13
	// endCapSteps is the number of segments in the round end cap.
	endCapSteps = 29
)

// Easing maps a 0..1 input onto a 0..1 output.
type Easing func(t float64) float64

func linear(t float64) float64      { return t }
func easeOutQuad(t float64) float64 { return t * (2 - t) }
func easeOutCubic(t float64) float64 {
	t--
	return t*t*t + 1
}

// Options are the brush parameters of the outline.
type Options struct {
	Size             float64
	Thinning         float64
	Smoothing        float64
	Streamline       float64
	SimulatePressure bool
	// Last marks the input as a finished stroke; the final point is then
	// used as-is instead of being streamlined.
	Last bool

	TaperStart float64
	TaperEnd   float64
	CapStart   bool
	CapEnd     bool

	Easing Easing
}

// DefaultOptions returns the brush used by the canvas for a stroke of the
// given width.
func DefaultOptions(size float64) Options {
	return Options{
		Size:             size,
		Thinning:         0.5,
		Smoothing:        0.5,
		Streamline:       0.5,
		SimulatePressure: true,
		CapStart:         true,
		CapEnd:           true,
	}
}

// StrokePoint is an input point after streamlining.
type StrokePoint struct {
	Point         Vec
	Pressure      float64
	Vector        Vec
	Distance      float64
	RunningLength float64
}

// Outline returns the closed polygon for points. Fewer than two input points,
// or fewer than two resulting outline points, yields nil: nothing to draw.
func Outline(points []model.Point, opts Options) []Vec {
	if len(points) < model.MinStrokePoints {
		return nil
	}
	poly := OutlinePoints(StrokePoints(points, opts), opts)
	if len(poly) < 2 {
		return nil
	}
	return poly
}

// StrokePoints streamlines the raw input and annotates every surviving point
// with its direction and running length.
func StrokePoints(points []model.Point, opts Options) []StrokePoint {
	if len(points) == 0 {
		return nil
	}

	t := 0.15 + (1-opts.Streamline)*0.85
	pts := append([]model.Point(nil), points...)

	// Two points are not enough to streamline; interpolate a few between them.
	if len(pts) == 2 {
		last := pts[1]
		pts = pts[:1]
		for i := 1; i < 5; i++ {
			f := float64(i) / 4
			pts = append(pts, model.Point{
				X:        pts[0].X + (last.X-pts[0].X)*f,
				Y:        pts[0].Y + (last.Y-pts[0].Y)*f,
				Pressure: pts[0].Pressure + (last.Pressure-pts[0].Pressure)*f,
			})
		}
	}
	if len(pts) == 1 {
		pts = append(pts, model.Point{X: pts[0].X + 1, Y: pts[0].Y + 1, Pressure: pts[0].Pressure})
	}

	out := []StrokePoint{{
		Point:    Vec{pts[0].X, pts[0].Y},
		Pressure: pressureOr(pts[0].Pressure, 0.25),
		Vector:   Vec{1, 1},
	}}

	reachedMinLength := false
	runningLength := 0.0
	prev := out[0]
	last := len(pts) - 1

	for i := 1; i <= last; i++ {
		raw := Vec{pts[i].X, pts[i].Y}
		point := raw
		if !(opts.Last && i == last) {
			point = prev.Point.lerp(raw, t)
		}
		if prev.Point.equal(point) {
			continue
		}

		distance := point.dist(prev.Point)
		runningLength += distance

		if i < last && !reachedMinLength {
			if runningLength < opts.Size {
				continue
			}
			reachedMinLength = true
		}

		prev = StrokePoint{
			Point:         point,
			Pressure:      pressureOr(pts[i].Pressure, model.DefaultPressure),
			Vector:        prev.Point.sub(point).unit(),
			Distance:      distance,
			RunningLength: runningLength,
		}
		out = append(out, prev)
	}

	if len(out) > 1 {
		out[0].Vector = out[1].Vector
	} else {
		out[0].Vector = Vec{}
	}
	return out
}

// OutlinePoints builds the left and right rails around the stroke points and
// joins them with caps into a single polygon.
func OutlinePoints(points []StrokePoint, opts Options) []Vec {
	if len(points) == 0 || opts.Size <= 0 {
		return nil
	}

	easing := opts.Easing
	if easing == nil {
		easing = linear
	}

	size := opts.Size
	lastIdx := len(points) - 1
	totalLength := points[lastIdx].RunningLength
	minDistance := math.Pow(size*opts.Smoothing, 2)

	var left, right []Vec

	// Seed the simulated pressure with the first few points so the stroke
	// does not start with a blob.
	prevPressure := points[0].Pressure
	for i := 0; i < len(points) && i < 10; i++ {
		p := points[i].Pressure
		if opts.SimulatePressure {
			p = simulatePressure(prevPressure, points[i].Distance, size)
		}
		prevPressure = (prevPressure + p) / 2
	}

	radius := strokeRadius(size, opts.Thinning, points[lastIdx].Pressure, easing)
	firstRadius := math.NaN()
	prevVector := points[0].Vector
	pl, pr := points[0].Point, points[0].Point
	tl, tr := pl, pr
	prevSharp := false

	for i, sp := range points {
		pressure := sp.Pressure
		point, vector := sp.Point, sp.Vector

		// Skip the last few points; they tend to produce a hook.
		if i < lastIdx && totalLength-sp.RunningLength < 3 {
			continue
		}

		if opts.Thinning != 0 {
			if opts.SimulatePressure {
				pressure = simulatePressure(prevPressure, sp.Distance, size)
			}
			radius = strokeRadius(size, opts.Thinning, pressure, easing)
		} else {
			radius = size / 2
		}
		if math.IsNaN(firstRadius) {
			firstRadius = radius
		}

		ts, te := 1.0, 1.0
		if sp.RunningLength < opts.TaperStart {
			ts = easeOutQuad(sp.RunningLength / opts.TaperStart)
		}
		if totalLength-sp.RunningLength < opts.TaperEnd {
			te = easeOutCubic((totalLength - sp.RunningLength) / opts.TaperEnd)
		}
		radius = math.Max(0.01, radius*math.Min(ts, te))

		nextVector := vector
		nextDot := 1.0
		if i < lastIdx {
			nextVector = points[i+1].Vector
			nextDot = vector.dot(nextVector)
		}
		prevDot := vector.dot(prevVector)

		sharp := prevDot < 0 && !prevSharp
		nextSharp := nextDot < 0

		if sharp || nextSharp {
			// Draw a half circle around the corner.
			offset := prevVector.per().mul(radius)
			for s := 0; s <= capSteps; s++ {
				step := float64(s) / capSteps
				tl = point.sub(offset).rotateAround(point, fixedPi*step)
				left = append(left, tl)
				tr = point.add(offset).rotateAround(point, -fixedPi*step)
				right = append(right, tr)
			}
			pl, pr = tl, tr
			if nextSharp {
				prevSharp = true
			}
			continue
		}
		prevSharp = false

		if i == lastIdx {
			offset := vector.per().mul(radius)
			left = append(left, point.sub(offset))
			right = append(right, point.add(offset))
			continue
		}

		offset := nextVector.lerp(vector, nextDot).per().mul(radius)

		tl = point.sub(offset)
		if i <= 1 || pl.dist2(tl) > minDistance {
			left = append(left, tl)
			pl = tl
		}
		tr = point.add(offset)
		if i <= 1 || pr.dist2(tr) > minDistance {
			right = append(right, tr)
			pr = tr
		}

		prevPressure = pressure
		prevVector = vector
	}

	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	if math.IsNaN(firstRadius) {
		firstRadius = radius
	}

	first := points[0].Point
	last := points[lastIdx].Point
	if len(points) == 1 {
		last = first.add(Vec{1, 1})
	}

	if len(points) == 1 {
		if (opts.TaperStart == 0 && opts.TaperEnd == 0) || opts.Last {
			start := first.project(first.sub(last).per().unit(), -firstRadius)
			var dot []Vec
			for s := 1; s <= capSteps; s++ {
				dot = append(dot, start.rotateAround(first, fixedPi*2*float64(s)/capSteps))
			}
			return dot
		}
	}

	var startCap []Vec
	switch {
	case opts.TaperStart > 0 || (opts.TaperEnd > 0 && len(points) == 1):
		// Tapered starts need no cap.
	case opts.CapStart:
		for s := 0; s <= capSteps; s++ {
			startCap = append(startCap, right[0].rotateAround(first, fixedPi*float64(s)/capSteps))
		}
	default:
		cornersVector := left[0].sub(right[0])
		offsetA := cornersVector.mul(0.5)
		offsetB := cornersVector.mul(0.51)
		startCap = append(startCap,
			first.sub(offsetA),
			first.sub(offsetB),
			first.add(offsetB),
			first.add(offsetA),
		)
	}

	var endCap []Vec
	direction := points[lastIdx].Vector.neg().per()
	switch {
	case opts.TaperEnd > 0 || (opts.TaperStart > 0 && len(points) == 1):
		endCap = append(endCap, last)
	case opts.CapEnd:
		start := last.project(direction, radius)
		for s := 1; s < endCapSteps; s++ {
			endCap = append(endCap, start.rotateAround(last, fixedPi*3*float64(s)/endCapSteps))
		}
	default:
		endCap = append(endCap,
			last.add(direction.mul(radius)),
			last.add(direction.mul(radius*0.99)),
			last.sub(direction.mul(radius*0.99)),
			last.sub(direction.mul(radius)),
		)
	}

	poly := make([]Vec, 0, len(left)+len(endCap)+len(right)+len(startCap))
	poly = append(poly, left...)
	poly = append(poly, endCap...)
	for i := len(right) - 1; i >= 0; i-- {
		poly = append(poly, right[i])
	}
	poly = append(poly, startCap...)
	return poly
}

// strokeRadius is the half width of the stroke at the given pressure.
func strokeRadius(size, thinning, pressure float64, easing Easing) float64 {
	return size * easing(0.5-thinning*(0.5-pressure))
}

// simulatePressure derives pressure from segment length: fast strokes thin out.
func simulatePressure(prev, distance, size float64) float64 {
	sp := math.Min(1, distance/size)
	rp := math.Min(1, 1-sp)
	return math.Min(1, prev+(rp-prev)*(sp*rateOfPressureChange))
}

func pressureOr(p, fallback float64) float64 {
	if p >= 0 {
		return p
	}
	return fallback
}

// ForStroke is the outline of a stored stroke with the canvas brush. Every
// render target goes through it so a stroke has the same shape everywhere.
func ForStroke(s model.Stroke) []Vec {
	return Outline(s.Points, DefaultOptions(s.Size))
}
