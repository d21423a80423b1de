package detection

import (
	"image"
	"math"

	"github.com/sirupsen/logrus"
)

// ballard is the R-table detector of D. H. Ballard. Depending on its method
// the accumulator is (y, x), (scale, y, x) or (angle, y, x).
type ballard struct {
	method Method
	p      TemplateParams
	opts   options

	rtable RTable
	acc    Accumulator
}

func newBallard(method Method, p TemplateParams, o options) *ballard {
	return &ballard{method: method, p: p, opts: o}
}

func (b *ballard) setTemplate(list EdgePointList, _ image.Point, center image.Point) {
	b.rtable.Build(list, center, b.p.Levels, b.p.MaxSize, b.opts.workers)
	b.opts.log.WithField("entries", b.rtable.Len()).Debug("r-table built")
}

func (b *ballard) release() {
	b.rtable.release()
	b.acc.release()
}

func (b *ballard) detect(list EdgePointList, size image.Point, out *outputBuffer) {
	idp := 1 / b.p.Dp
	rows := int(math.Ceil(float64(size.Y) * idp))
	cols := int(math.Ceil(float64(size.X) * idp))

	// vote adds one vote at the cell of center c within plane k.
	var vote func(k int, cx, cy float64)
	if b.method == MethodPosition {
		vote = func(_ int, cx, cy float64) {
			x, y := int(math.Round(cx*idp)), int(math.Round(cy*idp))
			if x >= 0 && x < cols && y >= 0 && y < rows {
				b.acc.Inc(b.acc.index2(y, x))
			}
		}
	} else {
		vote = func(k int, cx, cy float64) {
			x, y := int(math.Round(cx*idp)), int(math.Round(cy*idp))
			if x >= 0 && x < cols && y >= 0 && y < rows {
				b.acc.Inc(b.acc.index3(k, y, x))
			}
		}
	}

	switch b.method {
	case MethodPosition:
		b.acc.Reset(rows, cols)
		parallelFor(list.Len(), b.opts.workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				p := list.Points[i]
				px, py := float64(p.X), float64(p.Y)
				for _, r := range b.rtable.Bucket(b.rtable.BucketOf(float64(list.Theta[i]))) {
					vote(0, px-float64(r.X), py-float64(r.Y))
				}
			}
		})

	case MethodPositionScale:
		scaleRange := binCount(b.p.MaxScale-b.p.MinScale, b.p.ScaleStep)
		b.acc.Reset(scaleRange, rows, cols)
		parallelFor(list.Len(), b.opts.workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				p := list.Points[i]
				px, py := float64(p.X), float64(p.Y)
				bucket := b.rtable.Bucket(b.rtable.BucketOf(float64(list.Theta[i])))
				for s := 0; s < scaleRange; s++ {
					scale := b.p.MinScale + float64(s)*b.p.ScaleStep
					for _, r := range bucket {
						vote(s, px-scale*float64(r.X), py-scale*float64(r.Y))
					}
				}
			}
		})

	case MethodPositionRotation:
		angleRange := binCount(b.p.MaxAngle-b.p.MinAngle, b.p.AngleStep)
		b.acc.Reset(angleRange, rows, cols)
		sins, coss := make([]float64, angleRange), make([]float64, angleRange)
		rads := make([]float64, angleRange)
		for a := range rads {
			rads[a] = (b.p.MinAngle + float64(a)*b.p.AngleStep) * math.Pi / 180
			sins[a], coss[a] = math.Sincos(rads[a])
		}
		parallelFor(list.Len(), b.opts.workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				p := list.Points[i]
				px, py := float64(p.X), float64(p.Y)
				for a := 0; a < angleRange; a++ {
					theta := wrapAngle(float64(list.Theta[i]) - rads[a])
					for _, r := range b.rtable.Bucket(b.rtable.BucketOf(theta)) {
						rx := float64(r.X)*coss[a] - float64(r.Y)*sins[a]
						ry := float64(r.X)*sins[a] + float64(r.Y)*coss[a]
						vote(a, px-rx, py-ry)
					}
				}
			}
		})
	}

	peaks := findPeakCells(&b.acc, PeakParams{
		Threshold: int32(b.p.VotesThreshold),
		MaxSize:   out.capacity - len(out.pos),
		DoSort:    true,
	}, b.opts.workers)

	for _, pk := range peaks {
		c := b.acc.Coords(pk.cell)
		pos := Position{Scale: 1}
		votes := PositionVotes{Position: pk.votes}
		switch b.method {
		case MethodPosition:
			pos.X, pos.Y = float32(float64(c[1])*b.p.Dp), float32(float64(c[0])*b.p.Dp)
		case MethodPositionScale:
			pos.X, pos.Y = float32(float64(c[2])*b.p.Dp), float32(float64(c[1])*b.p.Dp)
			pos.Scale = float32(b.p.MinScale + float64(c[0])*b.p.ScaleStep)
			votes.Scale = pk.votes
		case MethodPositionRotation:
			pos.X, pos.Y = float32(float64(c[2])*b.p.Dp), float32(float64(c[1])*b.p.Dp)
			pos.Angle = float32(b.p.MinAngle + float64(c[0])*b.p.AngleStep)
			votes.Angle = pk.votes
		}
		out.add(pos, votes)
	}

	b.opts.log.WithFields(logrus.Fields{
		"dims":  b.acc.Dims(),
		"peaks": len(peaks),
	}).Debug("ballard accumulator searched")
}

// wrapAngle maps an angle in radians into [0, 2π).
func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
