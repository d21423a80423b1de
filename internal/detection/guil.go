package detection

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// featureTable stores point-pair features bucketed by the angle between the
// pair's connecting vector and the first point's gradient. That angle does
// not change under rotation or scale of the shape.
type featureTable struct {
	levels  int
	maxSize int
	withR   bool

	p1, p2 scratch[[2]float32]
	theta1 scratch[float32]
	d12    scratch[float32]
	r1, r2 scratch[[2]float32]
	sizes  scratch[int32]
}

// build pairs every point with every other point whose gradient differs by
// xi within eps. Pairs farther apart than maxDist are skipped. With withR the
// displacements of both points from center are stored as well.
func (f *featureTable) build(list EdgePointList, center image.Point, maxDist, xi, eps float64, levels, maxSize, workers int) {
	f.levels, f.maxSize = levels, maxSize
	total := (levels + 1) * maxSize
	p1s, p2s := f.p1.ensure(total), f.p2.ensure(total)
	theta1s, d12s := f.theta1.ensure(total), f.d12.ensure(total)
	var r1s, r2s [][2]float32
	if f.withR {
		r1s, r2s = f.r1.ensure(total), f.r2.ensure(total)
	}
	sizes := f.sizes.zeroed(levels + 1)

	scale := float64(levels) / (2 * math.Pi)
	cx, cy := float32(center.X), float32(center.Y)
	parallelFor(list.Len(), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a := list.Points[i]
			th1 := float64(list.Theta[i])
			p1 := [2]float32{float32(a.X), float32(a.Y)}
			for j, b := range list.Points {
				if i == j || !angleEq(th1-float64(list.Theta[j]), xi, eps) {
					continue
				}
				p2 := [2]float32{float32(b.X), float32(b.Y)}
				dx, dy := float64(p1[0]-p2[0]), float64(p1[1]-p2[1])
				d12 := math.Hypot(dx, dy)
				if d12 > maxDist {
					continue
				}
				alpha12 := wrapAngle(math.Atan2(dy, dx) - th1)
				n := int(math.Round(alpha12 * scale))
				slot := int(atomic.AddInt32(&sizes[n], 1)) - 1
				if slot >= maxSize {
					continue
				}
				k := n*maxSize + slot
				p1s[k], p2s[k] = p1, p2
				theta1s[k], d12s[k] = float32(th1), float32(d12)
				if f.withR {
					r1s[k] = [2]float32{p1[0] - cx, p1[1] - cy}
					r2s[k] = [2]float32{p2[0] - cx, p2[1] - cy}
				}
			}
		}
	})
	for n, s := range sizes {
		if s > int32(maxSize) {
			sizes[n] = int32(maxSize)
		}
	}
}

// bucket returns the index range of level n.
func (f *featureTable) bucket(n int) (start, end int) {
	start = n * f.maxSize
	return start, start + int(f.sizes.data[n])
}

func (f *featureTable) len() int {
	n := 0
	for _, s := range f.sizes.data {
		n += int(s)
	}
	return n
}

func (f *featureTable) release() {
	f.p1.release()
	f.p2.release()
	f.theta1.release()
	f.d12.release()
	f.r1.release()
	f.r2.release()
	f.sizes.release()
}

// guil is the detector of Guil et al.: orientation, then scale, then
// position, each searched in its own histogram over matched feature pairs.
type guil struct {
	p    TemplateParams
	opts options

	templ   featureTable
	img     featureTable
	maxDist float64
	acc     Accumulator
}

func newGuil(p TemplateParams, o options) *guil {
	return &guil{
		p:     p,
		opts:  o,
		templ: featureTable{withR: true},
	}
}

func (g *guil) xi() float64      { return g.p.Xi * math.Pi / 180 }
func (g *guil) epsilon() float64 { return g.p.AngleEpsilon * math.Pi / 180 }

func (g *guil) setTemplate(list EdgePointList, size, center image.Point) {
	g.maxDist = math.Hypot(float64(size.X), float64(size.Y)) * g.p.MaxScale
	g.templ.build(list, center, g.maxDist, g.xi(), g.epsilon(), g.p.Levels, g.p.MaxSize, g.opts.workers)
	g.opts.log.WithField("features", g.templ.len()).Debug("template features built")
}

func (g *guil) release() {
	g.templ.release()
	g.img.release()
	g.acc.release()
}

type binVote struct {
	value float64
	votes int32
}

func (g *guil) detect(list EdgePointList, size image.Point, out *outputBuffer) {
	g.img.build(list, image.Point{}, g.maxDist, g.xi(), g.epsilon(), g.p.Levels, g.p.MaxSize, g.opts.workers)

	angles := g.orientations()
	g.opts.log.WithFields(logrus.Fields{
		"features": g.img.len(),
		"angles":   len(angles),
	}).Debug("orientation histogram searched")

	for _, a := range angles {
		scales := g.scales(a.value)
		for _, s := range scales {
			if out.full() {
				return
			}
			g.positions(a, s, size, out)
		}
	}
}

// pairs calls fn for every (template, image) feature pair sharing a level.
// Levels are processed in parallel.
func (g *guil) pairs(fn func(t, i int)) {
	parallelFor(g.p.Levels+1, g.opts.workers, func(lo, hi int) {
		for n := lo; n < hi; n++ {
			ts, te := g.templ.bucket(n)
			is, ie := g.img.bucket(n)
			for t := ts; t < te; t++ {
				for i := is; i < ie; i++ {
					fn(t, i)
				}
			}
		}
	})
}

// orientations returns the rotation angles in degrees whose histogram bin
// reaches AngleThresh.
func (g *guil) orientations() []binVote {
	bins := binCount(g.p.MaxAngle-g.p.MinAngle, g.p.AngleStep)
	hist := make([]int32, bins+1)
	it1, ii1 := g.templ.theta1.data, g.img.theta1.data
	g.pairs(func(t, i int) {
		angle := wrapAngle(float64(ii1[i])-float64(it1[t])) * 180 / math.Pi
		if angle < g.p.MinAngle || angle > g.p.MaxAngle {
			return
		}
		k := int(math.Round((angle - g.p.MinAngle) / g.p.AngleStep))
		atomic.AddInt32(&hist[k], 1)
	})

	var out []binVote
	for k := 0; k < bins; k++ {
		if hist[k] >= int32(g.p.AngleThresh) {
			out = append(out, binVote{value: g.p.MinAngle + float64(k)*g.p.AngleStep, votes: hist[k]})
		}
	}
	return out
}

// scales returns the scales whose histogram bin reaches ScaleThresh among the
// pairs consistent with a rotation of angle degrees.
func (g *guil) scales(angle float64) []binVote {
	bins := binCount(g.p.MaxScale-g.p.MinScale, g.p.ScaleStep)
	hist := make([]int32, bins+1)
	rad := angle * math.Pi / 180
	eps := g.epsilon()
	it1, ii1 := g.templ.theta1.data, g.img.theta1.data
	td, id := g.templ.d12.data, g.img.d12.data
	g.pairs(func(t, i int) {
		if td[t] == 0 || !angleEq(float64(ii1[i]), float64(it1[t])+rad, eps) {
			return
		}
		scale := float64(id[i]) / float64(td[t])
		if scale < g.p.MinScale || scale > g.p.MaxScale {
			return
		}
		k := int(math.Round((scale - g.p.MinScale) / g.p.ScaleStep))
		atomic.AddInt32(&hist[k], 1)
	})

	var out []binVote
	for k := 0; k < bins; k++ {
		if hist[k] >= int32(g.p.ScaleThresh) {
			out = append(out, binVote{value: g.p.MinScale + float64(k)*g.p.ScaleStep, votes: hist[k]})
		}
	}
	return out
}

// positions votes the template center for one (angle, scale) hypothesis and
// appends the accepted peaks to out.
func (g *guil) positions(angle, scale binVote, size image.Point, out *outputBuffer) {
	idp := 1 / g.p.Dp
	rows := int(math.Ceil(float64(size.Y) * idp))
	cols := int(math.Ceil(float64(size.X) * idp))
	g.acc.Reset(rows, cols)

	rad := angle.value * math.Pi / 180
	sin, cos := math.Sincos(rad)
	eps := g.epsilon()
	it1, ii1 := g.templ.theta1.data, g.img.theta1.data
	tr1, tr2 := g.templ.r1.data, g.templ.r2.data
	ip1, ip2 := g.img.p1.data, g.img.p2.data
	transform := func(r [2]float32) (float64, float64) {
		x, y := scale.value*float64(r[0]), scale.value*float64(r[1])
		return x*cos - y*sin, x*sin + y*cos
	}
	g.pairs(func(t, i int) {
		if !angleEq(float64(ii1[i]), float64(it1[t])+rad, eps) {
			return
		}
		r1x, r1y := transform(tr1[t])
		r2x, r2y := transform(tr2[t])
		c1x, c1y := (float64(ip1[i][0])-r1x)*idp, (float64(ip1[i][1])-r1y)*idp
		c2x, c2y := (float64(ip2[i][0])-r2x)*idp, (float64(ip2[i][1])-r2y)*idp
		if math.Abs(c1x-c2x) > 1 || math.Abs(c1y-c2y) > 1 {
			return
		}
		x, y := int(math.Round(c1x)), int(math.Round(c1y))
		if x >= 0 && x < cols && y >= 0 && y < rows {
			g.acc.Inc(g.acc.index2(y, x))
		}
	})

	peaks := findPeakCells(&g.acc, PeakParams{
		Threshold: int32(g.p.PosThresh),
		MaxSize:   out.capacity - len(out.pos),
		DoSort:    true,
	}, g.opts.workers)
	for _, pk := range peaks {
		c := g.acc.Coords(pk.cell)
		out.add(Position{
			X:     float32(float64(c[1]) * g.p.Dp),
			Y:     float32(float64(c[0]) * g.p.Dp),
			Scale: float32(scale.value),
			Angle: float32(angle.value),
		}, PositionVotes{
			Position: pk.votes,
			Scale:    scale.votes,
			Angle:    angle.votes,
		})
	}
}

// angleEq reports whether angles a and b in radians are within eps of each
// other on the circle.
func angleEq(a, b, eps float64) bool {
	d := wrapAngle(a - b)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d <= eps
}
