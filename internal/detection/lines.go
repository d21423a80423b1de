package detection

import (
	"image"
	"math"

	"github.com/sirupsen/logrus"
)

// PolarLine is a line in normal form: x·cos(Theta) + y·sin(Theta) = Rho.
type PolarLine struct {
	Rho   float32 `json:"rho"`
	Theta float32 `json:"theta"`
}

// Clip intersects the line with the image rectangle [0, width-1] x [0, height-1].
// It returns false when the line misses the image.
func (l PolarLine) Clip(width, height int) (Segment, bool) {
	const eps = 1e-6
	c, s := math.Cos(float64(l.Theta)), math.Sin(float64(l.Theta))
	rho := float64(l.Rho)
	maxX, maxY := float64(width-1), float64(height-1)

	var pts [][2]float64
	add := func(x, y float64) {
		if x < -eps || x > maxX+eps || y < -eps || y > maxY+eps {
			return
		}
		for _, p := range pts {
			if math.Abs(p[0]-x) < 0.5 && math.Abs(p[1]-y) < 0.5 {
				return
			}
		}
		pts = append(pts, [2]float64{x, y})
	}
	if math.Abs(s) > eps {
		add(0, rho/s)
		add(maxX, (rho-maxX*c)/s)
	}
	if math.Abs(c) > eps {
		add(rho/c, 0)
		add((rho-maxY*s)/c, maxY)
	}
	if len(pts) < 2 {
		return Segment{}, false
	}
	return Segment{
		X1: int32(math.Round(pts[0][0])), Y1: int32(math.Round(pts[0][1])),
		X2: int32(math.Round(pts[1][0])), Y2: int32(math.Round(pts[1][1])),
	}, true
}

// LineResult holds detected lines and their votes.
type LineResult struct {
	lines []PolarLine
	votes []int32
}

// Len returns the number of lines.
func (r *LineResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.lines)
}

// Download copies the lines and their parallel vote counts out of the result.
// An empty or nil result yields empty slices.
func (r *LineResult) Download() ([]PolarLine, []int32) {
	if r.Len() == 0 {
		return []PolarLine{}, []int32{}
	}
	lines := make([]PolarLine, len(r.lines))
	votes := make([]int32, len(r.votes))
	copy(lines, r.lines)
	copy(votes, r.votes)
	return lines, votes
}

// LineDetector finds lines and line segments in edge masks with the
// (ρ, θ) Hough transform. Buffers are reused across calls. A detector must
// not be used from more than one goroutine at a time.
type LineDetector struct {
	opts   options
	points pointListBuilder
	acc    Accumulator
	trig   scratch[float64]

	numAngle int
	numRho   int
	rho      float64
	theta    float64
}

// NewLineDetector returns a detector configured by opts.
func NewLineDetector(opts ...Option) *LineDetector {
	return &LineDetector{opts: newOptions(opts)}
}

// Detect runs the standard Hough line transform on mask and returns the
// accumulator peaks with at least p.Threshold votes.
func (d *LineDetector) Detect(mask *image.Gray, p LineParams) (*LineResult, error) {
	if err := validateMask(mask); err != nil {
		return nil, err
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}

	if n := d.fill(mask, p.Rho, p.Theta); n == 0 {
		return &LineResult{}, nil
	}

	peaks := findPeakCells(&d.acc, PeakParams{
		Threshold: int32(p.Threshold),
		MaxSize:   p.MaxLines,
		DoSort:    p.DoSort,
	}, d.opts.workers)

	res := &LineResult{
		lines: make([]PolarLine, len(peaks)),
		votes: make([]int32, len(peaks)),
	}
	shift := (d.numRho - 1) / 2
	for i, pk := range peaks {
		c := d.acc.Coords(pk.cell)
		res.lines[i] = PolarLine{
			Rho:   float32(float64(c[1]-shift) * d.rho),
			Theta: float32(float64(c[0]) * d.theta),
		}
		res.votes[i] = pk.votes
	}

	d.opts.log.WithFields(logrus.Fields{
		"angles": d.numAngle,
		"rhos":   d.numRho,
		"lines":  len(peaks),
	}).Debug("hough lines extracted")
	return res, nil
}

// Accumulator returns a copy of the (angle, rho) accumulator of the last call.
func (d *LineDetector) Accumulator() AccumulatorSnapshot {
	return d.acc.Snapshot()
}

// Release drops every buffer held by the detector.
func (d *LineDetector) Release() {
	d.points.release()
	d.acc.release()
	d.trig.release()
}

// fill builds the point list of mask and votes every point into a fresh
// numAngle x numRho accumulator. It returns the number of edge points.
func (d *LineDetector) fill(mask *image.Gray, rho, theta float64) int {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	diag := math.Sqrt(float64(w*w + h*h))

	d.rho, d.theta = rho, theta
	d.numAngle = binCount(math.Pi, theta)
	d.numRho = binCount(2*diag+1, rho)
	d.acc.Reset(d.numAngle, d.numRho)

	list := d.points.build(mask, nil, d.opts.workers)
	d.opts.log.WithField("points", list.Len()).Debug("edge points collected")
	if list.Len() == 0 {
		return 0
	}

	trig := d.trig.ensure(2 * d.numAngle)
	irho := 1 / rho
	for n := 0; n < d.numAngle; n++ {
		a := float64(n) * theta
		trig[2*n] = math.Cos(a) * irho
		trig[2*n+1] = math.Sin(a) * irho
	}

	shift := (d.numRho - 1) / 2
	parallelFor(list.Len(), d.opts.workers, func(lo, hi int) {
		for _, pt := range list.Points[lo:hi] {
			x, y := float64(pt.X), float64(pt.Y)
			for n := 0; n < d.numAngle; n++ {
				r := int(math.Round(x*trig[2*n]+y*trig[2*n+1])) + shift
				if r >= 0 && r < d.numRho {
					d.acc.Inc(d.acc.index2(n, r))
				}
			}
		}
	})
	return list.Len()
}
