package detection

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Segment is a line segment between two pixel positions.
type Segment struct {
	X1 int32 `json:"x1"`
	Y1 int32 `json:"y1"`
	X2 int32 `json:"x2"`
	Y2 int32 `json:"y2"`
}

// Length returns the euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// SegmentResult holds detected segments and the votes of the accumulator
// cell each one was traced from.
type SegmentResult struct {
	segments []Segment
	votes    []int32
}

// Len returns the number of segments.
func (r *SegmentResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.segments)
}

// Download copies the segments and their parallel vote counts out of the result.
func (r *SegmentResult) Download() ([]Segment, []int32) {
	if r.Len() == 0 {
		return []Segment{}, []int32{}
	}
	segs := make([]Segment, len(r.segments))
	votes := make([]int32, len(r.votes))
	copy(segs, r.segments)
	copy(votes, r.votes)
	return segs, votes
}

// DetectSegments runs the probabilistic Hough transform: the (ρ, θ)
// accumulator is filled as for Detect, then every cell with at least
// p.MinLineLength votes that is strictly greater than its eight neighbours is
// traced across the mask to recover the actual runs of edge pixels.
//
// Parameters:
//   - mask: Binary edge image; non-zero pixels are edges.
//   - p: Accumulator resolution, minimum segment extent, bridged gap length
//     and output cap.
//
// Returns:
//   - *SegmentResult: At most p.MaxLines segments, in no particular order.
//   - error: Wraps ErrPrecondition for invalid input.
//
// # Tracing
//
// The line of a cell is entered at the first image border it crosses and
// walked in unit steps along its major axis. Runs of edge pixels are joined
// across at most p.MaxLineGap missing pixels. A run is reported when its x or
// y extent reaches p.MinLineLength.
func (d *LineDetector) DetectSegments(mask *image.Gray, p SegmentParams) (*SegmentResult, error) {
	if err := validateMask(mask); err != nil {
		return nil, err
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}

	if n := d.fill(mask, p.Rho, p.Theta); n == 0 {
		return &SegmentResult{}, nil
	}

	res := &SegmentResult{
		segments: make([]Segment, p.MaxLines),
		votes:    make([]int32, p.MaxLines),
	}
	var claimed atomic.Int64
	emit := func(s Segment, votes int32) {
		slot := int(claimed.Add(1)) - 1
		if slot < p.MaxLines {
			res.segments[slot] = s
			res.votes[slot] = votes
		}
	}

	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	t := tracer{
		mask:      mask,
		cols:      w,
		rows:      h,
		minLength: float64(p.MinLineLength),
		maxGap:    p.MaxLineGap,
	}
	shift := (d.numRho - 1) / 2
	threshold := int32(p.MinLineLength)
	parallelFor(d.acc.Size(), d.opts.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			cell := d.acc.cellOf(i)
			v := d.acc.At(cell)
			if v < threshold || !d.isStrictMax8(cell) {
				continue
			}
			c := d.acc.Coords(cell)
			radius := float64(c[1]-shift) * d.rho
			angle := float64(c[0]) * d.theta
			t.trace(radius, angle, func(s Segment) { emit(s, v) })
		}
	})

	n := min(int(claimed.Load()), p.MaxLines)
	res.segments, res.votes = res.segments[:n], res.votes[:n]

	d.opts.log.WithFields(logrus.Fields{
		"angles":   d.numAngle,
		"rhos":     d.numRho,
		"segments": n,
	}).Debug("hough segments traced")
	return res, nil
}

// isStrictMax8 reports whether a two-dimensional cell is strictly greater than
// all eight neighbours.
func (d *LineDetector) isStrictMax8(cell int) bool {
	v := d.acc.At(cell)
	s := d.acc.strides[0]
	for _, off := range [...]int{-s - 1, -s, -s + 1, -1, 1, s - 1, s, s + 1} {
		if d.acc.At(cell+off) >= v {
			return false
		}
	}
	return true
}

type tracer struct {
	mask       *image.Gray
	cols, rows int
	minLength  float64
	maxGap     int
}

func (t *tracer) edgeAt(x, y float64) bool {
	return t.mask.Pix[int(y)*t.mask.Stride+int(x)] != 0
}

func (t *tracer) inside(x, y float64) bool {
	return x >= 0 && x < float64(t.cols) && y >= 0 && y < float64(t.rows)
}

// trace walks the line at (radius, angle) across the mask and calls emit for
// every run long enough to report.
func (t *tracer) trace(radius, angle float64, emit func(Segment)) {
	cosa, sina := math.Cos(angle), math.Sin(angle)
	px, py := cosa*radius, sina*radius
	dx, dy := -sina, cosa

	lastX, lastY := float64(t.cols-1), float64(t.rows-1)
	var pb [4][2]float64
	for i := range pb {
		pb[i] = [2]float64{-1, -1}
	}
	if dx != 0 {
		a := -px / dx
		pb[0] = [2]float64{0, py + a*dy}
		a = (lastX - px) / dx
		pb[1] = [2]float64{lastX, py + a*dy}
	}
	if dy != 0 {
		a := -py / dy
		pb[2] = [2]float64{px + a*dx, 0}
		a = (lastY - py) / dy
		pb[3] = [2]float64{px + a*dx, lastY}
	}

	switch {
	case pb[0][0] == 0 && pb[0][1] >= 0 && pb[0][1] < float64(t.rows):
		px, py = pb[0][0], pb[0][1]
		if dx < 0 {
			dx, dy = -dx, -dy
		}
	case pb[1][0] == lastX && pb[1][1] >= 0 && pb[1][1] < float64(t.rows):
		px, py = pb[1][0], pb[1][1]
		if dx > 0 {
			dx, dy = -dx, -dy
		}
	case pb[2][1] == 0 && pb[2][0] >= 0 && pb[2][0] < float64(t.cols):
		px, py = pb[2][0], pb[2][1]
		if dy < 0 {
			dx, dy = -dx, -dy
		}
	case pb[3][1] == lastY && pb[3][0] >= 0 && pb[3][0] < float64(t.cols):
		px, py = pb[3][0], pb[3][1]
		if dy > 0 {
			dx, dy = -dx, -dy
		}
	}

	var sx, sy float64
	if math.Abs(dx) > math.Abs(dy) {
		sx, sy = math.Copysign(1, dx), dy/math.Abs(dx)
	} else {
		sx, sy = dx/math.Abs(dy), math.Copysign(1, dy)
	}

	x, y := px, py
	if !t.inside(x, y) {
		return
	}

	var (
		inLine     bool
		gap        int
		start, end [2]float64
	)
	flush := func() {
		if math.Abs(end[0]-start[0]) >= t.minLength || math.Abs(end[1]-start[1]) >= t.minLength {
			emit(Segment{
				X1: int32(start[0]), Y1: int32(start[1]),
				X2: int32(end[0]), Y2: int32(end[1]),
			})
		}
	}
	for {
		if t.edgeAt(x, y) {
			gap = 0
			if !inLine {
				start = [2]float64{x, y}
				inLine = true
			}
			end = [2]float64{x, y}
		} else if inLine {
			gap++
			if gap > t.maxGap {
				flush()
				gap = 0
				inLine = false
			}
		}

		x += sx
		y += sy
		if !t.inside(x, y) {
			if inLine {
				flush()
			}
			return
		}
	}
}
