package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
)

// Circle is a detected circle in image coordinates.
type Circle struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Radius float32 `json:"radius"`
}

// CircleResult holds detected circles and the radius-histogram votes that
// selected each radius.
type CircleResult struct {
	circles []Circle
	votes   []int32
}

// Len returns the number of circles.
func (r *CircleResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.circles)
}

// Download copies the circles and their parallel vote counts out of the result.
func (r *CircleResult) Download() ([]Circle, []int32) {
	if r.Len() == 0 {
		return []Circle{}, []int32{}
	}
	circles := make([]Circle, len(r.circles))
	votes := make([]int32, len(r.votes))
	copy(circles, r.circles)
	copy(votes, r.votes)
	return circles, votes
}

// CircleDetector finds circles with the two-stage gradient Hough transform.
// A detector must not be used from more than one goroutine at a time.
type CircleDetector struct {
	opts   options
	points pointListBuilder
	acc    Accumulator
}

// NewCircleDetector returns a detector configured by opts. Detect requires
// WithEdgeDetector; DetectEdges does not.
func NewCircleDetector(opts ...Option) *CircleDetector {
	return &CircleDetector{opts: newOptions(opts)}
}

// Detect finds circles in a grayscale image.
//
// The edge detector collaborator is run with thresholds
// (max(CannyThreshold/2, 1), CannyThreshold) and the resulting mask and
// gradients are passed to DetectEdges.
//
// Returns:
//   - *CircleResult: At most p.MaxCircles circles ordered by center votes.
//   - error: Wraps ErrPrecondition for invalid input or a missing edge
//     detector, or reports an edge detector failure.
func (d *CircleDetector) Detect(src *image.Gray, p CircleParams) (*CircleResult, error) {
	if err := validateMask(src); err != nil {
		return nil, err
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if d.opts.edges == nil {
		return nil, preconditionf("circle detection needs an edge detector")
	}
	mask, grad, err := d.opts.edges.Detect(src, max(p.CannyThreshold/2, 1), p.CannyThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to detect edges: %w", err)
	}
	return d.DetectEdges(mask, grad, p)
}

// DetectEdges finds circles from an edge mask and its gradient fields.
// p.CannyThreshold is validated but otherwise unused.
//
// # Algorithm
//
//  1. Center voting: every edge pixel with a non-zero gradient walks both
//     ways along its gradient from MinRadius to MaxRadius and votes once per
//     radius step into a center accumulator downscaled by Dp.
//  2. Center extraction: local maxima with at least VotesThreshold votes,
//     ordered by votes.
//  3. Suppression: centers closer than MinDist to a stronger one are dropped
//     when MinDist > 1.
//  4. Radius voting: for each surviving center a histogram of distances to
//     every edge pixel selects the best radius with at least VotesThreshold
//     votes, preferring the smaller radius on ties.
func (d *CircleDetector) DetectEdges(mask *image.Gray, grad *GradientField, p CircleParams) (*CircleResult, error) {
	if err := validateMask(mask); err != nil {
		return nil, err
	}
	if err := validateGradient(grad, mask); err != nil {
		return nil, err
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}

	list := d.points.build(mask, nil, d.opts.workers)
	if list.Len() == 0 {
		return &CircleResult{}, nil
	}

	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	idp := 1 / p.Dp
	rows := int(math.Ceil(float64(h) * idp))
	cols := int(math.Ceil(float64(w) * idp))
	d.acc.Reset(rows, cols)

	parallelFor(list.Len(), d.opts.workers, func(lo, hi int) {
		for _, pt := range list.Points[lo:hi] {
			gx, gy := grad.At(int(pt.X), int(pt.Y))
			if gx == 0 && gy == 0 {
				continue
			}
			mag := math.Hypot(float64(gx), float64(gy))
			vx, vy := float64(gx)/mag, float64(gy)/mag
			x, y := float64(pt.X), float64(pt.Y)
			for _, sign := range [...]float64{1, -1} {
				for r := p.MinRadius; r <= p.MaxRadius; r++ {
					cx := int(math.Floor((x + sign*float64(r)*vx) * idp))
					cy := int(math.Floor((y + sign*float64(r)*vy) * idp))
					if cx < 0 || cx >= cols || cy < 0 || cy >= rows {
						break
					}
					d.acc.Inc(d.acc.index2(cy, cx))
				}
			}
		}
	})

	peaks := findPeakCells(&d.acc, PeakParams{
		Threshold: int32(p.VotesThreshold),
		DoSort:    true,
	}, d.opts.workers)

	centers := make([]Point2, len(peaks))
	votes := make([]int32, len(peaks))
	for i, pk := range peaks {
		c := d.acc.Coords(pk.cell)
		centers[i] = Point2{
			X: float32((float64(c[1]) + 0.5) * p.Dp),
			Y: float32((float64(c[0]) + 0.5) * p.Dp),
		}
		votes[i] = pk.votes
	}
	kept := FilterMinDist(centers, votes, w, h, p.MinDist)

	d.opts.log.WithFields(logrus.Fields{
		"points":  list.Len(),
		"centers": len(centers),
		"kept":    len(kept),
	}).Debug("circle centers extracted")

	type radiusVote struct {
		radius int
		votes  int32
		ok     bool
	}
	best := make([]radiusVote, len(kept))
	bins := p.MaxRadius - p.MinRadius + 1
	parallelFor(len(kept), d.opts.workers, func(lo, hi int) {
		hist := make([]int32, bins)
		for k := lo; k < hi; k++ {
			clear(hist)
			c := centers[kept[k]]
			for _, pt := range list.Points {
				dist := math.Hypot(float64(pt.X)-float64(c.X), float64(pt.Y)-float64(c.Y))
				if dist < float64(p.MinRadius) || dist > float64(p.MaxRadius) {
					continue
				}
				hist[int(math.Round(dist-float64(p.MinRadius)))]++
			}
			rv := radiusVote{votes: int32(p.VotesThreshold) - 1}
			for b, v := range hist {
				if v > rv.votes {
					rv = radiusVote{radius: p.MinRadius + b, votes: v, ok: true}
				}
			}
			best[k] = rv
		}
	})

	res := &CircleResult{}
	for k, rv := range best {
		if !rv.ok {
			continue
		}
		if len(res.circles) == p.MaxCircles {
			break
		}
		c := centers[kept[k]]
		res.circles = append(res.circles, Circle{X: c.X, Y: c.Y, Radius: float32(rv.radius)})
		res.votes = append(res.votes, rv.votes)
	}
	return res, nil
}

// Accumulator returns a copy of the downscaled centre accumulator of the
// last call.
func (d *CircleDetector) Accumulator() AccumulatorSnapshot {
	return d.acc.Snapshot()
}

// Release drops every buffer held by the detector.
func (d *CircleDetector) Release() {
	d.points.release()
	d.acc.release()
}
