package detection

import (
	"image"
	"math"
	"sync/atomic"
)

// MaxImageSide is the exclusive upper bound on mask width and height. Edge
// point coordinates are stored as 16-bit values.
const MaxImageSide = 65535

// GradientField holds signed integer x and y derivatives of an image, row-major,
// with the same extent as the edge mask it accompanies.
type GradientField struct {
	Width  int
	Height int
	Dx     []int32
	Dy     []int32
}

// NewGradientField allocates a zeroed width x height field.
func NewGradientField(width, height int) *GradientField {
	return &GradientField{
		Width:  width,
		Height: height,
		Dx:     make([]int32, width*height),
		Dy:     make([]int32, width*height),
	}
}

// At returns the derivatives at (x, y).
func (g *GradientField) At(x, y int) (dx, dy int32) {
	i := y*g.Width + x
	return g.Dx[i], g.Dy[i]
}

// Set stores the derivatives at (x, y).
func (g *GradientField) Set(x, y int, dx, dy int32) {
	i := y*g.Width + x
	g.Dx[i] = dx
	g.Dy[i] = dy
}

// EdgePoint is the position of a non-zero mask pixel relative to the mask origin.
type EdgePoint struct {
	X uint16
	Y uint16
}

// EdgePointList is the compacted set of edge pixels of a mask. Theta is only
// populated for oriented lists and holds the gradient angle in [0, 2π).
type EdgePointList struct {
	Points []EdgePoint
	Theta  []float32
}

// Len returns the number of edge points.
func (l EdgePointList) Len() int {
	return len(l.Points)
}

// Oriented reports whether the list carries gradient angles.
func (l EdgePointList) Oriented() bool {
	return l.Theta != nil
}

// BuildPointList compacts the non-zero pixels of mask into a new list.
func BuildPointList(mask *image.Gray) (EdgePointList, error) {
	if err := validateMask(mask); err != nil {
		return EdgePointList{}, err
	}
	var b pointListBuilder
	return b.build(mask, nil, newOptions(nil).workers), nil
}

// BuildOrientedPointList compacts the non-zero pixels of mask together with
// their gradient angle atan2(dy, dx) mapped into [0, 2π).
func BuildOrientedPointList(mask *image.Gray, grad *GradientField) (EdgePointList, error) {
	if err := validateMask(mask); err != nil {
		return EdgePointList{}, err
	}
	if err := validateGradient(grad, mask); err != nil {
		return EdgePointList{}, err
	}
	var b pointListBuilder
	return b.build(mask, grad, newOptions(nil).workers), nil
}

// pointListBuilder owns the growable buffers behind an EdgePointList so that
// repeated builds do not reallocate.
type pointListBuilder struct {
	points scratch[EdgePoint]
	theta  scratch[float32]
}

// build scans mask rows in parallel. Each worker compacts its rows locally and
// claims a contiguous block of the output with a single atomic add, so the
// order of blocks depends on scheduling.
func (b *pointListBuilder) build(mask *image.Gray, grad *GradientField, workers int) EdgePointList {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	points := b.points.ensure(w * h)
	var theta []float32
	if grad != nil {
		theta = b.theta.ensure(w * h)
	}

	var count atomic.Int64
	parallelFor(h, workers, func(lo, hi int) {
		var localPts []EdgePoint
		var localTheta []float32
		for y := lo; y < hi; y++ {
			row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
			for x, v := range row {
				if v == 0 {
					continue
				}
				localPts = append(localPts, EdgePoint{X: uint16(x), Y: uint16(y)})
				if grad != nil {
					dx, dy := grad.At(x, y)
					localTheta = append(localTheta, gradientAngle(dx, dy))
				}
			}
		}
		if len(localPts) == 0 {
			return
		}
		end := int(count.Add(int64(len(localPts))))
		start := end - len(localPts)
		copy(points[start:end], localPts)
		if grad != nil {
			copy(theta[start:end], localTheta)
		}
	})

	n := int(count.Load())
	list := EdgePointList{Points: points[:n]}
	if grad != nil {
		list.Theta = theta[:n]
	}
	return list
}

func (b *pointListBuilder) release() {
	b.points.release()
	b.theta.release()
}

// gradientAngle maps atan2(dy, dx) into [0, 2π).
func gradientAngle(dx, dy int32) float32 {
	a := math.Atan2(float64(dy), float64(dx))
	if a < 0 {
		a += 2 * math.Pi
	}
	return float32(a)
}

func validateMask(mask *image.Gray) error {
	if mask == nil {
		return preconditionf("edge mask is nil")
	}
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	if w <= 0 || h <= 0 {
		return preconditionf("edge mask is empty (%dx%d)", w, h)
	}
	if w >= MaxImageSide || h >= MaxImageSide {
		return preconditionf("edge mask %dx%d exceeds %d pixels per side", w, h, MaxImageSide-1)
	}
	return nil
}

func validateGradient(grad *GradientField, mask *image.Gray) error {
	if grad == nil {
		return preconditionf("gradient field is nil")
	}
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	if grad.Width != w || grad.Height != h {
		return preconditionf("gradient field %dx%d does not match mask %dx%d", grad.Width, grad.Height, w, h)
	}
	if len(grad.Dx) != w*h || len(grad.Dy) != w*h {
		return preconditionf("gradient field buffers hold %d/%d values, want %d", len(grad.Dx), len(grad.Dy), w*h)
	}
	return nil
}
