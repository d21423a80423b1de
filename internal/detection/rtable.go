package detection

import (
	"image"
	"math"
	"sync/atomic"
)

// Displacement is the offset of a template edge point from the template's
// reference center.
type Displacement struct {
	X int16
	Y int16
}

// RTable maps a quantized gradient angle to the displacements of the
// template edge points with that angle. Bucket n covers angles around
// n·2π/levels; n ranges over [0, levels] so that angles just below 2π do not
// wrap. Each bucket keeps at most maxSize entries; extra points are dropped.
type RTable struct {
	levels  int
	maxSize int
	vectors scratch[Displacement]
	sizes   scratch[int32]
}

// Build fills the table from an oriented edge point list and its reference
// center. It replaces any previous content.
func (t *RTable) Build(list EdgePointList, center image.Point, levels, maxSize, workers int) {
	t.levels, t.maxSize = levels, maxSize
	vectors := t.vectors.ensure((levels + 1) * maxSize)
	sizes := t.sizes.zeroed(levels + 1)

	scale := float64(levels) / (2 * math.Pi)
	parallelFor(list.Len(), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			n := int(math.Round(float64(list.Theta[i]) * scale))
			slot := int(atomic.AddInt32(&sizes[n], 1)) - 1
			if slot >= maxSize {
				continue
			}
			p := list.Points[i]
			vectors[n*maxSize+slot] = Displacement{
				X: int16(int(p.X) - center.X),
				Y: int16(int(p.Y) - center.Y),
			}
		}
	})
	for n, s := range sizes {
		if s > int32(maxSize) {
			sizes[n] = int32(maxSize)
		}
	}
}

// checkDisplacementRange rejects a center for which some pixel of a
// size-sized template would be more than an int16 away.
func checkDisplacementRange(size, center image.Point) error {
	fits := func(c, n int) bool {
		return -c >= math.MinInt16 && (n-1)-c <= math.MaxInt16
	}
	if !fits(center.X, size.X) || !fits(center.Y, size.Y) {
		return preconditionf("template center %v too far from a %dx%d template", center, size.X, size.Y)
	}
	return nil
}

// Levels is the number of angle buckets over a full turn.
func (t *RTable) Levels() int {
	return t.levels
}

// Bucket returns the displacements stored for bucket n. The slice aliases the
// table and must not be modified.
func (t *RTable) Bucket(n int) []Displacement {
	if n < 0 || n > t.levels || t.sizes.data == nil {
		return nil
	}
	start := n * t.maxSize
	return t.vectors.data[start : start+int(t.sizes.data[n])]
}

// BucketOf quantizes an angle in radians within [0, 2π] to its bucket.
func (t *RTable) BucketOf(theta float64) int {
	return int(math.Round(theta * float64(t.levels) / (2 * math.Pi)))
}

// Len returns the total number of stored displacements.
func (t *RTable) Len() int {
	n := 0
	for _, s := range t.sizes.data {
		n += int(s)
	}
	return n
}

func (t *RTable) release() {
	t.vectors.release()
	t.sizes.release()
	t.levels, t.maxSize = 0, 0
}
