package detection

import (
	"math"
	"sort"
)

// Point2 is a position in image coordinates.
type Point2 struct {
	X float32
	Y float32
}

// FilterMinDist performs greedy non-maximum suppression over positions. It
// visits candidates in descending vote order (stable with respect to input
// order) and keeps a candidate unless an already kept one lies at squared
// distance strictly below minDist². It returns the indexes of the kept
// candidates in visiting order.
//
// The search uses a uniform grid with cells of ceil(minDist) pixels over a
// width x height area and only looks at the 3x3 block of cells around a
// candidate. With minDist <= 1 every index is returned in descending vote order.
func FilterMinDist(points []Point2, votes []int32, width, height int, minDist float64) []int {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return votes[order[a]] > votes[order[b]]
	})
	if minDist <= 1 || len(points) == 0 {
		return order
	}

	// Ceil, not round: a cell narrower than minDist would miss neighbours
	// two cells away.
	cellSize := int(math.Ceil(minDist))
	if cellSize < 1 {
		cellSize = 1
	}
	gridW := (width + cellSize - 1) / cellSize
	gridH := (height + cellSize - 1) / cellSize
	gridW, gridH = max(gridW, 1), max(gridH, 1)
	grid := make([][]Point2, gridW*gridH)
	minDist2 := float32(minDist * minDist)

	kept := make([]int, 0, len(points))
	for _, i := range order {
		p := points[i]
		gx := clampInt(int(p.X)/cellSize, 0, gridW-1)
		gy := clampInt(int(p.Y)/cellSize, 0, gridH-1)

		good := true
		for yy := max(gy-1, 0); yy <= min(gy+1, gridH-1) && good; yy++ {
			for xx := max(gx-1, 0); xx <= min(gx+1, gridW-1); xx++ {
				for _, q := range grid[yy*gridW+xx] {
					dx, dy := p.X-q.X, p.Y-q.Y
					if dx*dx+dy*dy < minDist2 {
						good = false
						break
					}
				}
				if !good {
					break
				}
			}
		}
		if good {
			grid[gy*gridW+gx] = append(grid[gy*gridW+gx], p)
			kept = append(kept, i)
		}
	}
	return kept
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
