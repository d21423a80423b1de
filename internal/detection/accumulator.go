package detection

import (
	"fmt"
	"sync/atomic"
)

// Accumulator is a dense vote histogram over one to three dimensions. Every
// dimension carries one cell of zero padding on each side so that neighbour
// comparisons never need bounds checks. Coordinates passed to the index
// helpers are logical (unpadded).
type Accumulator struct {
	ndim    int
	dims    [3]int
	strides [3]int
	size    int
	cells   scratch[int32]
}

// Reset sizes the accumulator to dims and zeroes every cell. Storage is
// reused when large enough.
func (a *Accumulator) Reset(dims ...int) {
	if len(dims) < 1 || len(dims) > 3 {
		panic(fmt.Sprintf("detection: accumulator supports 1 to 3 dimensions, got %d", len(dims)))
	}
	a.ndim = len(dims)
	a.dims = [3]int{}
	stride := 1
	for d := a.ndim - 1; d >= 0; d-- {
		a.dims[d] = dims[d]
		a.strides[d] = stride
		stride *= dims[d] + 2
	}
	a.size = 1
	for d := 0; d < a.ndim; d++ {
		a.size *= a.dims[d]
	}
	a.cells.zeroed(stride)
}

// Dims returns the logical extent of each dimension.
func (a *Accumulator) Dims() []int {
	out := make([]int, a.ndim)
	copy(out, a.dims[:a.ndim])
	return out
}

// Size is the number of logical cells.
func (a *Accumulator) Size() int {
	return a.size
}

func (a *Accumulator) index1(i int) int {
	return i + 1
}

func (a *Accumulator) index2(i, j int) int {
	return (i+1)*a.strides[0] + j + 1
}

func (a *Accumulator) index3(i, j, k int) int {
	return (i+1)*a.strides[0] + (j+1)*a.strides[1] + k + 1
}

// Index maps logical coordinates to a cell index.
func (a *Accumulator) Index(coords ...int) int {
	cell := 0
	for d := 0; d < a.ndim; d++ {
		cell += (coords[d] + 1) * a.strides[d]
	}
	return cell
}

// Coords maps a cell index back to logical coordinates.
func (a *Accumulator) Coords(cell int) [3]int {
	var c [3]int
	for d := 0; d < a.ndim; d++ {
		c[d] = cell/a.strides[d] - 1
		cell %= a.strides[d]
	}
	return c
}

// cellOf converts the n-th logical cell in row-major order to a cell index.
func (a *Accumulator) cellOf(n int) int {
	cell := 0
	for d := a.ndim - 1; d >= 0; d-- {
		cell += (n%a.dims[d] + 1) * a.strides[d]
		n /= a.dims[d]
	}
	return cell
}

// Inc atomically adds one vote to cell.
func (a *Accumulator) Inc(cell int) {
	atomic.AddInt32(&a.cells.data[cell], 1)
}

// Add atomically adds n votes to cell.
func (a *Accumulator) Add(cell int, n int32) {
	atomic.AddInt32(&a.cells.data[cell], n)
}

// At returns the votes of cell. It must not race with increments.
func (a *Accumulator) At(cell int) int32 {
	return a.cells.data[cell]
}

// isLocalMax reports whether cell beats its previous neighbour and is not
// beaten by its next neighbour along every dimension.
func (a *Accumulator) isLocalMax(cell int) bool {
	v := a.cells.data[cell]
	for d := 0; d < a.ndim; d++ {
		s := a.strides[d]
		if !(v > a.cells.data[cell-s] && v >= a.cells.data[cell+s]) {
			return false
		}
	}
	return true
}

// Snapshot copies the logical cells of a two-dimensional accumulator.
func (a *Accumulator) Snapshot() AccumulatorSnapshot {
	if a.ndim != 2 {
		return AccumulatorSnapshot{}
	}
	rows, cols := a.dims[0], a.dims[1]
	votes := make([]int32, rows*cols)
	for r := 0; r < rows; r++ {
		base := a.index2(r, 0)
		copy(votes[r*cols:(r+1)*cols], a.cells.data[base:base+cols])
	}
	return AccumulatorSnapshot{Rows: rows, Cols: cols, Votes: votes}
}

func (a *Accumulator) release() {
	a.cells.release()
	a.ndim, a.size = 0, 0
}

// AccumulatorSnapshot is a row-major copy of a two-dimensional accumulator.
type AccumulatorSnapshot struct {
	Rows  int
	Cols  int
	Votes []int32
}

// At returns the votes at (row, col).
func (s AccumulatorSnapshot) At(row, col int) int32 {
	return s.Votes[row*s.Cols+col]
}

// Max returns the largest vote count.
func (s AccumulatorSnapshot) Max() int32 {
	var m int32
	for _, v := range s.Votes {
		if v > m {
			m = v
		}
	}
	return m
}
