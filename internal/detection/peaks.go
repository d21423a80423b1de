package detection

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Peak is an accumulator cell accepted as a detection candidate.
type Peak struct {
	// Coords are the logical cell coordinates, unused dimensions are zero.
	Coords [3]int
	Votes  int32
}

// PeakParams controls FindPeaks.
type PeakParams struct {
	// Threshold is the minimum vote count, inclusive.
	Threshold int32
	// MaxSize caps the number of peaks returned. Zero or negative means no cap.
	MaxSize int
	// DoSort orders peaks by votes descending before the cap is applied.
	// Without it the cap keeps whichever qualifying cells were claimed first.
	DoSort bool
}

// FindPeaks returns the local maxima of acc with at least Threshold votes.
// A cell is a local maximum when, along every dimension, it is strictly
// greater than its previous neighbour and not less than its next one. The
// accumulator is not modified.
func FindPeaks(acc *Accumulator, p PeakParams) []Peak {
	return findPeaks(acc, p, newOptions(nil).workers)
}

func findPeaks(acc *Accumulator, p PeakParams, workers int) []Peak {
	cells := findPeakCells(acc, p, workers)
	peaks := make([]Peak, len(cells))
	for i, c := range cells {
		peaks[i] = Peak{Coords: acc.Coords(c.cell), Votes: c.votes}
	}
	return peaks
}

type peakCell struct {
	cell  int
	votes int32
}

func findPeakCells(acc *Accumulator, p PeakParams, workers int) []peakCell {
	n := acc.Size()
	if n == 0 {
		return nil
	}
	maxSize := p.MaxSize
	if maxSize <= 0 || maxSize > n {
		maxSize = n
	}
	threshold := p.Threshold

	if !p.DoSort {
		out := make([]peakCell, maxSize)
		var claimed atomic.Int64
		parallelFor(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				cell := acc.cellOf(i)
				v := acc.At(cell)
				if v < threshold || !acc.isLocalMax(cell) {
					continue
				}
				slot := int(claimed.Add(1)) - 1
				if slot < maxSize {
					out[slot] = peakCell{cell: cell, votes: v}
				}
			}
		})
		return out[:min(int(claimed.Load()), maxSize)]
	}

	var (
		mu  sync.Mutex
		all []peakCell
	)
	parallelFor(n, workers, func(lo, hi int) {
		var local []peakCell
		for i := lo; i < hi; i++ {
			cell := acc.cellOf(i)
			v := acc.At(cell)
			if v < threshold || !acc.isLocalMax(cell) {
				continue
			}
			local = append(local, peakCell{cell: cell, votes: v})
		}
		if len(local) == 0 {
			return
		}
		mu.Lock()
		all = append(all, local...)
		mu.Unlock()
	})

	sort.Slice(all, func(i, j int) bool {
		if all[i].votes != all[j].votes {
			return all[i].votes > all[j].votes
		}
		return all[i].cell < all[j].cell
	})
	if len(all) > maxSize {
		all = all[:maxSize]
	}
	return all
}
