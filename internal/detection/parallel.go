package detection

import (
	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny inputs on a single goroutine.
const minChunk = 64

// parallelFor splits [0, n) into contiguous chunks and runs fn on each chunk
// with at most workers goroutines. It returns after every chunk finished.
func parallelFor(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunks := workers * 4
	if limit := (n + minChunk - 1) / minChunk; chunks > limit {
		chunks = limit
	}
	if chunks <= 1 || workers <= 1 {
		fn(0, n)
		return
	}

	size := (n + chunks - 1) / chunks
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
