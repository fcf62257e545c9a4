package systems

import (
	"golang.org/x/sync/errgroup"
)

// Pool splits a phase across worker goroutines.
//
// Every call to Run is a full barrier: it returns only after all chunks have
// finished, so writes made inside one phase are visible to the next.
type Pool struct {
	workers   int
	threshold int
}

// NewPool creates a pool with the given worker count. Below threshold items,
// Run executes inline on the calling goroutine since spawning is slower than
// the work itself.
func NewPool(workers, threshold int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if threshold < 0 {
		threshold = 0
	}
	return &Pool{workers: workers, threshold: threshold}
}

// Workers returns the number of worker slots. Worker indices passed to Run
// callbacks are in [0, Workers()).
func (p *Pool) Workers() int {
	return p.workers
}

// Run partitions [0, n) into contiguous chunks, one per worker, and calls fn
// for each. The worker index is unique among concurrently running callbacks,
// so fn may use per-worker scratch space indexed by it. The first error
// returned by any chunk is returned after all chunks complete.
func (p *Pool) Run(n int, fn func(worker, start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if n < p.threshold || p.workers == 1 {
		return fn(0, 0, n)
	}

	chunkSize := (n + p.workers - 1) / p.workers

	var g errgroup.Group
	for w := 0; w < p.workers; w++ {
		start := w * chunkSize
		if start >= n {
			break
		}
		end := min(start+chunkSize, n)
		g.Go(func() error {
			return fn(w, start, end)
		})
	}
	return g.Wait()
}
