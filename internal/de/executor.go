package de

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// Executor runs one lane function per population slot and returns when all
// lanes have finished. Lanes must only write state owned by their slot.
type Executor interface {
	ForEach(n int, lane func(i int))
}

// Sequential runs lanes one after another on the calling goroutine.
type Sequential struct{}

func (Sequential) ForEach(n int, lane func(i int)) {
	for i := 0; i < n; i++ {
		lane(i)
	}
}

// Parallel fans lanes out over a bounded goroutine pool.
type Parallel struct {
	// Workers caps concurrent lanes. Zero means runtime.GOMAXPROCS(0).
	Workers int
}

func (p Parallel) ForEach(n int, lane func(i int)) {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	wp := pool.New().WithMaxGoroutines(max(workers, 1))
	for i := 0; i < n; i++ {
		wp.Go(func() {
			lane(i)
		})
	}
	wp.Wait()
}

// executorFor picks the executor for a worker count. One worker runs inline.
func executorFor(workers int) Executor {
	if workers == 1 {
		return Sequential{}
	}
	return Parallel{Workers: workers}
}
