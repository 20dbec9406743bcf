package utils

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Workers resolves a requested pool size; non-positive means GOMAXPROCS
func Workers(requested int) int {
	if requested <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return requested
}

// Range is the half-open index interval [Lo, Hi)
type Range struct {
	Lo, Hi int
}

func (r Range) Len() int { return r.Hi - r.Lo }

// SplitRange cuts [0,n) into at most parts contiguous ranges whose sizes
// differ by at most one
func SplitRange(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	ranges := make([]Range, parts)
	base, extra := n/parts, n%parts
	lo := 0
	for p := range ranges {
		size := base
		if p < extra {
			size++
		}
		ranges[p] = Range{Lo: lo, Hi: lo + size}
		lo += size
	}
	return ranges
}

// Pool runs indexed tasks on a fixed number of goroutines
type Pool struct {
	workers int
}

// NewPool creates a pool of Workers(workers) goroutines
func NewPool(workers int) *Pool {
	return &Pool{workers: Workers(workers)}
}

// Size returns the number of goroutines used by Run
func (p *Pool) Size() int { return p.workers }

// Run calls fn for every i in [0,n), handing out indices in ascending order.
// The first failure cancels the context seen by the remaining tasks; Run
// then returns the error of the lowest failing index among the tasks that
// ran.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		next   atomic.Int64
		mu     sync.Mutex
		errIdx = -1
		first  error
		wg     sync.WaitGroup
	)
	workers := p.workers
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n || ctx.Err() != nil {
					return
				}
				if err := fn(ctx, i); err != nil {
					mu.Lock()
					if errIdx < 0 || i < errIdx {
						errIdx, first = i, err
					}
					mu.Unlock()
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()

	if first != nil {
		return first
	}
	return context.Cause(ctx)
}
