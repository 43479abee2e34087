package worker

import (
	"context"
	"sync"

	"sjsage522/tenderscraper/logger"
)

// Pool runs jobs over a fixed number of goroutines. Results are indexed by
// submission order, whatever order the jobs finish in.
type Pool[T any] struct {
	size int
}

// NewPool creates a pool with size goroutines; size below 1 means 1
func NewPool[T any](size int) *Pool[T] {
	if size < 1 {
		size = 1
	}
	return &Pool[T]{size: size}
}

// Size returns the number of goroutines
func (p *Pool[T]) Size() int {
	return p.size
}

// Run calls fn for job indexes 0..jobs-1 and waits for all started jobs.
// Once ctx is done no further jobs are started; their slots keep the zero
// value and done[i] is false. Run returns ctx.Err() in that case.
func (p *Pool[T]) Run(ctx context.Context, jobs int, fn func(ctx context.Context, job int) T) (results []T, done []bool, err error) {
	results = make([]T, jobs)
	done = make([]bool, jobs)
	if jobs <= 0 {
		return results, done, ctx.Err()
	}

	queue := make(chan int)
	go func() {
		defer close(queue)
		for i := 0; i < jobs; i++ {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := p.size
	if workers > jobs {
		workers = jobs
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			processed := 0
			for job := range queue {
				if ctx.Err() != nil {
					break
				}
				results[job] = fn(ctx, job)
				done[job] = true
				processed++
			}
			logger.ForWorker().Debug().Int("worker_id", id).Int("jobs", processed).Msg("Pool worker finished")
		}(w)
	}
	wg.Wait()

	return results, done, ctx.Err()
}
