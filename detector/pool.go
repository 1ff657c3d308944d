package detector

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many blocking jobs run at once. Each job runs on its own
// goroutine, never on the caller's.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted
}

// NewPool returns a pool of size workers.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

type outcome[T any] struct {
	val T
	err error
}

// submit waits for a free worker (bounded by ctx) and starts fn on it. The
// returned channel receives exactly one outcome and is buffered, so an
// abandoned job never blocks. Panics in fn are returned as errors.
func submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (<-chan outcome[T], error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	done := make(chan outcome[T], 1)
	go func() {
		defer p.sem.Release(1)
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("%s worker panic: %v", p.name, r)
			}
			done <- o
		}()
		o.val, o.err = fn()
	}()
	return done, nil
}
