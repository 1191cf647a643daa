// Package sched runs the per-particle and per-node passes of a step on a
// fixed set of worker goroutines. Every For call is a barrier: it returns
// only after all of its chunks have finished, so the next phase sees every
// write of the previous one.
package sched

import (
	"runtime"
	"sync"
)

// DefaultMinChunk is the smallest range worth splitting across workers.
const DefaultMinChunk = 64

type task struct {
	fn     func(worker, lo, hi int)
	worker int
	lo, hi int
	done   *sync.WaitGroup
}

// Pool is a fixed worker pool. The zero value is not usable; call New.
type Pool struct {
	workers  int
	minChunk int
	tasks    chan task
	once     sync.Once
}

// New starts a pool with the given number of workers; workers <= 0 means
// runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers:  workers,
		minChunk: DefaultMinChunk,
	}
	if workers > 1 {
		p.tasks = make(chan task, workers)
		for w := 0; w < workers; w++ {
			go p.loop()
		}
	}
	return p
}

func (p *Pool) loop() {
	for t := range p.tasks {
		t.fn(t.worker, t.lo, t.hi)
		t.done.Done()
	}
}

// Workers returns the number of chunks a large range is split into.
func (p *Pool) Workers() int { return p.workers }

// SetMinChunk changes the split threshold; ranges of at most n items run
// inline as a single chunk.
func (p *Pool) SetMinChunk(n int) {
	if n < 1 {
		n = 1
	}
	p.minChunk = n
}

// Chunks returns how For splits a range of n items: the chunk count and
// the chunk size. Chunk w covers [w*size, min((w+1)*size, n)).
func (p *Pool) Chunks(n int) (count, size int) {
	if n <= 0 {
		return 0, 0
	}
	workers := p.workers
	if n <= p.minChunk || workers <= 1 {
		return 1, n
	}
	if n/p.minChunk < workers {
		workers = n / p.minChunk
	}
	if workers < 1 {
		workers = 1
	}
	size = (n + workers - 1) / workers
	count = (n + size - 1) / size
	return count, size
}

// For executes fn over [0, n) in contiguous chunks and waits for all of
// them. worker is the chunk number, stable for a given n and pool size, and
// always below Workers().
func (p *Pool) For(n int, fn func(worker, lo, hi int)) {
	count, size := p.Chunks(n)
	if count == 0 {
		return
	}
	if count == 1 {
		fn(0, 0, n)
		return
	}

	var wg sync.WaitGroup
	wg.Add(count - 1)
	for w := 1; w < count; w++ {
		lo := w * size
		hi := min(lo+size, n)
		p.tasks <- task{fn: fn, worker: w, lo: lo, hi: hi, done: &wg}
	}
	fn(0, 0, min(size, n))
	wg.Wait()
}

// ForErr is For for passes that can fail. It returns the error of the
// lowest failing chunk.
func (p *Pool) ForErr(n int, fn func(worker, lo, hi int) error) error {
	errs := make([]error, p.workers)
	p.For(n, func(w, lo, hi int) {
		errs[w] = fn(w, lo, hi)
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close stops the workers. The pool must not be used afterwards.
func (p *Pool) Close() {
	p.once.Do(func() {
		if p.tasks != nil {
			close(p.tasks)
		}
	})
}
