// Package worker runs task executions in isolated goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of work. Name is used in panic reports.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// PanicError is returned by a job that panicked.
type PanicError struct {
	Job   string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job %s panicked: %v", e.Job, e.Value)
}

// Pool runs jobs concurrently, at most size at a time (unbounded when size
// is zero), each under its own timeout. Jobs outlive the context passed to
// Submit; they are only cancelled by Shutdown.
type Pool struct {
	sem      chan struct{}
	timeout  time.Duration
	running  atomic.Int64
	onChange func(running int)

	wg     sync.WaitGroup
	base   context.Context
	cancel context.CancelFunc
}

func NewPool(size int, timeout time.Duration) *Pool {
	base, cancel := context.WithCancel(context.Background())
	p := &Pool{timeout: timeout, base: base, cancel: cancel}
	if size > 0 {
		p.sem = make(chan struct{}, size)
	}
	return p
}

// OnChange registers fn to be called with the number of running jobs every
// time it changes. It must be set before the first Submit.
func (p *Pool) OnChange(fn func(running int)) { p.onChange = fn }

func (p *Pool) Running() int { return int(p.running.Load()) }

// Batch is the set of jobs started by one Submit call.
type Batch struct {
	g    errgroup.Group
	size int
}

func (b *Batch) Len() int { return b.size }

// Wait blocks until every job in the batch returned and reports the first
// error. Failures do not cancel sibling jobs.
func (b *Batch) Wait() error { return b.g.Wait() }

// Submit starts jobs and returns without waiting for them.
func (p *Pool) Submit(ctx context.Context, jobs ...Job) *Batch {
	b := &Batch{size: len(jobs)}
	for _, job := range jobs {
		p.wg.Add(1)
		b.g.Go(func() error {
			defer p.wg.Done()
			return p.run(ctx, job)
		})
	}
	return b
}

func (p *Pool) run(ctx context.Context, job Job) (err error) {
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-p.base.Done():
			return p.base.Err()
		}
	}

	p.changed(p.running.Add(1))
	defer func() { p.changed(p.running.Add(-1)) }()

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(p.base, cancel)
	defer stop()
	if p.timeout > 0 {
		var cancelTimeout context.CancelFunc
		jobCtx, cancelTimeout = context.WithTimeout(jobCtx, p.timeout)
		defer cancelTimeout()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Job: job.Name, Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(jobCtx)
}

func (p *Pool) changed(n int64) {
	if p.onChange != nil {
		p.onChange(int(n))
	}
}

// Shutdown waits for running jobs until ctx expires, then cancels whatever
// is still running.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
