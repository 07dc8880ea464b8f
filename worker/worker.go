// Package worker runs independent units of script work concurrently on a
// fixed set of reusable Tasks.
//
// Each unit runs under sandbox.RunSandboxed, so a Task handed from one unit
// to the next never carries an interceptor, a namespace or hygiene state
// across the boundary.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/podhmo/lispcore/sandbox"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of work and the interceptor it runs under. A nil
// Interceptor leaves the task's default policy in charge.
type Job struct {
	Name        string
	Interceptor sandbox.Interceptor
	Work        sandbox.UnitOfWork
}

// Pool owns n Tasks and lends them to jobs.
type Pool struct {
	size   int
	tasks  chan *sandbox.Task
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	taskOpts []sandbox.TaskOption
}

// WithLogger sets the logger of the pool and its tasks.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithTaskOptions configures every task of the pool.
func WithTaskOptions(opts ...sandbox.TaskOption) Option {
	return func(c *config) { c.taskOpts = append(c.taskOpts, opts...) }
}

// New creates a pool of n tasks. n below one is treated as one.
func New(n int, opts ...Option) *Pool {
	if n < 1 {
		n = 1
	}
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	taskOpts := append([]sandbox.TaskOption{sandbox.WithLogger(c.logger)}, c.taskOpts...)

	p := &Pool{size: n, tasks: make(chan *sandbox.Task, n), logger: c.logger}
	for i := 0; i < n; i++ {
		p.tasks <- sandbox.NewTask(taskOpts...)
	}
	return p
}

// Size returns the number of tasks.
func (p *Pool) Size() int { return p.size }

// Run executes jobs with at most Size of them in flight and returns their
// errors in job order. A failing job does not stop the others; a panicking
// job is reported as an error after its sandbox has been torn down.
func (p *Pool) Run(ctx context.Context, jobs ...Job) []error {
	errs := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(p.size)
	for i, job := range jobs {
		g.Go(func() error {
			errs[i] = p.run(ctx, job)
			return nil
		})
	}
	g.Wait()
	return errs
}

func (p *Pool) run(ctx context.Context, job Job) (err error) {
	var task *sandbox.Task
	select {
	case task = <-p.tasks:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { p.tasks <- task }()

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "job panicked", "job", job.Name, "task", task.ID(), "panic", r)
			err = fmt.Errorf("worker: job %q panicked: %v", job.Name, r)
		}
	}()
	return sandbox.RunSandboxed(ctx, task, job.Interceptor, job.Work)
}
