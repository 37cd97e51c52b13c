// Package workers provides bounded fan-out for concurrent recon operations.
// A Pool caps how many units of work run at once. Dispatch stops as soon as
// the caller's context ends, and every unit observes that same context.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/anstrom/reconnoiter/internal/logging"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
}

// Outcome is the typed result of one Map item.
type Outcome[R any] struct {
	Value    R
	Err      error
	Duration time.Duration
}

// Config holds configuration for the worker pool.
type Config struct {
	// Name labels the pool in logs.
	Name string
	// Size is the maximum number of jobs running at once.
	Size int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Name: "default",
		Size: 10,
	}
}

// Pool bounds concurrent execution. A Pool may be shared by many callers;
// the bound applies across all of them.
type Pool struct {
	config Config
	sem    *semaphore.Weighted
}

// New creates a new worker pool with the given configuration.
func New(config Config) (*Pool, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("worker pool %q size must be positive, got %d", config.Name, config.Size)
	}
	return &Pool{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.Size)),
	}, nil
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.config.Size
}

// Name returns the pool label.
func (p *Pool) Name() string {
	return p.config.Name
}

// dispatch calls run for indexes 0..n-1 with at most Size in flight. It
// returns once every started call has returned. The error is non-nil only
// when ctx ended before every index was dispatched.
func (p *Pool) dispatch(ctx context.Context, n int, run func(ctx context.Context, i int)) error {
	logging.Debug("Dispatching work",
		"pool", p.config.Name,
		"size", p.config.Size,
		"units", n)

	var wg sync.WaitGroup
	var err error
	for i := 0; i < n; i++ {
		// Acquire may succeed on an already-done context.
		if err = ctx.Err(); err != nil {
			break
		}
		if err = p.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			defer p.sem.Release(1)
			run(ctx, i)
		}()
	}
	wg.Wait()

	if err != nil {
		logging.Debug("Dispatch stopped early",
			"pool", p.config.Name,
			"error", err)
	}
	return err
}

// Run executes jobs with bounded concurrency and returns their results in
// submission order. Jobs never dispatched because ctx ended are absent from
// the returned slice's populated entries and ctx's error is returned.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	err := p.dispatch(ctx, len(jobs), func(ctx context.Context, i int) {
		job := jobs[i]
		start := time.Now()
		jobErr := job.Execute(ctx)
		results[i] = Result{
			JobID:    job.ID(),
			JobType:  job.Type(),
			Error:    jobErr,
			Duration: time.Since(start),
		}
		if jobErr != nil {
			logging.Debug("Job failed",
				"pool", p.config.Name,
				"job_id", job.ID(),
				"job_type", job.Type(),
				"error", jobErr)
		}
	})
	return results, err
}

// Map applies fn to every item with at most p.Size() calls in flight.
// Outcomes are returned in input order. If ctx ends mid-dispatch the
// remaining items are skipped and ctx's error is returned with the partial
// outcomes.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) (R, error)) ([]Outcome[R], error) {
	outcomes := make([]Outcome[R], len(items))
	err := p.dispatch(ctx, len(items), func(ctx context.Context, i int) {
		start := time.Now()
		v, fnErr := fn(ctx, items[i])
		outcomes[i] = Outcome[R]{Value: v, Err: fnErr, Duration: time.Since(start)}
	})
	return outcomes, err
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	id      string
	jobType string
	fn      func(ctx context.Context) error
}

// NewFuncJob creates a job running fn.
func NewFuncJob(id, jobType string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{
		id:      id,
		jobType: jobType,
		fn:      fn,
	}
}

// Execute implements the Job interface.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.fn(ctx)
}

// ID implements the Job interface.
func (j *FuncJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *FuncJob) Type() string {
	return j.jobType
}
