package batch

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/phonoscope/internal/observe"
)

// Result is the outcome of one job.
type Result[T any] struct {
	Job   Job
	Value T
	Err   error
}

// Option configures [Run].
type Option func(*config)

type config struct {
	metrics  *observe.Metrics
	progress func(done, total int)
}

// WithMetrics sets the metrics instance that tracks active jobs. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithProgress registers fn to be called after each job finishes. Calls are
// serialised.
func WithProgress(fn func(done, total int)) Option {
	return func(c *config) { c.progress = fn }
}

// Run calls fn for every job with at most workers calls in flight
// (runtime.NumCPU when workers <= 0). Results are in job order. A job error
// is stored in its Result; Run itself only fails when ctx is cancelled, in
// which case jobs that never started carry ctx's error.
func Run[T any](ctx context.Context, jobs []Job, workers int, fn func(context.Context, Job) (T, error), opts ...Option) ([]Result[T], error) {
	cfg := config{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result[T], len(jobs))
	done := make(chan struct{}, len(jobs))
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		n := 0
		for range done {
			n++
			if cfg.progress != nil {
				cfg.progress(n, len(jobs))
			}
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, job := range jobs {
		results[i].Job = job
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			defer func() { done <- struct{}{} }()
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			cfg.metrics.ActiveJobs.Add(ctx, 1)
			defer cfg.metrics.ActiveJobs.Add(context.WithoutCancel(ctx), -1)

			v, err := fn(ctx, job)
			results[i].Value, results[i].Err = v, err
			if err != nil {
				slog.Warn("batch: job failed", "line", job.Line, "file", job.File, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(done)
	<-progressDone

	return results, ctx.Err()
}

// Failed returns the results that carry an error.
func Failed[T any](results []Result[T]) []Result[T] {
	var out []Result[T]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
