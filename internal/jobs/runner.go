package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
	"github.com/iskolarlink/iskolarlink-backend/pkg/metrics"
)

// ErrLockHeld is returned when another run already owns the lock.
var ErrLockHeld = errors.New("another run holds the job lock")

type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
}

// Runner executes every registered job once under a shared lock.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Runner{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
	}, nil
}

// RunOnce runs all jobs in order. A failing job does not stop the ones after
// it; every failure is returned combined.
func (r *Runner) RunOnce(ctx context.Context) error {
	locked, err := r.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !locked {
		return ErrLockHeld
	}
	defer func() {
		if relErr := r.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			r.logg.Error(ctx, "failed to release job lock", relErr)
		}
	}()

	var errs error
	for _, job := range r.registry.Jobs() {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := r.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}

func (r *Runner) runJob(ctx context.Context, job Job) error {
	jobCtx := r.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "job.run",
	})
	r.logg.Info(jobCtx, "job start")

	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	r.metrics.ObserveDuration(job.Name(), duration)

	jobCtx = r.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(jobCtx, "job failed", err)
		r.metrics.IncFailure(job.Name())
		return err
	}
	r.logg.Info(jobCtx, "job completed")
	r.metrics.IncSuccess(job.Name())
	return nil
}
