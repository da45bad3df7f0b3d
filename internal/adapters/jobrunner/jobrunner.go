// Package jobrunner provides worker pools that reserve queued jobs and hand them to handlers.
package jobrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/data"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/observability/metrics"
	"github.com/target/modpipe/internal/observability/statsd"
	"github.com/target/modpipe/internal/service"
	"github.com/target/modpipe/internal/service/failurenotifier"
	"golang.org/x/sync/errgroup"
)

// HandlerFunc processes a reserved job. The handler owns the job's terminal
// transition (complete, fail, or reschedule); a returned error means the
// outcome could not be recorded and the job is left for lease reclamation.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Job processing settings
	Lease       time.Duration // per-job lease duration; defaults to 30s
	Concurrency int           // number of worker goroutines; defaults to 1
	JobType     model.JobType // which job type to process; required

	// Handler executes each reserved job; required.
	Handler HandlerFunc

	// Optional dependency injections (useful for tests/decoupling)
	Jobs            *service.JobService
	JobsRepo        core.JobRepository
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner pulls jobs of a single type and executes them with the configured handler.
type Runner struct {
	jobs    *service.JobService
	handler HandlerFunc
	logger  *slog.Logger
	lease   time.Duration
	jobType model.JobType
	workers int
	metrics statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func buildJobService(opts RunnerOptions, lease time.Duration) (*service.JobService, error) {
	if opts.Jobs != nil {
		return opts.Jobs, nil
	}
	repo := opts.JobsRepo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	return service.NewJobService(service.JobServiceOptions{
		Repo:            repo,
		DefaultLease:    lease,
		Logger:          opts.Logger,
		FailureNotifier: opts.FailureNotifier,
	})
}

// NewRunner wires repositories/services and constructs a job runner for a single job type.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil && opts.Jobs == nil {
		return nil, errors.New("one of DB, JobsRepo, or Jobs must be provided")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler must be provided")
	}
	if !opts.JobType.Valid() {
		return nil, fmt.Errorf("invalid job type %q", opts.JobType)
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	jobs, err := buildJobService(opts, lease)
	if err != nil {
		return nil, fmt.Errorf("build job service: %w", err)
	}

	return &Runner{
		jobs:    jobs,
		handler: opts.Handler,
		logger:  resolveLogger(opts.Logger),
		lease:   lease,
		jobType: opts.JobType,
		workers: workers,
		metrics: opts.Metrics,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "type", r.jobType, "workers", r.workers, "lease", r.lease)

	// Subscribe for notifications for the job type we process
	unsub, ch := r.jobs.Subscribe(r.jobType)
	defer unsub()

	// First worker error cancels the group and wins.
	group, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		group.Go(func() error { return r.workerLoop(gctx, ch) })
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.jobType, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go r.heartbeatLoop(hbCtx, job.ID)

	err := r.handler(ctx, job)
	stopHeartbeat()

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		r.logger.ErrorContext(ctx, "job handler error", "job_id", job.ID, "type", job.Type, "error", err)
	}
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: "processed",
		Result:     result,
		Duration:   time.Since(start),
		Err:        err,
	})
}

// heartbeatLoop renews the job lease while the handler runs. A lost lease is
// logged but does not interrupt the handler; the outcome recording resolves
// any race with lease reclamation.
func (r *Runner) heartbeatLoop(ctx context.Context, jobID string) {
	interval := r.lease / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := r.jobs.Heartbeat(ctx, jobID, r.lease)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.WarnContext(ctx, "job heartbeat error", "job_id", jobID, "error", err)
				}
				return
			}
			if !updated {
				r.logger.WarnContext(ctx, "job lease no longer held", "job_id", jobID)
				return
			}
		}
	}
}
