package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/modpipe/config"
	"github.com/target/modpipe/internal/adapters/classifier"
	"github.com/target/modpipe/internal/adapters/jobrunner"
	"github.com/target/modpipe/internal/adapters/reaper"
	"github.com/target/modpipe/internal/data"
	"github.com/target/modpipe/internal/data/cryptoutil"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/observability/statsd"
	"github.com/target/modpipe/internal/service"
	"github.com/target/modpipe/internal/service/failurenotifier"
)

//nolint:ireturn // Returning Encryptor interface is required for runner injection.
func resolveEncryptor(enc cryptoutil.Encryptor, logger *slog.Logger) cryptoutil.Encryptor {
	if enc != nil {
		return enc
	}
	if logger != nil {
		logger.Warn("no encryptor provided; using noop encryptor")
	}
	return &cryptoutil.NoopEncryptor{}
}

// runJobRunner centralizes job runner setup so individual runners only pass job-specific options.
func runJobRunner(ctx context.Context, opts jobrunner.RunnerOptions) error {
	label := jobRunnerLabel(opts.JobType)

	runner, err := jobrunner.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("create %s runner: %w", label, err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run %s runner: %w", label, runErr)
	}
	return nil
}

func jobRunnerLabel(jobType model.JobType) string {
	switch jobType {
	case model.JobTypeModerateComment:
		return "moderation"
	case model.JobTypeDeliverWebhook:
		return "webhook delivery"
	}

	if jobType == "" {
		return "job"
	}
	return strings.ToLower(strings.ReplaceAll(string(jobType), "_", " "))
}

// buildRunnerJobService builds the JobService a worker runner shares with its
// domain service, so the handler and the runner see the same lease policy.
func buildRunnerJobService(
	db *sql.DB,
	lease time.Duration,
	logger *slog.Logger,
	notifier *failurenotifier.Service,
) (*service.JobService, error) {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return service.NewJobService(service.JobServiceOptions{
		Repo:            data.NewJobRepo(db, data.RepoConfig{}),
		DefaultLease:    lease,
		Logger:          logger,
		FailureNotifier: notifier,
	})
}

// ModerationWorkerConfig contains configuration for the moderation worker pool.
type ModerationWorkerConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Lease           time.Duration
	Concurrency     int
	ClassifyTimeout time.Duration
	Scorer          config.ScorerConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunModerationWorker starts the worker pool that classifies moderate_comment jobs.
func RunModerationWorker(ctx context.Context, cfg ModerationWorkerConfig) error {
	scorer, err := classifier.NewScorerClient(classifier.ScorerConfig{
		BaseURL:    cfg.Scorer.BaseURL,
		Timeout:    cfg.Scorer.Timeout,
		RetryLimit: cfg.Scorer.RetryLimit,
	})
	if err != nil {
		return fmt.Errorf("create scorer client: %w", err)
	}

	textClassifier, err := classifier.New(classifier.Options{
		Scorer: scorer,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}

	jobs, err := buildRunnerJobService(cfg.DB, cfg.Lease, cfg.Logger, cfg.FailureNotifier)
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}

	moderation, err := service.NewModerationService(service.ModerationServiceOptions{
		Jobs:            jobs,
		Classifier:      textClassifier,
		ClassifyTimeout: cfg.ClassifyTimeout,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create moderation service: %w", err)
	}

	return runJobRunner(ctx, jobrunner.RunnerOptions{
		DB:              cfg.DB,
		Logger:          cfg.Logger,
		Lease:           cfg.Lease,
		Concurrency:     cfg.Concurrency,
		JobType:         model.JobTypeModerateComment,
		Handler:         moderation.Process,
		Jobs:            jobs,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
}

// WebhookDispatcherConfig contains configuration for the webhook dispatcher.
type WebhookDispatcherConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Lease           time.Duration
	Concurrency     int
	Timeout         time.Duration
	MaxAttempts     int
	RetryDelayStep  time.Duration
	Encryptor       cryptoutil.Encryptor
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWebhookDispatcher starts the dispatcher that delivers signed verdicts
// for deliver_webhook jobs.
func RunWebhookDispatcher(ctx context.Context, cfg WebhookDispatcherConfig) error {
	jobs, err := buildRunnerJobService(cfg.DB, cfg.Lease, cfg.Logger, cfg.FailureNotifier)
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}

	enc := resolveEncryptor(cfg.Encryptor, cfg.Logger)

	webhooks, err := service.NewWebhookService(service.WebhookServiceOptions{
		Jobs:           jobs,
		Clients:        data.NewClientRepo(cfg.DB, enc),
		Deliveries:     data.NewWebhookDeliveryRepo(cfg.DB),
		Timeout:        cfg.Timeout,
		MaxAttempts:    cfg.MaxAttempts,
		RetryDelayStep: cfg.RetryDelayStep,
		Logger:         cfg.Logger,
		Metrics:        cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create webhook service: %w", err)
	}

	return runJobRunner(ctx, jobrunner.RunnerOptions{
		DB:              cfg.DB,
		Logger:          cfg.Logger,
		Lease:           cfg.Lease,
		Concurrency:     cfg.Concurrency,
		JobType:         model.JobTypeDeliverWebhook,
		Handler:         webhooks.Deliver,
		Jobs:            jobs,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
