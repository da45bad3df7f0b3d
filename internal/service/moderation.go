package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/modpipe/internal/adapters/classifier"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/domain/moderation"
	"github.com/target/modpipe/internal/observability/metrics"
	"github.com/target/modpipe/internal/observability/statsd"
)

// TextClassifier produces a structured classification for raw comment text.
type TextClassifier interface {
	Classify(ctx context.Context, raw string) (moderation.Classification, error)
}

// ModerationServiceOptions groups dependencies for ModerationService.
type ModerationServiceOptions struct {
	Jobs            *JobService        // Required: job lifecycle service
	Classifier      TextClassifier     // Required: text classifier
	Policy          *moderation.Policy // Optional: decision policy, defaults to moderation.DefaultPolicy
	ClassifyTimeout time.Duration      // Optional: per-job classification timeout, default 30s
	Logger          *slog.Logger       // Optional: structured logger
	Metrics         statsd.Sink        // Optional: job lifecycle metrics sink
	Clock           func() time.Time   // Optional: override for tests
}

const defaultClassifyTimeout = 30 * time.Second

// ModerationService runs reserved moderation jobs through the classifier and
// decision policy, then persists the verdict. Persisting the verdict and
// enqueuing the webhook delivery job happen in one repository transaction, so
// a crash between the two cannot strand a completed job without a delivery.
type ModerationService struct {
	jobs            *JobService
	classifier      TextClassifier
	policy          moderation.Policy
	classifyTimeout time.Duration
	logger          *slog.Logger
	metrics         statsd.Sink
	now             func() time.Time
}

// NewModerationService constructs a new ModerationService.
func NewModerationService(opts ModerationServiceOptions) (*ModerationService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("Classifier is required")
	}

	policy := moderation.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	timeout := opts.ClassifyTimeout
	if timeout <= 0 {
		timeout = defaultClassifyTimeout
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "moderation_service")
	}

	return &ModerationService{
		jobs:            opts.Jobs,
		classifier:      opts.Classifier,
		policy:          policy,
		classifyTimeout: timeout,
		logger:          logger,
		metrics:         opts.Metrics,
		now:             now,
	}, nil
}

// MustNewModerationService constructs a new ModerationService and panics on error.
func MustNewModerationService(opts ModerationServiceOptions) *ModerationService {
	svc, err := NewModerationService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ModerationService: %v", err))
	}
	return svc
}

// Process classifies a reserved job and persists the verdict. A scorer
// failure marks the attempt failed so the job is retried or moved to its
// terminal state by the repository's retry accounting; clients are never
// notified of infrastructure failures.
func (s *ModerationService) Process(ctx context.Context, job *model.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	if job.Type != model.JobTypeModerateComment {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}

	start := s.now()

	classifyCtx, cancel := context.WithTimeout(ctx, s.classifyTimeout)
	defer cancel()

	classification, err := s.classifier.Classify(classifyCtx, job.Text)
	if err != nil {
		return s.failAttempt(ctx, job, start, err)
	}

	decision := moderation.Decide(classification, s.policy)

	result := &model.JobResult{
		Sentiment:            classification.Sentiment,
		Labels:               classification.Labels,
		SeverityScore:        classification.Severity,
		ModerationResult:     decision.Action,
		Confidence:           decision.Confidence,
		Reasoning:            decision.Reasoning,
		ProcessingDurationMS: s.now().Sub(start).Milliseconds(),
	}

	completed, err := s.jobs.CompleteModeration(ctx, job.ID, result)
	if err != nil {
		s.emit(job, "complete", metrics.ResultError, s.now().Sub(start), err)
		return fmt.Errorf("persist moderation result for job %s: %w", job.ID, err)
	}
	if !completed {
		// Redelivered job already resolved by another worker.
		s.emit(job, "complete", metrics.ResultNoop, 0, nil)
		return nil
	}

	s.emit(job, "complete", metrics.ResultSuccess, s.now().Sub(start), nil)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "moderation job processed",
			"id", job.ID,
			"client_id", job.ClientID,
			"action", decision.Action,
			"severity", classification.Severity,
			"duration_ms", result.ProcessingDurationMS,
		)
	}

	return nil
}

func (s *ModerationService) failAttempt(
	ctx context.Context,
	job *model.Job,
	start time.Time,
	cause error,
) error {
	errClass := "classification_error"
	if errors.Is(cause, classifier.ErrScorerUnavailable) {
		errClass = "scorer_unavailable"
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, "classification failed",
			"id", job.ID,
			"client_id", job.ClientID,
			"error", cause,
			"retry_count", job.RetryCount,
			"max_retries", job.MaxRetries,
		)
	}

	s.emit(job, "fail", metrics.ResultError, s.now().Sub(start), cause)

	_, failErr := s.jobs.FailWithDetails(ctx, job.ID, cause.Error(), JobFailureDetails{
		ErrorClass: errClass,
	})
	if failErr != nil {
		return fmt.Errorf("record classification failure for job %s: %w", job.ID, failErr)
	}

	return nil
}

func (s *ModerationService) emit(job *model.Job, transition, result string, d time.Duration, err error) {
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: transition,
		Result:     result,
		Duration:   d,
		Err:        err,
	})
}
