package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/observability/metrics"
	"github.com/target/modpipe/internal/observability/statsd"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body.
	SignatureHeader = "X-Hub-Signature-256"

	defaultWebhookTimeout   = 10 * time.Second
	defaultMaxAttempts      = 3
	defaultRetryDelayStep   = 5 * time.Second
	defaultWebhookUserAgent = "modpipe-webhook/1.0"
)

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Jobs           *JobService                // Required: job lifecycle service
	Clients        core.ClientRepository      // Required: client lookup for URL and secret
	Deliveries     core.DeliveryLogRepository // Required: append-only attempt log
	HTTPClient     *http.Client               // Optional: outbound client, default 10s timeout
	Timeout        time.Duration              // Optional: per-attempt timeout, default 10s
	MaxAttempts    int                        // Optional: delivery attempt budget, default 3
	RetryDelayStep time.Duration              // Optional: delay unit between attempts, default 5s
	UserAgent      string                     // Optional: outbound User-Agent header
	Logger         *slog.Logger               // Optional: structured logger
	Metrics        statsd.Sink                // Optional: job lifecycle metrics sink
	Clock          func() time.Time           // Optional: override for tests
}

// WebhookService delivers signed moderation verdicts to client endpoints.
//
// Each deliver_webhook job corresponds to one delivery attempt. The retry
// schedule lives in the job queue itself: a failed attempt reschedules the
// job with a delay of attempt*RetryDelayStep, so attempt 2 runs ~5s after
// attempt 1 and attempt 3 ~10s after attempt 2. Every attempt, success or
// failure, appends exactly one delivery log row, keyed by the moderation
// job id the payload carries so the attempt trail is queryable by the id
// the submitter holds.
type WebhookService struct {
	jobs           *JobService
	clients        core.ClientRepository
	deliveries     core.DeliveryLogRepository
	httpClient     *http.Client
	maxAttempts    int
	retryDelayStep time.Duration
	userAgent      string
	logger         *slog.Logger
	metrics        statsd.Sink
	now            func() time.Time
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Clients == nil {
		return nil, errors.New("ClientRepository is required")
	}
	if opts.Deliveries == nil {
		return nil, errors.New("DeliveryLogRepository is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	retryDelayStep := opts.RetryDelayStep
	if retryDelayStep <= 0 {
		retryDelayStep = defaultRetryDelayStep
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultWebhookUserAgent
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{
		jobs:           opts.Jobs,
		clients:        opts.Clients,
		deliveries:     opts.Deliveries,
		httpClient:     httpClient,
		maxAttempts:    maxAttempts,
		retryDelayStep: retryDelayStep,
		userAgent:      userAgent,
		logger:         logger,
		metrics:        opts.Metrics,
		now:            now,
	}, nil
}

// MustNewWebhookService constructs a new WebhookService and panics on error.
func MustNewWebhookService(opts WebhookServiceOptions) *WebhookService {
	svc, err := NewWebhookService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create WebhookService: %v", err))
	}
	return svc
}

// Deliver executes one delivery attempt for a reserved deliver_webhook job.
// The signature is computed over the literal marshaled bytes that are sent,
// so receivers can verify with a byte-identical HMAC.
func (s *WebhookService) Deliver(ctx context.Context, job *model.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	if job.Type != model.JobTypeDeliverWebhook {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}

	moderationJobID, err := moderationJobIDFromMetadata(job.Metadata)
	if err != nil {
		// Malformed metadata can never succeed on retry.
		return s.terminalFailure(ctx, job, "", 0, "", nil, nil, err.Error())
	}

	modJob, err := s.jobs.GetByID(ctx, moderationJobID)
	if err != nil {
		return fmt.Errorf("load moderation job %s: %w", moderationJobID, err)
	}
	if modJob.Status != model.JobStatusCompleted || modJob.Result == nil {
		// Only completed jobs are webhook-eligible. Ack and move on.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook job references non-completed moderation job",
				"id", job.ID, "moderation_job_id", moderationJobID, "status", modJob.Status)
		}
		_, err = s.jobs.Complete(ctx, job.ID)
		return err
	}

	client, err := s.clients.GetByID(ctx, job.ClientID)
	if err != nil {
		return fmt.Errorf("load client %s: %w", job.ClientID, err)
	}
	if !client.Active() {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "skipping webhook for suspended client",
				"id", job.ID, "client_id", client.ID)
		}
		_, err = s.jobs.Complete(ctx, job.ID)
		return err
	}

	attempt, err := s.deliveries.NextAttemptNumber(ctx, modJob.ID)
	if err != nil {
		return fmt.Errorf("next attempt number for job %s: %w", modJob.ID, err)
	}

	body, err := marshalPayload(modJob, s.now())
	if err != nil {
		return fmt.Errorf("marshal webhook payload for job %s: %w", modJob.ID, err)
	}

	outcome := s.post(ctx, client, body)

	if outcome.success {
		return s.recordSuccess(ctx, job, modJob.ID, client, attempt, outcome)
	}
	return s.recordFailure(ctx, job, modJob.ID, client, attempt, outcome)
}

// ListDeliveries returns the delivery audit trail for a moderation job.
func (s *WebhookService) ListDeliveries(
	ctx context.Context,
	jobID string,
) ([]*model.WebhookDeliveryLog, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}
	logs, err := s.deliveries.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries for job %s: %w", jobID, err)
	}
	return logs, nil
}

type deliveryOutcome struct {
	success        bool
	statusCode     *int
	responseTimeMS *int64
	errMsg         string
}

func (s *WebhookService) post(
	ctx context.Context,
	client *model.Client,
	body []byte,
) deliveryOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return deliveryOutcome{errMsg: fmt.Sprintf("build request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(SignatureHeader, SignBody(client.HMACSecret, body))

	start := s.now()
	resp, err := s.httpClient.Do(req)
	elapsed := s.now().Sub(start).Milliseconds()

	if err != nil {
		return deliveryOutcome{
			responseTimeMS: &elapsed,
			errMsg:         fmt.Sprintf("post webhook: %v", err),
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return deliveryOutcome{success: true, statusCode: &code, responseTimeMS: &elapsed}
	}

	return deliveryOutcome{
		statusCode:     &code,
		responseTimeMS: &elapsed,
		errMsg:         fmt.Sprintf("endpoint returned status %d", code),
	}
}

func (s *WebhookService) recordSuccess(
	ctx context.Context,
	job *model.Job,
	logJobID string,
	client *model.Client,
	attempt int,
	outcome deliveryOutcome,
) error {
	if _, err := s.deliveries.Append(ctx, core.AppendDeliveryLogParams{
		JobID:              logJobID,
		WebhookURL:         client.WebhookURL,
		AttemptNumber:      attempt,
		Status:             model.DeliveryStatusSuccess,
		ResponseStatusCode: outcome.statusCode,
		ResponseTimeMS:     outcome.responseTimeMS,
	}); err != nil {
		return fmt.Errorf("append delivery log for job %s: %w", logJobID, err)
	}

	if _, err := s.jobs.Complete(ctx, job.ID); err != nil {
		return err
	}

	s.emit(job, "complete", metrics.ResultSuccess, outcome)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook delivered",
			"id", job.ID,
			"client_id", client.ID,
			"attempt", attempt,
			"response_time_ms", derefInt64(outcome.responseTimeMS),
		)
	}

	return nil
}

func (s *WebhookService) recordFailure(
	ctx context.Context,
	job *model.Job,
	logJobID string,
	client *model.Client,
	attempt int,
	outcome deliveryOutcome,
) error {
	if attempt >= s.maxAttempts {
		return s.terminalFailure(
			ctx, job, logJobID, attempt, client.WebhookURL,
			outcome.statusCode, outcome.responseTimeMS, outcome.errMsg,
		)
	}

	if _, err := s.deliveries.Append(ctx, core.AppendDeliveryLogParams{
		JobID:              logJobID,
		WebhookURL:         client.WebhookURL,
		AttemptNumber:      attempt,
		Status:             model.DeliveryStatusRetrying,
		ResponseStatusCode: outcome.statusCode,
		ResponseTimeMS:     outcome.responseTimeMS,
		ErrorMessage:       &outcome.errMsg,
	}); err != nil {
		return fmt.Errorf("append delivery log for job %s: %w", logJobID, err)
	}

	delay := time.Duration(attempt) * s.retryDelayStep
	if _, err := s.jobs.FailWithDelay(ctx, job.ID, outcome.errMsg, delay); err != nil {
		return err
	}

	s.emit(job, "fail", metrics.ResultError, outcome)

	if s.logger != nil {
		s.logger.WarnContext(ctx, "webhook delivery failed, retry scheduled",
			"id", job.ID,
			"client_id", client.ID,
			"attempt", attempt,
			"retry_delay", delay,
			"error", outcome.errMsg,
		)
	}

	return nil
}

func (s *WebhookService) terminalFailure(
	ctx context.Context,
	job *model.Job,
	logJobID string,
	attempt int,
	webhookURL string,
	statusCode *int,
	responseTimeMS *int64,
	errMsg string,
) error {
	if attempt > 0 {
		if _, err := s.deliveries.Append(ctx, core.AppendDeliveryLogParams{
			JobID:              logJobID,
			WebhookURL:         webhookURL,
			AttemptNumber:      attempt,
			Status:             model.DeliveryStatusFailed,
			ResponseStatusCode: statusCode,
			ResponseTimeMS:     responseTimeMS,
			ErrorMessage:       &errMsg,
		}); err != nil {
			return fmt.Errorf("append delivery log for job %s: %w", logJobID, err)
		}
	}

	if _, err := s.jobs.FailWithDetails(ctx, job.ID, errMsg, JobFailureDetails{
		ErrorClass: "webhook_exhausted",
	}); err != nil {
		return err
	}

	s.emit(job, "fail", metrics.ResultError, deliveryOutcome{errMsg: errMsg})

	if s.logger != nil {
		s.logger.WarnContext(ctx, "webhook delivery exhausted",
			"id", job.ID, "attempt", attempt, "error", errMsg)
	}

	return nil
}

func (s *WebhookService) emit(job *model.Job, transition, result string, outcome deliveryOutcome) {
	var d time.Duration
	if outcome.responseTimeMS != nil {
		d = time.Duration(*outcome.responseTimeMS) * time.Millisecond
	}
	var err error
	if outcome.errMsg != "" {
		err = errors.New(outcome.errMsg)
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: transition,
		Result:     result,
		Duration:   d,
		Err:        err,
	})
}

// SignBody computes the webhook signature header value for a payload body.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against a body in
// constant time. Exposed for client-side verification and tests.
func VerifySignature(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte(SignBody(secret, body)), []byte(header))
}

func marshalPayload(modJob *model.Job, now time.Time) ([]byte, error) {
	payload := model.WebhookPayload{
		JobID:            modJob.ID,
		CommentID:        modJob.CommentID,
		Text:             modJob.Text,
		Sentiment:        string(modJob.Result.Sentiment),
		ModerationResult: string(modJob.Result.ModerationResult),
		Confidence:       modJob.Result.Confidence,
		Reasoning:        modJob.Result.Reasoning,
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

func moderationJobIDFromMetadata(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("webhook job has no metadata")
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", fmt.Errorf("decode webhook job metadata: %w", err)
	}
	id := meta[model.MetadataModerationJobID]
	if id == "" {
		return "", errors.New("webhook job metadata missing moderation job id")
	}
	return id, nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
