package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeModerationWorker runs the comment moderation worker pool.
	ServiceModeModerationWorker ServiceMode = "moderation-worker"
	// ServiceModeWebhookDispatcher runs the webhook delivery dispatcher.
	ServiceModeWebhookDispatcher ServiceMode = "webhook-dispatcher"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeModerationWorker,
		ServiceModeWebhookDispatcher,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeModerationWorker,
			ServiceModeWebhookDispatcher,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, moderation-worker, webhook-dispatcher, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ScorerConfig contains classifier scorer endpoint configuration.
type ScorerConfig struct {
	// BaseURL is the scorer service base URL.
	BaseURL string `env:"SCORER_URL" envDefault:"http://localhost:8500"`

	// Timeout is the per-request timeout for scorer calls.
	Timeout time.Duration `env:"SCORER_TIMEOUT" envDefault:"10s"`

	// RetryLimit is the number of retries after a failed scorer call.
	RetryLimit int `env:"SCORER_RETRY_LIMIT" envDefault:"3"`
}

// Sanitize applies guardrails to scorer configuration values.
func (s *ScorerConfig) Sanitize() {
	if s.Timeout < time.Second {
		s.Timeout = time.Second
	}
	if s.RetryLimit < 0 {
		s.RetryLimit = 0
	}
	if s.RetryLimit > 10 {
		s.RetryLimit = 10
	}
}

// ModerationWorkerConfig contains moderation worker pool configuration.
type ModerationWorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"MODERATION_WORKER_CONCURRENCY" envDefault:"4"`

	// JobLease is the duration to lease a moderation job.
	JobLease time.Duration `env:"MODERATION_WORKER_JOB_LEASE" envDefault:"30s"`

	// ClassifyTimeout is the per-job classification timeout.
	ClassifyTimeout time.Duration `env:"MODERATION_CLASSIFY_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to moderation worker configuration values.
func (m *ModerationWorkerConfig) Sanitize() {
	if m.Concurrency < 1 {
		m.Concurrency = 1
	}
	if m.JobLease < 5*time.Second {
		m.JobLease = 5 * time.Second
	}
	if m.ClassifyTimeout < time.Second {
		m.ClassifyTimeout = time.Second
	}
}

// WebhookDispatcherConfig contains webhook dispatcher configuration.
type WebhookDispatcherConfig struct {
	// Concurrency is the number of dispatcher goroutines.
	Concurrency int `env:"WEBHOOK_DISPATCHER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease a webhook delivery job.
	JobLease time.Duration `env:"WEBHOOK_DISPATCHER_JOB_LEASE" envDefault:"30s"`

	// Timeout is the per-attempt outbound HTTP timeout.
	Timeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`

	// MaxAttempts is the delivery attempt budget per job.
	MaxAttempts int `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"3"`

	// RetryDelayStep is the delay unit between attempts: attempt n is
	// rescheduled n*RetryDelayStep after failing.
	RetryDelayStep time.Duration `env:"WEBHOOK_RETRY_DELAY_STEP" envDefault:"5s"`
}

// Sanitize applies guardrails to webhook dispatcher configuration values.
func (w *WebhookDispatcherConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.JobLease < 5*time.Second {
		w.JobLease = 5 * time.Second
	}
	if w.Timeout < time.Second {
		w.Timeout = time.Second
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if w.MaxAttempts > 10 {
		w.MaxAttempts = 10
	}
	if w.RetryDelayStep < time.Second {
		w.RetryDelayStep = time.Second
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// DeliveryLogsMaxAge is the maximum age for webhook delivery log rows
	// before deletion. These records keep delivery history after their
	// corresponding jobs are reaped.
	DeliveryLogsMaxAge time.Duration `env:"REAPER_DELIVERY_LOGS_MAX_AGE" envDefault:"2160h"` // 90 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.DeliveryLogsMaxAge < 24*time.Hour {
		r.DeliveryLogsMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
