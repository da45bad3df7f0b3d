package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/target/modpipe/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	CompleteModeration(ctx context.Context, id string, result *model.JobResult) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	FailWithDelay(ctx context.Context, id, errMsg string, delay time.Duration) (bool, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	ListByClient(ctx context.Context, opts model.JobListByClientOptions) ([]*model.Job, error)
	CountByClient(ctx context.Context, clientID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// JobRepositoryTx defines optional transactional job creation support.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// CreateClientParams carries the server-generated credentials alongside the
// registration request.
type CreateClientParams struct {
	Req        *model.CreateClientRequest
	APIKey     string
	HMACSecret string
}

// ClientRepository defines the interface for client data operations.
type ClientRepository interface {
	Create(ctx context.Context, params CreateClientParams) (*model.Client, error)
	GetByID(ctx context.Context, id string) (*model.Client, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)
	List(ctx context.Context, limit, offset int) ([]*model.Client, error)
	RotateSecret(ctx context.Context, id, newSecret string) (*model.Client, error)
	UpdateWebhookURL(ctx context.Context, id, webhookURL string) (*model.Client, error)
	SetStatus(ctx context.Context, id string, status model.ClientStatus) (*model.Client, error)
}

// AppendDeliveryLogParams groups parameters for DeliveryLogRepository.Append.
type AppendDeliveryLogParams struct {
	JobID              string
	WebhookURL         string
	AttemptNumber      int
	Status             model.DeliveryStatus
	ResponseStatusCode *int
	ResponseTimeMS     *int64
	ErrorMessage       *string
}

// DeliveryLogRepository defines the interface for the append-only webhook
// delivery audit trail.
type DeliveryLogRepository interface {
	Append(ctx context.Context, params AppendDeliveryLogParams) (*model.WebhookDeliveryLog, error)
	ListByJob(ctx context.Context, jobID string) ([]*model.WebhookDeliveryLog, error)
	NextAttemptNumber(ctx context.Context, jobID string) (int, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// DeleteOldDeliveryLogsParams groups parameters for DeleteOldDeliveryLogs.
type DeleteOldDeliveryLogsParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)

	// DeleteOldDeliveryLogs deletes delivery log rows older than maxAge.
	// The cascade from job deletion handles most rows; this sweep covers
	// logs whose job outlives the retention window.
	DeleteOldDeliveryLogs(ctx context.Context, params DeleteOldDeliveryLogsParams) (int64, error)

	// RequeueExpired returns processing jobs with expired leases to pending.
	RequeueExpired(ctx context.Context, jobType model.JobType) (int64, error)
}
