// Package model defines the core data types and structures used throughout the modpipe job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/modpipe/internal/domain/moderation"
)

// JobType represents the type of job to be executed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeModerateComment represents a comment moderation job type.
	JobTypeModerateComment JobType = "moderate_comment"
	// JobTypeDeliverWebhook represents a webhook delivery job type.
	JobTypeDeliverWebhook JobType = "deliver_webhook"

	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a job is currently being processed.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeModerateComment || t == JobTypeDeliverWebhook
}

// JobTypes returns every job type the queue processes.
func JobTypes() []JobType {
	return []JobType{JobTypeModerateComment, JobTypeDeliverWebhook}
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusProcessing || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents a moderation job with its lifecycle state and, once
// completed, the persisted moderation result.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Type           JobType         `json:"type"                       db:"type"`
	Status         JobStatus       `json:"status"                     db:"status"`
	ClientID       string          `json:"client_id"                  db:"client_id"`
	CommentID      *string         `json:"comment_id,omitempty"       db:"comment_id"`
	Text           string          `json:"text"                       db:"text"`
	Metadata       json.RawMessage `json:"metadata,omitempty"         db:"metadata"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	RetryCount     int             `json:"retry_count"                db:"retry_count"`
	MaxRetries     int             `json:"max_retries"                db:"max_retries"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`

	Result *JobResult `json:"result,omitempty"`
}

// JobResult holds the outcome of exactly one successful classification run.
// All fields are written together when the job transitions to completed and
// are immutable afterwards.
type JobResult struct {
	Sentiment            moderation.Sentiment `json:"sentiment"              db:"sentiment"`
	Labels               []moderation.Label   `json:"labels"                 db:"labels"`
	SeverityScore        moderation.Severity  `json:"severity_score"         db:"severity_score"`
	ModerationResult     moderation.Action    `json:"moderation_result"      db:"moderation_result"`
	Confidence           float64              `json:"confidence"             db:"confidence"`
	Reasoning            string               `json:"reasoning"              db:"reasoning"`
	ProcessingDurationMS int64                `json:"processing_duration_ms" db:"processing_duration_ms"`
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	Type        JobType         `json:"type"`
	ClientID    string          `json:"client_id"`
	CommentID   *string         `json:"comment_id,omitempty"`
	Text        string          `json:"text"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	MaxRetries  int             `json:"max_retries"`
}

// MaxTextBytes bounds accepted comment text. Larger submissions are
// rejected at intake rather than truncated.
const MaxTextBytes = 10_000

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if r.ClientID == "" {
		return errors.New("client id is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	if len(r.Text) > MaxTextBytes {
		return errors.New("text exceeds maximum length")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// JobStats represents statistics about jobs in different states.
type JobStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobStatusResponse represents the status information for a specific job.
type JobStatusResponse struct {
	Status      JobStatus  `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
}
