//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// MetadataModerationJobID is the metadata key on deliver_webhook jobs that
// points back at the completed moderation job.
const MetadataModerationJobID = "webhook.moderation_job_id"

// DeliveryStatus represents the outcome of a single webhook delivery attempt.
type DeliveryStatus string

const (
	// DeliveryStatusSuccess indicates the endpoint acknowledged the payload with a 2xx.
	DeliveryStatusSuccess DeliveryStatus = "success"
	// DeliveryStatusRetrying indicates a failed attempt with retries remaining.
	DeliveryStatusRetrying DeliveryStatus = "retrying"
	// DeliveryStatusFailed indicates the terminal attempt after the budget is exhausted.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// Valid returns true if the DeliveryStatus is valid.
func (s DeliveryStatus) Valid() bool {
	return s == DeliveryStatusSuccess || s == DeliveryStatusRetrying || s == DeliveryStatusFailed
}

// WebhookDeliveryLog is one append-only row per delivery attempt. Attempts
// for a job are numbered 1..k with no gaps; the sequence stops at the first
// success or at the terminal failed row. Rows are never mutated or deleted
// outside retention cleanup.
type WebhookDeliveryLog struct {
	ID                 string         `json:"id"                             db:"id"`
	JobID              string         `json:"job_id"                         db:"job_id"`
	WebhookURL         string         `json:"webhook_url"                    db:"webhook_url"`
	AttemptNumber      int            `json:"attempt_number"                 db:"attempt_number"`
	Status             DeliveryStatus `json:"status"                         db:"status"`
	ResponseStatusCode *int           `json:"response_status_code,omitempty" db:"response_status_code"`
	ResponseTimeMS     *int64         `json:"response_time_ms,omitempty"     db:"response_time_ms"`
	ErrorMessage       *string        `json:"error_message,omitempty"        db:"error_message"`
	CreatedAt          time.Time      `json:"created_at"                     db:"created_at"`
}

// WebhookPayload is the exact wire shape POSTed to client endpoints. The
// HMAC signature is computed over the literal marshaled bytes, so field
// order and encoding here are part of the external interface.
type WebhookPayload struct {
	JobID            string  `json:"job_id"`
	CommentID        *string `json:"comment_id"`
	Text             string  `json:"text"`
	Sentiment        string  `json:"sentiment"`
	ModerationResult string  `json:"moderation_result"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	Timestamp        string  `json:"timestamp"`
}
