// Package testutil provides testing utilities and helpers for the modpipe job system.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/modpipe/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:       model.JobTypeModerateComment,
			ClientID:   "00000000-0000-0000-0000-000000000001",
			Text:       "this is a perfectly ordinary comment",
			MaxRetries: 3,
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithClientID sets the submitting client.
func (b *JobRequestBuilder) WithClientID(clientID string) *JobRequestBuilder {
	b.req.ClientID = clientID
	return b
}

// WithCommentID sets the client-side comment identifier.
func (b *JobRequestBuilder) WithCommentID(commentID string) *JobRequestBuilder {
	b.req.CommentID = &commentID
	return b
}

// WithText sets the comment text.
func (b *JobRequestBuilder) WithText(text string) *JobRequestBuilder {
	b.req.Text = text
	return b
}

// WithMetadata sets the job metadata.
func (b *JobRequestBuilder) WithMetadata(metadata json.RawMessage) *JobRequestBuilder {
	b.req.Metadata = metadata
	return b
}

// WithMetadataString sets the job metadata from a string.
func (b *JobRequestBuilder) WithMetadataString(metadata string) *JobRequestBuilder {
	b.req.Metadata = json.RawMessage(metadata)
	return b
}

// WithScheduledAt sets the scheduled time.
func (b *JobRequestBuilder) WithScheduledAt(scheduledAt time.Time) *JobRequestBuilder {
	b.req.ScheduledAt = &scheduledAt
	return b
}

// WithMaxRetries sets the maximum number of retries.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// Common test job request presets

// ModerationJobRequest creates a comment moderation job request with default values.
func ModerationJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeModerateComment).
		WithText("the weather today is lovely").
		Build()
}

// WebhookJobRequest creates a webhook delivery job request referencing the given moderation job.
func WebhookJobRequest(moderationJobID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeDeliverWebhook).
		WithMetadataString(`{"` + model.MetadataModerationJobID + `": "` + moderationJobID + `"}`).
		Build()
}

// ScheduledJobRequest creates a job request scheduled for the future.
func ScheduledJobRequest(scheduledAt time.Time) *model.CreateJobRequest {
	return NewJobRequest().
		WithScheduledAt(scheduledAt).
		Build()
}

// RetryableJobRequest creates a job request with custom retry settings.
func RetryableJobRequest(maxRetries int) *model.CreateJobRequest {
	return NewJobRequest().
		WithMaxRetries(maxRetries).
		Build()
}
