package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/testutil"
)

// TestJobRepo_Integration_CreateAndReserve tests the full flow of creating and reserving jobs.
func TestJobRepo_Integration_CreateAndReserve(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		client := createTestClient(t, db)
		now := time.Now()

		// Stagger scheduled times so the reservation order is deterministic.
		schedules := []time.Duration{-time.Minute, -time.Hour, -30 * time.Minute}
		ids := make(map[time.Duration]string, len(schedules))
		for _, offset := range schedules {
			job, err := repo.Create(context.Background(),
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithScheduledAt(now.Add(offset)).
					Build())
			require.NoError(t, err)
			ids[offset] = job.ID
		}

		// Jobs come out oldest scheduled first.
		reserved1 := reserveJob(t, repo, model.JobTypeModerateComment)
		assert.Equal(t, ids[-time.Hour], reserved1.ID)

		reserved2 := reserveJob(t, repo, model.JobTypeModerateComment)
		assert.Equal(t, ids[-30*time.Minute], reserved2.ID)

		reserved3 := reserveJob(t, repo, model.JobTypeModerateComment)
		assert.Equal(t, ids[-time.Minute], reserved3.ID)

		// No more jobs available
		_, err := repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_JobLifecycle tests the complete lifecycle of a job.
func TestJobRepo_Integration_JobLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		// Use a fixed time provider to control time for retry delays
		fixedTime := testutil.TestTime()
		timeProvider := NewFixedTimeProvider(fixedTime)
		repo := NewJobRepo(db, RepoConfig{
			RetryDelaySeconds: 5,
			TimeProvider:      timeProvider,
		})
		client := createTestClient(t, db)

		// 1. Create a job
		job, err := repo.Create(context.Background(),
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithScheduledAt(fixedTime.Add(-time.Minute)).
				WithMaxRetries(2).
				Build())
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)

		// 2. Reserve the job
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reserved.ID)
		assert.Equal(t, model.JobStatusProcessing, reserved.Status)
		assert.NotNil(t, reserved.StartedAt)
		assert.NotNil(t, reserved.LeaseExpiresAt)

		// 3. Extend the lease (heartbeat)
		success, err := repo.Heartbeat(context.Background(), job.ID, 60)
		require.NoError(t, err)
		assert.True(t, success)

		// 4. Fail the job (first attempt)
		success, err = repo.Fail(context.Background(), job.ID, "first failure")
		require.NoError(t, err)
		assert.True(t, success)

		// 5. Job should be back to pending for retry, but it has a retry delay
		// Advance time beyond the retry delay (5 seconds) to make the job available
		timeProvider.AddTime(6 * time.Second)

		retryJob, err := repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, retryJob.ID)
		assert.Equal(t, 1, retryJob.RetryCount)
		assert.Equal(t, "first failure", *retryJob.LastError)

		// 6. Complete the job on retry
		success, err = repo.CompleteModeration(context.Background(), job.ID, sampleResult())
		require.NoError(t, err)
		assert.True(t, success)

		// 7. Job should no longer be available
		_, err = repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_ConcurrentReservation tests concurrent job reservation.
func TestJobRepo_Integration_ConcurrentReservation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		client := createTestClient(t, db)

		// Create a single job
		job, err := repo.Create(context.Background(),
			testutil.NewJobRequest().WithClientID(client.ID).Build())
		require.NoError(t, err)

		// Try to reserve the same job concurrently
		results := make(chan *model.Job, 2)
		errors := make(chan error, 2)

		for range 2 {
			go func() {
				reserved, err := repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
				if err != nil {
					errors <- err
				} else {
					results <- reserved
				}
			}()
		}

		// One should succeed, one should fail
		var successCount, errorCount int
		var reservedJob *model.Job

		for range 2 {
			select {
			case job := <-results:
				successCount++
				reservedJob = job
			case err := <-errors:
				errorCount++
				require.ErrorIs(t, err, model.ErrNoJobsAvailable)
			case <-time.After(5 * time.Second):
				t.Fatal("Test timed out")
			}
		}

		assert.Equal(t, 1, successCount, "Exactly one goroutine should succeed")
		assert.Equal(t, 1, errorCount, "Exactly one goroutine should fail")
		if reservedJob != nil {
			assert.Equal(t, job.ID, reservedJob.ID)
		}
	})
}

// TestJobRepo_Integration_ModerationPipeline walks a comment through the
// whole queue: moderation job in, classification result persisted, webhook
// delivery job enqueued, delivery attempted and logged, everything terminal.
func TestJobRepo_Integration_ModerationPipeline(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		deliveries := NewWebhookDeliveryRepo(db)
		client := createTestClient(t, db)
		ctx := context.Background()

		// Client submits a comment for moderation.
		moderationJob, err := repo.Create(ctx,
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithCommentID("comment-314").
				WithText("totally legit pills, click here").
				Build())
		require.NoError(t, err)

		// Moderation worker picks it up and classifies it.
		reserved := reserveJob(t, repo, model.JobTypeModerateComment)
		require.Equal(t, moderationJob.ID, reserved.ID)

		success, err := repo.CompleteModeration(ctx, moderationJob.ID, sampleResult())
		require.NoError(t, err)
		require.True(t, success)

		// Completion enqueued the delivery job for the dispatcher.
		webhookJob := reserveJob(t, repo, model.JobTypeDeliverWebhook)
		assert.Equal(t, client.ID, webhookJob.ClientID)

		var meta map[string]string
		require.NoError(t, json.Unmarshal(webhookJob.Metadata, &meta))
		require.Equal(t, moderationJob.ID, meta[model.MetadataModerationJobID])

		// First delivery attempt fails and is logged; the job retries.
		statusCode := 503
		_, err = deliveries.Append(ctx, core.AppendDeliveryLogParams{
			JobID:              webhookJob.ID,
			WebhookURL:         client.WebhookURL,
			AttemptNumber:      1,
			Status:             model.DeliveryStatusRetrying,
			ResponseStatusCode: &statusCode,
		})
		require.NoError(t, err)

		success, err = repo.FailWithDelay(ctx, webhookJob.ID, "endpoint returned 503", 0)
		require.NoError(t, err)
		require.True(t, success)

		// Second attempt succeeds.
		retried := reserveJob(t, repo, model.JobTypeDeliverWebhook)
		require.Equal(t, webhookJob.ID, retried.ID)
		assert.Equal(t, 1, retried.RetryCount)

		okCode := 200
		_, err = deliveries.Append(ctx, core.AppendDeliveryLogParams{
			JobID:              webhookJob.ID,
			WebhookURL:         client.WebhookURL,
			AttemptNumber:      2,
			Status:             model.DeliveryStatusSuccess,
			ResponseStatusCode: &okCode,
		})
		require.NoError(t, err)

		success, err = repo.Complete(ctx, webhookJob.ID)
		require.NoError(t, err)
		require.True(t, success)

		// The audit trail holds both attempts in order.
		logs, err := deliveries.ListByJob(ctx, webhookJob.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, model.DeliveryStatusRetrying, logs[0].Status)
		assert.Equal(t, model.DeliveryStatusSuccess, logs[1].Status)

		// Both queues are drained and both jobs are terminal.
		for _, jobType := range model.JobTypes() {
			_, err = repo.ReserveNext(ctx, jobType, 30)
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		}

		finalModeration, err := repo.GetByID(ctx, moderationJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, finalModeration.Status)

		finalWebhook, err := repo.GetByID(ctx, webhookJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, finalWebhook.Status)
	})
}
