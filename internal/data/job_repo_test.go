package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/data/pgxutil"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/testutil"
)

func TestJobRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name    string
		build   func(clientID string) *model.CreateJobRequest
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid moderation job",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithText("the checkout flow worked perfectly").
					Build()
			},
		},
		{
			name: "job with comment id and metadata",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithCommentID("comment-8842").
					WithMetadataString(`{"thread": "product-reviews"}`).
					Build()
			},
		},
		{
			name: "job with scheduled time",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithScheduledAt(time.Now().Add(time.Hour)).
					WithMaxRetries(5).
					Build()
			},
		},
		{
			name: "invalid job type",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithType("invalid").
					Build()
			},
			wantErr: true,
			errMsg:  "invalid job type",
		},
		{
			name: "empty text",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithText("   ").
					Build()
			},
			wantErr: true,
			errMsg:  "text is required",
		},
		{
			name: "oversized text",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithText(strings.Repeat("x", model.MaxTextBytes+1)).
					Build()
			},
			wantErr: true,
			errMsg:  "text exceeds maximum length",
		},
		{
			name: "negative max retries",
			build: func(clientID string) *model.CreateJobRequest {
				return testutil.NewJobRequest().
					WithClientID(clientID).
					WithMaxRetries(-1).
					Build()
			},
			wantErr: true,
			errMsg:  "max retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				repo := NewJobRepo(db, RepoConfig{})
				client := createTestClient(t, db)
				req := tt.build(client.ID)

				job, err := repo.Create(context.Background(), req)

				if tt.wantErr {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errMsg)
					assert.Nil(t, job)
					return
				}

				require.NoError(t, err)
				require.NotNil(t, job)

				assert.NotEmpty(t, job.ID)
				assert.Equal(t, req.Type, job.Type)
				assert.Equal(t, model.JobStatusPending, job.Status)
				assert.Equal(t, client.ID, job.ClientID)
				assert.Equal(t, req.Text, job.Text)
				assert.Equal(t, 0, job.RetryCount)
				assert.NotZero(t, job.ScheduledAt)
				assert.NotZero(t, job.CreatedAt)
				assert.NotZero(t, job.UpdatedAt)
				assert.Nil(t, job.StartedAt)
				assert.Nil(t, job.CompletedAt)
				assert.Nil(t, job.Result)

				if req.CommentID != nil {
					require.NotNil(t, job.CommentID)
					assert.Equal(t, *req.CommentID, *job.CommentID)
				}
				if req.Metadata != nil {
					assert.JSONEq(t, string(req.Metadata), string(job.Metadata))
				}
				if req.ScheduledAt != nil {
					assert.WithinDuration(t, *req.ScheduledAt, job.ScheduledAt, time.Second)
				}
			})
		})
	}
}

func TestJobRepo_Create_UnknownClient(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Well-formed UUID that matches no clients row; the FK rejects it.
		req := testutil.NewJobRequest().
			WithClientID("00000000-0000-0000-0000-0000000000ff").
			Build()

		job, err := repo.Create(context.Background(), req)
		require.Error(t, err)
		assert.Nil(t, job)
	})
}

func TestJobRepo_ReserveNext(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("no jobs available", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			job, err := repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
			assert.Nil(t, job)
		})
	})

	t.Run("invalid job type", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.ReserveNext(context.Background(), "bogus", 30)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid job type")
		})
	})

	t.Run("reserves pending job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)

			created, err := repo.Create(context.Background(),
				testutil.NewJobRequest().WithClientID(client.ID).Build())
			require.NoError(t, err)

			reserved := reserveJob(t, repo, model.JobTypeModerateComment)
			assert.Equal(t, created.ID, reserved.ID)
			assert.Equal(t, model.JobStatusProcessing, reserved.Status)
			require.NotNil(t, reserved.StartedAt)
			require.NotNil(t, reserved.LeaseExpiresAt)
			assert.True(t, reserved.LeaseExpiresAt.After(*reserved.StartedAt))

			// Nothing left to reserve; the job is leased.
			_, err = repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})

	t.Run("skips future scheduled jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)

			_, err := repo.Create(context.Background(),
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithScheduledAt(time.Now().Add(time.Hour)).
					Build())
			require.NoError(t, err)

			_, err = repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})

	t.Run("does not cross job types", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)

			_, err := repo.Create(context.Background(),
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithType(model.JobTypeDeliverWebhook).
					Build())
			require.NoError(t, err)

			_, err = repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 30)
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)

			reserved := reserveJob(t, repo, model.JobTypeDeliverWebhook)
			assert.Equal(t, model.JobTypeDeliverWebhook, reserved.Type)
		})
	})

	t.Run("earliest scheduled job first", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			now := time.Now()

			later, err := repo.Create(context.Background(),
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithScheduledAt(now.Add(-time.Minute)).
					Build())
			require.NoError(t, err)

			earlier, err := repo.Create(context.Background(),
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithScheduledAt(now.Add(-time.Hour)).
					Build())
			require.NoError(t, err)

			first := reserveJob(t, repo, model.JobTypeModerateComment)
			assert.Equal(t, earlier.ID, first.ID)

			second := reserveJob(t, repo, model.JobTypeModerateComment)
			assert.Equal(t, later.ID, second.ID)
		})
	})
}

func TestJobRepo_Complete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		client := createTestClient(t, db)

		job, err := repo.Create(context.Background(),
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithType(model.JobTypeDeliverWebhook).
				Build())
		require.NoError(t, err)

		reserveJob(t, repo, model.JobTypeDeliverWebhook)

		success, err := repo.Complete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.True(t, success)

		completed, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, completed.Status)
		require.NotNil(t, completed.CompletedAt)
		assert.Nil(t, completed.LeaseExpiresAt)

		// Completing again is a no-op once the job is terminal.
		success, err = repo.Complete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.False(t, success)

		// Completing a non-existent job reports false, not an error.
		success, err = repo.Complete(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.NoError(t, err)
		assert.False(t, success)
	})
}

func TestJobRepo_CompleteModeration(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		client := createTestClient(t, db)
		ctx := context.Background()

		job, err := repo.Create(ctx,
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithCommentID("comment-77").
				WithText("buy cheap pills now").
				Build())
		require.NoError(t, err)

		reserveJob(t, repo, model.JobTypeModerateComment)

		result := sampleResult()
		success, err := repo.CompleteModeration(ctx, job.ID, result)
		require.NoError(t, err)
		assert.True(t, success)

		completed, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, completed.Status)
		require.NotNil(t, completed.CompletedAt)
		require.NotNil(t, completed.Result)
		assert.Equal(t, result.Sentiment, completed.Result.Sentiment)
		assert.Equal(t, result.Labels, completed.Result.Labels)
		assert.Equal(t, result.SeverityScore, completed.Result.SeverityScore)
		assert.Equal(t, result.ModerationResult, completed.Result.ModerationResult)
		assert.InDelta(t, result.Confidence, completed.Result.Confidence, 0.0001)
		assert.Equal(t, result.Reasoning, completed.Result.Reasoning)

		// Completion enqueues exactly one webhook delivery job that points
		// back at the moderation job and inherits its client and comment.
		webhookJob := reserveJob(t, repo, model.JobTypeDeliverWebhook)
		assert.Equal(t, client.ID, webhookJob.ClientID)
		require.NotNil(t, webhookJob.CommentID)
		assert.Equal(t, "comment-77", *webhookJob.CommentID)

		var meta map[string]string
		require.NoError(t, json.Unmarshal(webhookJob.Metadata, &meta))
		assert.Equal(t, job.ID, meta[model.MetadataModerationJobID])

		// Redelivery of a terminal job writes nothing and enqueues nothing.
		success, err = repo.CompleteModeration(ctx, job.ID, result)
		require.NoError(t, err)
		assert.False(t, success)

		stats, err := repo.Stats(ctx, model.JobTypeDeliverWebhook)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Pending)
		assert.Equal(t, 1, stats.Processing)
	})

	t.Run("nil result rejected", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.CompleteModeration(context.Background(), "00000000-0000-0000-0000-000000000000", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "job result is required")
		})
	})
}

func TestJobRepo_Fail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{RetryDelaySeconds: 10})
		client := createTestClient(t, db)
		ctx := context.Background()

		job, err := repo.Create(ctx,
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithMaxRetries(2).
				Build())
		require.NoError(t, err)

		reserveJob(t, repo, model.JobTypeModerateComment)

		// First failure returns the job to pending with a retry delay.
		success, err := repo.Fail(ctx, job.ID, "scorer timeout")
		require.NoError(t, err)
		assert.True(t, success)

		retried, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, retried.Status)
		assert.Equal(t, 1, retried.RetryCount)
		require.NotNil(t, retried.LastError)
		assert.Equal(t, "scorer timeout", *retried.LastError)
		assert.Nil(t, retried.CompletedAt)
		assert.True(t, retried.ScheduledAt.After(job.ScheduledAt))

		// Exhausting max retries lands the job in terminal failed.
		_, err = db.ExecContext(ctx,
			`UPDATE jobs SET scheduled_at = now() - INTERVAL '1 minute' WHERE id = $1`, job.ID)
		require.NoError(t, err)

		reserveJob(t, repo, model.JobTypeModerateComment)

		success, err = repo.Fail(ctx, job.ID, "scorer timeout again")
		require.NoError(t, err)
		assert.True(t, success)

		failed, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		assert.Equal(t, 2, failed.RetryCount)
		require.NotNil(t, failed.CompletedAt)

		// Failing a non-existent job reports false, not an error.
		success, err = repo.Fail(ctx, "00000000-0000-0000-0000-000000000000", "error")
		require.NoError(t, err)
		assert.False(t, success)
	})
}

func TestJobRepo_FailWithDelay(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		fixedTime := testutil.TestTime()
		timeProvider := NewFixedTimeProvider(fixedTime)
		repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
		client := createTestClient(t, db)
		ctx := context.Background()

		job, err := repo.Create(ctx,
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithType(model.JobTypeDeliverWebhook).
				WithScheduledAt(fixedTime.Add(-time.Minute)).
				WithMaxRetries(5).
				Build())
		require.NoError(t, err)

		reserveJob(t, repo, model.JobTypeDeliverWebhook)

		success, err := repo.FailWithDelay(ctx, job.ID, "endpoint returned 503", 45*time.Second)
		require.NoError(t, err)
		assert.True(t, success)

		delayed, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, delayed.Status)
		assert.WithinDuration(t, fixedTime.Add(45*time.Second), delayed.ScheduledAt, time.Second)

		// A negative delay is clamped to retry immediately.
		reserved, err := repo.ReserveNext(ctx, model.JobTypeDeliverWebhook, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		assert.Nil(t, reserved)

		timeProvider.AddTime(time.Minute)
		reserveJob(t, repo, model.JobTypeDeliverWebhook)

		success, err = repo.FailWithDelay(ctx, job.ID, "endpoint returned 503", -time.Second)
		require.NoError(t, err)
		assert.True(t, success)

		immediate := reserveJob(t, repo, model.JobTypeDeliverWebhook)
		assert.Equal(t, job.ID, immediate.ID)
	})
}

func TestJobRepo_Heartbeat(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name         string
		setupJob     bool
		reserveJob   bool
		jobID        string
		leaseSeconds int
		wantSuccess  bool
		wantErr      bool
	}{
		{
			name:         "successful heartbeat",
			setupJob:     true,
			reserveJob:   true,
			leaseSeconds: 60,
			wantSuccess:  true,
		},
		{
			name:         "heartbeat non-existent job",
			jobID:        "00000000-0000-0000-0000-000000000000",
			leaseSeconds: 60,
			wantSuccess:  false,
		},
		{
			name:         "heartbeat pending job",
			setupJob:     true,
			leaseSeconds: 60,
			wantSuccess:  false,
		},
		{
			name:         "non-positive lease rejected",
			jobID:        "00000000-0000-0000-0000-000000000000",
			leaseSeconds: 0,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				repo := NewJobRepo(db, RepoConfig{})
				jobID := tt.jobID

				if tt.setupJob {
					client := createTestClient(t, db)
					job, err := repo.Create(context.Background(),
						testutil.NewJobRequest().WithClientID(client.ID).Build())
					require.NoError(t, err)
					jobID = job.ID

					if tt.reserveJob {
						reserveJob(t, repo, model.JobTypeModerateComment)
					}
				}

				success, err := repo.Heartbeat(context.Background(), jobID, tt.leaseSeconds)
				if tt.wantErr {
					require.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantSuccess, success)
			})
		})
	}
}

func TestJobRepo_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		client := createTestClient(t, db)
		ctx := context.Background()
		now := time.Now()

		// Reservation follows scheduled_at ASC, so stagger the schedule to
		// control which job each ReserveNext call picks up.
		jobs := []struct {
			scheduledAt time.Time
			maxRetries  int
			action      string
		}{
			{scheduledAt: now.Add(-4 * time.Hour), action: "complete"},
			{scheduledAt: now.Add(-3 * time.Hour), action: "reserve"},
			{scheduledAt: now.Add(-2 * time.Hour), maxRetries: 1, action: "fail"},
			{scheduledAt: now.Add(-1 * time.Hour), action: "none"},
		}

		var createdJobs []*model.Job
		for _, setup := range jobs {
			b := testutil.NewJobRequest().
				WithClientID(client.ID).
				WithScheduledAt(setup.scheduledAt)
			if setup.maxRetries > 0 {
				b = b.WithMaxRetries(setup.maxRetries)
			}
			job, err := repo.Create(ctx, b.Build())
			require.NoError(t, err)
			createdJobs = append(createdJobs, job)
		}

		reserved := reserveJob(t, repo, model.JobTypeModerateComment)
		require.Equal(t, createdJobs[0].ID, reserved.ID)
		_, err := repo.Complete(ctx, reserved.ID)
		require.NoError(t, err)

		reserved = reserveJob(t, repo, model.JobTypeModerateComment)
		require.Equal(t, createdJobs[1].ID, reserved.ID)
		// Stays processing.

		reserved = reserveJob(t, repo, model.JobTypeModerateComment)
		require.Equal(t, createdJobs[2].ID, reserved.ID)
		// With max_retries=1 a single failure is terminal.
		_, err = repo.Fail(ctx, reserved.ID, "failure that exceeds max retries")
		require.NoError(t, err)

		stats, err := repo.Stats(ctx, model.JobTypeModerateComment)
		require.NoError(t, err)
		require.NotNil(t, stats)

		assert.Equal(t, 1, stats.Pending)
		assert.Equal(t, 1, stats.Processing)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
	})
}

func TestJobRepo_RequeueExpired(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		fixedTime := testutil.TestTime()
		timeProvider := NewFixedTimeProvider(fixedTime)
		repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
		client := createTestClient(t, db)

		job, err := repo.Create(context.Background(),
			testutil.NewJobRequest().
				WithClientID(client.ID).
				WithScheduledAt(fixedTime.Add(-time.Minute)).
				Build())
		require.NoError(t, err)

		// Reserve with a one-second lease.
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 1)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reserved.ID)

		// Let the lease expire.
		timeProvider.AddTime(2 * time.Second)

		count, err := repo.requeueExpired(context.Background(), model.JobTypeModerateComment)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// The reclaimed job can be reserved again, with one retry charged
		// for the lost lease.
		requeued := reserveJob(t, repo, model.JobTypeModerateComment)
		assert.Equal(t, job.ID, requeued.ID)
		assert.Equal(t, model.JobStatusProcessing, requeued.Status)
		assert.Equal(t, 1, requeued.RetryCount)
		require.NotNil(t, requeued.LastError)
		assert.Contains(t, *requeued.LastError, "lease expired")
	})

	t.Run("exhausted retry budget fails instead of requeueing", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			fixedTime := testutil.TestTime()
			timeProvider := NewFixedTimeProvider(fixedTime)
			repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})
			client := createTestClient(t, db)

			job, err := repo.Create(context.Background(),
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithMaxRetries(1).
					WithScheduledAt(fixedTime.Add(-time.Minute)).
					Build())
			require.NoError(t, err)

			_, err = repo.ReserveNext(context.Background(), model.JobTypeModerateComment, 1)
			require.NoError(t, err)
			timeProvider.AddTime(2 * time.Second)

			count, err := repo.requeueExpired(context.Background(), model.JobTypeModerateComment)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			swept, err := repo.GetByID(context.Background(), job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, swept.Status)
			assert.Equal(t, 1, swept.RetryCount)
			require.NotNil(t, swept.LastError)
			assert.Contains(t, *swept.LastError, "lease expired")
			assert.NotNil(t, swept.CompletedAt)
		})
	})

	t.Run("invalid job type", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.RequeueExpired(context.Background(), "bogus")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid job type")
		})
	})
}

// TestPgxConversionFunctions tests the pgx transaction option conversion utilities.
func TestPgxConversionFunctions(t *testing.T) {
	t.Run("toPgxTxOptions", func(t *testing.T) {
		tests := []struct {
			name     string
			input    *sql.TxOptions
			expected pgx.TxOptions
		}{
			{
				name:  "nil options",
				input: nil,
				expected: pgx.TxOptions{
					IsoLevel:   pgx.TxIsoLevel(""),
					AccessMode: pgx.TxAccessMode(""),
				},
			},
			{
				name: "read committed, read-write",
				input: &sql.TxOptions{
					Isolation: sql.LevelReadCommitted,
					ReadOnly:  false,
				},
				expected: pgx.TxOptions{
					IsoLevel:   pgx.ReadCommitted,
					AccessMode: pgx.ReadWrite,
				},
			},
			{
				name: "serializable, read-only",
				input: &sql.TxOptions{
					Isolation: sql.LevelSerializable,
					ReadOnly:  true,
				},
				expected: pgx.TxOptions{
					IsoLevel:   pgx.Serializable,
					AccessMode: pgx.ReadOnly,
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := pgxutil.ToPgxTxOptions(tt.input)
				assert.Equal(t, tt.expected.IsoLevel, result.IsoLevel)
				assert.Equal(t, tt.expected.AccessMode, result.AccessMode)
			})
		}
	})

	t.Run("toPgxIsoLevel", func(t *testing.T) {
		tests := []struct {
			input    sql.IsolationLevel
			expected pgx.TxIsoLevel
		}{
			{sql.LevelDefault, pgx.TxIsoLevel("")},
			{sql.LevelSerializable, pgx.Serializable},
			{sql.LevelLinearizable, pgx.Serializable},
			{sql.LevelRepeatableRead, pgx.RepeatableRead},
			{sql.LevelSnapshot, pgx.RepeatableRead},
			{sql.LevelReadCommitted, pgx.ReadCommitted},
			{sql.LevelWriteCommitted, pgx.ReadCommitted},
			{sql.LevelReadUncommitted, pgx.ReadUncommitted},
		}

		for _, tt := range tests {
			t.Run(string(tt.expected), func(t *testing.T) {
				result := pgxutil.ToPgxIsoLevel(tt.input)
				assert.Equal(t, tt.expected, result)
			})
		}
	})

	t.Run("toPgxAccessMode", func(t *testing.T) {
		assert.Equal(t, pgx.ReadWrite, pgxutil.ToPgxAccessMode(false))
		assert.Equal(t, pgx.ReadOnly, pgxutil.ToPgxAccessMode(true))
	})
}

func TestJobRepo_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		clientA := createTestClient(t, db)
		clientB := createTestClient(t, db)
		ctx := context.Background()

		moderationJob, err := repo.Create(ctx,
			testutil.NewJobRequest().WithClientID(clientA.ID).Build())
		require.NoError(t, err)

		webhookJob, err := repo.Create(ctx,
			testutil.NewJobRequest().
				WithClientID(clientA.ID).
				WithType(model.JobTypeDeliverWebhook).
				Build())
		require.NoError(t, err)

		otherClientJob, err := repo.Create(ctx,
			testutil.NewJobRequest().WithClientID(clientB.ID).Build())
		require.NoError(t, err)

		// Complete the webhook job to exercise status filtering.
		reserveJob(t, repo, model.JobTypeDeliverWebhook)
		success, err := repo.Complete(ctx, webhookJob.ID)
		require.NoError(t, err)
		require.True(t, success, "job should be successfully completed")

		completedJob, err := repo.GetByID(ctx, webhookJob.ID)
		require.NoError(t, err)
		require.Equal(t, model.JobStatusCompleted, completedJob.Status)

		tests := []struct {
			name     string
			opts     *model.JobListOptions
			wantLen  int
			checkJob func(t *testing.T, jobs []*model.Job)
		}{
			{
				name: "list all jobs",
				opts: &model.JobListOptions{
					Limit: 10,
				},
				wantLen: 3,
				checkJob: func(t *testing.T, jobs []*model.Job) {
					// Ordered by created_at DESC.
					assert.Equal(t, otherClientJob.ID, jobs[0].ID)
					assert.Equal(t, webhookJob.ID, jobs[1].ID)
					assert.Equal(t, moderationJob.ID, jobs[2].ID)
				},
			},
			{
				name: "filter by type",
				opts: &model.JobListOptions{
					Type:  jobTypePtr(model.JobTypeDeliverWebhook),
					Limit: 10,
				},
				wantLen: 1,
				checkJob: func(t *testing.T, jobs []*model.Job) {
					assert.Equal(t, webhookJob.ID, jobs[0].ID)
					assert.Equal(t, model.JobTypeDeliverWebhook, jobs[0].Type)
				},
			},
			{
				name: "filter by status",
				opts: &model.JobListOptions{
					Status: jobStatusPtr(model.JobStatusCompleted),
					Limit:  10,
				},
				wantLen: 1,
				checkJob: func(t *testing.T, jobs []*model.Job) {
					assert.Equal(t, webhookJob.ID, jobs[0].ID)
					assert.Equal(t, model.JobStatusCompleted, jobs[0].Status)
				},
			},
			{
				name: "filter by client",
				opts: &model.JobListOptions{
					ClientID: stringPtr(clientB.ID),
					Limit:    10,
				},
				wantLen: 1,
				checkJob: func(t *testing.T, jobs []*model.Job) {
					assert.Equal(t, otherClientJob.ID, jobs[0].ID)
					assert.Equal(t, clientB.ID, jobs[0].ClientID)
				},
			},
			{
				name: "sort by type ascending",
				opts: &model.JobListOptions{
					SortBy:    "type",
					SortOrder: "asc",
					Limit:     10,
				},
				wantLen: 3,
				checkJob: func(t *testing.T, jobs []*model.Job) {
					// deliver_webhook sorts before moderate_comment.
					assert.Equal(t, model.JobTypeDeliverWebhook, jobs[0].Type)
					assert.Equal(t, model.JobTypeModerateComment, jobs[1].Type)
					assert.Equal(t, model.JobTypeModerateComment, jobs[2].Type)
				},
			},
			{
				name: "pagination with limit",
				opts: &model.JobListOptions{
					Limit: 2,
				},
				wantLen: 2,
				checkJob: func(t *testing.T, jobs []*model.Job) {
					assert.Equal(t, otherClientJob.ID, jobs[0].ID)
					assert.Equal(t, webhookJob.ID, jobs[1].ID)
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				jobs, err := repo.List(ctx, tt.opts)
				require.NoError(t, err)
				assert.Len(t, jobs, tt.wantLen)

				if tt.checkJob != nil {
					tt.checkJob(t, jobs)
				}
			})
		}
	})
}

func TestJobRepo_ListByClient(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		owner := createTestClient(t, db)
		other := createTestClient(t, db)
		ctx := context.Background()

		var ownerJobs []*model.Job
		for range 3 {
			job, err := repo.Create(ctx,
				testutil.NewJobRequest().WithClientID(owner.ID).Build())
			require.NoError(t, err)
			ownerJobs = append(ownerJobs, job)
		}

		_, err := repo.Create(ctx,
			testutil.NewJobRequest().WithClientID(other.ID).Build())
		require.NoError(t, err)

		// Internal delivery bookkeeping jobs never surface to clients.
		_, err = repo.Create(ctx, testutil.NewJobRequest().
			WithType(model.JobTypeDeliverWebhook).
			WithClientID(owner.ID).
			WithText("webhook payload").
			Build())
		require.NoError(t, err)

		// Only the owner's moderation jobs come back, newest first.
		jobs, err := repo.ListByClient(ctx, model.JobListByClientOptions{
			ClientID: owner.ID,
			Limit:    10,
		})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, ownerJobs[2].ID, jobs[0].ID)
		for _, job := range jobs {
			assert.Equal(t, owner.ID, job.ClientID)
		}

		// Status filter.
		pending := model.JobStatusPending
		jobs, err = repo.ListByClient(ctx, model.JobListByClientOptions{
			ClientID: owner.ID,
			Status:   &pending,
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Len(t, jobs, 3)

		completed := model.JobStatusCompleted
		jobs, err = repo.ListByClient(ctx, model.JobListByClientOptions{
			ClientID: owner.ID,
			Status:   &completed,
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Empty(t, jobs)

		// Pagination.
		jobs, err = repo.ListByClient(ctx, model.JobListByClientOptions{
			ClientID: owner.ID,
			Limit:    2,
			Offset:   2,
		})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, ownerJobs[0].ID, jobs[0].ID)

		// Counts are scoped per client.
		count, err := repo.CountByClient(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = repo.CountByClient(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestJobRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		client := createTestClient(t, db)

		created, err := repo.Create(context.Background(),
			testutil.NewJobRequest().WithClientID(client.ID).Build())
		require.NoError(t, err)

		job, err := repo.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, job.ID)
		assert.Equal(t, created.Text, job.Text)

		_, err = repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("delete pending job without lease", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().WithClientID(client.ID).Build())
			require.NoError(t, err)
			require.Equal(t, model.JobStatusPending, job.Status)
			require.Nil(t, job.LeaseExpiresAt)

			err = repo.Delete(ctx, job.ID)
			require.NoError(t, err)

			_, err = repo.GetByID(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("delete non-existent job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			err := repo.Delete(ctx, "00000000-0000-0000-0000-000000000000")
			require.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("delete processing job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().WithClientID(client.ID).Build())
			require.NoError(t, err)

			reserveJob(t, repo, model.JobTypeModerateComment)

			processing, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			require.Equal(t, model.JobStatusProcessing, processing.Status)

			err = repo.Delete(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotDeletable)

			// The job survives the failed delete.
			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("delete completed job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().WithClientID(client.ID).Build())
			require.NoError(t, err)

			reserveJob(t, repo, model.JobTypeModerateComment)
			_, err = repo.Complete(ctx, job.ID)
			require.NoError(t, err)

			err = repo.Delete(ctx, job.ID)
			require.NoError(t, err)

			_, err = repo.GetByID(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("delete failed job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithMaxRetries(1).
					Build())
			require.NoError(t, err)

			reserveJob(t, repo, model.JobTypeModerateComment)
			_, err = repo.Fail(ctx, job.ID, "test error")
			require.NoError(t, err)

			failedJob, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			require.Equal(t, model.JobStatusFailed, failedJob.Status)

			err = repo.Delete(ctx, job.ID)
			require.NoError(t, err)

			_, err = repo.GetByID(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("delete pending job with active lease", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().WithClientID(client.ID).Build())
			require.NoError(t, err)

			// Simulate the job being reserved between check and delete.
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET lease_expires_at = NOW() + INTERVAL '30 seconds'
				WHERE id = $1
			`, job.ID)
			require.NoError(t, err)

			err = repo.Delete(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobReserved)

			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("delete pending job with expired lease", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().WithClientID(client.ID).Build())
			require.NoError(t, err)

			expiredTime := time.Now().Add(-1 * time.Hour)
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET lease_expires_at = $2
				WHERE id = $1
			`, job.ID, expiredTime)
			require.NoError(t, err)

			err = repo.Delete(ctx, job.ID)
			require.NoError(t, err)

			_, err = repo.GetByID(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("delete cascades delivery logs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			deliveries := NewWebhookDeliveryRepo(db)
			client := createTestClient(t, db)
			ctx := context.Background()

			job, err := repo.Create(ctx,
				testutil.NewJobRequest().
					WithClientID(client.ID).
					WithType(model.JobTypeDeliverWebhook).
					Build())
			require.NoError(t, err)

			_, err = deliveries.Append(ctx, core.AppendDeliveryLogParams{
				JobID:         job.ID,
				WebhookURL:    client.WebhookURL,
				AttemptNumber: 1,
				Status:        model.DeliveryStatusRetrying,
			})
			require.NoError(t, err)

			err = repo.Delete(ctx, job.ID)
			require.NoError(t, err)

			var logCount int
			err = db.QueryRowContext(ctx, `
				SELECT count(*) FROM webhook_delivery_logs WHERE job_id = $1
			`, job.ID).Scan(&logCount)
			require.NoError(t, err)
			assert.Zero(t, logCount, "delivery logs should cascade with job deletion")
		})
	})
}

// Helper functions.

func stringPtr(s string) *string {
	return &s
}

func jobTypePtr(jt model.JobType) *model.JobType {
	return &jt
}

func jobStatusPtr(js model.JobStatus) *model.JobStatus {
	return &js
}
