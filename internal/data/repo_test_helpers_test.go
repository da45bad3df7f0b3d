package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/data/cryptoutil"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/domain/moderation"
)

// createTestClient inserts a client row for jobs to reference. Names and
// credentials are randomized so tests sharing a database do not collide.
func createTestClient(t testing.TB, db *sql.DB) *model.Client {
	t.Helper()

	repo := NewClientRepo(db, cryptoutil.NoopEncryptor{})
	suffix := uuid.NewString()[:8]
	client, err := repo.Create(context.Background(), core.CreateClientParams{
		Req: &model.CreateClientRequest{
			Name:       "test-client-" + suffix,
			WebhookURL: "https://hooks.example.com/" + suffix,
		},
		APIKey:     "mk_" + uuid.NewString(),
		HMACSecret: "whsec_" + suffix,
	})
	require.NoError(t, err)
	return client
}

// reserveJob reserves the next job of the given type and fails the test if
// nothing is available.
func reserveJob(t testing.TB, repo *JobRepo, jobType model.JobType) *model.Job {
	t.Helper()

	job, err := repo.ReserveNext(context.Background(), jobType, 30)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

// sampleResult builds a plausible classification outcome for completing
// moderation jobs in tests.
func sampleResult() *model.JobResult {
	return &model.JobResult{
		Sentiment:            moderation.SentimentNegative,
		Labels:               []moderation.Label{moderation.LabelSpam},
		SeverityScore:        moderation.SeverityModerate,
		ModerationResult:     moderation.ActionReview,
		Confidence:           0.91,
		Reasoning:            "matched spam heuristics",
		ProcessingDurationMS: 42,
	}
}
