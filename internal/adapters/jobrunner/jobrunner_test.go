package jobrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/modpipe/internal/domain/model"
)

type queueJobRepo struct {
	mu   sync.Mutex
	jobs []*model.Job
}

func (r *queueJobRepo) Create(_ context.Context, _ *model.CreateJobRequest) (*model.Job, error) {
	return nil, errors.New("not implemented")
}

func (r *queueJobRepo) GetByID(_ context.Context, _ string) (*model.Job, error) {
	return nil, errors.New("not implemented")
}

func (r *queueJobRepo) ReserveNext(_ context.Context, jobType model.JobType, _ int) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, job := range r.jobs {
		if job.Type == jobType {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			return job, nil
		}
	}
	return nil, model.ErrNoJobsAvailable
}

func (r *queueJobRepo) WaitForNotification(_ context.Context, _ model.JobType) error { return nil }

func (r *queueJobRepo) Heartbeat(_ context.Context, _ string, _ int) (bool, error) {
	return true, nil
}

func (r *queueJobRepo) CompleteModeration(_ context.Context, _ string, _ *model.JobResult) (bool, error) {
	return true, nil
}

func (r *queueJobRepo) Complete(_ context.Context, _ string) (bool, error) { return true, nil }

func (r *queueJobRepo) Fail(_ context.Context, _, _ string) (bool, error) { return true, nil }

func (r *queueJobRepo) FailWithDelay(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	return true, nil
}

func (r *queueJobRepo) Stats(_ context.Context, _ model.JobType) (*model.JobStats, error) {
	return &model.JobStats{}, nil
}

func (r *queueJobRepo) List(_ context.Context, _ *model.JobListOptions) ([]*model.Job, error) {
	return nil, nil
}

func (r *queueJobRepo) ListByClient(_ context.Context, _ model.JobListByClientOptions) ([]*model.Job, error) {
	return nil, nil
}

func (r *queueJobRepo) CountByClient(_ context.Context, _ string) (int, error) { return 0, nil }

func (r *queueJobRepo) Delete(_ context.Context, _ string) error { return nil }

func TestNewRunner_Validation(t *testing.T) {
	noop := func(_ context.Context, _ *model.Job) error { return nil }

	t.Run("requires a job source", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{JobType: model.JobTypeModerateComment, Handler: noop})
		require.Error(t, err)
	})

	t.Run("requires a handler", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{
			JobsRepo: &queueJobRepo{},
			JobType:  model.JobTypeModerateComment,
		})
		require.Error(t, err)
	})

	t.Run("requires a valid job type", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{
			JobsRepo: &queueJobRepo{},
			JobType:  model.JobType("bogus"),
			Handler:  noop,
		})
		require.Error(t, err)
	})
}

func TestRunner_Run_ProcessesReservedJobs(t *testing.T) {
	repo := &queueJobRepo{jobs: []*model.Job{
		{ID: "job-1", Type: model.JobTypeModerateComment},
		{ID: "job-2", Type: model.JobTypeModerateComment},
		{ID: "job-3", Type: model.JobTypeDeliverWebhook},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, job *model.Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		done := len(seen) == 2
		mu.Unlock()
		if done {
			cancel()
		}
		return nil
	}

	runner, err := NewRunner(RunnerOptions{
		JobsRepo:    repo,
		JobType:     model.JobTypeModerateComment,
		Handler:     handler,
		Concurrency: 1,
	})
	require.NoError(t, err)

	err = runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"job-1", "job-2"}, seen)
}

func TestRunner_Run_HandlerErrorDoesNotStopWorkers(t *testing.T) {
	repo := &queueJobRepo{jobs: []*model.Job{
		{ID: "job-1", Type: model.JobTypeDeliverWebhook},
		{ID: "job-2", Type: model.JobTypeDeliverWebhook},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, job *model.Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		done := len(seen) == 2
		mu.Unlock()
		if done {
			cancel()
			return nil
		}
		return errors.New("record outcome: connection reset")
	}

	runner, err := NewRunner(RunnerOptions{
		JobsRepo: repo,
		JobType:  model.JobTypeDeliverWebhook,
		Handler:  handler,
	})
	require.NoError(t, err)

	err = runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-1", "job-2"}, seen)
}
