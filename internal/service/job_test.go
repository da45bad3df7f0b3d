package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/observability/notify"
	"github.com/target/modpipe/internal/service/failurenotifier"
)

type stubJobNotifier struct {
	subscribeCalls []model.JobType
	stopCalled     bool
	subscribeFn    func(model.JobType) (func(), <-chan struct{})
}

func (s *stubJobNotifier) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	s.subscribeCalls = append(s.subscribeCalls, jobType)
	if s.subscribeFn != nil {
		return s.subscribeFn(jobType)
	}
	ch := make(chan struct{})
	unsub := func() { close(ch) }
	return unsub, ch
}

func (s *stubJobNotifier) StopAll() { s.stopCalled = true }

// stubJobRepo is a hand-rolled core.JobRepository for unit tests. Each
// behaviour is overridable per test; unset methods fail loudly.
type stubJobRepo struct {
	createFn             func(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	getByIDFn            func(ctx context.Context, id string) (*model.Job, error)
	reserveNextFn        func(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	heartbeatFn          func(ctx context.Context, id string, extendSeconds int) (bool, error)
	completeModerationFn func(ctx context.Context, id string, result *model.JobResult) (bool, error)
	completeFn           func(ctx context.Context, id string) (bool, error)
	failFn               func(ctx context.Context, id, errMsg string) (bool, error)
	failWithDelayFn      func(ctx context.Context, id, errMsg string, delay time.Duration) (bool, error)
	statsFn              func(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	listFn               func(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	listByClientFn       func(ctx context.Context, opts model.JobListByClientOptions) ([]*model.Job, error)
	countByClientFn      func(ctx context.Context, clientID string) (int, error)
	deleteFn             func(ctx context.Context, id string) error
}

func (r *stubJobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	return r.createFn(ctx, req)
}

func (r *stubJobRepo) CreateInTx(
	ctx context.Context,
	_ *sql.Tx,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	return r.createFn(ctx, req)
}

func (r *stubJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	return r.getByIDFn(ctx, id)
}

func (r *stubJobRepo) ReserveNext(
	ctx context.Context,
	jobType model.JobType,
	leaseSeconds int,
) (*model.Job, error) {
	return r.reserveNextFn(ctx, jobType, leaseSeconds)
}

func (r *stubJobRepo) WaitForNotification(_ context.Context, _ model.JobType) error {
	return nil
}

func (r *stubJobRepo) Heartbeat(ctx context.Context, id string, extendSeconds int) (bool, error) {
	return r.heartbeatFn(ctx, id, extendSeconds)
}

func (r *stubJobRepo) CompleteModeration(
	ctx context.Context,
	id string,
	result *model.JobResult,
) (bool, error) {
	return r.completeModerationFn(ctx, id, result)
}

func (r *stubJobRepo) Complete(ctx context.Context, id string) (bool, error) {
	return r.completeFn(ctx, id)
}

func (r *stubJobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	return r.failFn(ctx, id, errMsg)
}

func (r *stubJobRepo) FailWithDelay(
	ctx context.Context,
	id, errMsg string,
	delay time.Duration,
) (bool, error) {
	return r.failWithDelayFn(ctx, id, errMsg, delay)
}

func (r *stubJobRepo) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	return r.statsFn(ctx, jobType)
}

func (r *stubJobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	return r.listFn(ctx, opts)
}

func (r *stubJobRepo) ListByClient(
	ctx context.Context,
	opts model.JobListByClientOptions,
) ([]*model.Job, error) {
	return r.listByClientFn(ctx, opts)
}

func (r *stubJobRepo) CountByClient(ctx context.Context, clientID string) (int, error) {
	return r.countByClientFn(ctx, clientID)
}

func (r *stubJobRepo) Delete(ctx context.Context, id string) error {
	return r.deleteFn(ctx, id)
}

func newTestJobService(t *testing.T, repo *stubJobRepo) (*JobService, *stubJobNotifier) {
	t.Helper()
	notifier := &stubJobNotifier{}
	svc := MustNewJobService(JobServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
		Notifier:     notifier,
	})
	return svc, notifier
}

func TestNewJobServiceValidation(t *testing.T) {
	t.Run("requires repo", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{DefaultLease: time.Second})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JobRepository is required")
	})

	t.Run("requires positive lease", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{Repo: &stubJobRepo{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DefaultLease must be positive")
	})

	t.Run("success with logger", func(t *testing.T) {
		svc, err := NewJobService(JobServiceOptions{
			Repo:         &stubJobRepo{},
			DefaultLease: 30 * time.Second,
			Logger:       slog.Default(),
			Notifier:     &stubJobNotifier{},
		})
		require.NoError(t, err)
		assert.NotNil(t, svc.logger)
		assert.Equal(t, 30*time.Second, svc.leasePolicy.Default())
	})

	t.Run("must constructor panics", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNewJobService(JobServiceOptions{})
		})
	})
}

func TestJobServiceCreate(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	req := &model.CreateJobRequest{
		Type:     model.JobTypeModerateComment,
		ClientID: "client-1",
		Text:     "hello world",
	}

	t.Run("success", func(t *testing.T) {
		repo.createFn = func(_ context.Context, got *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, req, got)
			return &model.Job{ID: "job-1", Type: got.Type, Status: model.JobStatusPending}, nil
		}

		job, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)
	})

	t.Run("repo error wrapped", func(t *testing.T) {
		repo.createFn = func(_ context.Context, _ *model.CreateJobRequest) (*model.Job, error) {
			return nil, errors.New("boom")
		}

		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create job")
	})
}

func TestJobServiceReserveNext(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	t.Run("passes resolved lease seconds", func(t *testing.T) {
		var gotLease int
		repo.reserveNextFn = func(_ context.Context, _ model.JobType, leaseSeconds int) (*model.Job, error) {
			gotLease = leaseSeconds
			return &model.Job{ID: "job-1"}, nil
		}

		job, err := svc.ReserveNext(context.Background(), model.JobTypeModerateComment, 45*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, 45, gotLease)
	})

	t.Run("zero lease falls back to default", func(t *testing.T) {
		var gotLease int
		repo.reserveNextFn = func(_ context.Context, _ model.JobType, leaseSeconds int) (*model.Job, error) {
			gotLease = leaseSeconds
			return nil, nil
		}

		_, err := svc.ReserveNext(context.Background(), model.JobTypeDeliverWebhook, 0)
		require.NoError(t, err)
		assert.Equal(t, 30, gotLease)
	})

	t.Run("sub-second lease clamps to one second", func(t *testing.T) {
		var gotLease int
		repo.reserveNextFn = func(_ context.Context, _ model.JobType, leaseSeconds int) (*model.Job, error) {
			gotLease = leaseSeconds
			return nil, nil
		}

		_, err := svc.ReserveNext(context.Background(), model.JobTypeModerateComment, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, gotLease)
	})
}

func TestJobServiceHeartbeat(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	repo.heartbeatFn = func(_ context.Context, id string, extendSeconds int) (bool, error) {
		assert.Equal(t, "job-1", id)
		assert.Equal(t, 60, extendSeconds)
		return true, nil
	}

	updated, err := svc.Heartbeat(context.Background(), "job-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestJobServiceCompleteModeration(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	result := &model.JobResult{
		Sentiment:        "negative",
		ModerationResult: "reject",
		Confidence:       0.95,
	}

	t.Run("records result", func(t *testing.T) {
		repo.completeModerationFn = func(_ context.Context, id string, got *model.JobResult) (bool, error) {
			assert.Equal(t, "job-1", id)
			assert.Equal(t, result, got)
			return true, nil
		}

		ok, err := svc.CompleteModeration(context.Background(), "job-1", result)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("absorbs redelivery when job not processing", func(t *testing.T) {
		repo.completeModerationFn = func(_ context.Context, _ string, _ *model.JobResult) (bool, error) {
			return false, nil
		}

		ok, err := svc.CompleteModeration(context.Background(), "job-1", result)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestJobServiceFail(t *testing.T) {
	t.Run("rejects empty error message", func(t *testing.T) {
		repo := &stubJobRepo{}
		svc, _ := newTestJobService(t, repo)

		_, err := svc.Fail(context.Background(), "job-1", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error message required")
	})

	t.Run("marks job failed", func(t *testing.T) {
		repo := &stubJobRepo{}
		svc, _ := newTestJobService(t, repo)

		repo.failFn = func(_ context.Context, id, errMsg string) (bool, error) {
			assert.Equal(t, "job-1", id)
			assert.Equal(t, "scorer unavailable", errMsg)
			return true, nil
		}

		failed, err := svc.Fail(context.Background(), "job-1", "scorer unavailable")
		require.NoError(t, err)
		assert.True(t, failed)
	})
}

func TestJobServiceFailWithDelay(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	repo.failWithDelayFn = func(_ context.Context, id, errMsg string, delay time.Duration) (bool, error) {
		assert.Equal(t, "job-1", id)
		assert.Equal(t, "delivery failed: 503", errMsg)
		assert.Equal(t, 5*time.Second, delay)
		return true, nil
	}

	failed, err := svc.FailWithDelay(context.Background(), "job-1", "delivery failed: 503", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, failed)

	_, err = svc.FailWithDelay(context.Background(), "job-1", "", time.Second)
	require.Error(t, err)
}

func TestJobServiceFailWithDetailsNotifies(t *testing.T) {
	repo := &stubJobRepo{}

	var mu sync.Mutex
	var got []notify.JobFailurePayload
	sink := notify.SinkFunc(func(_ context.Context, p notify.JobFailurePayload) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p)
		return nil
	})

	fn := failurenotifier.NewService(failurenotifier.Options{
		Sinks:  []failurenotifier.SinkRegistration{{Name: "test", Sink: sink}},
		Logger: slog.Default(),
	})

	svc := MustNewJobService(JobServiceOptions{
		Repo:            repo,
		DefaultLease:    30 * time.Second,
		Notifier:        &stubJobNotifier{},
		FailureNotifier: fn,
	})

	repo.getByIDFn = func(_ context.Context, id string) (*model.Job, error) {
		return &model.Job{
			ID:         id,
			Type:       model.JobTypeModerateComment,
			ClientID:   "client-7",
			RetryCount: 2,
			MaxRetries: 3,
		}, nil
	}
	repo.failFn = func(_ context.Context, _, _ string) (bool, error) { return true, nil }

	failed, err := svc.FailWithDetails(context.Background(), "job-1", "scorer unavailable", JobFailureDetails{
		ErrorClass: "scorer_unavailable",
	})
	require.NoError(t, err)
	assert.True(t, failed)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	payload := got[0]
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "moderate_comment", payload.JobType)
	assert.Equal(t, "client-7", payload.ClientID)
	assert.Equal(t, "scorer unavailable", payload.Error)
	assert.Equal(t, "scorer_unavailable", payload.ErrorClass)
	assert.Equal(t, notify.SeverityCritical, payload.Severity)
	assert.Equal(t, "3", payload.Metadata["retry_count"])
	assert.Equal(t, "3", payload.Metadata["max_retries"])
	assert.Equal(t, "failed", payload.Metadata["status"])
	assert.Equal(t, "scorer_unavailable", payload.Metadata["error_class"])
	assert.False(t, payload.OccurredAt.IsZero())
}

func TestJobServiceGetStatus(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	completedAt := time.Now()
	repo.getByIDFn = func(_ context.Context, id string) (*model.Job, error) {
		assert.Equal(t, "job-1", id)
		return &model.Job{
			ID:          id,
			Status:      model.JobStatusCompleted,
			CompletedAt: &completedAt,
		}, nil
	}

	status, err := svc.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, status.Status)
	require.NotNil(t, status.CompletedAt)
	assert.Nil(t, status.LastError)
}

func TestJobServiceListByClient(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	t.Run("requires client id", func(t *testing.T) {
		_, err := svc.ListByClient(context.Background(), model.JobListByClientOptions{})
		require.Error(t, err)
	})

	t.Run("normalizes pagination", func(t *testing.T) {
		repo.listByClientFn = func(_ context.Context, opts model.JobListByClientOptions) ([]*model.Job, error) {
			assert.Equal(t, 50, opts.Limit)
			assert.Equal(t, 0, opts.Offset)
			return []*model.Job{{ID: "job-1"}}, nil
		}

		jobs, err := svc.ListByClient(context.Background(), model.JobListByClientOptions{
			ClientID: "client-1",
			Limit:    -5,
			Offset:   -1,
		})
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})

	t.Run("caps oversized limit", func(t *testing.T) {
		repo.listByClientFn = func(_ context.Context, opts model.JobListByClientOptions) ([]*model.Job, error) {
			assert.Equal(t, 1000, opts.Limit)
			return nil, nil
		}

		_, err := svc.ListByClient(context.Background(), model.JobListByClientOptions{
			ClientID: "client-1",
			Limit:    99999,
		})
		require.NoError(t, err)
	})
}

func TestJobServiceCountByClient(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	repo.countByClientFn = func(_ context.Context, clientID string) (int, error) {
		assert.Equal(t, "client-1", clientID)
		return 7, nil
	}

	count, err := svc.CountByClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	_, err = svc.CountByClient(context.Background(), "")
	require.Error(t, err)
}

func TestJobServiceDelete(t *testing.T) {
	repo := &stubJobRepo{}
	svc, _ := newTestJobService(t, repo)

	t.Run("requires id", func(t *testing.T) {
		err := svc.Delete(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("propagates repo error", func(t *testing.T) {
		repo.deleteFn = func(_ context.Context, _ string) error {
			return errors.New("job is processing")
		}
		err := svc.Delete(context.Background(), "job-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job is processing")
	})

	t.Run("success", func(t *testing.T) {
		repo.deleteFn = func(_ context.Context, id string) error {
			assert.Equal(t, "job-1", id)
			return nil
		}
		require.NoError(t, svc.Delete(context.Background(), "job-1"))
	})
}

func TestJobServiceSubscribeAndStop(t *testing.T) {
	repo := &stubJobRepo{}
	svc, notifier := newTestJobService(t, repo)

	unsub, ch := svc.Subscribe(model.JobTypeModerateComment)
	require.NotNil(t, ch)
	unsub()

	assert.Equal(t, []model.JobType{model.JobTypeModerateComment}, notifier.subscribeCalls)

	svc.StopAllListeners()
	assert.True(t, notifier.stopCalled)
}
