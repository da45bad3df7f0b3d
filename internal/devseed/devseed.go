// Package devseed populates a development database with demo clients and
// sample moderation jobs so the API can be exercised without manual setup.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/modpipe/internal/data"
	"github.com/target/modpipe/internal/data/cryptoutil"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB      *sql.DB
	clients *service.ClientService
	jobs    *service.JobService
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	encryptor := &cryptoutil.NoopEncryptor{} // Use noop for dev
	clientRepo := data.NewClientRepo(db, encryptor)
	clientService := service.MustNewClientService(service.ClientServiceOptions{
		Repo: clientRepo,
	})

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:         data.NewJobRepo(db, data.RepoConfig{}),
		DefaultLease: 30 * time.Second,
	})

	return Services{
		DB:      db,
		clients: clientService,
		jobs:    jobService,
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	seeded := seedClients(ctx, svcs.clients, logger, &failures)
	if len(seeded) > 0 {
		failures += seedJobs(ctx, svcs.jobs, seeded[0], logger)
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func defaultClients() []model.CreateClientRequest {
	return []model.CreateClientRequest{
		{Name: "demo-forum", WebhookURL: "http://localhost:9090/hooks/forum"},
		{Name: "demo-storefront", WebhookURL: "http://localhost:9090/hooks/storefront"},
	}
}

// seedClients registers the demo clients. Credentials are generated server
// side, so they are logged once here; re-running against a seeded database
// leaves existing clients untouched.
func seedClients(
	ctx context.Context,
	svc *service.ClientService,
	logger *slog.Logger,
	failures *int,
) []*service.RegisteredClient {
	seeded := make([]*service.RegisteredClient, 0, 2)
	for _, req := range defaultClients() {
		req := req
		registered, err := svc.Register(ctx, &req)
		if err != nil {
			if errors.Is(err, data.ErrClientNameExists) {
				if logger != nil {
					logger.InfoContext(ctx, "client already exists", "name", req.Name)
				}
				continue
			}
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create client", "name", req.Name, "error", err)
			}
			*failures++
			continue
		}

		seeded = append(seeded, registered)
		if logger != nil {
			logger.InfoContext(ctx, "created client",
				"name", registered.Client.Name,
				"api_key", registered.Client.APIKey,
				"hmac_secret", registered.HMACSecret,
			)
		}
	}
	return seeded
}

func defaultComments() []string {
	return []string{
		"This recipe turned out great, thanks for sharing!",
		"Has anyone tried the new firmware update yet?",
		"You should definitely buy from totally-legit-pills dot com",
	}
}

// seedJobs enqueues sample moderation jobs for a freshly created client so
// the worker has work immediately after a reset.
func seedJobs(
	ctx context.Context,
	svc *service.JobService,
	owner *service.RegisteredClient,
	logger *slog.Logger,
) int {
	failures := 0
	for i, text := range defaultComments() {
		commentID := fmt.Sprintf("seed-comment-%d", i+1)
		job, err := svc.Create(ctx, &model.CreateJobRequest{
			Type:       model.JobTypeModerateComment,
			ClientID:   owner.Client.ID,
			CommentID:  &commentID,
			Text:       text,
			MaxRetries: 3,
		})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create seed job", "comment_id", commentID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "created seed job", "job_id", job.ID, "comment_id", commentID)
		}
	}
	return failures
}
