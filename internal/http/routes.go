package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/modpipe/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Webhooks *service.WebhookService
	Auth     ClientAuthenticator
	Logger   *slog.Logger

	// CompressionLevel enables gzip response compression when > 0.
	CompressionLevel int
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Jobs: services.Jobs, Webhooks: services.Webhooks}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	registerJobRoutes(mux, jobHandlers, services.Auth)

	handler := http.Handler(mux)
	if services.CompressionLevel > 0 {
		handler = Compression(CompressionConfig{Level: services.CompressionLevel, MinSize: 1024, Logger: logger})(handler)
	}
	handler = Logging(logger)(handler)
	handler = RequestID()(handler)
	handler = Recover(logger)(handler)
	return handler
}

// registerJobRoutes registers the API-key authenticated job endpoints.
func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, auth ClientAuthenticator) {
	requireClient := RequireClient(auth)

	mux.Handle("POST /api/v1/jobs", requireClient(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/v1/jobs", requireClient(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", requireClient(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/status", requireClient(http.HandlerFunc(h.GetJobStatus)))
	mux.Handle("GET /api/v1/jobs/{id}/deliveries", requireClient(http.HandlerFunc(h.ListDeliveries)))
	mux.Handle("GET /api/v1/stats/{type}", requireClient(http.HandlerFunc(h.Stats)))
}
