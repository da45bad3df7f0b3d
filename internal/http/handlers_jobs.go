// Package httpx provides HTTP handlers and utilities for the modpipe job system API.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/target/modpipe/internal/data"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations. All handlers
// assume the RequireClient middleware has already resolved the caller.
type JobHandlers struct {
	Jobs     *service.JobService
	Webhooks *service.WebhookService
}

// submitJobRequest is the intake payload. Client identity comes from the API
// key, never from the body.
type submitJobRequest struct {
	CommentID  *string           `json:"comment_id,omitempty"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	MaxRetries *int              `json:"max_retries,omitempty"`
}

const defaultIntakeMaxRetries = 3

// CreateJob handles HTTP requests to submit a comment for moderation.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	client, ok := GetClientFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var body submitJobRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	req := &model.CreateJobRequest{
		Type:       model.JobTypeModerateComment,
		ClientID:   client.ID,
		CommentID:  body.CommentID,
		Text:       body.Text,
		MaxRetries: defaultIntakeMaxRetries,
	}
	if body.MaxRetries != nil {
		req.MaxRetries = *body.MaxRetries
	}
	if len(body.Metadata) > 0 {
		metadata, err := json.Marshal(body.Metadata)
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_metadata", Err: err})
			return
		}
		req.Metadata = metadata
	}

	if err := req.Validate(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
		return
	}

	job, err := h.Jobs.Create(r.Context(), req)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "create_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles HTTP requests to fetch a single job. Clients only see their
// own jobs; foreign jobs answer 404 so ids are not probeable.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadOwnedJob(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetJobStatus handles HTTP requests for the compact status view of a job.
func (h *JobHandlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadOwnedJob(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, &model.JobStatusResponse{
		Status:      job.Status,
		CompletedAt: job.CompletedAt,
		LastError:   job.LastError,
	})
}

// ListJobs handles HTTP requests to list the authenticated client's jobs,
// optionally filtered by status.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	client, ok := GetClientFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	const (
		defaultLimit = 50
		maxLimit     = 1000
	)
	limit, offset := ParseLimitOffset(r, defaultLimit, maxLimit)

	opts := model.JobListByClientOptions{
		ClientID: client.ID,
		Limit:    limit,
		Offset:   offset,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.JobStatus(raw)
		if !status.Valid() {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_status",
				Err:     errors.New("status must be one of: pending, processing, completed, failed"),
			})
			return
		}
		opts.Status = &status
	}

	jobs, err := h.Jobs.ListByClient(r.Context(), opts)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}

	total, err := h.Jobs.CountByClient(r.Context(), client.ID)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ListDeliveries handles HTTP requests for the delivery log of a job's
// webhook notification.
func (h *JobHandlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadOwnedJob(w, r)
	if !ok {
		return
	}

	logs, err := h.Webhooks.ListDeliveries(r.Context(), job.ID)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_deliveries_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"deliveries": logs})
}

// Stats handles HTTP requests to retrieve queue stats for a job type.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	jobType := model.JobType(r.PathValue("type"))
	if !jobType.Valid() {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("invalid job type")},
		)
		return
	}

	stats, err := h.Jobs.Stats(r.Context(), jobType)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stats_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// loadOwnedJob resolves the {id} path parameter to a job owned by the
// authenticated client, writing the error response on failure.
func (h *JobHandlers) loadOwnedJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	client, ok := GetClientFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return nil, false
	}

	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return nil, false
	}

	job, err := h.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			writeJobNotFound(w)
		} else {
			WriteError(w, ErrorParams{
				Code:    http.StatusInternalServerError,
				ErrCode: "get_job_failed",
				Err:     errors.New("failed to load job"),
			})
		}
		return nil, false
	}

	if job.ClientID != client.ID {
		writeJobNotFound(w)
		return nil, false
	}

	return job, true
}

func writeJobNotFound(w http.ResponseWriter) {
	WriteError(
		w,
		ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
	)
}
