package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobIDRequired is returned when an operation is missing its job id.
	ErrJobIDRequired = errors.New("job_id is required")

	// ErrRepoNotConfigured is returned when a service is wired without its repository.
	ErrRepoNotConfigured = errors.New("repository not configured")
)
