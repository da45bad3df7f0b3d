//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

// JobListByClientOptions groups parameters for listing a client's jobs.
type JobListByClientOptions struct {
	ClientID string
	Status   *JobStatus // Optional filter by status (pending, processing, completed, failed)
	Limit    int
	Offset   int
}

// JobListOptions groups parameters for listing all jobs with optional filters (operator view).
type JobListOptions struct {
	Status    *JobStatus // Optional filter by status (pending, processing, completed, failed)
	Type      *JobType   // Optional filter by type (moderate_comment, deliver_webhook)
	ClientID  *string    // Optional filter by owning client
	SortBy    string     // Sort field: "created_at", "status", "type" (default: "created_at")
	SortOrder string     // Sort order: "asc", "desc" (default: "desc")
	Limit     int
	Offset    int
}
