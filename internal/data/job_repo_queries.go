package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/modpipe/internal/data/database"
	"github.com/target/modpipe/internal/data/pgxutil"
	"github.com/target/modpipe/internal/domain/model"
)

// jobColumnList is jobColumns split into individual identifiers for the
// query builder, which sanitizes columns one by one.
var jobColumnList = strings.Fields(strings.ReplaceAll(jobColumns, ",", " "))

func clampListLimit(limit int) int {
	if limit <= 0 {
		return 50 // Default limit
	}
	if limit > 1000 {
		return 1000 // Max limit
	}
	return limit
}

// ListByClient returns a client's moderation jobs ordered by created_at DESC,
// with an optional status filter. This backs the client-facing query surface;
// internal deliver_webhook bookkeeping jobs are never listed.
func (r *JobRepo) ListByClient(ctx context.Context, params model.JobListByClientOptions) ([]*model.Job, error) {
	if params.ClientID == "" {
		return nil, errors.New("client id is required")
	}

	conds := []database.Condition{
		database.WhereCond("client_id", database.Equal, params.ClientID),
		database.WhereCond("type", database.Equal, string(model.JobTypeModerateComment)),
	}
	if params.Status != nil && *params.Status != "" {
		conds = append(conds, database.WhereCond("status", database.Equal, string(*params.Status)))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("jobs",
		database.WithColumns(jobColumnList...),
		database.WithConditions(conds...),
		database.WithOrderBy("created_at, id", "DESC"),
		database.WithLimit(clampListLimit(params.Limit)),
		database.WithOffset(max(params.Offset, 0)),
	))

	return r.queryJobs(ctx, query, args...)
}

// jobListOrder resolves the operator-supplied sort field against a whitelist
// and appends id as a stable tiebreaker.
func jobListOrder(opts *model.JobListOptions) (string, string) {
	sortBy := opts.SortBy
	switch sortBy {
	case "created_at", "status", "type":
	default:
		sortBy = "created_at"
	}

	dir := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		dir = "ASC"
	}
	return sortBy + ", id", dir
}

// List returns all jobs with optional filtering for the operator view.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	var conds []database.Condition
	if opts.Status != nil {
		conds = append(conds, database.WhereCond("status", database.Equal, string(*opts.Status)))
	}
	if opts.Type != nil {
		conds = append(conds, database.WhereCond("type", database.Equal, string(*opts.Type)))
	}
	if opts.ClientID != nil && *opts.ClientID != "" {
		conds = append(conds, database.WhereCond("client_id", database.Equal, *opts.ClientID))
	}

	orderBy, orderDir := jobListOrder(opts)
	query, args := database.BuildListQuery(database.NewListQueryOptions("jobs",
		database.WithColumns(jobColumnList...),
		database.WithConditions(conds...),
		database.WithOrderBy(orderBy, orderDir),
		database.WithLimit(clampListLimit(opts.Limit)),
		database.WithOffset(max(opts.Offset, 0)),
	))

	return r.queryJobs(ctx, query, args...)
}

// CountByClient returns the total number of moderation jobs owned by a
// client. The filter matches ListByClient so pagination totals line up.
func (r *JobRepo) CountByClient(ctx context.Context, clientID string) (int, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("jobs",
		database.WithCountOnly(),
		database.WithConditions(
			database.WhereCond("client_id", database.Equal, clientID),
			database.WhereCond("type", database.Equal, string(model.JobTypeModerateComment)),
		),
	))

	var n int
	row := r.DB.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs by client: %w", err)
	}
	return n, nil
}

// queryJobs runs a job SELECT and scans every row through the shared scanner.
func (r *JobRepo) queryJobs(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			job, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return fmt.Errorf("scan job: %w", scanErr)
			}
			result = append(result, job)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}
	return result, nil
}
