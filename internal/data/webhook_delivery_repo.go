package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/data/pgxutil"
	"github.com/target/modpipe/internal/domain/model"
)

var (
	// ErrDeliveryAttemptExists is returned when an attempt number is appended twice
	// for the same job. The unique constraint keeps the attempt sequence gap-free
	// and duplicate-free even under concurrent dispatchers.
	ErrDeliveryAttemptExists = errors.New("delivery attempt already recorded")
)

const deliveryLogColumns = `
  id,
  job_id,
  webhook_url,
  attempt_number,
  status,
  response_status_code,
  response_time_ms,
  error_message,
  created_at
`

// WebhookDeliveryRepo provides append-only storage for webhook delivery
// attempts. Rows are never updated; retention cleanup lives on JobRepo.
type WebhookDeliveryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewWebhookDeliveryRepo creates a new WebhookDeliveryRepo.
func NewWebhookDeliveryRepo(db *sql.DB) *WebhookDeliveryRepo {
	return &WebhookDeliveryRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewWebhookDeliveryRepoWithTimeProvider creates a new WebhookDeliveryRepo with a custom time provider.
func NewWebhookDeliveryRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *WebhookDeliveryRepo {
	return &WebhookDeliveryRepo{DB: db, timeProvider: tp}
}

func validateAppendParams(p core.AppendDeliveryLogParams) error {
	if p.JobID == "" {
		return errors.New("job id is required")
	}
	if p.WebhookURL == "" {
		return errors.New("webhook url is required")
	}
	if p.AttemptNumber < 1 {
		return errors.New("attempt number must start at 1")
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid delivery status: %s", p.Status)
	}
	return nil
}

// Append records exactly one delivery attempt.
func (r *WebhookDeliveryRepo) Append(ctx context.Context, p core.AppendDeliveryLogParams) (*model.WebhookDeliveryLog, error) {
	if err := validateAppendParams(p); err != nil {
		return nil, err
	}

	var entry *model.WebhookDeliveryLog
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO webhook_delivery_logs (job_id, webhook_url, attempt_number, status, response_status_code, response_time_ms, error_message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+deliveryLogColumns,
			p.JobID,
			p.WebhookURL,
			p.AttemptNumber,
			p.Status,
			p.ResponseStatusCode,
			p.ResponseTimeMS,
			p.ErrorMessage,
			r.timeProvider.Now().UTC(),
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		entry, cerr = collectDeliveryLogFromRows(rows)
		return cerr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDeliveryAttemptExists
		}
		return nil, fmt.Errorf("append delivery log: %w", err)
	}
	return entry, nil
}

// ListByJob returns all delivery attempts for a job ordered by attempt number.
func (r *WebhookDeliveryRepo) ListByJob(ctx context.Context, jobID string) ([]*model.WebhookDeliveryLog, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}

	var result []*model.WebhookDeliveryLog
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			SELECT `+deliveryLogColumns+`
			FROM webhook_delivery_logs
			WHERE job_id = $1
			ORDER BY attempt_number ASC
		`, jobID)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			entry, scanErr := scanDeliveryLogFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			result = append(result, entry)
		}
		return rows.Err()
	}); err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	return result, nil
}

// NextAttemptNumber returns 1 + the highest recorded attempt for the job.
func (r *WebhookDeliveryRepo) NextAttemptNumber(ctx context.Context, jobID string) (int, error) {
	if jobID == "" {
		return 0, errors.New("job id is required")
	}
	var maxAttempt int
	row := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(attempt_number), 0)
		FROM webhook_delivery_logs
		WHERE job_id = $1
	`, jobID)
	if err := row.Scan(&maxAttempt); err != nil {
		return 0, fmt.Errorf("next attempt number: %w", err)
	}
	return maxAttempt + 1, nil
}

func collectDeliveryLogFromRows(rows pgx.Rows) (*model.WebhookDeliveryLog, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	entry, err := scanDeliveryLogFromRow(rows)
	if err != nil {
		return nil, err
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return entry, nil
}

type deliveryLogRowScanner interface {
	Scan(dest ...any) error
}

func scanDeliveryLogFromRow(scanner deliveryLogRowScanner) (*model.WebhookDeliveryLog, error) {
	var entry model.WebhookDeliveryLog
	var statusCode sql.NullInt64
	var responseTime sql.NullInt64
	var errMsg sql.NullString
	if err := scanner.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.WebhookURL,
		&entry.AttemptNumber,
		&entry.Status,
		&statusCode,
		&responseTime,
		&errMsg,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	if statusCode.Valid {
		v := int(statusCode.Int64)
		entry.ResponseStatusCode = &v
	}
	if responseTime.Valid {
		v := responseTime.Int64
		entry.ResponseTimeMS = &v
	}
	entry.ErrorMessage = cloneNullableString(errMsg)
	return &entry, nil
}
