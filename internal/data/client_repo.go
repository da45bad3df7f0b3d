package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/data/cryptoutil"
	"github.com/target/modpipe/internal/data/pgxutil"
	"github.com/target/modpipe/internal/domain/model"
)

var (
	// ErrClientNotFound is returned when a client is not found.
	ErrClientNotFound = errors.New("client not found")
	// ErrClientNameExists is returned when registering a client with a duplicate name.
	ErrClientNameExists = errors.New("client name already exists")
	// ErrClientAPIKeyExists is returned on an api_key collision at insert.
	ErrClientAPIKeyExists = errors.New("client api key already exists")
)

const clientColumns = `
  id,
  name,
  api_key,
  hmac_secret,
  previous_hmac_secret,
  secret_version,
  webhook_url,
  status,
  created_at,
  updated_at
`

// ClientRepo provides database operations for the client registry. HMAC
// secrets are encrypted at rest through the configured Encryptor.
type ClientRepo struct {
	DB           *sql.DB
	Enc          cryptoutil.Encryptor
	timeProvider TimeProvider
}

// NewClientRepo creates a new ClientRepo.
func NewClientRepo(db *sql.DB, enc cryptoutil.Encryptor) *ClientRepo {
	return &ClientRepo{DB: db, Enc: enc, timeProvider: &RealTimeProvider{}}
}

// NewClientRepoWithTimeProvider creates a new ClientRepo with a custom time provider (useful for tests).
func NewClientRepoWithTimeProvider(db *sql.DB, enc cryptoutil.Encryptor, tp TimeProvider) *ClientRepo {
	return &ClientRepo{DB: db, Enc: enc, timeProvider: tp}
}

func (r *ClientRepo) mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return ErrClientNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "clients_name_key":
			return ErrClientNameExists
		case "clients_api_key_key":
			return ErrClientAPIKeyExists
		}
	}
	return err
}

// Create inserts a new client with its generated credentials.
func (r *ClientRepo) Create(ctx context.Context, p core.CreateClientParams) (*model.Client, error) {
	if p.Req == nil {
		return nil, errors.New("create client request is required")
	}
	p.Req.Normalize()
	if err := p.Req.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.APIKey) == "" || strings.TrimSpace(p.HMACSecret) == "" {
		return nil, errors.New("generated credentials are required")
	}

	encSecret, err := r.Enc.Encrypt([]byte(p.HMACSecret))
	if err != nil {
		return nil, fmt.Errorf("encrypt hmac secret: %w", err)
	}

	now := r.timeProvider.Now().UTC()
	var client *model.Client
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO clients (name, api_key, hmac_secret, secret_version, webhook_url, status, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5, $6, $6)
			RETURNING `+clientColumns,
			p.Req.Name,
			p.APIKey,
			encSecret,
			p.Req.WebhookURL,
			model.ClientStatusActive,
			now,
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		client, cerr = collectClientFromRows(rows)
		return cerr
	}); err != nil {
		return nil, r.mapWriteErr(err)
	}

	if err := r.decryptSecrets(client); err != nil {
		return nil, err
	}
	return client, nil
}

// GetByID retrieves a client by ID.
func (r *ClientRepo) GetByID(ctx context.Context, id string) (*model.Client, error) {
	return r.getByQuery(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
}

// GetByAPIKey retrieves a client by its public API key.
func (r *ClientRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	return r.getByQuery(ctx, `SELECT `+clientColumns+` FROM clients WHERE api_key = $1`, apiKey)
}

func (r *ClientRepo) getByQuery(ctx context.Context, query string, arg any) (*model.Client, error) {
	var client *model.Client
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, arg)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		client, cerr = collectClientFromRows(rows)
		return cerr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if err := r.decryptSecrets(client); err != nil {
		return nil, err
	}
	return client, nil
}

// List retrieves clients with pagination, newest first.
func (r *ClientRepo) List(ctx context.Context, limit, offset int) ([]*model.Client, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	var result []*model.Client
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			SELECT `+clientColumns+`
			FROM clients
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			c, scanErr := scanClientFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			result = append(result, c)
		}
		return rows.Err()
	}); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	for _, c := range result {
		if err := r.decryptSecrets(c); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RotateSecret installs a new HMAC secret, bumps the secret version, and
// keeps the previous secret so signatures already in flight still verify.
func (r *ClientRepo) RotateSecret(ctx context.Context, id, newSecret string) (*model.Client, error) {
	if strings.TrimSpace(newSecret) == "" {
		return nil, errors.New("new secret is required")
	}
	encSecret, err := r.Enc.Encrypt([]byte(newSecret))
	if err != nil {
		return nil, fmt.Errorf("encrypt hmac secret: %w", err)
	}

	var client *model.Client
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			UPDATE clients
			SET previous_hmac_secret = hmac_secret,
			    hmac_secret = $2,
			    secret_version = secret_version + 1,
			    updated_at = $3
			WHERE id = $1
			RETURNING `+clientColumns,
			id, encSecret, r.timeProvider.Now().UTC(),
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		client, cerr = collectClientFromRows(rows)
		return cerr
	}); err != nil {
		return nil, r.mapWriteErr(err)
	}

	if err := r.decryptSecrets(client); err != nil {
		return nil, err
	}
	return client, nil
}

// UpdateWebhookURL changes the client's webhook endpoint.
func (r *ClientRepo) UpdateWebhookURL(ctx context.Context, id, webhookURL string) (*model.Client, error) {
	if err := model.ValidateWebhookURL(webhookURL); err != nil {
		return nil, err
	}
	return r.updateReturning(ctx, `
		UPDATE clients
		SET webhook_url = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+clientColumns,
		id, strings.TrimSpace(webhookURL), r.timeProvider.Now().UTC(),
	)
}

// SetStatus flips a client between active and suspended. Clients are never
// hard-deleted.
func (r *ClientRepo) SetStatus(ctx context.Context, id string, status model.ClientStatus) (*model.Client, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid client status: %s", status)
	}
	return r.updateReturning(ctx, `
		UPDATE clients
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+clientColumns,
		id, status, r.timeProvider.Now().UTC(),
	)
}

func (r *ClientRepo) updateReturning(ctx context.Context, query string, args ...any) (*model.Client, error) {
	var client *model.Client
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		client, cerr = collectClientFromRows(rows)
		return cerr
	}); err != nil {
		return nil, r.mapWriteErr(err)
	}

	if err := r.decryptSecrets(client); err != nil {
		return nil, err
	}
	return client, nil
}

func collectClientFromRows(rows pgx.Rows) (*model.Client, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	client, err := scanClientFromRow(rows)
	if err != nil {
		return nil, err
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return client, nil
}

type clientRowScanner interface {
	Scan(dest ...any) error
}

func scanClientFromRow(scanner clientRowScanner) (*model.Client, error) {
	var c model.Client
	var prevSecret sql.NullString
	if err := scanner.Scan(
		&c.ID,
		&c.Name,
		&c.APIKey,
		&c.HMACSecret,
		&prevSecret,
		&c.SecretVersion,
		&c.WebhookURL,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.PreviousHMACSecret = cloneNullableString(prevSecret)
	return &c, nil
}

// decryptSecrets replaces the at-rest ciphertexts with plaintext secrets.
func (r *ClientRepo) decryptSecrets(c *model.Client) error {
	if c == nil {
		return nil
	}
	if c.HMACSecret != "" {
		pt, err := r.Enc.Decrypt(c.HMACSecret)
		if err != nil {
			return fmt.Errorf("decrypt hmac secret: %w", err)
		}
		c.HMACSecret = string(pt)
	}
	if c.PreviousHMACSecret != nil && *c.PreviousHMACSecret != "" {
		pt, err := r.Enc.Decrypt(*c.PreviousHMACSecret)
		if err != nil {
			return fmt.Errorf("decrypt previous hmac secret: %w", err)
		}
		prev := string(pt)
		c.PreviousHMACSecret = &prev
	}
	return nil
}
