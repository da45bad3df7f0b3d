package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/modpipe/internal/core"
	"github.com/target/modpipe/internal/domain/model"
)

const (
	apiKeyBytes     = 32
	hmacSecretBytes = 32
)

// ClientServiceOptions groups dependencies for ClientService.
type ClientServiceOptions struct {
	Repo   core.ClientRepository    // Required: client repository
	Cache  *core.ClientCacheService // Optional: API-key lookup cache, invalidated on mutation
	Logger *slog.Logger             // Optional: structured logger
}

// ClientService provides business logic for client registration and
// credential lifecycle. API keys and HMAC secrets are generated here, never
// supplied by callers, and the plaintext secret is only returned once at
// registration and rotation time.
type ClientService struct {
	repo   core.ClientRepository
	cache  *core.ClientCacheService
	logger *slog.Logger
}

// NewClientService constructs a new ClientService.
func NewClientService(opts ClientServiceOptions) (*ClientService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ClientRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "client_service")
	}

	return &ClientService{
		repo:   opts.Repo,
		cache:  opts.Cache,
		logger: logger,
	}, nil
}

// MustNewClientService constructs a new ClientService and panics on error.
func MustNewClientService(opts ClientServiceOptions) *ClientService {
	svc, err := NewClientService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ClientService: %v", err))
	}
	return svc
}

// RegisteredClient pairs a freshly created client with its one-time plaintext
// HMAC secret. The secret is not retrievable afterwards.
type RegisteredClient struct {
	Client     *model.Client `json:"client"`
	HMACSecret string        `json:"hmac_secret"`
}

// Register creates a new client with server-generated credentials.
func (s *ClientService) Register(
	ctx context.Context,
	req *model.CreateClientRequest,
) (*RegisteredClient, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate client request: %w", err)
	}

	apiKey, err := generateToken(apiKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	secret, err := generateToken(hmacSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate hmac secret: %w", err)
	}

	client, err := s.repo.Create(ctx, core.CreateClientParams{
		Req:        req,
		APIKey:     apiKey,
		HMACSecret: secret,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "client registered", "id", client.ID, "name", client.Name)
	}

	return &RegisteredClient{Client: client, HMACSecret: secret}, nil
}

// RotateSecret generates a new HMAC secret for the client. The previous
// secret stays valid for in-flight deliveries until the next rotation.
func (s *ClientService) RotateSecret(ctx context.Context, id string) (*RegisteredClient, error) {
	if id == "" {
		return nil, errors.New("client id is required")
	}

	secret, err := generateToken(hmacSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate hmac secret: %w", err)
	}

	client, err := s.repo.RotateSecret(ctx, id, secret)
	if err != nil {
		return nil, fmt.Errorf("rotate secret for client %s: %w", id, err)
	}

	s.invalidateCache(ctx, client)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "client secret rotated",
			"id", client.ID, "secret_version", client.SecretVersion)
	}

	return &RegisteredClient{Client: client, HMACSecret: secret}, nil
}

// UpdateWebhookURL changes the client's webhook endpoint.
func (s *ClientService) UpdateWebhookURL(
	ctx context.Context,
	id, webhookURL string,
) (*model.Client, error) {
	if id == "" {
		return nil, errors.New("client id is required")
	}
	if err := model.ValidateWebhookURL(webhookURL); err != nil {
		return nil, fmt.Errorf("validate webhook url: %w", err)
	}

	client, err := s.repo.UpdateWebhookURL(ctx, id, webhookURL)
	if err != nil {
		return nil, fmt.Errorf("update webhook url for client %s: %w", id, err)
	}

	s.invalidateCache(ctx, client)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "client webhook url updated", "id", client.ID)
	}

	return client, nil
}

// Suspend disables the client without deleting it. Pending jobs remain but
// new submissions and webhook deliveries are refused.
func (s *ClientService) Suspend(ctx context.Context, id string) (*model.Client, error) {
	return s.setStatus(ctx, id, model.ClientStatusSuspended)
}

// Resume re-enables a suspended client.
func (s *ClientService) Resume(ctx context.Context, id string) (*model.Client, error) {
	return s.setStatus(ctx, id, model.ClientStatusActive)
}

func (s *ClientService) setStatus(
	ctx context.Context,
	id string,
	status model.ClientStatus,
) (*model.Client, error) {
	if id == "" {
		return nil, errors.New("client id is required")
	}

	client, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("set status %s for client %s: %w", status, id, err)
	}

	s.invalidateCache(ctx, client)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "client status changed", "id", client.ID, "status", status)
	}

	return client, nil
}

// Get returns a client by its ID.
func (s *ClientService) Get(ctx context.Context, id string) (*model.Client, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", id, err)
	}
	return client, nil
}

// Authenticate resolves a client by API key and rejects suspended clients.
// Uses the cache when configured.
func (s *ClientService) Authenticate(ctx context.Context, apiKey string) (*model.Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	var client *model.Client
	var err error
	if s.cache != nil {
		client, err = s.cache.LookupByAPIKey(ctx, apiKey)
	} else {
		client, err = s.repo.GetByAPIKey(ctx, apiKey)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup client by api key: %w", err)
	}

	if !client.Active() {
		return nil, ErrClientSuspended
	}

	return client, nil
}

// ErrClientSuspended is returned when a suspended client attempts an
// authenticated operation.
var ErrClientSuspended = errors.New("client is suspended")

// List returns registered clients with pagination.
func (s *ClientService) List(ctx context.Context, limit, offset int) ([]*model.Client, error) {
	p := normalizePagination(limit, offset)
	clients, err := s.repo.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (s *ClientService) invalidateCache(ctx context.Context, client *model.Client) {
	if s.cache == nil || client == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, client.APIKey); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to invalidate client cache",
			"client_id", client.ID, "error", err)
	}
}

// generateToken returns a hex-encoded cryptographically random token.
func generateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
