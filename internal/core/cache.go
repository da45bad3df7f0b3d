// Package core provides the business logic and service layer for the modpipe job system.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/target/modpipe/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// SetTTL updates the TTL for an existing key.
	// Returns true if the key exists and TTL was updated.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	// This is useful for implementing distributed locks and deduplication.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ClientCacheService caches API-key lookups so the intake hot path does not
// hit Postgres on every request. Cached entries never contain HMAC secrets;
// model.Client excludes them from JSON and callers that sign payloads load
// the client from the repository instead.
type ClientCacheService struct {
	cache   CacheRepository
	clients ClientRepository
	ttl     time.Duration
}

// ClientCacheConfig holds configuration for client auth caching.
type ClientCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// ClientCacheServiceOptions bundles dependencies for NewClientCacheService.
type ClientCacheServiceOptions struct {
	Cache   CacheRepository
	Clients ClientRepository
	Config  ClientCacheConfig
}

// DefaultClientCacheConfig returns a ClientCacheConfig with sensible defaults.
func DefaultClientCacheConfig() ClientCacheConfig {
	return ClientCacheConfig{
		TTL: 5 * time.Minute,
	}
}

// NewClientCacheService creates a new ClientCacheService.
func NewClientCacheService(opts ClientCacheServiceOptions) *ClientCacheService {
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultClientCacheConfig().TTL
	}
	return &ClientCacheService{
		cache:   opts.Cache,
		clients: opts.Clients,
		ttl:     ttl,
	}
}

// LookupByAPIKey resolves a client from the cache, falling back to the
// repository on a miss. Repository results are cached for the configured TTL.
// Cache failures degrade to repository lookups rather than failing the
// request.
func (s *ClientCacheService) LookupByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	key := s.clientKey(apiKey)

	if cached, err := s.cache.Get(ctx, key); err == nil && len(cached) > 0 {
		var client model.Client
		if err := json.Unmarshal(cached, &client); err == nil {
			return &client, nil
		}
		// Corrupt entry: drop it and fall through to the repository.
		_, _ = s.cache.Delete(ctx, key)
	}

	client, err := s.clients.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(client); err == nil {
		_ = s.cache.Set(ctx, key, encoded, s.ttl)
	}

	return client, nil
}

// Invalidate removes the cached entry for an API key. Called on suspension,
// secret rotation and webhook URL changes so stale auth data does not
// outlive the mutation.
func (s *ClientCacheService) Invalidate(ctx context.Context, apiKey string) error {
	_, err := s.cache.Delete(ctx, s.clientKey(apiKey))
	return err
}

// clientKey hashes the API key so credentials never appear in cache keys.
func (s *ClientCacheService) clientKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "client:apikey:" + hex.EncodeToString(sum[:])
}
