package httpx

import (
	"context"

	"github.com/target/modpipe/internal/domain/model"
)

// clientKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type clientKey struct{}

// SetClientInContext returns a child context that carries the authenticated client.
// If client is nil, the original ctx is returned unchanged.
func SetClientInContext(ctx context.Context, client *model.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, client)
}

// GetClientFromContext returns the authenticated client from context and a
// boolean indicating presence.
func GetClientFromContext(ctx context.Context) (*model.Client, bool) {
	if client, ok := ctx.Value(clientKey{}).(*model.Client); ok && client != nil {
		return client, true
	}
	return nil, false
}
