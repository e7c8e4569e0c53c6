package tenants

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound is returned (possibly wrapped) when a tenant has no usable configuration.
var ErrNotFound = errors.New("tenant configuration not found")

type Provider interface {
	// Resolve loads the configuration for tenantID. Unknown, invalid or
	// malformed tenants yield an error wrapping ErrNotFound.
	Resolve(ctx context.Context, tenantID string) (Config, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, tenantID string) (Config, error)

func (f ProviderFunc) Resolve(ctx context.Context, tenantID string) (Config, error) {
	return f(ctx, tenantID)
}

// Tenant ids double as a DNS label of the tenant application host and as a
// file name component, so only a conservative alphabet is accepted.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)

func ValidID(id string) bool { return idPattern.MatchString(id) }
