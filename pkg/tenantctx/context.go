// Package tenantctx carries the active tenant through context.Context.
//
// Tenancy is never ambient process state: a handler or job only sees a
// tenant if its context was derived with WithTenant. Reused goroutines or
// pooled connections therefore cannot leak a tenant between requests.
package tenantctx

import (
	"context"

	"github.com/google/uuid"
)

// tenantKey is the private context key for the active tenant ID.
type tenantKey struct{}

// WithTenant returns a child context scoped to the given tenant.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantID returns the tenant the context is scoped to, if any.
func TenantID(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(tenantKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Strip returns a context with no tenant scope. Callers that must drop
// tenancy (administrative sweeps iterating all tenants) do it explicitly.
func Strip(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantKey{}, uuid.Nil)
}

// As runs fn with ctx scoped to tenantID. The parent context is not
// modified, so the previous tenant (or the absence of one) is restored on
// every exit path, including panics and cancellation.
func As(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(WithTenant(ctx, tenantID))
}
