// Package tenant carries the acting tenant through a context.
package tenant

import "context"

type ctxKey struct{}

// WithID returns a copy of ctx scoped to tenantID.
func WithID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// IDFrom returns the tenant stored by WithID, or "" when absent.
func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
