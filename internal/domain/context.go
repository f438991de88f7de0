package domain

import "context"

// contextKey is a type for context keys to avoid collisions
type contextKey string

const shopIDKey contextKey = "shop_id"

// WithShopID returns a context carrying the tenant shop ID.
func WithShopID(ctx context.Context, shopID string) context.Context {
	return context.WithValue(ctx, shopIDKey, shopID)
}

// GetShopIDFromContext returns the shop ID set by the HTTP layer, or "".
func GetShopIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(shopIDKey).(string); ok {
		return v
	}
	return ""
}
