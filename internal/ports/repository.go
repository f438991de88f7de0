package ports

import (
	"context"
	"encoding/json"

	"mercata-core-vendor-layer/internal/domain"
)

// KVStore is the generic persistent key/value store used for sync cursors,
// token rotation bookkeeping and the shared cache tier.
type KVStore interface {
	// Get returns the stored value for key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Upsert(ctx context.Context, key string, value json.RawMessage) error
}

// OrderStore is the local order mirror, keyed uniquely by (shopID, externalID).
type OrderStore interface {
	// UpsertOrder writes the record last-write-wins. A record for an unseen
	// (shopID, externalID) pair is inserted, otherwise overwritten.
	UpsertOrder(ctx context.Context, rec domain.OrderRecord) error
	// CountByStatus counts mirrored orders for a shop ("" means all shops)
	// bucketed by status.
	CountByStatus(ctx context.Context, shopID string) (map[string]int64, error)
}

// ShopAuthStore persists per-shop vendor auth material.
type ShopAuthStore interface {
	// GetShopAuth returns the stored auth for a shop, or (nil, nil) when the
	// shop has none of its own.
	GetShopAuth(ctx context.Context, shopID string) (*domain.ShopAuth, error)
	// RotateRefreshToken replaces the stored (sealed) refresh token.
	RotateRefreshToken(ctx context.Context, shopID string, sealedToken string) error
	ListShopIDs(ctx context.Context) ([]string, error)
}
