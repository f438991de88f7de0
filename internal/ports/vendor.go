package ports

import (
	"context"

	"mercata-core-vendor-layer/internal/domain"
)

// CredentialResolver resolves a shop to its vendor auth material, with
// fallback to process-wide defaults, and persists refresh-token rotation.
type CredentialResolver interface {
	// Resolve returns the auth for shopID, or domain.ErrCredentialMissing
	// when neither the shop nor the process defaults are usable. An empty
	// shopID resolves to the defaults.
	Resolve(ctx context.Context, shopID string) (domain.ShopAuth, error)
	RotateRefreshToken(ctx context.Context, shopID string, newToken string) error
	ListShopIDs(ctx context.Context) ([]string, error)
}

// TokenSource mints and caches vendor access tokens per credential identity.
type TokenSource interface {
	// AccessToken returns a valid token for the identity, minting one when
	// the cache has none. Concurrent callers for the same identity share a
	// single mint.
	AccessToken(ctx context.Context, auth domain.ShopAuth) (domain.AccessToken, error)
	// Invalidate drops the cached token for the identity, forcing a re-mint
	// on the next call. Callers use it after a 401/invalid-grant response.
	Invalidate(auth domain.ShopAuth)
}

// PageIterator walks one vendor list lazily. Next returns false once the
// sequence ends for any reason; Reason distinguishes exhaustion from budget
// or deadline truncation, and Err carries a mid-sequence fetch failure.
type PageIterator interface {
	Next() (domain.Page, bool)
	Err() error
	Reason() domain.StopReason
}

// Paginator starts a lazy page sequence over one vendor list endpoint.
// Stopping consumption early has no side effect beyond fetching no more pages.
type Paginator interface {
	Pages(ctx context.Context, auth domain.ShopAuth, req domain.PageRequest) PageIterator
}
