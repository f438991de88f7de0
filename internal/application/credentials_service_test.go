package application

import (
	"context"
	"encoding/hex"
	"testing"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/infrastructure/encryption"
	"mercata-core-vendor-layer/internal/infrastructure/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCredFixture(t *testing.T, defaults DefaultAuth) (*CredentialsService, *repository.MemoryStore, *encryption.Service) {
	t.Helper()
	crypt, err := encryption.NewService(hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	return NewCredentialsService(store, crypt, defaults, zerolog.Nop()), store, crypt
}

func usableDefaults() DefaultAuth {
	return DefaultAuth{
		Platform:     "acme",
		ClientID:     "default-client",
		RefreshToken: "default-refresh",
		APIBase:      "https://api.acme.test",
		TokenURL:     "https://auth.acme.test/token",
	}
}

func TestResolveOpensStoredShopAuth(t *testing.T) {
	svc, store, crypt := newCredFixture(t, usableDefaults())

	sealed, err := crypt.Encrypt("shop-refresh")
	require.NoError(t, err)
	store.PutShopAuth(domain.ShopAuth{
		ShopID:       "shop-a",
		Platform:     "acme",
		ClientID:     "client-a",
		RefreshToken: sealed,
		APIBase:      "https://api.acme.test",
		TokenURL:     "https://auth.acme.test/token",
	})

	auth, err := svc.Resolve(context.Background(), "shop-a")
	require.NoError(t, err)
	assert.Equal(t, "client-a", auth.ClientID)
	assert.Equal(t, "shop-refresh", auth.RefreshToken)
	assert.Equal(t, domain.AuthSourceShop, auth.Source)
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	svc, _, _ := newCredFixture(t, usableDefaults())

	auth, err := svc.Resolve(context.Background(), "shop-without-auth")
	require.NoError(t, err)
	assert.Equal(t, "default-client", auth.ClientID)
	assert.Equal(t, domain.AuthSourceDefault, auth.Source)
	assert.Equal(t, "shop-without-auth", auth.ShopID)
}

func TestResolveEmptyShopIDYieldsDefaults(t *testing.T) {
	svc, _, _ := newCredFixture(t, usableDefaults())

	auth, err := svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.AuthSourceDefault, auth.Source)
}

func TestResolveWithoutAnyCredentialsFails(t *testing.T) {
	svc, _, _ := newCredFixture(t, DefaultAuth{})

	_, err := svc.Resolve(context.Background(), "shop-a")
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
}

func TestResolveIncompleteStoredAuthFallsBack(t *testing.T) {
	svc, store, crypt := newCredFixture(t, usableDefaults())

	sealed, err := crypt.Encrypt("shop-refresh")
	require.NoError(t, err)
	// TokenURL missing, so the stored row is unusable.
	store.PutShopAuth(domain.ShopAuth{
		ShopID:       "shop-a",
		ClientID:     "client-a",
		RefreshToken: sealed,
		APIBase:      "https://api.acme.test",
	})

	auth, err := svc.Resolve(context.Background(), "shop-a")
	require.NoError(t, err)
	assert.Equal(t, domain.AuthSourceDefault, auth.Source)
}

func TestRotateRefreshTokenSealsAtRest(t *testing.T) {
	svc, store, crypt := newCredFixture(t, usableDefaults())

	sealed, err := crypt.Encrypt("old-refresh")
	require.NoError(t, err)
	store.PutShopAuth(domain.ShopAuth{
		ShopID:       "shop-a",
		Platform:     "acme",
		ClientID:     "client-a",
		RefreshToken: sealed,
		APIBase:      "https://api.acme.test",
		TokenURL:     "https://auth.acme.test/token",
	})

	require.NoError(t, svc.RotateRefreshToken(context.Background(), "shop-a", "new-refresh"))

	stored, err := store.GetShopAuth(context.Background(), "shop-a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "new-refresh", stored.RefreshToken)

	auth, err := svc.Resolve(context.Background(), "shop-a")
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", auth.RefreshToken)
}

func TestRotateDefaultCredentialsIsNoOp(t *testing.T) {
	svc, _, _ := newCredFixture(t, usableDefaults())
	assert.NoError(t, svc.RotateRefreshToken(context.Background(), "", "rotated"))
}
