package repository

import (
	"context"
	"testing"
	"time"

	"mercata-core-vendor-layer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVGetReturnsNilWhenAbsent(t *testing.T) {
	store := NewMemoryStore()
	val, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestKVUpsertOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "k", []byte(`"v1"`)))
	require.NoError(t, store.Upsert(ctx, "k", []byte(`"v2"`)))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `"v2"`, string(val))
}

func TestUpsertOrderIsLastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.UpsertOrder(ctx, domain.OrderRecord{
		ShopID: "shop-a", ExternalID: "o1", Status: "PENDING", UpdatedAt: now,
	}))
	require.NoError(t, store.UpsertOrder(ctx, domain.OrderRecord{
		ShopID: "shop-a", ExternalID: "o1", Status: "SHIPPED", UpdatedAt: now.Add(time.Hour),
	}))

	rec := store.GetOrder("shop-a", "o1")
	require.NotNil(t, rec)
	assert.Equal(t, "SHIPPED", rec.Status)
}

func TestCountByStatusScopesByShop(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, rec := range []domain.OrderRecord{
		{ShopID: "shop-a", ExternalID: "o1", Status: "PENDING"},
		{ShopID: "shop-a", ExternalID: "o2", Status: "PENDING"},
		{ShopID: "shop-a", ExternalID: "o3", Status: "SHIPPED"},
		{ShopID: "shop-b", ExternalID: "o4", Status: "PENDING"},
	} {
		require.NoError(t, store.UpsertOrder(ctx, rec))
	}

	counts, err := store.CountByStatus(ctx, "shop-a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts["PENDING"])
	assert.EqualValues(t, 1, counts["SHIPPED"])

	all, err := store.CountByStatus(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, all["PENDING"])
}

func TestRotateRefreshTokenRequiresExistingAuth(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.Error(t, store.RotateRefreshToken(ctx, "shop-a", "sealed"))

	store.PutShopAuth(domain.ShopAuth{ShopID: "shop-a", RefreshToken: "sealed-old"})
	require.NoError(t, store.RotateRefreshToken(ctx, "shop-a", "sealed-new"))

	auth, err := store.GetShopAuth(ctx, "shop-a")
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, "sealed-new", auth.RefreshToken)
}

func TestListShopIDsIsSorted(t *testing.T) {
	store := NewMemoryStore()
	store.PutShopAuth(domain.ShopAuth{ShopID: "shop-c"})
	store.PutShopAuth(domain.ShopAuth{ShopID: "shop-a"})
	store.PutShopAuth(domain.ShopAuth{ShopID: "shop-b"})

	ids, err := store.ListShopIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"shop-a", "shop-b", "shop-c"}, ids)
}
