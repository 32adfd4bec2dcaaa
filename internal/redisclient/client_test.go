package redisclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewClientFromRedis(rdb)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestProductCacheRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	// Miss before any write.
	got, err := client.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	product := &models.Product{ID: 1, Name: "Widget", Price: 7.50, StockQuantity: 10, Version: 3}
	require.NoError(t, client.SetProduct(ctx, product))

	got, err = client.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, product.Name, got.Name)
	assert.Equal(t, product.StockQuantity, got.StockQuantity)
	assert.Equal(t, product.Version, got.Version)
}

func TestProductCacheEncodingKeepsVersion(t *testing.T) {
	// The API encoding of a product omits the version token. The cache
	// uses its own encoding that keeps it, so a cached read is still
	// usable for optimistic writes.
	apiJSON, err := json.Marshal(&models.Product{ID: 5, Version: 9})
	require.NoError(t, err)
	assert.NotContains(t, string(apiJSON), "version")

	client, mr := newTestClient(t)
	require.NoError(t, client.SetProduct(context.Background(), &models.Product{ID: 5, Version: 9}))

	raw, err := mr.Get("product:5")
	require.NoError(t, err)
	assert.Contains(t, raw, `"version":9`)
}

func TestProductCacheExpiry(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetProduct(ctx, &models.Product{ID: 2, Name: "Gadget"}))

	mr.FastForward(5*time.Minute + time.Second)

	got, err := client.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidateProduct(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetProduct(ctx, &models.Product{ID: 3, Name: "Widget"}))
	require.NoError(t, client.InvalidateProduct(ctx, 3))

	got, err := client.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReservationStatusCache(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	status, err := client.GetReservationStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, status)

	require.NoError(t, client.SetReservationStatus(ctx, "order-1", models.ReservationProcessed))

	status, err = client.GetReservationStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationProcessed, status)

	// The fast path expires; the database record remains authoritative.
	mr.FastForward(24*time.Hour + time.Second)

	status, err = client.GetReservationStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, status)
}
