package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/showroom/internal/cache"
	"github.com/vbonduro/showroom/internal/cache/memory"
	"github.com/vbonduro/showroom/internal/domain"
)

func TestJSONRoundTrip(t *testing.T) {
	s := memory.NewMemoryStore()
	ctx := context.Background()

	v := domain.Vehicle{ID: "v1", StockNumber: "S100", Images: []string{"https://x/a.jpg"}}
	require.NoError(t, cache.SetJSON(ctx, s, cache.VehicleKey(v.ID), v))

	got, err := cache.GetJSON[domain.Vehicle](ctx, s, cache.VehicleKey(v.ID))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestGetJSON_NotFound(t *testing.T) {
	s := memory.NewMemoryStore()

	_, err := cache.GetJSON[domain.Vehicle](context.Background(), s, cache.VehicleKey("nope"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	s := memory.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, cache.VehicleKey("v1"), []byte("{not json")))

	_, err := cache.GetJSON[domain.Vehicle](ctx, s, cache.VehicleKey("v1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestKeyNamespacesAreDistinct(t *testing.T) {
	keys := []string{
		cache.VehicleKey("x"),
		cache.UploadKey("x"),
		cache.UploadStockKey("x"),
		cache.InventoryIndexKey,
		cache.CustomMediaKey,
	}
	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Equal(t, "vehicle:x", cache.VehicleKey("x"))
	assert.Equal(t, "web-companion:upload:x", cache.UploadKey("x"))
}
