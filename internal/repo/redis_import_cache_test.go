package repo

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/observer-pro/observer-back/internal/models"
)

const testRedisAddr = "localhost:6379"

func setupImportCache(t *testing.T) *RedisImportCache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisImportCache(client, "observer-test:", time.Minute)
}

func TestRedisImportCache_SetGetDelete(t *testing.T) {
	req := require.New(t)
	cache := setupImportCache(t)
	ctx := context.Background()
	pageID := "0123abcd-0123-0123-0123-0123456789ab"
	t.Cleanup(func() { _ = cache.Delete(ctx, pageID) })

	// Given no cached entry
	_, found, err := cache.Get(ctx, pageID)
	req.NoError(err)
	req.False(found)

	// When steps are cached
	steps := []models.Step{{Name: "1", Content: "<h3>Task</h3>", Language: "html", Type: "exercise"}}
	req.NoError(cache.Set(ctx, pageID, steps))

	// Then they are returned intact
	got, found, err := cache.Get(ctx, pageID)
	req.NoError(err)
	req.True(found)
	req.Equal(steps, got)

	req.NoError(cache.Delete(ctx, pageID))
	_, found, err = cache.Get(ctx, pageID)
	req.NoError(err)
	req.False(found)
}

func TestRedisImportCache_KeyUsesPrefix(t *testing.T) {
	cache := NewRedisImportCache(nil, "p:", time.Minute)
	require.Equal(t, "p:imports:abc", cache.key("abc"))
}
