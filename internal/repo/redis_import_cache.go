package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/observer-pro/observer-back/internal/models"
)

// RedisImportCache はインポート済みページのステップをRedisにキャッシュします
type RedisImportCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisImportCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisImportCache {
	return &RedisImportCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisImportCache) key(pageID string) string {
	return fmt.Sprintf("%simports:%s", c.prefix, pageID)
}

// Get はキャッシュ済みのステップを返します。見つからない場合は found=false です
func (c *RedisImportCache) Get(ctx context.Context, pageID string) ([]models.Step, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(pageID)).Bytes()
	if err == redis.Nil { // データがない
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var steps []models.Step
	if err := json.Unmarshal(val, &steps); err != nil {
		return nil, false, err
	}
	return steps, true, nil
}

func (c *RedisImportCache) Set(ctx context.Context, pageID string, steps []models.Step) error {
	b, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(pageID), b, c.ttl).Err()
}

func (c *RedisImportCache) Delete(ctx context.Context, pageID string) error {
	return c.rdb.Del(ctx, c.key(pageID)).Err()
}
