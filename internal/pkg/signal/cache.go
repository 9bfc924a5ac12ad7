package signal

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache 信号缓存原语。引擎对共享可变状态的全部操作都收敛在这里，
// 且每个方法都必须是缓存自身的原子操作，调用方不允许跨两次调用做读改写。
type Cache interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	DecrFloor(ctx context.Context, key string) (int64, error)
}

// decrFloorScript 原子递减且不降到 0 以下，计数漂移时自我修正
const decrFloorScript = `local v = redis.call('DECR', KEYS[1])
if v < 0 then
  redis.call('SET', KEYS[1], 0)
  return 0
end
return v`

type redisCache struct {
	rdb *redis.Client
}

// NewRedisCache 基于 go-redis 客户端构造信号缓存
func NewRedisCache(rdb *redis.Client) Cache {
	return &redisCache{rdb: rdb}
}

func (s *redisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisCache) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *redisCache) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *redisCache) DecrFloor(ctx context.Context, key string) (int64, error) {
	res, err := s.rdb.Eval(ctx, decrFloorScript, []string{key}).Result()
	if err != nil {
		return 0, err
	}
	v, _ := res.(int64)
	return v, nil
}
