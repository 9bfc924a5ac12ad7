package redis

import (
	"github.com/redis/go-redis/v9"
)

// GetRdbClient 获取redis客户端
func GetRdbClient() *redis.Client {
	return Rdb
}
