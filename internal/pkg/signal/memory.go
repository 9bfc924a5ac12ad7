package signal

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	value    string
	expireAt time.Time
}

// MemoryCache 进程内实现，供单测与无 Redis 的本地运行使用。
// 语义与 redisCache 对齐：TTL 过期即视为不存在，计数不降为负。
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry)}
}

func (s *MemoryCache) get(key string) (string, bool) {
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if !e.expireAt.IsZero() && time.Now().After(e.expireAt) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryCache) set(key, value string, ttl time.Duration) {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	s.entries[key] = e
}

func (s *MemoryCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(key); ok {
		return false, nil
	}
	s.set(key, value, ttl)
	return true, nil
}

func (s *MemoryCache) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.get(key)
	return v, nil
}

func (s *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value, ttl)
	return nil
}

func (s *MemoryCache) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.get(key)
	n, _ := strconv.ParseInt(v, 10, 64)
	n++
	s.set(key, strconv.FormatInt(n, 10), 0)
	return n, nil
}

func (s *MemoryCache) DecrFloor(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.get(key)
	n, _ := strconv.ParseInt(v, 10, 64)
	n--
	if n < 0 {
		n = 0
	}
	s.set(key, strconv.FormatInt(n, 10), 0)
	return n, nil
}
