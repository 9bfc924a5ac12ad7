package signal

import (
	"Helpdesk/internal/pkg/consts"
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrPollBusy 同一 (客户端, 会话) 已有轮询在途，拒绝而非排队
var ErrPollBusy = errors.New("too many concurrent polls")

// Governor 轮询并发治理器。锁以带 TTL 的缓存键实现，
// 多进程部署下无需额外协调，进程被杀后锁自行过期。
type Governor struct {
	cache Cache
	grace time.Duration
}

func NewGovernor(cache Cache, grace time.Duration) *Governor {
	return &Governor{cache: cache, grace: grace}
}

// Token 已获准的轮询凭据，Exit 时据此释放与记账
type Token struct {
	lockKey string
	start   time.Time
}

func pollLockKey(scope, clientKey string) string {
	return consts.PollLockKey + scope + ":" + clientKey
}

// Enter 尝试占用 (scope, client) 轮询槽；已占用时返回 ErrPollBusy
func (s *Governor) Enter(ctx context.Context, clientKey, scope string, timeout time.Duration) (*Token, error) {
	key := pollLockKey(scope, clientKey)
	ok, err := s.cache.SetNX(ctx, key, "1", timeout+s.grace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPollBusy
	}

	// 计数失败不拒绝请求，DecrFloor 会在另一侧自我修正
	_, _ = s.cache.Incr(ctx, consts.PollOpenCountKey)

	return &Token{lockKey: key, start: time.Now()}, nil
}

// Exit 释放轮询槽并记录本次观测时延
func (s *Governor) Exit(ctx context.Context, token *Token) {
	if token == nil {
		return
	}
	_ = s.cache.Del(ctx, token.lockKey)
	_, _ = s.cache.DecrFloor(ctx, consts.PollOpenCountKey)

	elapsed := time.Since(token.start).Milliseconds()
	_ = s.cache.Set(ctx, consts.PollLastLatencyKey, strconv.FormatInt(elapsed, 10), signatureTTL)
}

// OpenCount 当前在途长轮询数
func (s *Governor) OpenCount(ctx context.Context) (int64, error) {
	v, err := s.cache.Get(ctx, consts.PollOpenCountKey)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// LastLatencyMs 最近一次轮询的墙钟耗时
func (s *Governor) LastLatencyMs(ctx context.Context) (int64, error) {
	v, err := s.cache.Get(ctx, consts.PollLastLatencyKey)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}
