package signal

import (
	"Helpdesk/internal/pkg/consts"
	"context"
	"strconv"
	"time"
)

// typingTTL 刻意偏短：客户端崩溃后指示灯自行熄灭，无需清理动作
const typingTTL = 6 * time.Second

// Typing 输入中指示灯，仅存在于缓存，从不落库
type Typing struct {
	cache Cache
}

func NewTyping(cache Cache) *Typing {
	return &Typing{cache: cache}
}

func typingKey(convID uint64, role string) string {
	return consts.TypingKey + strconv.FormatUint(convID, 10) + ":" + role
}

// Set 打开或关闭某一方的输入中标记
func (s *Typing) Set(ctx context.Context, convID uint64, role string, active bool) error {
	if !active {
		return s.cache.Del(ctx, typingKey(convID, role))
	}
	return s.cache.Set(ctx, typingKey(convID, role), "1", typingTTL)
}

// Active 对方此刻是否在输入
func (s *Typing) Active(ctx context.Context, convID uint64, role string) (bool, error) {
	v, err := s.cache.Get(ctx, typingKey(convID, role))
	if err != nil {
		return false, err
	}
	return v != "", nil
}
