package signal

import (
	"Helpdesk/internal/pkg/consts"
	"context"
	"fmt"
	"strconv"
	"time"
)

const signatureTTL = 24 * time.Hour

// MaxMessageIDFunc 查询某会话当前最大消息 ID，用于签名缺失时的自愈重建
type MaxMessageIDFunc func(ctx context.Context, convID uint64) (uint64, error)

// Tracker 变更签名追踪器。签名只是廉价的变更判据，
// 丢失后最多多一轮查询，绝不作为消息查询本身的替代。
type Tracker struct {
	cache    Cache
	maxMsgID MaxMessageIDFunc
}

func NewTracker(cache Cache, maxMsgID MaxMessageIDFunc) *Tracker {
	return &Tracker{cache: cache, maxMsgID: maxMsgID}
}

func convSignatureKey(convID uint64) string {
	return consts.ChatSignatureKey + strconv.FormatUint(convID, 10)
}

// Touch 会话有新动静时写入新签名
func (s *Tracker) Touch(ctx context.Context, convID uint64, latestMsgID uint64) (string, error) {
	sig := fmt.Sprintf("%d:%d", latestMsgID, time.Now().UnixNano())
	if err := s.cache.Set(ctx, convSignatureKey(convID), sig, signatureTTL); err != nil {
		return "", err
	}
	return sig, nil
}

// Current 读取当前签名；缓存失效时按存储的最大消息 ID 重建并写回
func (s *Tracker) Current(ctx context.Context, convID uint64) (string, error) {
	sig, err := s.cache.Get(ctx, convSignatureKey(convID))
	if err != nil {
		return "", err
	}
	if sig != "" {
		return sig, nil
	}

	maxID, err := s.maxMsgID(ctx, convID)
	if err != nil {
		return "", err
	}
	return s.Touch(ctx, convID, maxID)
}

// TouchQueue 整个排队形态发生变化（新消息/开启/关闭）时调用
func (s *Tracker) TouchQueue(ctx context.Context) error {
	sig := strconv.FormatInt(time.Now().UnixNano(), 10)
	return s.cache.Set(ctx, consts.QueueSignatureKey, sig, signatureTTL)
}

// CurrentQueue 排队级签名，仪表盘轮询以此决定是否值得重算指纹
func (s *Tracker) CurrentQueue(ctx context.Context) (string, error) {
	return s.cache.Get(ctx, consts.QueueSignatureKey)
}
