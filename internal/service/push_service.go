package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"Helpdesk/internal/api/config"
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/push"
	"Helpdesk/internal/pkg/signal"
	"Helpdesk/internal/pkg/util"
	"Helpdesk/internal/repository"

	"github.com/goccy/go-json"
	log "log/slog"
)

// previewLimit 通知正文预览上限（按 rune 计），截断发生在投递之前
const previewLimit = 90

type PushService interface {
	// DispatchNewMessage 客户消息落库后同步触发，尽力而为：
	// 任何失败只记日志与审计，绝不影响消息写入的结果
	DispatchNewMessage(ctx context.Context, conv *model.Conversation, msg *model.Message)

	Subscribe(ctx context.Context, operatorID uint64, req *dto.PushSubscribeReq, ip, ua string) (*dto.PushSubscribeResp, error)
	Unsubscribe(ctx context.Context, operatorID uint64, endpoint, ip, ua string) (*dto.PushUnsubscribeResp, error)
	Debug(ctx context.Context, operatorID uint64) (*dto.PushDebugResp, error)
}

type pushServiceImpl struct {
	subRepo      repository.PushSubscriptionRepo
	presenceRepo repository.PresenceRepo
	auditRepo    repository.AuditRepo
	sender       push.Sender
	cache        signal.Cache
	governor     *signal.Governor
	cfg          *config.SupportConfig
}

func NewPushService(
	subRepo repository.PushSubscriptionRepo,
	presenceRepo repository.PresenceRepo,
	auditRepo repository.AuditRepo,
	sender push.Sender,
	cache signal.Cache,
	governor *signal.Governor,
	cfg *config.SupportConfig,
) PushService {
	return &pushServiceImpl{
		subRepo:      subRepo,
		presenceRepo: presenceRepo,
		auditRepo:    auditRepo,
		sender:       sender,
		cache:        cache,
		governor:     governor,
		cfg:          cfg,
	}
}

// pushPayload 送往 Service Worker 的通知体
type pushPayload struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	URL            string `json:"url"`
	ConversationID uint64 `json:"conversation_id"`
	MessageID      uint64 `json:"message_id"`
}

func (s *pushServiceImpl) DispatchNewMessage(ctx context.Context, conv *model.Conversation, msg *model.Message) {
	// 配置不全时也要在排障键上留痕，否则 /push/debug 解释不了静默
	if !s.cfg.Push.Enabled {
		s.recordLastError(ctx, "push_disabled")
		log.DebugContext(ctx, "推送未启用，跳过投递", "conversation_id", conv.ID)
		return
	}
	if s.cfg.Push.VAPIDPublicKey == "" || s.cfg.Push.VAPIDPrivateKey == "" {
		s.recordLastError(ctx, "missing_vapid_keys")
		log.DebugContext(ctx, "缺少 VAPID 配置，跳过投递", "conversation_id", conv.ID)
		return
	}

	// 能走到健康投递路径，上一次的故障记录就过期了
	_ = s.cache.Del(ctx, consts.PushLastErrorKey)

	cutoff := time.Now().Add(-time.Duration(s.cfg.Presence.OnlineWindowMinutes) * time.Minute)
	presences, err := s.presenceRepo.OnlineSince(ctx, cutoff)
	if err != nil {
		s.recordLastError(ctx, "presence query: "+err.Error())
		return
	}

	// 正在查看该会话的客服已经通过长轮询拿到消息，推了反而是打扰
	targets := make([]uint64, 0, len(presences))
	for _, p := range presences {
		if p.ActiveSessionID == conv.ID {
			continue
		}
		targets = append(targets, p.OperatorID)
	}
	if len(targets) == 0 {
		return
	}

	subs, err := s.subRepo.ActiveForOperators(ctx, targets)
	if err != nil {
		s.recordLastError(ctx, "subscription query: "+err.Error())
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{
		Title:          fmt.Sprintf("%s 发来新消息", conv.Contact.Name),
		Body:           util.TrimPreview(msg.Body, previewLimit),
		URL:            fmt.Sprintf("%s/%d", s.cfg.Push.ClickURLBase, conv.ID),
		ConversationID: conv.ID,
		MessageID:      msg.ID,
	})
	if err != nil {
		s.recordLastError(ctx, "payload marshal: "+err.Error())
		return
	}

	for _, sub := range subs {
		s.sendOne(ctx, conv.ID, msg.ID, sub, payload)
	}
}

func (s *pushServiceImpl) sendOne(ctx context.Context, convID, msgID uint64, sub *model.PushSubscription, payload []byte) {
	status, err := s.sender.Send(ctx, push.Subscription{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}, payload)

	meta := map[string]interface{}{
		"endpoint":   util.ShortEndpoint(sub.Endpoint),
		"message_id": msgID,
	}

	switch {
	case err != nil:
		// 传输层失败视为暂时故障，订阅保持激活，等下一条消息重试
		meta["error"] = err.Error()
		s.appendAudit(ctx, sub.OperatorID, consts.AuditActionPushFailure, convID, "", "", meta)
		s.recordLastError(ctx, err.Error())
		log.WarnContext(ctx, "推送投递失败", "operator_id", sub.OperatorID, "err", err)

	case push.PermanentlyGone(status):
		// 端点已永久失效：停用但不删行，保留审计可追溯性
		if derr := s.subRepo.DeactivateByID(ctx, sub.ID); derr != nil {
			log.ErrorContext(ctx, "停用失效订阅失败", "subscription_id", sub.ID, "err", derr)
		}
		meta["status"] = status
		meta["disabled"] = true
		s.appendAudit(ctx, sub.OperatorID, consts.AuditActionPushFailure, convID, "", "", meta)
		s.recordLastError(ctx, "endpoint gone: "+strconv.Itoa(status))

	case status >= 200 && status < 300:
		meta["status"] = status
		s.appendAudit(ctx, sub.OperatorID, consts.AuditActionPushSuccess, convID, "", "", meta)

	default:
		meta["status"] = status
		s.appendAudit(ctx, sub.OperatorID, consts.AuditActionPushFailure, convID, "", "", meta)
		s.recordLastError(ctx, "push status: "+strconv.Itoa(status))
	}
}

func (s *pushServiceImpl) Subscribe(ctx context.Context, operatorID uint64, req *dto.PushSubscribeReq, ip, ua string) (*dto.PushSubscribeResp, error) {
	created, err := s.subRepo.Upsert(ctx, &model.PushSubscription{
		OperatorID: operatorID,
		Endpoint:   req.Endpoint,
		P256dh:     req.Keys.P256dh,
		Auth:       req.Keys.Auth,
	})
	if err != nil {
		log.ErrorContext(ctx, "保存推送订阅失败", "operator_id", operatorID, "err", err)
		return nil, UnExpectedError
	}

	if terr := s.presenceRepo.TouchSeen(ctx, operatorID); terr != nil {
		log.WarnContext(ctx, "刷新在线时间失败", "operator_id", operatorID, "err", terr)
	}

	s.appendAudit(ctx, operatorID, consts.AuditActionSubscribe, 0, ip, ua, map[string]interface{}{
		"endpoint": util.ShortEndpoint(req.Endpoint),
		"created":  created,
	})

	count, err := s.subRepo.CountActiveByOperator(ctx, operatorID)
	if err != nil {
		return nil, UnExpectedError
	}
	return &dto.PushSubscribeResp{Created: created, ActiveCount: count}, nil
}

func (s *pushServiceImpl) Unsubscribe(ctx context.Context, operatorID uint64, endpoint, ip, ua string) (*dto.PushUnsubscribeResp, error) {
	removed, err := s.subRepo.Deactivate(ctx, operatorID, endpoint)
	if err != nil {
		log.ErrorContext(ctx, "注销推送订阅失败", "operator_id", operatorID, "err", err)
		return nil, UnExpectedError
	}

	if terr := s.presenceRepo.TouchSeen(ctx, operatorID); terr != nil {
		log.WarnContext(ctx, "刷新在线时间失败", "operator_id", operatorID, "err", terr)
	}

	s.appendAudit(ctx, operatorID, consts.AuditActionUnsubscribe, 0, ip, ua, map[string]interface{}{
		"endpoint": util.ShortEndpoint(endpoint),
		"removed":  removed,
	})
	return &dto.PushUnsubscribeResp{Removed: removed}, nil
}

// Debug 推送与轮询链路自检，供排障页使用
func (s *pushServiceImpl) Debug(ctx context.Context, operatorID uint64) (*dto.PushDebugResp, error) {
	active, err := s.subRepo.CountActive(ctx)
	if err != nil {
		return nil, UnExpectedError
	}
	total, err := s.subRepo.CountAll(ctx)
	if err != nil {
		return nil, UnExpectedError
	}
	mine, err := s.subRepo.CountActiveByOperator(ctx, operatorID)
	if err != nil {
		return nil, UnExpectedError
	}

	lastErr, _ := s.cache.Get(ctx, consts.PushLastErrorKey)
	openPolls, _ := s.governor.OpenCount(ctx)
	lastLatency, _ := s.governor.LastLatencyMs(ctx)

	return &dto.PushDebugResp{
		Enabled:           s.cfg.Push.Enabled,
		VAPIDConfigured:   s.cfg.Push.VAPIDPublicKey != "" && s.cfg.Push.VAPIDPrivateKey != "",
		ActiveEndpoints:   active,
		TotalEndpoints:    total,
		MyActiveEndpoints: mine,
		LastError:         lastErr,
		OpenPolls:         openPolls,
		LastPollLatencyMs: lastLatency,
	}, nil
}

func (s *pushServiceImpl) recordLastError(ctx context.Context, msg string) {
	_ = s.cache.Set(ctx, consts.PushLastErrorKey, msg, 24*time.Hour)
}

func (s *pushServiceImpl) appendAudit(ctx context.Context, operatorID uint64, action string, convID uint64, ip, ua string, meta map[string]interface{}) {
	raw, _ := json.Marshal(meta)
	entry := &model.AuditLog{
		OperatorID:     operatorID,
		Action:         action,
		ConversationID: convID,
		IP:             ip,
		UserAgent:      ua,
		Metadata:       string(raw),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		log.ErrorContext(ctx, "写入审计失败", "action", action, "err", err)
	}
}
