package service

import (
	"context"
	"strings"
	"time"

	"Helpdesk/internal/api/config"
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/signal"
	"Helpdesk/internal/repository"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	log "log/slog"
)

type OperatorService interface {
	// OpenConversation 打开会话视图：软认领、批量置已读、登记正在查看
	OpenConversation(ctx context.Context, operatorID, convID uint64, ip, ua string) (*dto.ConversationViewResp, error)
	SendMessage(ctx context.Context, operatorID uint64, operatorName string, req *dto.OperatorSendReq, ip, ua string) (*dto.OperatorSendResp, error)
	Close(ctx context.Context, operatorID, convID uint64, ip, ua string) error
	Reopen(ctx context.Context, operatorID, convID uint64, ip, ua string) error
	Typing(ctx context.Context, operatorID uint64, req *dto.OperatorTypingReq) error
	Heartbeat(ctx context.Context, operatorID, activeConvID uint64) (*dto.HeartbeatResp, error)
}

type operatorServiceImpl struct {
	convRepo     repository.ConversationRepo
	msgRepo      repository.MessageRepo
	ratingRepo   repository.RatingRepo
	presenceRepo repository.PresenceRepo
	auditRepo    repository.AuditRepo
	tracker      *signal.Tracker
	typing       *signal.Typing
	cfg          *config.SupportConfig
}

// auditTrailLimit 会话视图随带的操作流水条数
const auditTrailLimit = 20

func NewOperatorService(
	convRepo repository.ConversationRepo,
	msgRepo repository.MessageRepo,
	ratingRepo repository.RatingRepo,
	presenceRepo repository.PresenceRepo,
	auditRepo repository.AuditRepo,
	tracker *signal.Tracker,
	typing *signal.Typing,
	cfg *config.SupportConfig,
) OperatorService {
	return &operatorServiceImpl{
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		ratingRepo:   ratingRepo,
		presenceRepo: presenceRepo,
		auditRepo:    auditRepo,
		tracker:      tracker,
		typing:       typing,
		cfg:          cfg,
	}
}

func (s *operatorServiceImpl) getConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, UnExpectedError
	}
	return conv, nil
}

func (s *operatorServiceImpl) OpenConversation(ctx context.Context, operatorID, convID uint64, ip, ua string) (*dto.ConversationViewResp, error) {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	if conv.IsOpen {
		if err = s.convRepo.AssignIfUnassigned(ctx, convID, operatorID); err != nil {
			log.ErrorContext(ctx, "软认领失败", "conversation_id", convID, "err", err)
			return nil, UnExpectedError
		}
		if conv.AssignedToID == 0 {
			conv.AssignedToID = operatorID
		}
	}

	marked, err := s.msgRepo.MarkRead(ctx, convID)
	if err != nil {
		log.ErrorContext(ctx, "置已读失败", "conversation_id", convID, "err", err)
		return nil, UnExpectedError
	}
	if marked > 0 {
		// 未读归零会改变排队分级，通知仪表盘
		if err = s.tracker.TouchQueue(ctx); err != nil {
			log.WarnContext(ctx, "排队签名刷新失败", "err", err)
		}
	}

	if err = s.presenceRepo.Upsert(ctx, operatorID, convID); err != nil {
		log.WarnContext(ctx, "登记在看会话失败", "operator_id", operatorID, "err", err)
	}

	s.appendAudit(ctx, operatorID, consts.AuditActionOpen, convID, ip, ua, map[string]interface{}{
		"marked_read": marked,
	})

	msgs, err := s.msgRepo.Recent(ctx, convID, sessionHistoryLimit)
	if err != nil {
		return nil, UnExpectedError
	}

	resp := &dto.ConversationViewResp{
		ConversationID: conv.ID,
		Subject:        conv.Subject,
		ContactName:    conv.Contact.Name,
		ContactPhone:   conv.Contact.Phone,
		IsOpen:         conv.IsOpen,
		AssignedToID:   conv.AssignedToID,
		CreatedAt:      conv.CreatedAt,
		ClosedAt:       conv.ClosedAt,
		Messages:       toMessageDTOs(msgs),
	}
	if len(msgs) > 0 {
		resp.Cursor = msgs[len(msgs)-1].ID
	}

	if rating, err := s.ratingRepo.GetByConversation(ctx, convID); err == nil {
		resp.Rating = &dto.RatingDTO{Score: rating.Score, Reason: rating.Reason, CreatedAt: rating.CreatedAt}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, UnExpectedError
	}

	audits, err := s.auditRepo.ListByConversation(ctx, convID, auditTrailLimit)
	if err != nil {
		return nil, UnExpectedError
	}
	resp.Audits = make([]dto.AuditDTO, 0, len(audits))
	for _, a := range audits {
		resp.Audits = append(resp.Audits, dto.AuditDTO{
			Action:     a.Action,
			OperatorID: a.OperatorID,
			Metadata:   a.Metadata,
			CreatedAt:  a.CreatedAt,
		})
	}
	return resp, nil
}

// SendMessage 客服应答：实际回复即硬认领归属
func (s *operatorServiceImpl) SendMessage(ctx context.Context, operatorID uint64, operatorName string, req *dto.OperatorSendReq, ip, ua string) (*dto.OperatorSendResp, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, ErrMessageEmpty
	}

	conv, err := s.getConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsOpen {
		return nil, ErrConversationClosed
	}

	if err = s.convRepo.Claim(ctx, conv.ID, operatorID); err != nil {
		log.ErrorContext(ctx, "认领会话失败", "conversation_id", conv.ID, "err", err)
		return nil, UnExpectedError
	}

	if operatorName == "" {
		operatorName = "客服"
	}
	msg := &model.Message{
		ConversationID: conv.ID,
		Direction:      consts.DirectionOperator,
		SenderID:       operatorID,
		SenderName:     operatorName,
		Body:           body,
	}
	if err = s.msgRepo.Create(ctx, msg); err != nil {
		log.ErrorContext(ctx, "写入客服消息失败", "conversation_id", conv.ID, "err", err)
		return nil, UnExpectedError
	}

	if _, err = s.tracker.Touch(ctx, conv.ID, msg.ID); err != nil {
		log.WarnContext(ctx, "会话签名刷新失败", "conversation_id", conv.ID, "err", err)
	}
	if err = s.tracker.TouchQueue(ctx); err != nil {
		log.WarnContext(ctx, "排队签名刷新失败", "err", err)
	}
	_ = s.typing.Set(ctx, conv.ID, consts.TypingRoleOperator, false)

	s.appendAudit(ctx, operatorID, consts.AuditActionSend, conv.ID, ip, ua, map[string]interface{}{
		"message_id": msg.ID,
	})

	return &dto.OperatorSendResp{MessageID: msg.ID, CreatedAt: msg.CreatedAt}, nil
}

// Close 关闭会话。残留未读一并置位，避免关单后仪表盘还挂着未读
func (s *operatorServiceImpl) Close(ctx context.Context, operatorID, convID uint64, ip, ua string) error {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsOpen {
		return ErrConversationClosed
	}

	if _, err = s.msgRepo.MarkRead(ctx, convID); err != nil {
		return UnExpectedError
	}
	if err = s.convRepo.Close(ctx, convID, operatorID); err != nil {
		log.ErrorContext(ctx, "关闭会话失败", "conversation_id", convID, "err", err)
		return UnExpectedError
	}

	s.touchAfterStateChange(ctx, convID)

	if err = s.presenceRepo.Upsert(ctx, operatorID, 0); err != nil {
		log.WarnContext(ctx, "清除在看会话失败", "operator_id", operatorID, "err", err)
	}
	s.appendAudit(ctx, operatorID, consts.AuditActionClose, convID, ip, ua, nil)
	return nil
}

func (s *operatorServiceImpl) Reopen(ctx context.Context, operatorID, convID uint64, ip, ua string) error {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if conv.IsOpen {
		return ErrConversationOpen
	}

	if err = s.convRepo.Reopen(ctx, convID); err != nil {
		log.ErrorContext(ctx, "重开会话失败", "conversation_id", convID, "err", err)
		return UnExpectedError
	}

	s.touchAfterStateChange(ctx, convID)
	s.appendAudit(ctx, operatorID, consts.AuditActionReopen, convID, ip, ua, nil)
	return nil
}

// touchAfterStateChange 开关会话后同时叫醒两层轮询：
// 会话签名让在等的访客看到 closed 翻转，排队签名让仪表盘重算指纹
func (s *operatorServiceImpl) touchAfterStateChange(ctx context.Context, convID uint64) {
	maxID, err := s.msgRepo.MaxID(ctx, convID)
	if err != nil {
		log.WarnContext(ctx, "查询最大消息 ID 失败", "conversation_id", convID, "err", err)
	}
	if _, err = s.tracker.Touch(ctx, convID, maxID); err != nil {
		log.WarnContext(ctx, "会话签名刷新失败", "conversation_id", convID, "err", err)
	}
	if err = s.tracker.TouchQueue(ctx); err != nil {
		log.WarnContext(ctx, "排队签名刷新失败", "err", err)
	}
}

func (s *operatorServiceImpl) Typing(ctx context.Context, operatorID uint64, req *dto.OperatorTypingReq) error {
	open, err := s.convRepo.IsOpen(ctx, req.ConversationID)
	if err != nil {
		return UnExpectedError
	}
	if !open {
		return ErrConversationNotFound
	}
	return s.typing.Set(ctx, req.ConversationID, consts.TypingRoleOperator, req.Active)
}

// Heartbeat 在线心跳。声称在看的会话已关闭时登记清零，
// 否则推送排除名单会带着幽灵会话
func (s *operatorServiceImpl) Heartbeat(ctx context.Context, operatorID, activeConvID uint64) (*dto.HeartbeatResp, error) {
	if activeConvID != 0 {
		open, err := s.convRepo.IsOpen(ctx, activeConvID)
		if err != nil {
			return nil, UnExpectedError
		}
		if !open {
			activeConvID = 0
		}
	}

	if err := s.presenceRepo.Upsert(ctx, operatorID, activeConvID); err != nil {
		log.ErrorContext(ctx, "心跳登记失败", "operator_id", operatorID, "err", err)
		return nil, UnExpectedError
	}

	cutoff := time.Now().Add(-time.Duration(s.cfg.Presence.OnlineWindowMinutes) * time.Minute)
	online, err := s.presenceRepo.OnlineSince(ctx, cutoff)
	if err != nil {
		return nil, UnExpectedError
	}
	unread, err := s.msgRepo.UnreadTotal(ctx)
	if err != nil {
		return nil, UnExpectedError
	}
	return &dto.HeartbeatResp{OnlineOperators: len(online), UnreadTotal: unread}, nil
}

func (s *operatorServiceImpl) appendAudit(ctx context.Context, operatorID uint64, action string, convID uint64, ip, ua string, meta map[string]interface{}) {
	metadata := ""
	if meta != nil {
		raw, _ := json.Marshal(meta)
		metadata = string(raw)
	}
	entry := &model.AuditLog{
		OperatorID:     operatorID,
		Action:         action,
		ConversationID: convID,
		IP:             ip,
		UserAgent:      ua,
		Metadata:       metadata,
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		log.ErrorContext(ctx, "写入审计失败", "action", action, "err", err)
	}
}
