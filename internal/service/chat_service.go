package service

import (
	"context"
	"strings"

	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/signal"
	"Helpdesk/internal/pkg/util"
	"Helpdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	log "log/slog"
)

// sessionHistoryLimit 会话视图引导时最多回放的历史条数
const sessionHistoryLimit = 200

type ChatService interface {
	StartChat(ctx context.Context, req *dto.StartChatReq) (*dto.StartChatResp, error)
	SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.SendMessageResp, error)
	Session(ctx context.Context, token string) (*dto.SessionResp, error)
	Typing(ctx context.Context, req *dto.TypingReq) error
	Rate(ctx context.Context, req *dto.RateReq) (*dto.RatingDTO, error)
}

type chatServiceImpl struct {
	convRepo    repository.ConversationRepo
	contactRepo repository.ContactRepo
	msgRepo     repository.MessageRepo
	ratingRepo  repository.RatingRepo
	tracker     *signal.Tracker
	typing      *signal.Typing
	pusher      PushService
}

func NewChatService(
	convRepo repository.ConversationRepo,
	contactRepo repository.ContactRepo,
	msgRepo repository.MessageRepo,
	ratingRepo repository.RatingRepo,
	tracker *signal.Tracker,
	typing *signal.Typing,
	pusher PushService,
) ChatService {
	return &chatServiceImpl{
		convRepo:    convRepo,
		contactRepo: contactRepo,
		msgRepo:     msgRepo,
		ratingRepo:  ratingRepo,
		tracker:     tracker,
		typing:      typing,
		pusher:      pusher,
	}
}

// StartChat 访客入口：手机号归一化后复用联系人，再复用其开启中的会话
func (s *chatServiceImpl) StartChat(ctx context.Context, req *dto.StartChatReq) (*dto.StartChatResp, error) {
	phone := util.NormalizePhone(req.Phone)
	if phone == "" {
		return nil, ErrParamInvalid
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrParamInvalid
	}

	contact, err := s.contactRepo.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		if err = s.contactRepo.Touch(ctx, contact.ID, name); err != nil {
			log.ErrorContext(ctx, "刷新联系人失败", "contact_id", contact.ID, "err", err)
			return nil, UnExpectedError
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		contact = &model.SupportContact{Name: name, Phone: phone}
		if err = s.contactRepo.Create(ctx, contact); err != nil {
			log.ErrorContext(ctx, "创建联系人失败", "phone", phone, "err", err)
			return nil, UnExpectedError
		}
	default:
		return nil, UnExpectedError
	}

	if conv, err := s.convRepo.GetOpenByContact(ctx, contact.ID); err == nil {
		return &dto.StartChatResp{ConversationID: conv.ID, Token: conv.Token, Reused: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, UnExpectedError
	}

	conv, err := s.openConversation(ctx, contact.ID, strings.TrimSpace(req.Subject))
	if err != nil {
		return nil, err
	}
	return &dto.StartChatResp{ConversationID: conv.ID, Token: conv.Token}, nil
}

func (s *chatServiceImpl) openConversation(ctx context.Context, contactID uint64, subject string) (*model.Conversation, error) {
	if subject == "" {
		subject = consts.DefaultSubject
	}
	conv := &model.Conversation{
		Token:     uuid.NewString(),
		ContactID: contactID,
		Subject:   subject,
		IsOpen:    true,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		log.ErrorContext(ctx, "创建会话失败", "contact_id", contactID, "err", err)
		return nil, UnExpectedError
	}
	if err := s.tracker.TouchQueue(ctx); err != nil {
		log.WarnContext(ctx, "排队签名刷新失败", "err", err)
	}
	return conv, nil
}

// SendMessage 访客发消息。往已关闭会话发送不报错：
// 为同一联系人续开一条新会话并告知调用方身份已变更
func (s *chatServiceImpl) SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.SendMessageResp, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, ErrMessageEmpty
	}

	conv, err := s.convRepo.GetByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, UnExpectedError
	}

	continued := false
	if !conv.IsOpen {
		contact := conv.Contact
		conv, err = s.openConversation(ctx, conv.ContactID, conv.Subject)
		if err != nil {
			return nil, err
		}
		conv.Contact = contact
		continued = true
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		Direction:      consts.DirectionCustomer,
		SenderName:     conv.Contact.Name,
		Body:           body,
	}
	if err = s.msgRepo.Create(ctx, msg); err != nil {
		log.ErrorContext(ctx, "写入消息失败", "conversation_id", conv.ID, "err", err)
		return nil, UnExpectedError
	}

	// 信号刷新在持久化之后：宁可多一轮空查询，也不能让轮询端先醒后空
	if _, err = s.tracker.Touch(ctx, conv.ID, msg.ID); err != nil {
		log.WarnContext(ctx, "会话签名刷新失败", "conversation_id", conv.ID, "err", err)
	}
	if err = s.tracker.TouchQueue(ctx); err != nil {
		log.WarnContext(ctx, "排队签名刷新失败", "err", err)
	}
	_ = s.typing.Set(ctx, conv.ID, consts.TypingRoleCustomer, false)

	s.pusher.DispatchNewMessage(ctx, conv, msg)

	return &dto.SendMessageResp{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		Token:          conv.Token,
		Continued:      continued,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

// Session 聊天窗口重建：历史回放、游标与可否评价
func (s *chatServiceImpl) Session(ctx context.Context, token string) (*dto.SessionResp, error) {
	conv, err := s.convRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, UnExpectedError
	}

	msgs, err := s.msgRepo.Recent(ctx, conv.ID, sessionHistoryLimit)
	if err != nil {
		return nil, UnExpectedError
	}

	resp := &dto.SessionResp{
		ConversationID: conv.ID,
		Token:          conv.Token,
		Subject:        conv.Subject,
		IsOpen:         conv.IsOpen,
		CreatedAt:      conv.CreatedAt,
		ClosedAt:       conv.ClosedAt,
		Messages:       toMessageDTOs(msgs),
	}
	if len(msgs) > 0 {
		resp.Cursor = msgs[len(msgs)-1].ID
	}

	if !conv.IsOpen {
		rating, err := s.ratingRepo.GetByConversation(ctx, conv.ID)
		switch {
		case err == nil:
			resp.Rating = &dto.RatingDTO{Score: rating.Score, Reason: rating.Reason, CreatedAt: rating.CreatedAt}
		case errors.Is(err, gorm.ErrRecordNotFound):
			resp.CanRate = ratedAgent(conv) != 0
		default:
			return nil, UnExpectedError
		}
	}
	return resp, nil
}

func (s *chatServiceImpl) Typing(ctx context.Context, req *dto.TypingReq) error {
	conv, err := s.convRepo.GetByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return UnExpectedError
	}
	return s.typing.Set(ctx, conv.ID, consts.TypingRoleCustomer, req.Active)
}

// ratedAgent 评分归属链：当前认领人 > 首位应答者 > 关闭人
func ratedAgent(conv *model.Conversation) uint64 {
	if conv.AssignedToID != 0 {
		return conv.AssignedToID
	}
	if conv.OperatorID != 0 {
		return conv.OperatorID
	}
	return conv.ClosedByID
}

// Rate 仅允许对已关闭且有客服参与过的会话评一次分
func (s *chatServiceImpl) Rate(ctx context.Context, req *dto.RateReq) (*dto.RatingDTO, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, ErrParamInvalid
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Score == 1 && reason == "" {
		return nil, ErrRatingNeedReason
	}

	conv, err := s.convRepo.GetByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, UnExpectedError
	}
	if conv.IsOpen {
		return nil, ErrConversationOpen
	}

	agent := ratedAgent(conv)
	if agent == 0 {
		return nil, ErrNoAgent
	}

	if _, err = s.ratingRepo.GetByConversation(ctx, conv.ID); err == nil {
		return nil, ErrRatingExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, UnExpectedError
	}

	rating := &model.Rating{
		ConversationID: conv.ID,
		AgentID:        agent,
		Score:          req.Score,
		Reason:         reason,
	}
	if err = s.ratingRepo.Create(ctx, rating); err != nil {
		log.ErrorContext(ctx, "写入评分失败", "conversation_id", conv.ID, "err", err)
		return nil, UnExpectedError
	}
	return &dto.RatingDTO{Score: rating.Score, Reason: rating.Reason, CreatedAt: rating.CreatedAt}, nil
}

func toMessageDTOs(msgs []*model.Message) []dto.MessageDTO {
	out := make([]dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.MessageDTO{
			ID:           m.ID,
			Direction:    m.Direction,
			SenderName:   m.SenderName,
			Body:         m.Body,
			CreatedAt:    m.CreatedAt,
			FromCustomer: m.Direction == consts.DirectionCustomer,
		})
	}
	return out
}
