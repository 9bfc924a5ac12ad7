package repository

import (
	"Helpdesk/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type ConversationRepo interface {
	Create(ctx context.Context, conv *model.Conversation) error
	GetByID(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetByToken(ctx context.Context, token string) (*model.Conversation, error)
	GetOpenByContact(ctx context.Context, contactID uint64) (*model.Conversation, error)
	IsOpen(ctx context.Context, convID uint64) (bool, error)

	AssignIfUnassigned(ctx context.Context, convID, operatorID uint64) error
	Claim(ctx context.Context, convID, operatorID uint64) error
	Close(ctx context.Context, convID, operatorID uint64) error
	Reopen(ctx context.Context, convID uint64) error

	ListOpenAnnotated(ctx context.Context, query string) ([]*model.ConversationQueueRow, error)
	ListIdleOpen(ctx context.Context, idleBefore time.Time) ([]*model.Conversation, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

func (s *conversationRepoImpl) Create(ctx context.Context, conv *model.Conversation) error {
	return s.db.WithContext(ctx).Create(conv).Error
}

func (s *conversationRepoImpl) GetByID(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").First(&conv, convID).Error
	return &conv, err
}

func (s *conversationRepoImpl) GetByToken(ctx context.Context, token string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").Where("token = ?", token).First(&conv).Error
	return &conv, err
}

// GetOpenByContact 同一联系人最多存在一条开启中的会话被复用
func (s *conversationRepoImpl) GetOpenByContact(ctx context.Context, contactID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").
		Where("contact_id = ? AND is_open = ?", contactID, true).
		Order("created_at DESC").
		First(&conv).Error
	return &conv, err
}

func (s *conversationRepoImpl) IsOpen(ctx context.Context, convID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND is_open = ?", convID, true).
		Count(&count).Error
	return count > 0, err
}

// AssignIfUnassigned 打开会话视图时的软认领，不抢已有归属
func (s *conversationRepoImpl) AssignIfUnassigned(ctx context.Context, convID, operatorID uint64) error {
	if err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND assigned_to_id = 0", convID).
		Update("assigned_to_id", operatorID).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND operator_id = 0", convID).
		Update("operator_id", operatorID).Error
}

// Claim 客服实际应答时归属转移到应答者；首位应答者只记一次
func (s *conversationRepoImpl) Claim(ctx context.Context, convID, operatorID uint64) error {
	if err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("assigned_to_id", operatorID).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND operator_id = 0", convID).
		Update("operator_id", operatorID).Error
}

func (s *conversationRepoImpl) Close(ctx context.Context, convID, operatorID uint64) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]interface{}{
			"is_open":      false,
			"closed_at":    &now,
			"closed_by_id": operatorID,
		}).Error
}

func (s *conversationRepoImpl) Reopen(ctx context.Context, convID uint64) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]interface{}{
			"is_open":   true,
			"closed_at": nil,
		}).Error
}

// ListOpenAnnotated 排队快照：开启中会话连同未读统计与最后一条消息信息。
// 相关子查询的扫描范围被 (conversation_id, is_read) 索引覆盖
func (s *conversationRepoImpl) ListOpenAnnotated(ctx context.Context, query string) ([]*model.ConversationQueueRow, error) {
	var rows []*model.ConversationQueueRow
	q := s.db.WithContext(ctx).Table("support_conversations c").
		Select("c.*, ct.name AS contact_name, " +
			"(SELECT COUNT(*) FROM support_messages m WHERE m.conversation_id = c.id AND m.direction = 1 AND m.is_read = 0) AS unread_count, " +
			"(SELECT MIN(m.created_at) FROM support_messages m WHERE m.conversation_id = c.id AND m.direction = 1 AND m.is_read = 0) AS oldest_unread_at, " +
			"(SELECT MAX(m.created_at) FROM support_messages m WHERE m.conversation_id = c.id) AS last_message_at, " +
			"(SELECT MAX(m.id) FROM support_messages m WHERE m.conversation_id = c.id) AS last_message_id, " +
			"(SELECT m.direction FROM support_messages m WHERE m.conversation_id = c.id ORDER BY m.id DESC LIMIT 1) AS last_direction").
		Joins("LEFT JOIN support_contacts ct ON ct.id = c.contact_id").
		Where("c.is_open = ?", true)

	if query != "" {
		like := "%" + query + "%"
		q = q.Where("ct.name LIKE ? OR c.subject LIKE ? OR ct.phone LIKE ?", like, like, like)
	}

	err := q.Order("c.created_at DESC").Find(&rows).Error
	return rows, err
}

// ListIdleOpen 供清扫任务使用：开启中但最后动静早于 idleBefore 的会话
func (s *conversationRepoImpl) ListIdleOpen(ctx context.Context, idleBefore time.Time) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.WithContext(ctx).
		Where("is_open = ?", true).
		Where("COALESCE((SELECT MAX(m.created_at) FROM support_messages m WHERE m.conversation_id = support_conversations.id), created_at) < ?", idleBefore).
		Find(&convs).Error
	return convs, err
}
