package repository

import (
	"Helpdesk/internal/model"
	"context"

	"gorm.io/gorm"
)

type MessageRepo interface {
	Create(ctx context.Context, msg *model.Message) error
	ListAfter(ctx context.Context, convID, afterID uint64, limit int) ([]*model.Message, error)
	Recent(ctx context.Context, convID uint64, limit int) ([]*model.Message, error)
	MaxID(ctx context.Context, convID uint64) (uint64, error)
	MarkRead(ctx context.Context, convID uint64) (int64, error)
	UnreadTotal(ctx context.Context) (int64, error)
}

type messageRepoImpl struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepoImpl{db: db}
}

func (s *messageRepoImpl) Create(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// ListAfter 游标拉取：id 严格大于 afterID，升序返回
func (s *messageRepoImpl) ListAfter(ctx context.Context, convID, afterID uint64, limit int) ([]*model.Message, error) {
	var msgs []*model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND id > ?", convID, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// Recent 会话视图引导用的最近消息，仍按 id 升序交付
func (s *messageRepoImpl) Recent(ctx context.Context, convID uint64, limit int) ([]*model.Message, error) {
	var msgs []*model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *messageRepoImpl) MaxID(ctx context.Context, convID uint64) (uint64, error) {
	var maxID uint64
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", convID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error
	return maxID, err
}

// MarkRead 客服打开会话时批量置已读，返回置位数量
func (s *messageRepoImpl) MarkRead(ctx context.Context, convID uint64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND direction = ? AND is_read = ?", convID, 1, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadTotal 开启中会话的未读客户消息总数
func (s *messageRepoImpl) UnreadTotal(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Table("support_messages m").
		Joins("JOIN support_conversations c ON c.id = m.conversation_id").
		Where("m.direction = 1 AND m.is_read = 0 AND c.is_open = ?", true).
		Count(&total).Error
	return total, err
}
