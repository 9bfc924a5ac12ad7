package repository

import (
	"Helpdesk/internal/model"
	"context"

	"gorm.io/gorm"
)

// AuditRepo 追加式写入，没有更新与删除入口
type AuditRepo interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	ListByConversation(ctx context.Context, convID uint64, limit int) ([]*model.AuditLog, error)
}

type auditRepoImpl struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepo {
	return &auditRepoImpl{db: db}
}

func (s *auditRepoImpl) Append(ctx context.Context, entry *model.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *auditRepoImpl) ListByConversation(ctx context.Context, convID uint64, limit int) ([]*model.AuditLog, error) {
	var entries []*model.AuditLog
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
